package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/montanaflynn/stats"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/graph"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

var (
	nodeColor   = color.New(color.FgCyan)
	headColor   = color.New(color.FgGreen, color.Bold)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
	faintColor  = color.New(color.Faint)
	moneyColor  = color.New(color.FgMagenta)
	promptColor = color.New(color.FgBlue, color.Bold)
)

// renderEvent prints one line per completed agent node.
func renderEvent(ev graph.Event) {
	nodeColor.Printf("  ✓ %-24s", ev.Node)
	faintColor.Printf(" %s\n", ev.State.CurrentStage)
}

// renderState prints whatever the session is now waiting on, or the finished
// plan.
func renderState(st *state.PlannerState) {
	fmt.Println()
	for _, e := range st.Errors {
		errColor.Printf("  ! %s\n", e)
	}
	for _, w := range st.BudgetWarnings {
		warnColor.Printf("  ⚠ %s\n", w)
	}

	if st.ConversationResponse != "" {
		fmt.Println(st.ConversationResponse)
		return
	}

	switch {
	case st.RequiresApproval && st.ApprovalType == state.ApprovalDestination:
		renderDestinations(st)
	case st.RequiresApproval && st.ApprovalType == state.ApprovalResearch:
		renderResearch(st)
	case st.RequiresApproval && st.ApprovalType == state.ApprovalBundle:
		renderBundles(st)
	case st.RequiresApproval && st.ApprovalType == state.ApprovalFinalItinerary:
		renderTrip(st)
		promptColor.Println("\napprove the itinerary with: tripplanner resume --approve -s <session>")
	case st.CurrentStage == state.StageComplete:
		renderTrip(st)
		headColor.Println("\ntrip approved and complete")
	default:
		fmt.Printf("stage: %s\n", st.CurrentStage)
	}
}

func renderDestinations(st *state.PlannerState) {
	headColor.Println("Where to? Three suggestions:")
	for i, d := range st.DestinationOptions {
		fmt.Printf("  %d. %s, %s", i+1, d.Name, d.State)
		if d.SeasonFit {
			faintColor.Print("  (in season)")
		}
		fmt.Println()
		faintColor.Printf("     %s\n", d.Reason)
	}
	promptColor.Println("\npick one with: tripplanner resume --approve -f <name> -s <session>")
}

func renderResearch(st *state.PlannerState) {
	headColor.Printf("Research done for %s:\n", st.TripRequest.Destination)
	fmt.Printf("  flights: %d   ground: %d   stays: %d   activities: %d\n",
		len(st.FlightOptions), len(st.GroundTransportOptions),
		len(st.HotelOptions), len(st.ActivityOptions))
	if st.Weather != nil && st.Weather.Summary != "" {
		fmt.Printf("  weather: %s\n", st.Weather.Summary)
	}
	if len(st.Events) > 0 {
		fmt.Printf("  events: %s\n", st.Events[0].Name)
	}
	for _, tip := range st.LocalTips {
		if tip.Category == "scam_warning" {
			warnColor.Printf("  ⚠ %s\n", tip.Title)
		}
	}
	promptColor.Println("\ncontinue with: tripplanner resume --approve -s <session>")
}

func renderBundles(st *state.PlannerState) {
	headColor.Println("Three ways to spend it:")
	for _, b := range st.Bundles {
		fmt.Println()
		moneyColor.Printf("  [%s]  ₹%.0f", b.ID, b.Breakdown.TotalINR)
		faintColor.Printf("  score %.1f (exp %.0f / cost %.0f / conv %.0f)\n",
			b.FinalScore, b.ExperienceScore, b.CostScore, b.ConvenienceScore)
		fmt.Printf("      %s · %s · %d activities\n",
			b.Transport.Operator, b.Stay.Name, len(b.Activities))
		for _, to := range b.TradeOffs {
			faintColor.Printf("      + %s / at the cost of: %s\n", to.Gain, to.Sacrifice)
		}
		for _, issue := range b.Issues {
			warnColor.Printf("      ⚠ %s\n", issue)
		}
	}
	promptColor.Println("\npick with: tripplanner bundle <id> -s <session>   or explore: tripplanner what-if +5000 -s <session>")
}

func renderTrip(st *state.PlannerState) {
	if st.Trip == nil {
		fmt.Println("no itinerary built yet")
		return
	}
	t := st.Trip
	headColor.Printf("%s\n", t.Title)
	moneyColor.Printf("total ₹%.0f", t.TotalCostINR)
	if st.VibeScore != nil && st.VibeScore.Available {
		fmt.Printf("  ·  vibe %d/100", st.VibeScore.Overall)
		if st.VibeScore.Tagline != "" {
			faintColor.Printf("  “%s”", st.VibeScore.Tagline)
		}
	}
	fmt.Println()
	for _, day := range t.Days {
		fmt.Printf("\n%s", day.Date.Format("Mon 2 Jan"))
		if day.Summary != "" {
			faintColor.Printf("  %s", day.Summary)
		}
		fmt.Println()
		for _, it := range day.Items {
			mark := " "
			if !it.Verified && it.Source != "" {
				mark = "~"
			}
			fmt.Printf("  %s %s  %-40s ₹%.0f\n", mark, it.Time, it.Title, it.CostINR)
		}
	}
	for _, issue := range st.ValidationIssues {
		warnColor.Printf("\n  ⚠ %s", issue)
	}
	if len(st.ValidationIssues) > 0 {
		fmt.Println()
	}
}

// renderLatencyStats summarizes per-agent latency across the session's audit
// trail.
func renderLatencyStats(st *state.PlannerState) {
	if len(st.AgentDecisions) == 0 {
		return
	}
	var lat []float64
	var tokens int
	for _, d := range st.AgentDecisions {
		lat = append(lat, float64(d.LatencyMS))
		tokens += d.TokensUsed
	}
	mean, _ := stats.Mean(lat)
	median, _ := stats.Median(lat)
	p95, _ := stats.Percentile(lat, 95)
	faintColor.Printf("\n%d agent steps · latency mean %.0fms median %.0fms p95 %.0fms · %d tokens\n",
		len(st.AgentDecisions), mean, median, p95, tokens)
	agents := map[string]bool{}
	for _, d := range st.AgentDecisions {
		agents[d.Agent] = true
	}
	names := make([]string, 0, len(agents))
	for a := range agents {
		names = append(names, a)
	}
	faintColor.Printf("agents: %s\n", strings.Join(names, ", "))
}
