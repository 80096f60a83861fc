package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/llm"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

const itinerarySchema = `Respond as JSON:
{"title": "", "days": [{"date": "YYYY-MM-DD", "summary": "",
 "items": [{"time": "HH:MM", "title": "", "category": "", "duration_hours": 0, "cost_inr": 0, "notes": ""}]}],
 "notes": ""}
Use ONLY the listed activities, transport, and stay. Do not invent attractions.`

// ItineraryBuilder turns the selected bundle into a day-by-day plan. The LLM
// drafts it from the full research context; every item is then verified
// against the candidate pool by name and re-costed from the real candidate.
// Without an LLM a deterministic layout is built directly.
func (a *Agents) ItineraryBuilder(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{
		CurrentStage: state.StagePtr(state.StageBuildingItinerary),
		ActiveAgents: []string{NodeItineraryBuilder},
	}
	if st.TripRequest == nil {
		upd.Errors = []string{NodeItineraryBuilder + ": no trip request"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeItineraryBuilder, "build_itinerary", "no trip request", "skipped", 0, started),
		}
		return upd, nil
	}

	trip, tokens, reasoning := a.buildWithLLM(ctx, st)
	if trip == nil {
		trip = buildHeuristicTrip(st)
		if reasoning == "" {
			reasoning = "deterministic layout (llm unavailable)"
		}
	}
	verifyTrip(trip, st)

	upd.Trip = trip
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeItineraryBuilder, "build_itinerary", reasoning,
			fmt.Sprintf("%d days, ₹%.0f", len(trip.Days), trip.TotalCostINR), tokens, started),
	}
	return upd, nil
}

func (a *Agents) buildWithLLM(ctx context.Context, st *state.PlannerState) (*state.Trip, int, string) {
	if a.deps.LLM == nil || !a.deps.LLM.Configured() {
		return nil, 0, ""
	}
	res, err := a.deps.LLM.Complete(ctx, itinerarySchema, itineraryContext(st), true)
	if err != nil {
		return nil, 0, "deterministic layout (llm failed)"
	}
	doc := llm.ExtractJSON(res.Content)
	if doc == nil {
		return nil, res.TokensUsed, "deterministic layout (llm output unparseable)"
	}
	var out struct {
		Title string `json:"title"`
		Days  []struct {
			Date    string `json:"date"`
			Summary string `json:"summary"`
			Items   []struct {
				Time          string  `json:"time"`
				Title         string  `json:"title"`
				Category      string  `json:"category"`
				DurationHours float64 `json:"duration_hours"`
				CostINR       float64 `json:"cost_inr"`
				Notes         string  `json:"notes"`
			} `json:"items"`
		} `json:"days"`
		Notes string `json:"notes"`
	}
	if json.Unmarshal(doc, &out) != nil || len(out.Days) == 0 {
		return nil, res.TokensUsed, "deterministic layout (llm schema mismatch)"
	}

	req := st.TripRequest
	trip := &state.Trip{
		Title:       out.Title,
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Notes:       out.Notes,
	}
	if trip.Title == "" {
		trip.Title = defaultTripTitle(req)
	}
	for i, d := range out.Days {
		date, derr := time.Parse("2006-01-02", d.Date)
		if derr != nil {
			date = req.StartDate.AddDate(0, 0, i)
		}
		day := state.TripDay{Date: date, Summary: d.Summary}
		for _, it := range d.Items {
			if it.Title == "" {
				continue
			}
			day.Items = append(day.Items, state.TripItem{
				Time:          it.Time,
				Title:         it.Title,
				Category:      it.Category,
				DurationHours: it.DurationHours,
				CostINR:       it.CostINR,
				Notes:         it.Notes,
				Source:        state.SourceLLM,
			})
		}
		trip.Days = append(trip.Days, day)
	}
	return trip, res.TokensUsed, "llm draft verified against candidates"
}

// itineraryContext packs the research into the prompt.
func itineraryContext(st *state.PlannerState) string {
	var b strings.Builder
	req := st.TripRequest
	fmt.Fprintf(&b, "Trip: %s, %s to %s, %d travelers, budget ₹%.0f\n",
		req.Destination, req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"),
		req.Travelers, req.BudgetINR+st.WhatIfDelta)

	if st.SelectedOutboundFlight != nil {
		fmt.Fprintf(&b, "Transport: %s (%s), ₹%.0f, %d min\n",
			st.SelectedOutboundFlight.Operator, st.SelectedOutboundFlight.Mode,
			st.SelectedOutboundFlight.PriceINR, st.SelectedOutboundFlight.DurationMinutes)
	}
	if st.SelectedHotel != nil {
		fmt.Fprintf(&b, "Stay: %s, %.0f stars, ₹%.0f/night\n",
			st.SelectedHotel.Name, st.SelectedHotel.Stars, st.SelectedHotel.PricePerNightINR)
	}
	b.WriteString("Activities:\n")
	for _, a := range st.SelectedActivities {
		fmt.Fprintf(&b, "- %s (%s, %.1fh, ₹%.0f)\n", a.Name, a.Category, a.DurationHours, a.PriceINR)
	}
	if st.Weather != nil && len(st.Weather.Days) > 0 {
		fmt.Fprintf(&b, "Weather: %s\n", st.Weather.Summary)
	}
	for _, e := range st.Events {
		fmt.Fprintf(&b, "Event: %s %s\n", e.Name, e.Date)
	}
	for i, t := range st.LocalTips {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "Tip: %s\n", t.Title)
	}
	return b.String()
}

// buildHeuristicTrip lays selected activities over the trip days: transport
// on day one, two activity slots per day after that.
func buildHeuristicTrip(st *state.PlannerState) *state.Trip {
	req := st.TripRequest
	trip := &state.Trip{
		Title:       defaultTripTitle(req),
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}

	acts := st.SelectedActivities
	next := 0
	for d := 0; d < req.DurationDays(); d++ {
		day := state.TripDay{Date: req.StartDate.AddDate(0, 0, d)}
		if d == 0 && st.SelectedOutboundFlight != nil {
			t := st.SelectedOutboundFlight
			day.Items = append(day.Items, state.TripItem{
				Time:     "08:00",
				Title:    fmt.Sprintf("Travel via %s", t.Operator),
				Category: "transport",
				CostINR:  t.PriceINR,
				Source:   t.Source,
				Verified: t.Verified,
			})
			if st.SelectedHotel != nil {
				day.Items = append(day.Items, state.TripItem{
					Time:     "14:00",
					Title:    "Check in at " + st.SelectedHotel.Name,
					Category: "accommodation",
					Source:   st.SelectedHotel.Source,
					Verified: st.SelectedHotel.Verified,
				})
			}
		}
		slots := []string{"10:00", "15:00"}
		if d == 0 && len(day.Items) > 0 {
			// Arrival day keeps one afternoon slot free after check-in.
			slots = []string{"17:00"}
		}
		for _, t := range slots {
			if next >= len(acts) {
				break
			}
			a := acts[next]
			next++
			day.Items = append(day.Items, state.TripItem{
				Time:          t,
				Title:         a.Name,
				Category:      a.Category,
				DurationHours: a.DurationHours,
				CostINR:       a.PriceINR,
				Source:        a.Source,
				Verified:      a.Verified,
			})
		}
		trip.Days = append(trip.Days, day)
	}
	return trip
}

func defaultTripTitle(req *state.TripRequest) string {
	return fmt.Sprintf("%d days in %s", req.DurationDays(), req.Destination)
}

// verifyTrip cross-checks every item against the candidate pool by name,
// exact then substring. Matched items take the candidate's real price and
// verified flag; unmatched items are marked unverified.
func verifyTrip(trip *state.Trip, st *state.PlannerState) {
	total := 0.0
	for di := range trip.Days {
		for ii := range trip.Days[di].Items {
			item := &trip.Days[di].Items[ii]
			if c, ok := matchCandidate(item.Title, st); ok {
				item.CostINR = c.PriceINR
				item.Verified = c.Verified
				item.Source = c.Source
				if c.BookingURL != "" {
					item.BookingURL = c.BookingURL
				}
			} else if item.Category != "transport" && item.Category != "accommodation" &&
				item.Category != "meals" && !strings.HasPrefix(item.Title, "Check in") {
				item.Verified = false
			}
			total += item.CostINR
		}
	}
	if st.SelectedHotel != nil {
		total += st.SelectedHotel.PricePerNightINR * float64(st.TripRequest.Nights())
	}
	trip.TotalCostINR = total
}

// matched carries the candidate fields verification needs.
type matched struct {
	PriceINR   float64
	Verified   bool
	Source     state.SourceOrigin
	BookingURL string
}

func matchCandidate(title string, st *state.PlannerState) (matched, bool) {
	t := strings.ToLower(strings.TrimSpace(title))

	pools := make([]state.ActivityOption, 0, len(st.SelectedActivities)+len(st.ActivityOptions))
	pools = append(pools, st.SelectedActivities...)
	pools = append(pools, st.ActivityOptions...)

	for _, a := range pools {
		if strings.ToLower(a.Name) == t {
			return matched{a.PriceINR, a.Verified, a.Source, a.BookingURL}, true
		}
	}
	for _, a := range pools {
		n := strings.ToLower(a.Name)
		if strings.Contains(t, n) || strings.Contains(n, t) {
			return matched{a.PriceINR, a.Verified, a.Source, a.BookingURL}, true
		}
	}
	return matched{}, false
}

// ResponseValidator cross-references the built plan against candidates and
// the budget; all findings are advisory.
func (a *Agents) ResponseValidator(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{
		CurrentStage: state.StagePtr(state.StageValidating),
		ActiveAgents: []string{NodeResponseValidator},
	}
	if st.Trip == nil || st.TripRequest == nil {
		upd.Errors = []string{NodeResponseValidator + ": nothing to validate"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeResponseValidator, "validate_plan", "no plan in state", "skipped", 0, started),
		}
		return upd, nil
	}

	var issues []string
	var warnings []string

	budget := st.TripRequest.BudgetINR + st.WhatIfDelta
	if budget > 0 && st.Trip.TotalCostINR > 1.20*budget {
		warnings = append(warnings, fmt.Sprintf("plan cost ₹%.0f exceeds 120%% of budget ₹%.0f", st.Trip.TotalCostINR, budget))
	}

	for _, day := range st.Trip.Days {
		for _, item := range day.Items {
			c, ok := matchCandidate(item.Title, st)
			if !ok {
				if item.Category != "transport" && item.Category != "accommodation" && item.Category != "meals" {
					issues = append(issues, fmt.Sprintf("item %q not found among researched candidates", item.Title))
				}
				continue
			}
			if c.PriceINR > 0 && item.CostINR > 3*c.PriceINR {
				issues = append(issues, fmt.Sprintf("item %q costed ₹%.0f, over 3x the candidate price ₹%.0f", item.Title, item.CostINR, c.PriceINR))
			}
		}
	}

	upd.ValidationIssues = issues
	upd.BudgetWarnings = warnings
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeResponseValidator, "validate_plan", "",
			fmt.Sprintf("%d issues, %d budget warnings", len(issues), len(warnings)), 0, started),
	}
	return upd, nil
}

// VibeScorer is LLM-only: a 0-100 fit score with a short tagline. Without an
// LLM the score is marked unavailable rather than guessed.
func (a *Agents) VibeScorer(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{
		CurrentStage: state.StagePtr(state.StageScoring),
		ActiveAgents: []string{NodeVibeScorer},
	}

	if a.deps.LLM == nil || !a.deps.LLM.Configured() || st.Trip == nil {
		upd.VibeScore = &state.VibeScore{Available: false, Tagline: "scoring unavailable"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeVibeScorer, "score_vibe", "llm unavailable", "unavailable", 0, started),
		}
		return upd, nil
	}

	res, err := a.deps.LLM.Complete(ctx,
		`Rate how well this plan matches the traveler's request, 0-100, as JSON:
{"overall": 0, "breakdown": {"pace": 0, "budget_fit": 0, "interest_match": 0}, "tagline": "max eight words"}`,
		itineraryContext(st), true)
	if err != nil {
		upd.VibeScore = &state.VibeScore{Available: false, Tagline: "scoring unavailable"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeVibeScorer, "score_vibe", "llm call failed", "unavailable", 0, started),
		}
		return upd, nil
	}

	var out struct {
		Overall   int            `json:"overall"`
		Breakdown map[string]int `json:"breakdown"`
		Tagline   string         `json:"tagline"`
	}
	doc := llm.ExtractJSON(res.Content)
	if doc == nil || json.Unmarshal(doc, &out) != nil {
		upd.VibeScore = &state.VibeScore{Available: false, Tagline: "scoring unavailable"}
	} else {
		if out.Overall < 0 {
			out.Overall = 0
		}
		if out.Overall > 100 {
			out.Overall = 100
		}
		if words := strings.Fields(out.Tagline); len(words) > 8 {
			out.Tagline = strings.Join(words[:8], " ")
		}
		upd.VibeScore = &state.VibeScore{
			Overall:   out.Overall,
			Breakdown: out.Breakdown,
			Tagline:   out.Tagline,
			Available: true,
		}
	}
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeVibeScorer, "score_vibe", "", fmt.Sprintf("overall %d", out.Overall), res.TokensUsed, started),
	}
	return upd, nil
}

// FinalGate suspends for the last approval before the plan is considered
// complete.
func (a *Agents) FinalGate(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	return &state.Update{
		CurrentStage:     state.StagePtr(state.StageFinalApproval),
		RequiresApproval: state.Bool(true),
		ApprovalType:     state.Str(state.ApprovalFinalItinerary),
		ActiveAgents:     []string{NodeFinalGate},
		AgentDecisions: []state.AgentDecision{
			decision(NodeFinalGate, "await_final_approval", "plan built and validated", "", 0, started),
		},
	}, nil
}
