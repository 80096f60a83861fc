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

// EnrichmentDispatcher marks the enrichment fan-out.
func (a *Agents) EnrichmentDispatcher(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	return &state.Update{
		CurrentStage: state.StagePtr(state.StageEnriching),
		ActiveAgents: []string{NodeFestivalCheck, NodeLocalIntel},
		AgentDecisions: []state.AgentDecision{
			decision(NodeEnrichmentDispatcher, "dispatch_enrichment", "fan out to festival and local-intel agents", "", 0, started),
		},
	}, nil
}

// FestivalCheck finds festivals and events overlapping the trip window via
// web search, with an LLM fallback.
func (a *Agents) FestivalCheck(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{}
	if st.TripRequest == nil || st.TripRequest.Destination == "" {
		return upd, nil
	}
	req := st.TripRequest
	window := fmt.Sprintf("%s to %s", req.StartDate.Format("2 Jan 2006"), req.EndDate.Format("2 Jan 2006"))

	var events []state.EventInfo
	var reason string
	if a.deps.Web != nil && a.deps.Web.Configured() {
		events, reason = a.deps.Web.FestivalEvents(ctx, req.Destination, window)
	} else {
		reason = "web search unconfigured"
	}
	if len(events) == 0 {
		events = a.eventsFromLLM(ctx, req.Destination, window)
	}

	upd.Events = events
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeFestivalCheck, "check_festivals", reason,
			fmt.Sprintf("%d events", len(events)), 0, started),
	}
	return upd, nil
}

func (a *Agents) eventsFromLLM(ctx context.Context, destination, window string) []state.EventInfo {
	if a.deps.LLM == nil || !a.deps.LLM.Configured() {
		return nil
	}
	res, err := a.deps.LLM.Complete(ctx,
		`List festivals or recurring events at the destination during the window as JSON:
{"events": [{"name": "", "date": "", "description": ""}]}. Empty list if unsure.`,
		fmt.Sprintf("destination: %s, window: %s", destination, window), true)
	if err != nil {
		return nil
	}
	doc := llm.ExtractJSON(res.Content)
	if doc == nil {
		return nil
	}
	var out struct {
		Events []struct {
			Name        string `json:"name"`
			Date        string `json:"date"`
			Description string `json:"description"`
		} `json:"events"`
	}
	if json.Unmarshal(doc, &out) != nil {
		return nil
	}
	var events []state.EventInfo
	for _, e := range out.Events {
		if e.Name == "" {
			continue
		}
		events = append(events, state.EventInfo{
			Name:        e.Name,
			Date:        e.Date,
			Description: e.Description,
			Source:      state.SourceLLM,
		})
	}
	return events
}

// LocalIntel gathers traveler advice: Reddit first, then web search, then
// LLM. Hidden gems are split out of the tip stream by category.
func (a *Agents) LocalIntel(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{}
	if st.TripRequest == nil || st.TripRequest.Destination == "" {
		return upd, nil
	}
	dest := st.TripRequest.Destination

	var tips []state.LocalTip
	var chain []string
	if a.deps.Reddit != nil && a.deps.Reddit.Configured() {
		var reason string
		tips, reason = a.deps.Reddit.LocalTips(ctx, dest)
		if reason != "" {
			chain = append(chain, "reddit: "+reason)
		}
	} else {
		chain = append(chain, "reddit: unconfigured")
	}
	if len(tips) == 0 && a.deps.Web != nil && a.deps.Web.Configured() {
		if ans, _ := a.deps.Web.Search(ctx, "local tips and scams to avoid in "+dest, 5); ans != nil {
			for _, r := range ans.Results {
				if r.Title == "" {
					continue
				}
				tips = append(tips, state.LocalTip{
					Title:  r.Title,
					Detail: r.Content,
					Source: state.SourceTavilyWeb,
				})
			}
		}
	}
	if len(tips) == 0 {
		tips = a.tipsFromLLM(ctx, dest)
	}

	for _, t := range tips {
		if t.Category == "hidden_gem" {
			upd.HiddenGems = append(upd.HiddenGems, t)
		} else {
			upd.LocalTips = append(upd.LocalTips, t)
		}
	}
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeLocalIntel, "gather_local_intel", strings.Join(chain, "; "),
			fmt.Sprintf("%d tips, %d hidden gems", len(upd.LocalTips), len(upd.HiddenGems)), 0, started),
	}
	return upd, nil
}

func (a *Agents) tipsFromLLM(ctx context.Context, destination string) []state.LocalTip {
	if a.deps.LLM == nil || !a.deps.LLM.Configured() {
		return nil
	}
	res, err := a.deps.LLM.Complete(ctx,
		`Give 5 practical traveler tips for the destination as JSON:
{"tips": [{"title": "", "detail": "", "category": "advice|scam_warning|hidden_gem|food"}]}`,
		destination, true)
	if err != nil {
		return nil
	}
	doc := llm.ExtractJSON(res.Content)
	if doc == nil {
		return nil
	}
	var out struct {
		Tips []struct {
			Title    string `json:"title"`
			Detail   string `json:"detail"`
			Category string `json:"category"`
		} `json:"tips"`
	}
	if json.Unmarshal(doc, &out) != nil {
		return nil
	}
	var tips []state.LocalTip
	for _, t := range out.Tips {
		if t.Title == "" {
			continue
		}
		tips = append(tips, state.LocalTip{
			Title:    t.Title,
			Detail:   t.Detail,
			Category: t.Category,
			Source:   state.SourceLLM,
		})
	}
	return tips
}

// EnrichmentAggregator is the barrier join after the enrichment fan-out.
func (a *Agents) EnrichmentAggregator(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	return &state.Update{
		CurrentStage: state.StagePtr(state.StageEnrichmentComplete),
		ActiveAgents: []string{NodeEnrichmentAggregator},
		AgentDecisions: []state.AgentDecision{
			decision(NodeEnrichmentAggregator, "aggregate_enrichment", "",
				fmt.Sprintf("%d events, %d tips, %d gems", len(st.Events), len(st.LocalTips), len(st.HiddenGems)), 0, started),
		},
	}, nil
}

// ResearchGate suspends the run so the user can review the research before
// negotiation spends time on it.
func (a *Agents) ResearchGate(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	return &state.Update{
		CurrentStage:     state.StagePtr(state.StageResearchApproval),
		RequiresApproval: state.Bool(true),
		ApprovalType:     state.Str(state.ApprovalResearch),
		ActiveAgents:     []string{NodeResearchGate},
		AgentDecisions: []state.AgentDecision{
			decision(NodeResearchGate, "await_research_approval", "research complete, awaiting go-ahead", "", 0, started),
		},
	}, nil
}
