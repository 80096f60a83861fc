package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/llm"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/negotiator"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// defaultSplit is the category allocation when the LLM cannot propose one.
var defaultSplit = map[string]float64{
	"transport":     0.30,
	"accommodation": 0.35,
	"activities":    0.20,
	"meals":         0.10,
	"misc":          0.05,
}

// Negotiation runs the trade-off engine over the researched candidates and
// suspends for the bundle pick. A matching cache key short-circuits: the
// existing bundles are kept and no scoring happens.
func (a *Agents) Negotiation(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	if st.TripRequest == nil {
		return &state.Update{
			Errors: []string{NodeNegotiation + ": no trip request"},
			AgentDecisions: []state.AgentDecision{
				decision(NodeNegotiation, "negotiate_bundles", "no trip request", "skipped", 0, started),
			},
		}, nil
	}
	req := st.TripRequest

	transports := append(append([]state.TransportOption(nil), st.FlightOptions...), st.GroundTransportOptions...)
	in := negotiator.Inputs{
		Transports:  transports,
		Stays:       st.HotelOptions,
		Activities:  st.ActivityOptions,
		BudgetINR:   req.BudgetINR,
		WhatIfDelta: st.WhatIfDelta,
		Days:        req.DurationDays(),
		Travelers:   req.Travelers,
		Interests:   req.Interests,
		Destination: req.Destination,
		Start:       req.StartDate,
		End:         req.EndDate,
	}

	key := negotiator.CacheKey(in)
	if st.NegotiationCacheKey == key && len(st.Bundles) == 3 {
		return &state.Update{
			CurrentStage:     state.StagePtr(state.StageBundlePending),
			RequiresApproval: state.Bool(true),
			ApprovalType:     state.Str(state.ApprovalBundle),
			ActiveAgents:     []string{NodeNegotiation},
			AgentDecisions: []state.AgentDecision{
				decision(NodeNegotiation, "negotiate_bundles", "cache hit, bundles reused", key[:8], 0, started),
			},
		}, nil
	}

	res := a.deps.Negotiator.Negotiate(in)
	return &state.Update{
		Bundles:             &res.Bundles,
		NegotiationCacheKey: state.Str(res.CacheKey),
		NegotiationLog:      res.Log,
		FeasibilityIssues:   res.FeasibilityIssues,
		CurrentStage:        state.StagePtr(state.StageBundlePending),
		RequiresApproval:    state.Bool(true),
		ApprovalType:        state.Str(state.ApprovalBundle),
		ActiveAgents:        []string{NodeNegotiation},
		AgentDecisions: []state.AgentDecision{
			decision(NodeNegotiation, "negotiate_bundles",
				fmt.Sprintf("scored over %d transports, %d stays, %d activities", len(transports), len(st.HotelOptions), len(st.ActivityOptions)),
				fmt.Sprintf("%d bundles", len(res.Bundles)), 0, started),
		},
	}, nil
}

// BudgetOptimizer locks in the chosen bundle, asks the LLM for a category
// split, and builds the budget tracker. Without an LLM the default split is
// used and the cheapest interpretation wins.
func (a *Agents) BudgetOptimizer(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{
		CurrentStage: state.StagePtr(state.StageBudgeting),
		ActiveAgents: []string{NodeBudgetOptimizer},
	}
	if st.TripRequest == nil {
		upd.Errors = []string{NodeBudgetOptimizer + ": no trip request"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeBudgetOptimizer, "optimize_budget", "no trip request", "skipped", 0, started),
		}
		return upd, nil
	}

	bundleID := st.SelectedBundleID
	if bundleID == "" {
		bundleID = "best_value"
	}
	bundle, ok := st.BundleByID(bundleID)
	if !ok && len(st.Bundles) > 0 {
		bundle, ok = st.Bundles[0], true
	}
	if !ok {
		upd.Errors = []string{NodeBudgetOptimizer + ": no bundles to optimize"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeBudgetOptimizer, "optimize_budget", "no bundles in state", "skipped", 0, started),
		}
		return upd, nil
	}

	split, tokens, reasoning := a.splitFromLLM(ctx, st, bundle)

	budget := st.TripRequest.BudgetINR + st.WhatIfDelta
	tracker := &state.BudgetTracker{
		TotalINR:   budget,
		Allocation: split,
		Allocated:  map[string]float64{},
		Spent: map[string]float64{
			"transport":     bundle.Breakdown.TransportINR,
			"accommodation": bundle.Breakdown.StayINR,
			"activities":    bundle.Breakdown.ActivitiesINR,
			"meals":         bundle.Breakdown.FoodINR,
			"misc":          bundle.Breakdown.BufferINR,
		},
	}
	for cat, frac := range split {
		tracker.Allocated[cat] = math.Round(budget * frac)
	}
	var warnings []string
	for cat, spent := range tracker.Spent {
		if alloc, ok := tracker.Allocated[cat]; ok && spent > alloc {
			warnings = append(warnings, fmt.Sprintf("%s spend ₹%.0f exceeds allocation ₹%.0f", cat, spent, alloc))
		}
	}
	tracker.Warnings = warnings

	sel := append([]state.ActivityOption(nil), bundle.Activities...)
	upd.BudgetTracker = tracker
	upd.BudgetWarnings = warnings
	upd.SelectedBundleID = state.Str(bundle.ID)
	upd.SelectedOutboundFlight = &bundle.Transport
	upd.SelectedHotel = &bundle.Stay
	upd.SelectedActivities = &sel
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeBudgetOptimizer, "optimize_budget", reasoning,
			fmt.Sprintf("bundle %s, %d warnings", bundle.ID, len(warnings)), tokens, started),
	}
	return upd, nil
}

// splitFromLLM asks for a category allocation summing close to 1; anything
// malformed falls back to the default split.
func (a *Agents) splitFromLLM(ctx context.Context, st *state.PlannerState, bundle state.BundleChoice) (map[string]float64, int, string) {
	if a.deps.LLM == nil || !a.deps.LLM.Configured() {
		return defaultSplit, 0, "default split (llm unconfigured)"
	}
	res, err := a.deps.LLM.Complete(ctx,
		`Propose a budget allocation over {"transport", "accommodation", "activities", "meals", "misc"}
as JSON {"split": {"transport": 0.3, ...}}. Fractions must sum to about 1.0.`,
		fmt.Sprintf("budget ₹%.0f, style %s, bundle total ₹%.0f",
			st.TripRequest.BudgetINR, st.TripRequest.TravelStyle, bundle.Breakdown.TotalINR), true)
	if err != nil {
		return defaultSplit, 0, "default split (llm failed)"
	}
	doc := llm.ExtractJSON(res.Content)
	if doc == nil {
		return defaultSplit, res.TokensUsed, "default split (unparseable)"
	}
	var out struct {
		Split map[string]float64 `json:"split"`
	}
	if json.Unmarshal(doc, &out) != nil || len(out.Split) == 0 {
		return defaultSplit, res.TokensUsed, "default split (schema mismatch)"
	}
	var sum float64
	for _, v := range out.Split {
		sum += v
	}
	if sum < 0.9 || sum > 1.1 {
		return defaultSplit, res.TokensUsed, fmt.Sprintf("default split (llm sum %.2f out of range)", sum)
	}
	return out.Split, res.TokensUsed, "llm allocation"
}
