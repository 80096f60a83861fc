package state

import (
	"encoding/json"
	"time"
)

// Update is the typed partial record an agent node returns. Nil pointer
// fields and nil slices mean "no change". Each field carries one of two
// reducers:
//
//   - overwrite: the new value replaces the old when set
//   - append-and-dedup: new entries are appended unless an entry with the
//     same dedup key is already present
//
// The append-and-dedup reducer is associative and commutative over the dedup
// key, so concurrent fan-out branches merge to the same state regardless of
// arrival order.
type Update struct {
	RawQuery     *string     `json:"raw_query,omitempty"`
	TripRequest  *TripRequest `json:"trip_request,omitempty"`
	IntentType   *IntentType `json:"intent_type,omitempty"`
	CurrentStage *Stage      `json:"current_stage,omitempty"`
	ActiveAgents []string    `json:"active_agents,omitempty"` // overwrite

	DestinationOptions []DestinationSuggestion `json:"destination_options,omitempty"` // overwrite

	FlightOptions          []TransportOption `json:"flight_options,omitempty"`           // append-dedup
	GroundTransportOptions []TransportOption `json:"ground_transport_options,omitempty"` // append-dedup
	HotelOptions           []HotelOption     `json:"hotel_options,omitempty"`            // append-dedup
	ActivityOptions        []ActivityOption  `json:"activity_options,omitempty"`         // append-dedup

	Weather    *WeatherSummary `json:"weather,omitempty"`
	LocalTips  []LocalTip      `json:"local_tips,omitempty"`  // append-dedup
	HiddenGems []LocalTip      `json:"hidden_gems,omitempty"` // append-dedup
	Events     []EventInfo     `json:"events,omitempty"`      // append-dedup

	SelectedOutboundFlight *TransportOption  `json:"selected_outbound_flight,omitempty"`
	SelectedHotel          *HotelOption      `json:"selected_hotel,omitempty"`
	SelectedActivities     *[]ActivityOption `json:"selected_activities,omitempty"` // overwrite

	Bundles             *[]BundleChoice `json:"bundles,omitempty"` // overwrite
	SelectedBundleID    *string         `json:"selected_bundle_id,omitempty"`
	WhatIfDelta         *float64        `json:"what_if_delta,omitempty"`
	WhatIfHistory       []WhatIfEntry   `json:"what_if_history,omitempty"` // append
	NegotiationCacheKey *string         `json:"negotiation_cache_key,omitempty"`
	NegotiationLog      []string        `json:"negotiation_log,omitempty"`    // append-dedup
	FeasibilityIssues   []string        `json:"feasibility_issues,omitempty"` // append-dedup

	BudgetTracker *BudgetTracker `json:"budget_tracker,omitempty"`
	Trip          *Trip          `json:"trip,omitempty"`
	VibeScore     *VibeScore     `json:"vibe_score,omitempty"`

	RequiresApproval *bool   `json:"requires_approval,omitempty"`
	ApprovalType     *string `json:"approval_type,omitempty"`
	UserFeedback     *string `json:"user_feedback,omitempty"`

	AgentDecisions   []AgentDecision `json:"agent_decisions,omitempty"`   // append-dedup
	Errors           []string        `json:"errors,omitempty"`            // append-dedup
	BudgetWarnings   []string        `json:"budget_warnings,omitempty"`   // append-dedup
	ValidationIssues []string        `json:"validation_issues,omitempty"` // append-dedup

	ConversationResponse *string `json:"conversation_response,omitempty"`
}

// Apply merges the update into the state using the per-field reducers.
func (s *PlannerState) Apply(u *Update) {
	if u == nil {
		return
	}
	if u.RawQuery != nil {
		s.RawQuery = *u.RawQuery
	}
	if u.TripRequest != nil {
		s.TripRequest = u.TripRequest
	}
	if u.IntentType != nil {
		s.IntentType = *u.IntentType
	}
	if u.CurrentStage != nil {
		s.CurrentStage = *u.CurrentStage
	}
	if u.ActiveAgents != nil {
		s.ActiveAgents = u.ActiveAgents
	}
	if u.DestinationOptions != nil {
		s.DestinationOptions = u.DestinationOptions
	}

	s.FlightOptions = mergeDedup(s.FlightOptions, u.FlightOptions, TransportOption.dedupKey)
	s.GroundTransportOptions = mergeDedup(s.GroundTransportOptions, u.GroundTransportOptions, TransportOption.dedupKey)
	s.HotelOptions = mergeDedup(s.HotelOptions, u.HotelOptions, HotelOption.dedupKey)
	s.ActivityOptions = mergeDedup(s.ActivityOptions, u.ActivityOptions, ActivityOption.dedupKey)

	if u.Weather != nil {
		s.Weather = u.Weather
	}
	s.LocalTips = mergeDedup(s.LocalTips, u.LocalTips, LocalTip.dedupKey)
	s.HiddenGems = mergeDedup(s.HiddenGems, u.HiddenGems, LocalTip.dedupKey)
	s.Events = mergeDedup(s.Events, u.Events, EventInfo.dedupKey)

	if u.SelectedOutboundFlight != nil {
		s.SelectedOutboundFlight = u.SelectedOutboundFlight
	}
	if u.SelectedHotel != nil {
		s.SelectedHotel = u.SelectedHotel
	}
	if u.SelectedActivities != nil {
		s.SelectedActivities = *u.SelectedActivities
	}

	if u.Bundles != nil {
		s.Bundles = *u.Bundles
	}
	if u.SelectedBundleID != nil {
		s.SelectedBundleID = *u.SelectedBundleID
	}
	if u.WhatIfDelta != nil {
		s.WhatIfDelta = *u.WhatIfDelta
	}
	s.WhatIfHistory = append(s.WhatIfHistory, u.WhatIfHistory...)
	if u.NegotiationCacheKey != nil {
		s.NegotiationCacheKey = *u.NegotiationCacheKey
	}
	s.NegotiationLog = mergeDedup(s.NegotiationLog, u.NegotiationLog, stringKey)
	s.FeasibilityIssues = mergeDedup(s.FeasibilityIssues, u.FeasibilityIssues, stringKey)

	if u.BudgetTracker != nil {
		s.BudgetTracker = u.BudgetTracker
	}
	if u.Trip != nil {
		s.Trip = u.Trip
	}
	if u.VibeScore != nil {
		s.VibeScore = u.VibeScore
	}

	if u.RequiresApproval != nil {
		s.RequiresApproval = *u.RequiresApproval
	}
	if u.ApprovalType != nil {
		s.ApprovalType = *u.ApprovalType
	}
	if u.UserFeedback != nil {
		s.UserFeedback = *u.UserFeedback
	}

	s.AgentDecisions = mergeDedup(s.AgentDecisions, u.AgentDecisions, AgentDecision.dedupKey)
	s.Errors = mergeDedup(s.Errors, u.Errors, stringKey)
	s.BudgetWarnings = mergeDedup(s.BudgetWarnings, u.BudgetWarnings, stringKey)
	s.ValidationIssues = mergeDedup(s.ValidationIssues, u.ValidationIssues, stringKey)

	if u.ConversationResponse != nil {
		s.ConversationResponse = *u.ConversationResponse
	}

	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the state, used for fan-out branch snapshots.
func (s *PlannerState) Clone() *PlannerState {
	data, err := json.Marshal(s)
	if err != nil {
		// PlannerState is a closed JSON-serializable record; marshal cannot
		// fail for values produced by the graph.
		panic(err)
	}
	var out PlannerState
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

func stringKey(s string) string { return s }

func mergeDedup[T any](old, add []T, key func(T) string) []T {
	if len(add) == 0 {
		return old
	}
	seen := make(map[string]struct{}, len(old)+len(add))
	for _, v := range old {
		seen[key(v)] = struct{}{}
	}
	out := old
	for _, v := range add {
		k := key(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// helpers for building updates tersely in agent code

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// F64 returns a pointer to f.
func F64(f float64) *float64 { return &f }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// StagePtr returns a pointer to st.
func StagePtr(st Stage) *Stage { return &st }

// IntentPtr returns a pointer to it.
func IntentPtr(it IntentType) *IntentType { return &it }
