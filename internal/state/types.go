// Package state defines the shared planner record threaded through the agent
// graph, plus the typed partial update and the per-field merge reducers that
// let concurrent fan-out branches compose deterministically.
package state

import (
	"fmt"
	"time"
)

// IntentType classifies what the user is asking for.
type IntentType string

const (
	IntentPlan         IntentType = "plan"
	IntentModify       IntentType = "modify"
	IntentConversation IntentType = "conversation"
)

// Stage marks the pipeline position of a run.
type Stage string

const (
	StageCreated            Stage = "created"
	StageIntentParsed       Stage = "intent_parsed"
	StageDestinationPending Stage = "destination_pending"
	StageSearching          Stage = "searching"
	StageSearchComplete     Stage = "search_complete"
	StageEnriching          Stage = "enriching"
	StageEnrichmentComplete Stage = "enrichment_complete"
	StageResearchApproval   Stage = "research_approval"
	StageNegotiating        Stage = "negotiating"
	StageBundlePending      Stage = "bundle_pending"
	StageBudgeting          Stage = "budgeting"
	StageBuildingItinerary  Stage = "building_itinerary"
	StageValidating         Stage = "validating"
	StageScoring            Stage = "scoring"
	StageFinalApproval      Stage = "final_approval"
	StageComplete           Stage = "complete"
)

// ApprovalType names the human-in-the-loop gate a suspended run is waiting on.
const (
	ApprovalDestination    = "destination"
	ApprovalResearch       = "research"
	ApprovalBundle         = "bundle_selection"
	ApprovalFinalItinerary = "final_itinerary"
)

// SourceOrigin tags where a candidate record came from.
type SourceOrigin string

const (
	SourceAPI            SourceOrigin = "api"
	SourceCurated        SourceOrigin = "curated"
	SourceLLM            SourceOrigin = "llm"
	SourceTavilyWeb      SourceOrigin = "tavily_web"
	SourceFareCalculator SourceOrigin = "fare_calculator"
	SourceEstimated      SourceOrigin = "estimated"
)

// TransportMode distinguishes the transport candidate kinds.
type TransportMode string

const (
	ModeFlight TransportMode = "flight"
	ModeTrain  TransportMode = "train"
	ModeBus    TransportMode = "bus"
	ModeCab    TransportMode = "cab"
)

// TripRequest is the structured intent extracted from the raw query.
type TripRequest struct {
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	BudgetINR    float64   `json:"budget_inr"`
	Travelers    int       `json:"travelers"`
	TravelStyle  string    `json:"travel_style"`
	Interests    []string  `json:"interests"`
	Accommodation string   `json:"accommodation,omitempty"`
}

// DurationDays returns the trip length in days, minimum 1.
func (r *TripRequest) DurationDays() int {
	if r == nil || r.EndDate.Before(r.StartDate) {
		return 1
	}
	d := int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
	if d < 1 {
		return 1
	}
	return d
}

// Nights returns the number of hotel nights for the trip.
func (r *TripRequest) Nights() int {
	n := r.DurationDays() - 1
	if n < 1 {
		return 1
	}
	return n
}

// TransportOption is a single flight, train, bus, or cab candidate.
type TransportOption struct {
	ID              string        `json:"id"`
	Mode            TransportMode `json:"mode"`
	Operator        string        `json:"operator"`
	Origin          string        `json:"origin"`
	Destination     string        `json:"destination"`
	DepartTime      string        `json:"depart_time,omitempty"`
	ArriveTime      string        `json:"arrive_time,omitempty"`
	PriceINR        float64       `json:"price_inr"`
	Currency        string        `json:"currency"`
	DurationMinutes int           `json:"duration_minutes"`
	Transfers       int           `json:"transfers"`
	TravelClass     string        `json:"travel_class,omitempty"`
	Rating          float64       `json:"rating"`
	BookingURL      string        `json:"booking_url,omitempty"`
	Source          SourceOrigin  `json:"source"`
	Verified        bool          `json:"verified"`
}

// HotelOption is a single stay candidate.
type HotelOption struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Address          string       `json:"address,omitempty"`
	Lat              float64      `json:"lat"`
	Lon              float64      `json:"lon"`
	Stars            float64      `json:"stars"`
	PricePerNightINR float64      `json:"price_per_night_inr"`
	TotalPriceINR    float64      `json:"total_price_inr"`
	Amenities        []string     `json:"amenities,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	BookingURL       string       `json:"booking_url,omitempty"`
	Source           SourceOrigin `json:"source"`
	Verified         bool         `json:"verified"`
}

// ActivityOption is a single activity candidate.
type ActivityOption struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Category      string       `json:"category"`
	DurationHours float64      `json:"duration_hours"`
	PriceINR      float64      `json:"price_inr"`
	Lat           float64      `json:"lat"`
	Lon           float64      `json:"lon"`
	OpeningHours  string       `json:"opening_hours,omitempty"`
	Phone         string       `json:"phone,omitempty"`
	Rating        float64      `json:"rating"`
	BookingURL    string       `json:"booking_url,omitempty"`
	Source        SourceOrigin `json:"source"`
	Verified      bool         `json:"verified"`
}

// LocalTip is an enrichment snippet: advice, hidden gem, scam warning.
type LocalTip struct {
	Title    string       `json:"title"`
	Detail   string       `json:"detail"`
	Category string       `json:"category,omitempty"`
	Source   SourceOrigin `json:"source"`
}

// EventInfo is a festival or local event overlapping the trip window.
type EventInfo struct {
	Name        string       `json:"name"`
	Date        string       `json:"date,omitempty"`
	Venue       string       `json:"venue,omitempty"`
	Description string       `json:"description,omitempty"`
	Source      SourceOrigin `json:"source"`
}

// WeatherDay is one day of forecast.
type WeatherDay struct {
	Date          string  `json:"date"`
	TempMinC      float64 `json:"temp_min_c"`
	TempMaxC      float64 `json:"temp_max_c"`
	PrecipProbPct float64 `json:"precip_prob_pct"`
	PrecipMM      float64 `json:"precip_mm"`
	WeatherCode   int     `json:"weather_code"`
	Condition     string  `json:"condition"`
	WindMaxKPH    float64 `json:"wind_max_kph"`
}

// WeatherSummary is the forecast for the destination over the trip window.
type WeatherSummary struct {
	Destination string       `json:"destination"`
	Days        []WeatherDay `json:"days"`
	Summary     string       `json:"summary,omitempty"`
	Source      SourceOrigin `json:"source"`
}

// DestinationSuggestion is one of the recommender's three proposals.
type DestinationSuggestion struct {
	Name      string   `json:"name"`
	State     string   `json:"state"`
	Reason    string   `json:"reason"`
	BestFor   []string `json:"best_for,omitempty"`
	SeasonFit bool     `json:"season_fit"`
}

// CostBreakdown itemizes a bundle's total cost.
type CostBreakdown struct {
	TransportINR  float64 `json:"transport_inr"`
	StayINR       float64 `json:"stay_inr"`
	ActivitiesINR float64 `json:"activities_inr"`
	FoodINR       float64 `json:"food_inr"`
	BufferINR     float64 `json:"buffer_inr"`
	TotalINR      float64 `json:"total_inr"`
}

// TradeOff is one gain/sacrifice line in a bundle's rationale.
type TradeOff struct {
	Gain      string `json:"gain"`
	Sacrifice string `json:"sacrifice"`
}

// RejectedAlternative records why a close runner-up was not chosen.
type RejectedAlternative struct {
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// BundleChoice is a complete negotiated plan candidate. It embeds copies of
// the chosen records so downstream nodes carry no ordering dependency on the
// candidate lists.
type BundleChoice struct {
	ID               string                `json:"id"`
	Label            string                `json:"label"`
	Transport        TransportOption       `json:"transport"`
	Stay             HotelOption           `json:"stay"`
	Activities       []ActivityOption      `json:"activities"`
	Breakdown        CostBreakdown         `json:"breakdown"`
	CostScore        float64               `json:"cost_score"`
	ExperienceScore  float64               `json:"experience_score"`
	ConvenienceScore float64               `json:"convenience_score"`
	FinalScore       float64               `json:"final_score"`
	TradeOffs        []TradeOff            `json:"trade_offs"`
	Rejected         []RejectedAlternative `json:"rejected,omitempty"`
	BookingURLs      map[string]string     `json:"booking_urls,omitempty"`
	DecisionLog      []string              `json:"decision_log,omitempty"`
	Issues           []string              `json:"issues,omitempty"`
}

// WhatIfEntry records one budget-delta re-negotiation.
type WhatIfEntry struct {
	DeltaINR   float64   `json:"delta_inr"`
	AppliedAt  time.Time `json:"applied_at"`
	TotalDelta float64   `json:"total_delta"`
}

// BudgetTracker holds per-category allocation against actual spend.
type BudgetTracker struct {
	TotalINR   float64            `json:"total_inr"`
	Allocation map[string]float64 `json:"allocation"`
	Allocated  map[string]float64 `json:"allocated"`
	Spent      map[string]float64 `json:"spent"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// TripItem is one scheduled entry in a day plan.
type TripItem struct {
	Time          string       `json:"time"`
	Title         string       `json:"title"`
	Category      string       `json:"category,omitempty"`
	DurationHours float64      `json:"duration_hours,omitempty"`
	CostINR       float64      `json:"cost_inr"`
	Notes         string       `json:"notes,omitempty"`
	BookingURL    string       `json:"booking_url,omitempty"`
	Verified      bool         `json:"verified"`
	Source        SourceOrigin `json:"source,omitempty"`
}

// TripDay is one day of the built itinerary.
type TripDay struct {
	Date    time.Time  `json:"date"`
	Summary string     `json:"summary,omitempty"`
	Items   []TripItem `json:"items"`
}

// Trip is the final day-by-day plan.
type Trip struct {
	Title        string    `json:"title"`
	Destination  string    `json:"destination"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Days         []TripDay `json:"days"`
	TotalCostINR float64   `json:"total_cost_inr"`
	Notes        string    `json:"notes,omitempty"`
	ShareID      string    `json:"share_id,omitempty"`
}

// VibeScore is the 0-100 fit score with per-category breakdown.
type VibeScore struct {
	Overall   int            `json:"overall"`
	Breakdown map[string]int `json:"breakdown,omitempty"`
	Tagline   string         `json:"tagline,omitempty"`
	Available bool           `json:"available"`
}

// AgentDecision is one audit entry appended by every agent node.
type AgentDecision struct {
	Agent         string    `json:"agent"`
	Action        string    `json:"action"`
	Reasoning     string    `json:"reasoning,omitempty"`
	ResultSummary string    `json:"result_summary,omitempty"`
	TokensUsed    int       `json:"tokens_used,omitempty"`
	LatencyMS     int64     `json:"latency_ms"`
	At            time.Time `json:"at"`
}

// PlannerState is the single shared record threaded through the graph.
type PlannerState struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	RawQuery  string `json:"raw_query"`

	TripRequest  *TripRequest `json:"trip_request,omitempty"`
	IntentType   IntentType   `json:"intent_type,omitempty"`
	CurrentStage Stage        `json:"current_stage"`
	ActiveAgents []string     `json:"active_agents,omitempty"`

	DestinationOptions []DestinationSuggestion `json:"destination_options,omitempty"`

	FlightOptions          []TransportOption `json:"flight_options,omitempty"`
	GroundTransportOptions []TransportOption `json:"ground_transport_options,omitempty"`
	HotelOptions           []HotelOption     `json:"hotel_options,omitempty"`
	ActivityOptions        []ActivityOption  `json:"activity_options,omitempty"`

	Weather    *WeatherSummary `json:"weather,omitempty"`
	LocalTips  []LocalTip      `json:"local_tips,omitempty"`
	HiddenGems []LocalTip      `json:"hidden_gems,omitempty"`
	Events     []EventInfo     `json:"events,omitempty"`

	SelectedOutboundFlight *TransportOption `json:"selected_outbound_flight,omitempty"`
	SelectedHotel          *HotelOption     `json:"selected_hotel,omitempty"`
	SelectedActivities     []ActivityOption `json:"selected_activities,omitempty"`

	Bundles             []BundleChoice `json:"bundles,omitempty"`
	SelectedBundleID    string         `json:"selected_bundle_id,omitempty"`
	WhatIfDelta         float64        `json:"what_if_delta"`
	WhatIfHistory       []WhatIfEntry  `json:"what_if_history,omitempty"`
	NegotiationCacheKey string         `json:"negotiation_cache_key,omitempty"`
	NegotiationLog      []string       `json:"negotiation_log,omitempty"`
	FeasibilityIssues   []string       `json:"feasibility_issues,omitempty"`

	BudgetTracker *BudgetTracker `json:"budget_tracker,omitempty"`
	Trip          *Trip          `json:"trip,omitempty"`
	VibeScore     *VibeScore     `json:"vibe_score,omitempty"`

	RequiresApproval bool   `json:"requires_approval"`
	ApprovalType     string `json:"approval_type,omitempty"`
	UserFeedback     string `json:"user_feedback,omitempty"`

	AgentDecisions   []AgentDecision `json:"agent_decisions,omitempty"`
	Errors           []string        `json:"errors,omitempty"`
	BudgetWarnings   []string        `json:"budget_warnings,omitempty"`
	ValidationIssues []string        `json:"validation_issues,omitempty"`

	ConversationResponse string `json:"conversation_response,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates the state for a freshly opened session.
func New(sessionID, userID, rawQuery string) *PlannerState {
	now := time.Now().UTC()
	return &PlannerState{
		SessionID:    sessionID,
		UserID:       userID,
		RawQuery:     rawQuery,
		CurrentStage: StageCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// BundleByID returns the bundle with the given id, if present.
func (s *PlannerState) BundleByID(id string) (BundleChoice, bool) {
	for _, b := range s.Bundles {
		if b.ID == id {
			return b, true
		}
	}
	return BundleChoice{}, false
}

// dedup keys: candidates merge by id when present, falling back to the
// human-readable name, then to the full string representation.

func (t TransportOption) dedupKey() string {
	if t.ID != "" {
		return "id:" + t.ID
	}
	if t.Operator != "" {
		return fmt.Sprintf("op:%s|%s|%s", t.Operator, t.Origin, t.Destination)
	}
	return fmt.Sprintf("%v", t)
}

func (h HotelOption) dedupKey() string {
	if h.ID != "" {
		return "id:" + h.ID
	}
	if h.Name != "" {
		return "name:" + h.Name
	}
	return fmt.Sprintf("%v", h)
}

func (a ActivityOption) dedupKey() string {
	if a.ID != "" {
		return "id:" + a.ID
	}
	if a.Name != "" {
		return "name:" + a.Name
	}
	return fmt.Sprintf("%v", a)
}

func (l LocalTip) dedupKey() string {
	if l.Title != "" {
		return "title:" + l.Title
	}
	return fmt.Sprintf("%v", l)
}

func (e EventInfo) dedupKey() string {
	if e.Name != "" {
		return "name:" + e.Name + "|" + e.Date
	}
	return fmt.Sprintf("%v", e)
}

func (d AgentDecision) dedupKey() string {
	return fmt.Sprintf("%s|%s|%d", d.Agent, d.Action, d.At.UnixNano())
}
