package agents

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/geo"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/llm"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/negotiator"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// stubLLM replays canned JSON per call; nil content means unconfigured.
type stubLLM struct {
	replies []string
	calls   int
}

func (s *stubLLM) Configured() bool { return len(s.replies) > 0 }

func (s *stubLLM) Complete(_ context.Context, _, _ string, _ bool) (*llm.Result, error) {
	if s.calls >= len(s.replies) {
		return &llm.Result{Content: "{}"}, nil
	}
	r := s.replies[s.calls]
	s.calls++
	return &llm.Result{Content: r, TokensUsed: 42}, nil
}

func newTestAgents(t *testing.T, llmClient llm.Client) *Agents {
	t.Helper()
	resolver, err := geo.NewResolver(nil, "test-agent", zap.NewNop())
	require.NoError(t, err)
	return New(Deps{
		LLM:        llmClient,
		Geo:        resolver,
		Negotiator: negotiator.New(nil),
	})
}

func planningState(query string) *state.PlannerState {
	return state.New("sess-1", "user-1", query)
}

func TestIntentParserHeuristicScenario(t *testing.T) {
	a := newTestAgents(t, nil)
	st := planningState("4-day solo Rishikesh under ₹15k from Delhi")

	upd, err := a.IntentParser(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, upd.TripRequest)
	req := upd.TripRequest

	assert.Equal(t, "Rishikesh", req.Destination)
	assert.Equal(t, "Delhi", req.Origin)
	assert.Equal(t, float64(15000), req.BudgetINR)
	assert.Equal(t, 3, int(req.EndDate.Sub(req.StartDate).Hours()/24))
	assert.Contains(t, []string{"backpacker", "balanced"}, req.TravelStyle)

	hasAdventureOrSpiritual := false
	for _, i := range req.Interests {
		if i == "adventure" || i == "spiritual" {
			hasAdventureOrSpiritual = true
		}
	}
	assert.True(t, hasAdventureOrSpiritual, "interests %v", req.Interests)
	assert.Equal(t, 1, req.Travelers)
}

func TestIntentParserClearsShortDestination(t *testing.T) {
	a := newTestAgents(t, &stubLLM{replies: []string{
		`{"destination": "Go", "budget_inr": 20000}`,
	}})
	st := planningState("somewhere nice for 20000")

	upd, err := a.IntentParser(context.Background(), st)
	require.NoError(t, err)
	assert.Empty(t, upd.TripRequest.Destination)
	assert.Equal(t, state.StageDestinationPending, *upd.CurrentStage)
}

func TestSupervisorHeuristics(t *testing.T) {
	a := newTestAgents(t, nil)

	st := planningState("plan a goa trip")
	upd, err := a.Supervisor(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, state.IntentPlan, *upd.IntentType)

	st = planningState("what should I pack?")
	st.Trip = &state.Trip{Destination: "Goa"}
	upd, err = a.Supervisor(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, state.IntentConversation, *upd.IntentType)

	st = planningState("make it cheaper")
	st.Trip = &state.Trip{Destination: "Goa"}
	upd, err = a.Supervisor(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, state.IntentModify, *upd.IntentType)
}

func TestDestinationRecommenderThreeDiverseOptions(t *testing.T) {
	a := newTestAgents(t, nil)
	st := planningState("mountains somewhere")
	st.TripRequest = &state.TripRequest{
		StartDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC),
		Interests: []string{"adventure"},
	}

	upd, err := a.DestinationRecommender(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, upd.DestinationOptions, 3)

	states := map[string]bool{}
	for _, o := range upd.DestinationOptions {
		assert.NotEmpty(t, o.Name)
		assert.NotEmpty(t, o.Reason)
		states[o.State] = true
	}
	assert.Len(t, states, 3, "one destination per state")
	assert.True(t, *upd.RequiresApproval)
	assert.Equal(t, state.ApprovalDestination, *upd.ApprovalType)
}

func TestFlightSearchShortHopGroundOnly(t *testing.T) {
	a := newTestAgents(t, nil)
	st := planningState("delhi to agra")
	st.TripRequest = &state.TripRequest{
		Origin:      "Delhi",
		Destination: "Agra",
		StartDate:   time.Now().UTC().AddDate(0, 0, 7),
		EndDate:     time.Now().UTC().AddDate(0, 0, 9),
		Travelers:   2,
	}

	upd, err := a.FlightSearch(context.Background(), st)
	require.NoError(t, err)

	assert.Empty(t, upd.FlightOptions, "short hop skips flights")
	require.NotEmpty(t, upd.GroundTransportOptions)

	trainNum := regexp.MustCompile(`^\d{5} `)
	var sawTrain, sawCab bool
	for _, o := range upd.GroundTransportOptions {
		switch o.Mode {
		case state.ModeTrain:
			sawTrain = true
			assert.Regexp(t, trainNum, o.Operator)
		case state.ModeCab:
			sawCab = true
			ok := strings.HasPrefix(o.Operator, "Ola") || strings.HasPrefix(o.Operator, "Uber")
			assert.True(t, ok, "operator %q", o.Operator)
		}
	}
	assert.True(t, sawTrain)
	assert.True(t, sawCab)
}

func TestSearchAggregatorReportsEmptyCategories(t *testing.T) {
	a := newTestAgents(t, nil)
	st := planningState("q")
	st.HotelOptions = []state.HotelOption{{ID: "h1", Name: "Inn"}}

	upd, err := a.SearchAggregator(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, state.StageSearchComplete, *upd.CurrentStage)
	require.Len(t, upd.AgentDecisions, 1)
	assert.Contains(t, upd.AgentDecisions[0].Reasoning, "transport")
	assert.Contains(t, upd.AgentDecisions[0].Reasoning, "activities")
	assert.NotContains(t, upd.AgentDecisions[0].Reasoning, "hotels,")
}

func negotiationReadyState() *state.PlannerState {
	st := planningState("rishikesh trip")
	st.TripRequest = &state.TripRequest{
		Origin:      "Delhi",
		Destination: "Rishikesh",
		StartDate:   time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC),
		BudgetINR:   30000,
		Travelers:   2,
		Interests:   []string{"adventure"},
	}
	st.GroundTransportOptions = []state.TransportOption{
		{ID: "t1", Mode: state.ModeTrain, Operator: "12951 Rajdhani Express", PriceINR: 2100, DurationMinutes: 600, Rating: 4.2},
		{ID: "t2", Mode: state.ModeBus, Operator: "Volvo AC Sleeper", PriceINR: 1300, DurationMinutes: 780, Rating: 3.8},
	}
	st.HotelOptions = []state.HotelOption{
		{ID: "h1", Name: "Riverside Camp", Stars: 3, PricePerNightINR: 2200},
		{ID: "h2", Name: "Luxury Ashram", Stars: 5, PricePerNightINR: 9000},
	}
	for i := 0; i < 8; i++ {
		st.ActivityOptions = append(st.ActivityOptions, state.ActivityOption{
			ID: string(rune('a' + i)), Name: "Activity " + string(rune('A'+i)),
			Category: "adventure", DurationHours: 2, PriceINR: 400, Rating: 4,
		})
	}
	return st
}

func TestNegotiationProducesBundlesAndSuspends(t *testing.T) {
	a := newTestAgents(t, nil)
	st := negotiationReadyState()

	upd, err := a.Negotiation(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, upd.Bundles)
	assert.Len(t, *upd.Bundles, 3)
	assert.NotNil(t, upd.NegotiationCacheKey)
	assert.True(t, *upd.RequiresApproval)
	assert.Equal(t, state.ApprovalBundle, *upd.ApprovalType)
	assert.Equal(t, state.StageBundlePending, *upd.CurrentStage)
}

func TestNegotiationCacheHitSkipsScoring(t *testing.T) {
	a := newTestAgents(t, nil)
	st := negotiationReadyState()

	upd, err := a.Negotiation(context.Background(), st)
	require.NoError(t, err)
	st.Apply(upd)

	again, err := a.Negotiation(context.Background(), st)
	require.NoError(t, err)
	assert.Nil(t, again.Bundles, "cache hit leaves bundles untouched")
	require.Len(t, again.AgentDecisions, 1)
	assert.Contains(t, again.AgentDecisions[0].Reasoning, "cache hit")
}

func TestBudgetOptimizerDefaultSplit(t *testing.T) {
	a := newTestAgents(t, nil)
	st := negotiationReadyState()
	upd, err := a.Negotiation(context.Background(), st)
	require.NoError(t, err)
	st.Apply(upd)
	st.RequiresApproval = false
	st.SelectedBundleID = "best_value"

	out, err := a.BudgetOptimizer(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, out.BudgetTracker)

	tracker := out.BudgetTracker
	assert.Equal(t, defaultSplit, tracker.Allocation)
	assert.InDelta(t, 30000*0.35, tracker.Allocated["accommodation"], 1)
	assert.Positive(t, tracker.Spent["transport"])

	require.NotNil(t, out.SelectedHotel)
	require.NotNil(t, out.SelectedActivities)
	assert.Equal(t, "best_value", *out.SelectedBundleID)
}

func TestItineraryBuilderHeuristicAndVerification(t *testing.T) {
	a := newTestAgents(t, nil)
	st := negotiationReadyState()
	st.SelectedOutboundFlight = &st.GroundTransportOptions[0]
	st.SelectedHotel = &st.HotelOptions[0]
	st.SelectedActivities = st.ActivityOptions[:4]

	upd, err := a.ItineraryBuilder(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, upd.Trip)

	trip := upd.Trip
	assert.Len(t, trip.Days, 4)
	assert.Equal(t, "Rishikesh", trip.Destination)
	assert.Positive(t, trip.TotalCostINR)

	// Day one starts with travel.
	require.NotEmpty(t, trip.Days[0].Items)
	assert.Contains(t, trip.Days[0].Items[0].Title, "12951 Rajdhani Express")
}

func TestItineraryVerificationRewritesCosts(t *testing.T) {
	st := negotiationReadyState()
	st.ActivityOptions[0].Verified = true
	st.ActivityOptions[0].PriceINR = 650
	trip := &state.Trip{
		Days: []state.TripDay{{
			Date: st.TripRequest.StartDate,
			Items: []state.TripItem{
				{Title: "activity a", CostINR: 9999},
				{Title: "Made Up Palace", Category: "sight", CostINR: 100},
			},
		}},
	}
	verifyTrip(trip, st)

	assert.Equal(t, float64(650), trip.Days[0].Items[0].CostINR, "cost rewritten from candidate")
	assert.True(t, trip.Days[0].Items[0].Verified)
	assert.False(t, trip.Days[0].Items[1].Verified, "unknown item flagged unverified")
}

func TestResponseValidatorFlagsOverBudgetAndUnknownItems(t *testing.T) {
	a := newTestAgents(t, nil)
	st := negotiationReadyState()
	st.Trip = &state.Trip{
		Destination:  "Rishikesh",
		TotalCostINR: 50000, // budget is 30000
		Days: []state.TripDay{{
			Items: []state.TripItem{
				{Title: "Invented Temple Tour", Category: "sight", CostINR: 2000},
			},
		}},
	}

	upd, err := a.ResponseValidator(context.Background(), st)
	require.NoError(t, err)
	require.NotEmpty(t, upd.BudgetWarnings)
	assert.Contains(t, upd.BudgetWarnings[0], "120%")
	require.NotEmpty(t, upd.ValidationIssues)
	assert.Contains(t, upd.ValidationIssues[0], "Invented Temple Tour")
}

func TestVibeScorerUnavailableWithoutLLM(t *testing.T) {
	a := newTestAgents(t, nil)
	st := negotiationReadyState()
	st.Trip = &state.Trip{Destination: "Rishikesh"}

	upd, err := a.VibeScorer(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, upd.VibeScore)
	assert.False(t, upd.VibeScore.Available)
	assert.Equal(t, "scoring unavailable", upd.VibeScore.Tagline)
}

func TestVibeScorerParsesLLMScore(t *testing.T) {
	a := newTestAgents(t, &stubLLM{replies: []string{
		`{"overall": 87, "breakdown": {"pace": 80}, "tagline": "adrenaline and calm in equal measure"}`,
	}})
	st := negotiationReadyState()
	st.Trip = &state.Trip{Destination: "Rishikesh"}

	upd, err := a.VibeScorer(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, upd.VibeScore)
	assert.True(t, upd.VibeScore.Available)
	assert.Equal(t, 87, upd.VibeScore.Overall)
}

func TestConversationResponderFallback(t *testing.T) {
	a := newTestAgents(t, nil)
	st := planningState("how much is it?")
	st.Trip = &state.Trip{Destination: "Goa", TotalCostINR: 42000, Days: make([]state.TripDay, 3)}

	upd, err := a.ConversationResponder(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, upd.ConversationResponse)
	assert.Contains(t, *upd.ConversationResponse, "Goa")
	assert.Contains(t, *upd.ConversationResponse, "42000")
}

func TestEveryNodeAppendsDecision(t *testing.T) {
	a := newTestAgents(t, nil)
	st := negotiationReadyState()
	st.Trip = &state.Trip{Destination: "Rishikesh"}

	ctx := context.Background()
	nodes := map[string]func(context.Context, *state.PlannerState) (*state.Update, error){
		NodeSupervisor:        a.Supervisor,
		NodeIntentParser:      a.IntentParser,
		NodeSearchDispatcher:  a.SearchDispatcher,
		NodeSearchAggregator:  a.SearchAggregator,
		NodeNegotiation:       a.Negotiation,
		NodeBudgetOptimizer:   a.BudgetOptimizer,
		NodeItineraryBuilder:  a.ItineraryBuilder,
		NodeResponseValidator: a.ResponseValidator,
		NodeVibeScorer:        a.VibeScorer,
		NodeFinalGate:         a.FinalGate,
		NodeConversation:      a.ConversationResponder,
	}
	for name, fn := range nodes {
		upd, err := fn(ctx, st)
		require.NoError(t, err, name)
		require.NotNil(t, upd, name)
		assert.NotEmpty(t, upd.AgentDecisions, "node %s must append a decision", name)
	}
}
