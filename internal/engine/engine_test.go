package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/agents"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/config"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/geo"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/graph"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/negotiator"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu          sync.Mutex
	checkpoints map[string]*state.PlannerState
	shared      map[string]*state.PlannerState
	decisions   map[string][]state.AgentDecision
	turns       map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		checkpoints: map[string]*state.PlannerState{},
		shared:      map[string]*state.PlannerState{},
		decisions:   map[string][]state.AgentDecision{},
		turns:       map[string][]string{},
	}
}

func (m *memStore) SaveCheckpoint(_ context.Context, st *state.PlannerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[st.SessionID] = st.Clone()
	return nil
}

func (m *memStore) LoadCheckpoint(_ context.Context, sessionID string) (*state.PlannerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.checkpoints[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return st.Clone(), nil
}

func (m *memStore) ShareTrip(_ context.Context, tripID string, st *state.PlannerState, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shared[tripID] = st.Clone()
	return nil
}

func (m *memStore) LoadSharedTrip(_ context.Context, tripID string) (*state.PlannerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.shared[tripID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return st.Clone(), nil
}

func (m *memStore) EnsureUser(_ context.Context, _, _, _ string) error { return nil }

func (m *memStore) AppendAgentDecisions(_ context.Context, sessionID string, ds []state.AgentDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[sessionID] = append(m.decisions[sessionID], ds...)
	return nil
}

func (m *memStore) AppendConversation(_ context.Context, sessionID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[sessionID] = append(m.turns[sessionID], role+": "+content)
	return nil
}

// newTestEngine builds an engine with no LLM and no provider adapters, so
// every node exercises its offline fallbacks.
func newTestEngine(t *testing.T, ms *memStore) *Engine {
	t.Helper()
	resolver, err := geo.NewResolver(nil, "test-agent", nil)
	require.NoError(t, err)

	a := agents.New(agents.Deps{
		Geo:        resolver,
		Negotiator: negotiator.New(nil),
	})
	cfg := config.Default()
	cfg.RunDeadline = 30 * time.Second
	eng, err := New(a, ms, cfg, nil)
	require.NoError(t, err)
	return eng
}

func TestRunSuspendsForDestinationPick(t *testing.T) {
	ms := newMemStore()
	eng := newTestEngine(t, ms)

	var nodes []string
	st, err := eng.Run(context.Background(), "sess-1", "user-1",
		"plan a 4-day solo adventure trip under 15k", func(ev graph.Event) {
			nodes = append(nodes, ev.Node)
		})
	require.NoError(t, err)

	assert.True(t, st.RequiresApproval)
	assert.Equal(t, state.ApprovalDestination, st.ApprovalType)
	assert.Equal(t, state.StageDestinationPending, st.CurrentStage)
	assert.Len(t, st.DestinationOptions, 3)
	assert.Equal(t, []string{agents.NodeSupervisor, agents.NodeIntentParser, agents.NodeDestinationRecommender}, nodes)

	require.NotNil(t, st.TripRequest)
	assert.Equal(t, 15000.0, st.TripRequest.BudgetINR)
	assert.Equal(t, 1, st.TripRequest.Travelers)
	assert.Equal(t, 4, st.TripRequest.DurationDays())

	// Suspension checkpoints the session for later resume.
	saved, err := ms.LoadCheckpoint(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, saved.RequiresApproval)
	assert.NotEmpty(t, ms.decisions["sess-1"])
}

func TestFullPipelineThroughAllGates(t *testing.T) {
	ms := newMemStore()
	eng := newTestEngine(t, ms)
	ctx := context.Background()

	st, err := eng.Run(ctx, "sess-2", "user-1", "plan a 4-day solo adventure trip under 15k", nil)
	require.NoError(t, err)
	require.Equal(t, state.ApprovalDestination, st.ApprovalType)

	st, err = eng.Resume(ctx, "sess-2", true, "Jaipur", nil)
	require.NoError(t, err)
	require.Equal(t, state.ApprovalResearch, st.ApprovalType)
	assert.Equal(t, "Jaipur", st.TripRequest.Destination)
	// Offline adapters still leave the fare calculator's ground options.
	assert.NotEmpty(t, st.GroundTransportOptions)

	st, err = eng.Resume(ctx, "sess-2", true, "", nil)
	require.NoError(t, err)
	require.Equal(t, state.ApprovalBundle, st.ApprovalType)
	require.Len(t, st.Bundles, 3)

	st, err = eng.Resume(ctx, "sess-2", true, "budget_saver", nil)
	require.NoError(t, err)
	require.Equal(t, state.ApprovalFinalItinerary, st.ApprovalType)
	assert.Equal(t, "budget_saver", st.SelectedBundleID)
	require.NotNil(t, st.Trip)
	assert.Len(t, st.Trip.Days, 4)
	require.NotNil(t, st.BudgetTracker)
	require.NotNil(t, st.VibeScore)
	assert.False(t, st.VibeScore.Available)

	st, err = eng.Resume(ctx, "sess-2", true, "", nil)
	require.NoError(t, err)
	assert.Equal(t, state.StageComplete, st.CurrentStage)
	assert.False(t, st.RequiresApproval)
}

func TestStreamForwardsAndClosesChannel(t *testing.T) {
	ms := newMemStore()
	eng := newTestEngine(t, ms)

	events := make(chan graph.Event, 32)
	st, err := eng.Stream(context.Background(), "sess-stream", "u",
		"plan a 4-day solo adventure trip under 15k", events)
	require.NoError(t, err)
	require.True(t, st.RequiresApproval)

	var nodes []string
	for ev := range events {
		nodes = append(nodes, ev.Node)
	}
	assert.Equal(t, []string{agents.NodeSupervisor, agents.NodeIntentParser, agents.NodeDestinationRecommender}, nodes)
}

func TestResumeWithoutSuspension(t *testing.T) {
	ms := newMemStore()
	eng := newTestEngine(t, ms)
	ctx := context.Background()

	_, err := eng.Resume(ctx, "missing", true, "", nil)
	assert.ErrorIs(t, err, ErrNoSession)

	st := state.New("sess-3", "u", "q")
	require.NoError(t, ms.SaveCheckpoint(ctx, st))
	_, err = eng.Resume(ctx, "sess-3", true, "", nil)
	assert.ErrorIs(t, err, ErrNotSuspended)
}

func TestResumeUnknownBundleRejected(t *testing.T) {
	ms := newMemStore()
	eng := newTestEngine(t, ms)
	ctx := context.Background()

	st := state.New("sess-4", "u", "q")
	st.RequiresApproval = true
	st.ApprovalType = state.ApprovalBundle
	st.Bundles = []state.BundleChoice{{ID: "best_value"}}
	require.NoError(t, ms.SaveCheckpoint(ctx, st))

	_, err := eng.Resume(ctx, "sess-4", true, "nonexistent", nil)
	assert.ErrorIs(t, err, ErrUnknownBundle)
}

func TestWhatIfRenegotiatesWithoutResearch(t *testing.T) {
	ms := newMemStore()
	eng := newTestEngine(t, ms)
	ctx := context.Background()

	_, err := eng.Run(ctx, "sess-5", "u", "plan a 4-day solo adventure trip under 15k", nil)
	require.NoError(t, err)
	_, err = eng.Resume(ctx, "sess-5", true, "Jaipur", nil)
	require.NoError(t, err)
	st, err := eng.Resume(ctx, "sess-5", true, "", nil)
	require.NoError(t, err)
	require.Len(t, st.Bundles, 3)
	firstKey := st.NegotiationCacheKey

	var nodes []string
	st, err = eng.ApplyWhatIf(ctx, "sess-5", 5000, func(ev graph.Event) {
		nodes = append(nodes, ev.Node)
	})
	require.NoError(t, err)

	// Only the negotiation stage re-runs; no research node appears.
	assert.NotContains(t, nodes, agents.NodeFlightSearch)
	assert.Contains(t, nodes, agents.NodeNegotiation)

	assert.Equal(t, 5000.0, st.WhatIfDelta)
	require.Len(t, st.WhatIfHistory, 1)
	assert.Equal(t, 5000.0, st.WhatIfHistory[0].TotalDelta)
	assert.Len(t, st.Bundles, 3)
	assert.NotEqual(t, firstKey, st.NegotiationCacheKey)
	assert.Equal(t, state.ApprovalBundle, st.ApprovalType)
}

func TestWhatIfBeforeNegotiation(t *testing.T) {
	ms := newMemStore()
	eng := newTestEngine(t, ms)
	ctx := context.Background()

	st := state.New("sess-6", "u", "q")
	require.NoError(t, ms.SaveCheckpoint(ctx, st))
	_, err := eng.ApplyWhatIf(ctx, "sess-6", 5000, nil)
	assert.ErrorIs(t, err, ErrNotNegotiated)
}

func TestShareRoundTrip(t *testing.T) {
	ms := newMemStore()
	eng := newTestEngine(t, ms)
	ctx := context.Background()

	_, err := eng.Share(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoSession)

	st := state.New("sess-7", "u", "q")
	require.NoError(t, ms.SaveCheckpoint(ctx, st))
	_, err = eng.Share(ctx, "sess-7")
	assert.ErrorIs(t, err, ErrNoTrip)

	st.Trip = &state.Trip{Title: "Jaipur getaway", Destination: "Jaipur"}
	require.NoError(t, ms.SaveCheckpoint(ctx, st))
	tripID, err := eng.Share(ctx, "sess-7")
	require.NoError(t, err)
	require.NotEmpty(t, tripID)

	shared, err := eng.Shared(ctx, tripID)
	require.NoError(t, err)
	assert.Equal(t, "Jaipur getaway", shared.Trip.Title)
	assert.Equal(t, tripID, shared.Trip.ShareID)
}

func TestConversationIntentSkipsPlanning(t *testing.T) {
	ms := newMemStore()
	eng := newTestEngine(t, ms)
	ctx := context.Background()

	// Seed a finished trip so the heuristic classifier reads the query as
	// conversational.
	seed := state.New("sess-8", "u", "initial")
	seed.Trip = &state.Trip{Destination: "Goa", TotalCostINR: 22000, Days: make([]state.TripDay, 3)}
	require.NoError(t, ms.SaveCheckpoint(ctx, seed))

	var nodes []string
	st, err := eng.Run(ctx, "sess-8", "u", "what is the weather like there?", func(ev graph.Event) {
		nodes = append(nodes, ev.Node)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{agents.NodeSupervisor, agents.NodeConversation}, nodes)
	assert.NotEmpty(t, st.ConversationResponse)
	assert.Contains(t, ms.turns["sess-8"], "assistant: "+st.ConversationResponse)
}
