package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noteNode(name string, log *[]string, mu *sync.Mutex) NodeFunc {
	return func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
		mu.Lock()
		*log = append(*log, name)
		mu.Unlock()
		return &state.Update{NegotiationLog: []string{"ran:" + name}}, nil
	}
}

func TestLinearRun(t *testing.T) {
	var mu sync.Mutex
	var log []string

	g := New().
		AddNode("a", noteNode("a", &log, &mu)).
		AddNode("b", noteNode("b", &log, &mu)).
		AddNode("c", noteNode("c", &log, &mu)).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", End).
		SetEntry("a")

	r, err := NewRunner(g, nil, nil)
	require.NoError(t, err)

	st := state.New("s1", "u1", "q")
	var events []string
	require.NoError(t, r.Run(context.Background(), st, func(e Event) {
		events = append(events, e.Node)
	}))

	assert.Equal(t, []string{"a", "b", "c"}, log)
	assert.Equal(t, []string{"a", "b", "c"}, events)
	assert.Contains(t, st.NegotiationLog, "ran:b")
}

func TestFanOutMergesAllBranches(t *testing.T) {
	branch := func(name string) NodeFunc {
		return func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return &state.Update{
				HotelOptions: []state.HotelOption{{ID: "h-" + name, Name: name}},
			}, nil
		}
	}

	joinFired := int32(0)
	g := New().
		AddNode("dispatch", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return nil, nil
		}).
		AddNode("b1", branch("one")).
		AddNode("b2", branch("two")).
		AddNode("b3", branch("three")).
		AddNode("join", func(_ context.Context, st *state.PlannerState) (*state.Update, error) {
			atomic.AddInt32(&joinFired, 1)
			// All branch outputs are visible before the join fires.
			if len(st.HotelOptions) != 3 {
				return nil, errors.New("join fired before barrier")
			}
			return nil, nil
		}).
		AddRouter("dispatch", func(st *state.PlannerState) Route {
			return Route{Dispatches: []Dispatch{
				{Target: "b1", Snapshot: st.Clone()},
				{Target: "b2", Snapshot: st.Clone()},
				{Target: "b3", Snapshot: st.Clone()},
			}}
		}).
		AddEdge("b1", "join").
		AddEdge("b2", "join").
		AddEdge("b3", "join").
		AddEdge("join", End).
		SetEntry("dispatch")

	r, err := NewRunner(g, nil, nil)
	require.NoError(t, err)

	st := state.New("s1", "u1", "q")
	require.NoError(t, r.Run(context.Background(), st, nil))

	assert.Len(t, st.HotelOptions, 3)
	assert.Equal(t, int32(1), joinFired, "join fires exactly once per fan-out")
	assert.Empty(t, st.Errors)
}

func TestFailedBranchDoesNotDeadlockJoin(t *testing.T) {
	g := New().
		AddNode("dispatch", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return nil, nil
		}).
		AddNode("ok", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return &state.Update{LocalTips: []state.LocalTip{{Title: "tip"}}}, nil
		}).
		AddNode("boom", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return nil, errors.New("provider down")
		}).
		AddNode("panicky", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			panic("index out of range")
		}).
		AddNode("join", noteNode("join", &[]string{}, &sync.Mutex{})).
		AddRouter("dispatch", func(st *state.PlannerState) Route {
			return Route{Dispatches: []Dispatch{
				{Target: "ok"}, {Target: "boom"}, {Target: "panicky"},
			}}
		}).
		AddEdge("ok", "join").
		AddEdge("boom", "join").
		AddEdge("panicky", "join").
		AddEdge("join", End).
		SetEntry("dispatch")

	r, err := NewRunner(g, nil, nil)
	require.NoError(t, err)

	st := state.New("s1", "u1", "q")
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), st, nil) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("join deadlocked on failed branches")
	}

	assert.Len(t, st.LocalTips, 1, "surviving branch output kept")
	require.Len(t, st.Errors, 2)
	assert.Contains(t, st.Errors[0]+st.Errors[1], "provider down")
	assert.Contains(t, st.Errors[0]+st.Errors[1], "panicked")
}

func TestSuspensionAndResume(t *testing.T) {
	g := New().
		AddNode("gate", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return &state.Update{
				RequiresApproval: state.Bool(true),
				ApprovalType:     state.Str(state.ApprovalDestination),
			}, nil
		}).
		AddNode("after", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return &state.Update{CurrentStage: state.StagePtr(state.StageComplete)}, nil
		}).
		AddEdge("gate", "after").
		AddEdge("after", End).
		SetEntry("gate")

	var checkpoints int
	r, err := NewRunner(g, func(_ context.Context, _ *state.PlannerState) error {
		checkpoints++
		return nil
	}, nil)
	require.NoError(t, err)

	st := state.New("s1", "u1", "q")
	err = r.Run(context.Background(), st, nil)
	require.ErrorIs(t, err, ErrSuspended)
	assert.True(t, st.RequiresApproval)
	assert.Positive(t, checkpoints, "suspended state persisted")

	// Caller clears the gate and resumes from the successor.
	st.RequiresApproval = false
	require.NoError(t, r.RunFrom(context.Background(), st, "after", nil))
	assert.Equal(t, state.StageComplete, st.CurrentStage)
}

func TestCheckpointFailureAbortsRun(t *testing.T) {
	var ran []string
	var mu sync.Mutex

	g := New().
		AddNode("first", noteNode("first", &ran, &mu)).
		AddNode("second", noteNode("second", &ran, &mu)).
		AddEdge("first", "second").
		AddEdge("second", End).
		SetEntry("first")

	diskFull := errors.New("disk full")
	r, err := NewRunner(g, func(_ context.Context, _ *state.PlannerState) error {
		return diskFull
	}, nil)
	require.NoError(t, err)

	st := state.New("s1", "u1", "q")
	err = r.Run(context.Background(), st, nil)
	require.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "checkpoint")

	// The write failed after the first merge; the run must not continue on
	// state the store never saw.
	assert.Equal(t, []string{"first"}, ran)
}

func TestCheckpointFailureFailsFanOut(t *testing.T) {
	g := New().
		AddNode("dispatch", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return nil, nil
		}).
		AddNode("left", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return &state.Update{NegotiationLog: []string{"left"}}, nil
		}).
		AddNode("right", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return &state.Update{NegotiationLog: []string{"right"}}, nil
		}).
		AddNode("join", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return &state.Update{NegotiationLog: []string{"join"}}, nil
		}).
		AddRouter("dispatch", func(st *state.PlannerState) Route {
			return Route{Dispatches: []Dispatch{{Target: "left"}, {Target: "right"}}}
		}).
		AddEdge("left", "join").
		AddEdge("right", "join").
		AddEdge("join", End).
		SetEntry("dispatch")

	var calls atomic.Int32
	writeErr := errors.New("locked")
	r, err := NewRunner(g, func(_ context.Context, _ *state.PlannerState) error {
		if calls.Add(1) > 1 {
			return writeErr
		}
		return nil
	}, nil)
	require.NoError(t, err)

	st := state.New("s1", "u1", "q")
	err = r.Run(context.Background(), st, nil)
	require.ErrorIs(t, err, writeErr)
	assert.NotContains(t, st.NegotiationLog, "join", "join must not run past a failed write")
}

func TestDeadlineHaltsWithPartialCheckpoint(t *testing.T) {
	g := New().
		AddNode("slow", func(ctx context.Context, _ *state.PlannerState) (*state.Update, error) {
			time.Sleep(30 * time.Millisecond)
			return &state.Update{NegotiationLog: []string{"slow done"}}, nil
		}).
		AddNode("never", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
			return &state.Update{NegotiationLog: []string{"never ran"}}, nil
		}).
		AddEdge("slow", "never").
		AddEdge("never", End).
		SetEntry("slow")

	var saved *state.PlannerState
	r, err := NewRunner(g, func(_ context.Context, st *state.PlannerState) error {
		saved = st.Clone()
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	st := state.New("s1", "u1", "q")
	err = r.Run(ctx, st, nil)
	require.ErrorIs(t, err, ErrDeadline)

	// The in-flight node finished; the next one never started.
	assert.Contains(t, st.NegotiationLog, "slow done")
	assert.NotContains(t, st.NegotiationLog, "never ran")
	require.NotNil(t, saved)
	assert.Contains(t, saved.Errors[len(saved.Errors)-1], "deadline")
}

func TestRouterSingleNext(t *testing.T) {
	var mu sync.Mutex
	var log []string
	g := New().
		AddNode("decide", noteNode("decide", &log, &mu)).
		AddNode("left", noteNode("left", &log, &mu)).
		AddNode("right", noteNode("right", &log, &mu)).
		AddRouter("decide", func(_ *state.PlannerState) Route { return Route{Next: "right"} }).
		AddEdge("left", End).
		AddEdge("right", End).
		SetEntry("decide")

	r, err := NewRunner(g, nil, nil)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), state.New("s", "u", "q"), nil))
	assert.Equal(t, []string{"decide", "right"}, log)
}

func TestValidateRejectsBrokenTopology(t *testing.T) {
	_, err := NewRunner(New(), nil, nil)
	assert.ErrorContains(t, err, "no entry")

	g := New().
		AddNode("a", func(_ context.Context, _ *state.PlannerState) (*state.Update, error) { return nil, nil }).
		AddEdge("a", "ghost").
		SetEntry("a")
	_, err = NewRunner(g, nil, nil)
	assert.ErrorContains(t, err, "ghost")
}

func TestEventsInCompletionOrder(t *testing.T) {
	fast := func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
		return nil, nil
	}
	slow := func(_ context.Context, _ *state.PlannerState) (*state.Update, error) {
		time.Sleep(20 * time.Millisecond)
		return nil, nil
	}

	g := New().
		AddNode("dispatch", fast).
		AddNode("slowbranch", slow).
		AddNode("fastbranch", fast).
		AddNode("join", fast).
		AddRouter("dispatch", func(_ *state.PlannerState) Route {
			return Route{Dispatches: []Dispatch{{Target: "slowbranch"}, {Target: "fastbranch"}}}
		}).
		AddEdge("slowbranch", "join").
		AddEdge("fastbranch", "join").
		AddEdge("join", End).
		SetEntry("dispatch")

	r, err := NewRunner(g, nil, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	require.NoError(t, r.Run(context.Background(), state.New("s", "u", "q"), func(e Event) {
		mu.Lock()
		order = append(order, e.Node)
		mu.Unlock()
	}))

	require.Len(t, order, 4)
	assert.Equal(t, "dispatch", order[0])
	assert.Equal(t, "fastbranch", order[1], "streaming reflects completion order, not enqueue order")
	assert.Equal(t, "join", order[3])
}
