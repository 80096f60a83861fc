package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/engine"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/graph"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// fakePlanner records calls and returns scripted states.
type fakePlanner struct {
	state     *state.PlannerState
	shareID   string
	err       error
	lastQuery string
	lastDelta float64
	nodes     []string
}

func (f *fakePlanner) Run(_ context.Context, sessionID, _, query string, emit graph.EmitFunc) (*state.PlannerState, error) {
	f.lastQuery = query
	if emit != nil {
		for _, n := range f.nodes {
			emit(graph.Event{Node: n, State: f.state})
		}
	}
	return f.state, f.err
}

func (f *fakePlanner) Resume(_ context.Context, _ string, _ bool, _ string, _ graph.EmitFunc) (*state.PlannerState, error) {
	return f.state, f.err
}

func (f *fakePlanner) ApplyWhatIf(_ context.Context, _ string, delta float64, _ graph.EmitFunc) (*state.PlannerState, error) {
	f.lastDelta = delta
	return f.state, f.err
}

func (f *fakePlanner) SelectBundle(_ context.Context, _ string, _ string, _ graph.EmitFunc) (*state.PlannerState, error) {
	return f.state, f.err
}

func (f *fakePlanner) Share(_ context.Context, _ string) (string, error) {
	return f.shareID, f.err
}

func (f *fakePlanner) Shared(_ context.Context, _ string) (*state.PlannerState, error) {
	return f.state, f.err
}

func (f *fakePlanner) State(_ context.Context, _ string) (*state.PlannerState, error) {
	return f.state, f.err
}

func suspendedState() *state.PlannerState {
	st := state.New("sess-1", "user-1", "plan a trip")
	st.CurrentStage = state.StageDestinationPending
	st.RequiresApproval = true
	st.ApprovalType = state.ApprovalDestination
	return st
}

func postJSON(t *testing.T, s *Server, path string, body any) (int, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestRunEndpoint(t *testing.T) {
	fp := &fakePlanner{state: suspendedState()}
	s := New(fp, nil, nil)

	code, body := postJSON(t, s, "/api/v1/runs", map[string]any{
		"query":      "plan a 4-day trip",
		"session_id": "sess-1",
	})
	assert.Equal(t, 200, code)
	assert.Equal(t, "sess-1", body["session_id"])
	assert.Equal(t, true, body["requires_approval"])
	assert.Equal(t, state.ApprovalDestination, body["approval_type"])
	assert.Equal(t, "plan a 4-day trip", fp.lastQuery)
}

func TestRunRequiresQuery(t *testing.T) {
	s := New(&fakePlanner{state: suspendedState()}, nil, nil)
	code, body := postJSON(t, s, "/api/v1/runs", map[string]any{"session_id": "x"})
	assert.Equal(t, 400, code)
	assert.Contains(t, body["error"], "query")
}

func TestResumeEndpointErrors(t *testing.T) {
	fp := &fakePlanner{state: suspendedState(), err: engine.ErrNotSuspended}
	s := New(fp, nil, nil)
	code, body := postJSON(t, s, "/api/v1/runs/sess-1/resume", map[string]any{"approved": true})
	assert.Equal(t, 409, code)
	assert.Contains(t, body["error"], "not awaiting approval")

	fp.err = engine.ErrNoSession
	code, _ = postJSON(t, s, "/api/v1/runs/missing/resume", map[string]any{"approved": true})
	assert.Equal(t, 404, code)
}

func TestWhatIfEndpoint(t *testing.T) {
	fp := &fakePlanner{state: suspendedState()}
	s := New(fp, nil, nil)
	code, _ := postJSON(t, s, "/api/v1/runs/sess-1/what-if", map[string]any{"delta_inr": 5000})
	assert.Equal(t, 200, code)
	assert.Equal(t, 5000.0, fp.lastDelta)
}

func TestBundleEndpointValidation(t *testing.T) {
	s := New(&fakePlanner{state: suspendedState()}, nil, nil)
	code, body := postJSON(t, s, "/api/v1/runs/sess-1/bundle", map[string]any{})
	assert.Equal(t, 400, code)
	assert.Contains(t, body["error"], "bundle_id")
}

func TestShareAndSharedEndpoints(t *testing.T) {
	st := suspendedState()
	st.Trip = &state.Trip{Title: "Jaipur getaway", ShareID: "trip-1"}
	fp := &fakePlanner{state: st, shareID: "trip-1"}
	s := New(fp, nil, nil)

	code, body := postJSON(t, s, "/api/v1/runs/sess-1/share", nil)
	assert.Equal(t, 200, code)
	assert.Equal(t, "trip-1", body["trip_id"])

	req := httptest.NewRequest("GET", "/api/v1/shared/trip-1", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "Jaipur getaway")
}

func TestStreamEmitsNodeEvents(t *testing.T) {
	fp := &fakePlanner{
		state: suspendedState(),
		nodes: []string{"supervisor", "intent_parser"},
	}
	s := New(fp, nil, nil)

	data, _ := json.Marshal(map[string]any{"query": "plan", "stream": true})
	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "event: node")
	assert.Contains(t, body, `"node":"supervisor"`)
	assert.Contains(t, body, `"node":"intent_parser"`)
	assert.Equal(t, 1, strings.Count(body, "event: done"))
}

func TestHealthz(t *testing.T) {
	s := New(&fakePlanner{state: suspendedState()}, nil, nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
