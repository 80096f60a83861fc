// Package engine assembles the agent graph and exposes the session-level
// operations: start a run, resume past an approval gate, re-negotiate under a
// budget delta, pick a bundle, and share the finished trip.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/agents"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/config"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/graph"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/store"
)

var (
	// ErrNotSuspended reports a resume against a session with no pending gate.
	ErrNotSuspended = errors.New("session is not awaiting approval")
	// ErrNoSession reports an unknown or expired session id.
	ErrNoSession = errors.New("no checkpoint for session")
	// ErrNoTrip reports a share attempt before an itinerary exists.
	ErrNoTrip = errors.New("session has no built trip")
	// ErrNoDestination reports a destination approval with nothing to pick.
	ErrNoDestination = errors.New("no destination chosen or suggested")
	// ErrUnknownBundle reports a bundle pick that matches no candidate.
	ErrUnknownBundle = errors.New("unknown bundle id")
	// ErrNotNegotiated reports a what-if before any bundles exist.
	ErrNotNegotiated = errors.New("session has no negotiated bundles")
)

// Store is the slice of the checkpoint store the engine depends on.
type Store interface {
	SaveCheckpoint(ctx context.Context, st *state.PlannerState) error
	LoadCheckpoint(ctx context.Context, sessionID string) (*state.PlannerState, error)
	ShareTrip(ctx context.Context, tripID string, st *state.PlannerState, ttl time.Duration) error
	LoadSharedTrip(ctx context.Context, tripID string) (*state.PlannerState, error)
	EnsureUser(ctx context.Context, userID, sessionID, displayName string) error
	AppendAgentDecisions(ctx context.Context, sessionID string, decisions []state.AgentDecision) error
	AppendConversation(ctx context.Context, sessionID, role, content string) error
}

// Engine drives planner sessions over the checkpoint store.
type Engine struct {
	runner   *graph.Runner
	store    Store
	log      *zap.Logger
	deadline time.Duration
	shareTTL time.Duration
}

// New builds the engine around an assembled agent set. cfg may be nil, which
// uses the documented defaults.
func New(a *agents.Agents, s Store, cfg *config.Settings, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	runner, err := graph.NewRunner(buildGraph(a), s.SaveCheckpoint, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build planning graph: %w", err)
	}
	if !cfg.ParallelBranches {
		runner.SetMaxParallel(1)
	}
	return &Engine{
		runner:   runner,
		store:    s,
		log:      logger.Named("engine"),
		deadline: cfg.RunDeadline,
		shareTTL: cfg.SharedTripTTL,
	}, nil
}

// Run starts or continues a session with a fresh user query. The returned
// state is either terminal or suspended at an approval gate; callers inspect
// RequiresApproval and ApprovalType to tell which.
func (e *Engine) Run(ctx context.Context, sessionID, userID, query string, emit graph.EmitFunc) (*state.PlannerState, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	st, err := e.store.LoadCheckpoint(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		st = state.New(sessionID, userID, query)
	case err != nil:
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	default:
		st.RawQuery = query
		st.ConversationResponse = ""
		st.RequiresApproval = false
		st.ApprovalType = ""
	}
	if userID != "" {
		if err := e.store.EnsureUser(ctx, userID, sessionID, ""); err != nil {
			e.log.Warn("failed to record user", zap.String("user", userID), zap.Error(err))
		}
	}
	if err := e.store.AppendConversation(ctx, sessionID, "user", query); err != nil {
		e.log.Warn("failed to record user turn", zap.Error(err))
	}
	return e.execute(ctx, st, e.runner.Run, emit)
}

// Stream is Run with the node events forwarded to a channel, which is closed
// when the run finishes. The caller drains the channel.
func (e *Engine) Stream(ctx context.Context, sessionID, userID, query string, events chan<- graph.Event) (*state.PlannerState, error) {
	defer close(events)
	return e.Run(ctx, sessionID, userID, query, func(ev graph.Event) { events <- ev })
}

// Resume answers the pending approval gate and re-enters the pipeline at the
// node the gate protects. feedback is free text: a destination pick, a bundle
// id, or change notes for a rejected itinerary.
func (e *Engine) Resume(ctx context.Context, sessionID string, approved bool, feedback string, emit graph.EmitFunc) (*state.PlannerState, error) {
	st, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !st.RequiresApproval {
		return st, ErrNotSuspended
	}
	gate := st.ApprovalType
	st.RequiresApproval = false
	st.ApprovalType = ""
	st.UserFeedback = feedback
	if feedback != "" {
		if err := e.store.AppendConversation(ctx, sessionID, "user", feedback); err != nil {
			e.log.Warn("failed to record feedback turn", zap.Error(err))
		}
	}

	start, err := e.resumeTarget(st, gate, approved, feedback)
	if err != nil {
		return st, err
	}
	if start == graph.End {
		st.CurrentStage = state.StageComplete
		if err := e.store.SaveCheckpoint(ctx, st); err != nil {
			return st, fmt.Errorf("failed to checkpoint completed session: %w", err)
		}
		return st, nil
	}
	return e.execute(ctx, st, func(ctx context.Context, st *state.PlannerState, emit graph.EmitFunc) error {
		return e.runner.RunFrom(ctx, st, start, emit)
	}, emit)
}

// resumeTarget maps an answered gate to the node the run re-enters at.
// Approval moves forward; rejection re-runs the stage the gate reviewed,
// with the feedback available to its nodes.
func (e *Engine) resumeTarget(st *state.PlannerState, gate string, approved bool, feedback string) (string, error) {
	switch gate {
	case state.ApprovalDestination:
		if !approved {
			return agents.NodeDestinationRecommender, nil
		}
		if dest := pickDestination(st, feedback); dest != "" {
			if st.TripRequest == nil {
				st.TripRequest = &state.TripRequest{}
			}
			st.TripRequest.Destination = dest
			return agents.NodeSearchDispatcher, nil
		}
		return "", ErrNoDestination
	case state.ApprovalResearch:
		if !approved {
			return agents.NodeSearchDispatcher, nil
		}
		return agents.NodeNegotiation, nil
	case state.ApprovalBundle:
		if !approved {
			// Force a re-score; the cached key would short-circuit otherwise.
			st.NegotiationCacheKey = ""
			return agents.NodeNegotiation, nil
		}
		if feedback != "" {
			if _, ok := st.BundleByID(feedback); !ok {
				return "", fmt.Errorf("%w: %s", ErrUnknownBundle, feedback)
			}
			st.SelectedBundleID = feedback
		}
		return agents.NodeBudgetOptimizer, nil
	case state.ApprovalFinalItinerary:
		if !approved {
			return agents.NodeItineraryBuilder, nil
		}
		return graph.End, nil
	default:
		return "", fmt.Errorf("unknown approval gate %q", gate)
	}
}

// pickDestination resolves the user's destination pick against the
// recommender's suggestions, falling back to the raw feedback text.
func pickDestination(st *state.PlannerState, feedback string) string {
	feedback = strings.TrimSpace(feedback)
	if feedback != "" {
		for _, opt := range st.DestinationOptions {
			if strings.EqualFold(opt.Name, feedback) {
				return opt.Name
			}
		}
		return feedback
	}
	if st.TripRequest != nil && st.TripRequest.Destination != "" {
		return st.TripRequest.Destination
	}
	if len(st.DestinationOptions) > 0 {
		return st.DestinationOptions[0].Name
	}
	return ""
}

// ApplyWhatIf re-negotiates the session under a budget delta without
// re-running research. The delta accumulates across calls.
func (e *Engine) ApplyWhatIf(ctx context.Context, sessionID string, deltaINR float64, emit graph.EmitFunc) (*state.PlannerState, error) {
	st, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(st.Bundles) == 0 {
		return st, ErrNotNegotiated
	}
	st.WhatIfDelta += deltaINR
	st.WhatIfHistory = append(st.WhatIfHistory, state.WhatIfEntry{
		DeltaINR:   deltaINR,
		AppliedAt:  time.Now().UTC(),
		TotalDelta: st.WhatIfDelta,
	})
	st.Bundles = nil
	st.NegotiationCacheKey = ""
	st.RequiresApproval = false
	st.ApprovalType = ""
	return e.execute(ctx, st, func(ctx context.Context, st *state.PlannerState, emit graph.EmitFunc) error {
		return e.runner.RunFrom(ctx, st, agents.NodeNegotiation, emit)
	}, emit)
}

// SelectBundle locks in one of the negotiated bundles and continues the
// pipeline from the budget optimizer.
func (e *Engine) SelectBundle(ctx context.Context, sessionID, bundleID string, emit graph.EmitFunc) (*state.PlannerState, error) {
	st, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := st.BundleByID(bundleID); !ok {
		return st, fmt.Errorf("%w: %s", ErrUnknownBundle, bundleID)
	}
	st.SelectedBundleID = bundleID
	st.RequiresApproval = false
	st.ApprovalType = ""
	return e.execute(ctx, st, func(ctx context.Context, st *state.PlannerState, emit graph.EmitFunc) error {
		return e.runner.RunFrom(ctx, st, agents.NodeBudgetOptimizer, emit)
	}, emit)
}

// Share publishes the session's built trip under a fresh trip id.
func (e *Engine) Share(ctx context.Context, sessionID string) (string, error) {
	st, err := e.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if st.Trip == nil {
		return "", ErrNoTrip
	}
	tripID := uuid.NewString()
	st.Trip.ShareID = tripID
	if err := e.store.SaveCheckpoint(ctx, st); err != nil {
		return "", fmt.Errorf("failed to checkpoint shared session: %w", err)
	}
	if err := e.store.ShareTrip(ctx, tripID, st, e.shareTTL); err != nil {
		return "", fmt.Errorf("failed to publish trip: %w", err)
	}
	return tripID, nil
}

// Shared loads a published trip by its share id.
func (e *Engine) Shared(ctx context.Context, tripID string) (*state.PlannerState, error) {
	st, err := e.store.LoadSharedTrip(ctx, tripID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, tripID)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// State returns the current checkpoint for a session.
func (e *Engine) State(ctx context.Context, sessionID string) (*state.PlannerState, error) {
	return e.load(ctx, sessionID)
}

func (e *Engine) load(ctx context.Context, sessionID string) (*state.PlannerState, error) {
	st, err := e.store.LoadCheckpoint(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return st, nil
}

type runFunc func(ctx context.Context, st *state.PlannerState, emit graph.EmitFunc) error

// execute runs one graph segment under the run deadline, then persists the
// audit trail produced by this segment and the assistant's reply, if any.
func (e *Engine) execute(ctx context.Context, st *state.PlannerState, run runFunc, emit graph.EmitFunc) (*state.PlannerState, error) {
	if e.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.deadline)
		defer cancel()
	}

	before := len(st.AgentDecisions)
	err := run(ctx, st, emit)

	// Audit rows and the assistant turn outlive a deadline cancellation.
	bg := context.WithoutCancel(ctx)
	if added := st.AgentDecisions[before:]; len(added) > 0 {
		if aerr := e.store.AppendAgentDecisions(bg, st.SessionID, added); aerr != nil {
			e.log.Warn("failed to persist agent decisions", zap.Error(aerr))
		}
	}
	if st.ConversationResponse != "" {
		if aerr := e.store.AppendConversation(bg, st.SessionID, "assistant", st.ConversationResponse); aerr != nil {
			e.log.Warn("failed to record assistant turn", zap.Error(aerr))
		}
	}

	switch {
	case err == nil, errors.Is(err, graph.ErrSuspended):
		return st, nil
	default:
		return st, err
	}
}
