package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// ErrSuspended reports that a node requested approval; the run is parked in
// the checkpoint store and resumable.
var ErrSuspended = errors.New("run suspended pending approval")

// ErrDeadline reports that the run deadline passed; the in-flight node was
// allowed to finish and the partial state checkpointed.
var ErrDeadline = errors.New("run deadline exceeded")

// Event is one streaming emission, sent in node completion order.
type Event struct {
	Node  string
	State *state.PlannerState
}

// EmitFunc receives events as nodes complete. May be nil.
type EmitFunc func(Event)

// CheckpointFunc persists the state after every merge. May be nil.
type CheckpointFunc func(ctx context.Context, st *state.PlannerState) error

// Runner executes a validated graph over one shared state.
type Runner struct {
	graph       *Graph
	checkpoint  CheckpointFunc
	logger      *zap.Logger
	maxParallel int
}

// SetMaxParallel caps concurrent fan-out branches. Zero means unlimited; one
// serializes branches while keeping the same merge semantics.
func (r *Runner) SetMaxParallel(n int) { r.maxParallel = n }

// NewRunner validates the topology and builds a runner.
func NewRunner(g *Graph, checkpoint CheckpointFunc, logger *zap.Logger) (*Runner, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{graph: g, checkpoint: checkpoint, logger: logger.Named("graph")}, nil
}

// Run executes from the entry node.
func (r *Runner) Run(ctx context.Context, st *state.PlannerState, emit EmitFunc) error {
	return r.RunFrom(ctx, st, r.graph.entry, emit)
}

// RunFrom executes from an arbitrary start node; resume paths use this to
// re-enter mid-pipeline.
func (r *Runner) RunFrom(ctx context.Context, st *state.PlannerState, start string, emit EmitFunc) error {
	if start == End {
		return nil
	}
	if _, ok := r.graph.nodes[start]; !ok {
		return fmt.Errorf("unknown start node %q", start)
	}

	var mu sync.Mutex
	queue := []string{start}
	for len(queue) > 0 {
		if ctx.Err() != nil {
			mu.Lock()
			st.Errors = append(st.Errors, "run halted: deadline exceeded")
			mu.Unlock()
			if err := r.save(context.WithoutCancel(ctx), st); err != nil {
				return err
			}
			return ErrDeadline
		}

		name := queue[0]
		queue = queue[1:]
		if name == End {
			continue
		}

		upd, err := r.exec(ctx, name, st)
		mu.Lock()
		saveErr := r.applyLocked(ctx, name, st, upd, err, emit)
		suspended := st.RequiresApproval
		mu.Unlock()
		if saveErr != nil {
			return saveErr
		}
		if suspended {
			r.logger.Info("run suspended", zap.String("node", name), zap.String("approval", st.ApprovalType))
			return ErrSuspended
		}

		if router, ok := r.graph.routers[name]; ok {
			route := router(st)
			switch {
			case len(route.Dispatches) > 0:
				joins, err := r.fanOut(ctx, route.Dispatches, st, &mu, emit)
				if err != nil {
					return err
				}
				queue = append(queue, joins...)
			case route.Next != "" && route.Next != End:
				queue = append(queue, route.Next)
			}
			continue
		}
		if next, ok := r.graph.edges[name]; ok && next != End {
			queue = append(queue, next)
		}
	}
	return nil
}

// fanOut runs every dispatched branch concurrently, merging each branch's
// update into the shared state as it completes. All branches count toward
// the barrier whether they succeed or fail, so the join cannot deadlock.
// A node error is recorded in the state; only a checkpoint-write failure
// fails the fan-out. The returned join nodes are the distinct static
// successors of the branch targets, enqueued exactly once per fan-out.
func (r *Runner) fanOut(ctx context.Context, dispatches []Dispatch, st *state.PlannerState, mu *sync.Mutex, emit EmitFunc) ([]string, error) {
	joins := map[string]bool{}
	var g errgroup.Group
	if r.maxParallel > 0 {
		g.SetLimit(r.maxParallel)
	}
	for _, d := range dispatches {
		d := d
		g.Go(func() error {
			snapshot := d.Snapshot
			if snapshot == nil {
				mu.Lock()
				snapshot = st.Clone()
				mu.Unlock()
			}
			upd, err := r.exec(ctx, d.Target, snapshot)
			mu.Lock()
			saveErr := r.applyLocked(ctx, d.Target, st, upd, err, emit)
			if next, ok := r.graph.edges[d.Target]; ok && next != End {
				joins[next] = true
			}
			mu.Unlock()
			return saveErr
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(joins))
	for j := range joins {
		out = append(out, j)
	}
	sort.Strings(out)
	return out, nil
}

// exec runs one node against a read snapshot, converting panics into errors.
func (r *Runner) exec(ctx context.Context, name string, st *state.PlannerState) (upd *state.Update, err error) {
	defer func() {
		if p := recover(); p != nil {
			upd, err = nil, fmt.Errorf("node %s panicked: %v", name, p)
		}
	}()
	fn := r.graph.nodes[name]
	return fn(ctx, st.Clone())
}

// applyLocked merges one node result, checkpoints, and emits. Callers hold
// the state mutex. A node error is absorbed into the state; a failed
// checkpoint write is returned and aborts the run.
func (r *Runner) applyLocked(ctx context.Context, name string, st *state.PlannerState, upd *state.Update, err error, emit EmitFunc) error {
	if err != nil {
		r.logger.Warn("node failed", zap.String("node", name), zap.Error(err))
		st.Errors = append(st.Errors, fmt.Sprintf("%s: %v", name, err))
	} else if upd != nil {
		st.Apply(upd)
	}
	if err := r.save(context.WithoutCancel(ctx), st); err != nil {
		return err
	}
	if emit != nil {
		emit(Event{Node: name, State: st.Clone()})
	}
	return nil
}

func (r *Runner) save(ctx context.Context, st *state.PlannerState) error {
	if r.checkpoint == nil {
		return nil
	}
	if err := r.checkpoint(ctx, st); err != nil {
		r.logger.Error("checkpoint failed", zap.String("session", st.SessionID), zap.Error(err))
		return fmt.Errorf("checkpoint session %s: %w", st.SessionID, err)
	}
	return nil
}
