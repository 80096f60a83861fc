// Package graph is a small agent-graph runtime: named nodes over a shared
// planner state, static and conditional edges, dispatch fan-out with a
// barrier join, checkpointing after every merge, and suspension for
// human-in-the-loop approval gates.
package graph

import (
	"context"
	"fmt"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// End is the terminal pseudo-node.
const End = "__end__"

// NodeFunc reads a state snapshot and returns the fields it wants changed.
// Nodes never mutate the snapshot they receive.
type NodeFunc func(ctx context.Context, st *state.PlannerState) (*state.Update, error)

// Dispatch targets one parallel branch with an independent snapshot.
type Dispatch struct {
	Target   string
	Snapshot *state.PlannerState
}

// Route is a router's verdict: either a single next node or a fan-out list.
type Route struct {
	Next       string
	Dispatches []Dispatch
}

// RouterFunc evaluates a conditional edge against the merged state.
type RouterFunc func(st *state.PlannerState) Route

// Graph is the static topology. Build it once, run it many times.
type Graph struct {
	nodes   map[string]NodeFunc
	edges   map[string]string
	routers map[string]RouterFunc
	entry   string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   map[string]NodeFunc{},
		edges:   map[string]string{},
		routers: map[string]RouterFunc{},
	}
}

// AddNode registers a node under a unique name.
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	g.nodes[name] = fn
	return g
}

// AddEdge wires a static edge from -> to. to may be End.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// AddRouter wires a conditional edge evaluated after from completes. A node
// has either a static edge or a router, not both.
func (g *Graph) AddRouter(from string, fn RouterFunc) *Graph {
	g.routers[from] = fn
	return g
}

// SetEntry names the start node.
func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// Validate checks that every edge endpoint exists and that no node carries
// both a static edge and a router.
func (g *Graph) Validate() error {
	if g.entry == "" {
		return fmt.Errorf("graph has no entry node")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("entry node %q not registered", g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("edge source %q not registered", from)
		}
		if to != End {
			if _, ok := g.nodes[to]; !ok {
				return fmt.Errorf("edge target %q not registered", to)
			}
		}
		if _, dup := g.routers[from]; dup {
			return fmt.Errorf("node %q has both a static edge and a router", from)
		}
	}
	for from := range g.routers {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("router source %q not registered", from)
		}
	}
	return nil
}
