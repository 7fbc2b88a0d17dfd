package graph

import (
	"fmt"

	"github.com/dd0wney/agentgraph/pkg/events"
)

// Build derives the path graph for an event sequence: one node per event and
// one edge per consecutive pair. It is rebuilt from scratch on every append and
// never looks at a previous graph.
func Build(evs []events.AgentEvent) *Graph {
	g := &Graph{
		Nodes: make([]Node, len(evs)),
	}
	if len(evs) > 1 {
		g.Edges = make([]Edge, 0, len(evs)-1)
	}

	for i, e := range evs {
		g.Nodes[i] = Node{ID: i, Agent: e.Agent, Message: e.Message}
		if i > 0 {
			g.Edges = append(g.Edges, Edge{Source: i - 1, Target: i})
		}
	}

	return g
}

// Validate checks the path-graph invariants
func (g *Graph) Validate() error {
	want := len(g.Nodes) - 1
	if want < 0 {
		want = 0
	}
	if len(g.Edges) != want {
		return fmt.Errorf("graph has %d edges for %d nodes, want %d", len(g.Edges), len(g.Nodes), want)
	}
	for i, n := range g.Nodes {
		if n.ID != i {
			return fmt.Errorf("node at position %d has id %d", i, n.ID)
		}
	}
	for i, e := range g.Edges {
		if e.Source != i || e.Target != i+1 {
			return fmt.Errorf("edge %d is (%d,%d), want (%d,%d)", i, e.Source, e.Target, i, i+1)
		}
	}
	return nil
}

// Degree returns the number of edges touching each node
func (g *Graph) Degree() []int {
	deg := make([]int, len(g.Nodes))
	for _, e := range g.Edges {
		deg[e.Source]++
		deg[e.Target]++
	}
	return deg
}
