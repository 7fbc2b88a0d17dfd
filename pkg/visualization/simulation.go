package visualization

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/dd0wney/agentgraph/pkg/graph"
	"gonum.org/v1/gonum/spatial/r2"
)

const initialRadius = 10

var initialAngle = math.Pi * (3 - math.Sqrt(5))

// Simulation is a force-directed layout over one graph generation.
// It owns no goroutines; the caller drives it one Tick at a time and must not
// use it from more than one goroutine.
type Simulation struct {
	cfg          SimulationConfig
	nodes        []SimNode
	links        []graph.Edge
	linkStrength []float64
	linkBias     []float64

	alpha       float64
	alphaTarget float64
	running     bool
	ticks       int

	rnd *rand.Rand
}

// NewSimulation creates a running simulation for g.
// seed optionally carries settled positions by node id; nodes missing from
// seed are placed next to their predecessor, or on a phyllotaxis spiral
// around the canvas centre when seed is nil.
func NewSimulation(g *graph.Graph, cfg SimulationConfig, seed map[int]Position) *Simulation {
	cfg = cfg.withDefaults()

	s := &Simulation{
		cfg:         cfg,
		nodes:       make([]SimNode, len(g.Nodes)),
		links:       append([]graph.Edge(nil), g.Edges...),
		alpha:       1,
		alphaTarget: cfg.AlphaTarget,
		running:     true,
		rnd:         rand.New(rand.NewSource(1)),
	}

	center := s.center()
	for i, n := range g.Nodes {
		s.nodes[i] = SimNode{ID: n.ID, Agent: n.Agent, Message: n.Message}

		if p, ok := seed[n.ID]; ok {
			s.nodes[i].Pos = p.Vec()
			continue
		}
		if seed != nil && i > 0 {
			s.nodes[i].Pos = r2.Add(s.nodes[i-1].Pos, spiral(1))
			continue
		}
		s.nodes[i].Pos = r2.Add(center, spiral(i))
	}

	deg := g.Degree()
	s.linkStrength = make([]float64, len(s.links))
	s.linkBias = make([]float64, len(s.links))
	for i, e := range s.links {
		ds, dt := float64(deg[e.Source]), float64(deg[e.Target])
		s.linkStrength[i] = 1 / math.Min(ds, dt)
		s.linkBias[i] = ds / (ds + dt)
	}

	return s
}

// spiral returns the i-th phyllotaxis offset
func spiral(i int) r2.Vec {
	radius := initialRadius * math.Sqrt(0.5+float64(i))
	angle := float64(i) * initialAngle
	return r2.Vec{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
}

func (s *Simulation) center() r2.Vec {
	return r2.Vec{X: s.cfg.Width / 2, Y: s.cfg.Height / 2}
}

// Config returns the effective configuration
func (s *Simulation) Config() SimulationConfig {
	return s.cfg
}

// Tick advances the simulation one step and reports whether it is still
// running. Once alpha drops below AlphaMin the simulation idles and Tick is a
// no-op until a drag wakes it.
func (s *Simulation) Tick() bool {
	if !s.running {
		return false
	}

	s.alpha += (s.alphaTarget - s.alpha) * s.cfg.AlphaDecay

	s.applyLink()
	s.applyManyBody()
	s.applyCenter()

	keep := 1 - s.cfg.VelocityDecay
	for i := range s.nodes {
		n := &s.nodes[i]
		if n.Pin != nil {
			n.Pos = *n.Pin
			n.Vel = r2.Vec{}
			continue
		}
		n.Vel = r2.Scale(keep, n.Vel)
		n.Pos = r2.Add(n.Pos, n.Vel)
	}

	s.ticks++
	if s.alpha < s.cfg.AlphaMin {
		s.running = false
	}
	return s.running
}

// Settle ticks until the simulation idles or maxTicks is reached and returns
// the number of ticks run.
func (s *Simulation) Settle(maxTicks int) int {
	n := 0
	for n < maxTicks && s.Tick() {
		n++
	}
	return n
}

// Running reports whether the simulation still has energy above AlphaMin
func (s *Simulation) Running() bool {
	return s.running
}

// Alpha returns the current energy
func (s *Simulation) Alpha() float64 {
	return s.alpha
}

// Ticks returns how many steps have run
func (s *Simulation) Ticks() int {
	return s.ticks
}

// Len returns the number of nodes
func (s *Simulation) Len() int {
	return len(s.nodes)
}

// Nodes returns a copy of the node states
func (s *Simulation) Nodes() []SimNode {
	out := make([]SimNode, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n
		if n.Pin != nil {
			pin := *n.Pin
			out[i].Pin = &pin
		}
	}
	return out
}

// Edges returns the simulated edges
func (s *Simulation) Edges() []graph.Edge {
	return append([]graph.Edge(nil), s.links...)
}

// Positions returns current coordinates keyed by node id
func (s *Simulation) Positions() map[int]Position {
	out := make(map[int]Position, len(s.nodes))
	for _, n := range s.nodes {
		out[n.ID] = n.Position()
	}
	return out
}

// DragStart pins node id at p and keeps the simulation warm so the rest of the
// graph follows. An idle simulation is woken up.
func (s *Simulation) DragStart(id int, p Position) error {
	n, err := s.node(id)
	if err != nil {
		return err
	}
	s.alphaTarget = s.cfg.DragAlphaTarget
	s.running = true
	pin := p.Vec()
	n.Pin = &pin
	return nil
}

// DragMove moves the pin of a dragged node
func (s *Simulation) DragMove(id int, p Position) error {
	n, err := s.node(id)
	if err != nil {
		return err
	}
	pin := p.Vec()
	n.Pin = &pin
	return nil
}

// DragEnd releases the pin and lets the simulation cool to rest
func (s *Simulation) DragEnd(id int) error {
	n, err := s.node(id)
	if err != nil {
		return err
	}
	s.alphaTarget = s.cfg.AlphaTarget
	n.Pin = nil
	return nil
}

func (s *Simulation) node(id int) (*SimNode, error) {
	if id < 0 || id >= len(s.nodes) || s.nodes[id].ID != id {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return &s.nodes[id], nil
}
