package render

import (
	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/graph"
	"github.com/dd0wney/agentgraph/pkg/visualization"
)

// Circle is the visual for one node
type Circle struct {
	ID     int
	CX, CY float64
	R      float64
	Fill   string
	Title  string // hover text, "agent: message"
	Pinned bool
}

// Line is the visual for one edge
type Line struct {
	Source, Target int
	X1, Y1         float64
	X2, Y2         float64
	Stroke         string
	StrokeWidth    float64
}

// Scene is the drawable state of the current graph generation
type Scene struct {
	Width, Height float64
	// Radius of every node circle; NodeRadius when zero
	Radius  float64
	Lines   []Line
	Circles []Circle

	index map[int]int // node id -> circle position
}

// NewScene creates an empty scene for a width x height canvas
func NewScene(width, height float64) *Scene {
	return &Scene{Width: width, Height: height, index: map[int]int{}}
}

// Reset discards every element and draws g from scratch. Positions stay at
// the origin until the first Sync.
func (s *Scene) Reset(g *graph.Graph) {
	s.Lines = make([]Line, len(g.Edges))
	s.Circles = make([]Circle, len(g.Nodes))
	s.index = make(map[int]int, len(g.Nodes))

	for i, e := range g.Edges {
		s.Lines[i] = Line{
			Source:      e.Source,
			Target:      e.Target,
			Stroke:      EdgeColor,
			StrokeWidth: EdgeWidth,
		}
	}
	r := s.Radius
	if r <= 0 {
		r = NodeRadius
	}
	for i, n := range g.Nodes {
		s.Circles[i] = Circle{
			ID:    n.ID,
			R:     r,
			Fill:  ColorOf(n.Agent),
			Title: events.AgentEvent{Agent: n.Agent, Message: n.Message}.String(),
		}
		s.index[n.ID] = i
	}
}

// Sync copies one tick of simulation state into the scene
func (s *Scene) Sync(nodes []visualization.SimNode) {
	for _, n := range nodes {
		i, ok := s.index[n.ID]
		if !ok {
			continue
		}
		s.Circles[i].CX = n.Pos.X
		s.Circles[i].CY = n.Pos.Y
		s.Circles[i].Pinned = n.Pinned()
	}

	for i := range s.Lines {
		l := &s.Lines[i]
		if c, ok := s.circle(l.Source); ok {
			l.X1, l.Y1 = c.CX, c.CY
		}
		if c, ok := s.circle(l.Target); ok {
			l.X2, l.Y2 = c.CX, c.CY
		}
	}
}

func (s *Scene) circle(id int) (Circle, bool) {
	i, ok := s.index[id]
	if !ok {
		return Circle{}, false
	}
	return s.Circles[i], true
}

// Circle returns the visual for node id
func (s *Scene) Circle(id int) (Circle, bool) {
	return s.circle(id)
}

// NodeAt returns the topmost node whose circle contains (x, y)
func (s *Scene) NodeAt(x, y float64) (int, bool) {
	for i := len(s.Circles) - 1; i >= 0; i-- {
		c := s.Circles[i]
		dx, dy := x-c.CX, y-c.CY
		if dx*dx+dy*dy <= c.R*c.R {
			return c.ID, true
		}
	}
	return 0, false
}

// Tooltip returns the inspection text for node id
func (s *Scene) Tooltip(id int) (string, bool) {
	c, ok := s.circle(id)
	if !ok {
		return "", false
	}
	return c.Title, true
}

// Positions returns circle centres keyed by node id
func (s *Scene) Positions() map[int]visualization.Position {
	out := make(map[int]visualization.Position, len(s.Circles))
	for _, c := range s.Circles {
		out[c.ID] = visualization.Position{X: c.CX, Y: c.CY}
	}
	return out
}

// Len returns the number of node circles
func (s *Scene) Len() int {
	return len(s.Circles)
}
