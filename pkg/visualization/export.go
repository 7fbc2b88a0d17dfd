package visualization

import (
	"encoding/json"

	"github.com/dd0wney/agentgraph/pkg/graph"
)

// ColorFunc maps an agent label to a fill colour
type ColorFunc func(agent string) string

// FrameNode is the exported state of one node
type FrameNode struct {
	ID      int     `json:"id"`
	Agent   string  `json:"agent"`
	Message string  `json:"message"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   string  `json:"color,omitempty"`
	Pinned  bool    `json:"pinned,omitempty"`
}

// Frame is a JSON snapshot of a simulation generation at one tick
type Frame struct {
	Generation int          `json:"generation"`
	Tick       int          `json:"tick"`
	Alpha      float64      `json:"alpha"`
	Running    bool         `json:"running"`
	Nodes      []FrameNode  `json:"nodes"`
	Edges      []graph.Edge `json:"edges"`
}

// Snapshot captures the current state of s. colorOf may be nil.
func (s *Simulation) Snapshot(generation int, colorOf ColorFunc) Frame {
	f := Frame{
		Generation: generation,
		Tick:       s.ticks,
		Alpha:      s.alpha,
		Running:    s.running,
		Nodes:      make([]FrameNode, 0, len(s.nodes)),
		Edges:      s.Edges(),
	}
	if f.Edges == nil {
		f.Edges = []graph.Edge{}
	}

	for _, n := range s.nodes {
		fn := FrameNode{
			ID:      n.ID,
			Agent:   n.Agent,
			Message: n.Message,
			X:       n.Pos.X,
			Y:       n.Pos.Y,
			Pinned:  n.Pin != nil,
		}
		if colorOf != nil {
			fn.Color = colorOf(n.Agent)
		}
		f.Nodes = append(f.Nodes, fn)
	}

	return f
}

// ExportJSON exports the frame to JSON
func (f Frame) ExportJSON() ([]byte, error) {
	return json.Marshal(f)
}
