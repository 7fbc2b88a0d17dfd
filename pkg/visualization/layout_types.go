package visualization

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrUnknownNode is returned when a drag targets a node the simulation does not hold
var ErrUnknownNode = errors.New("unknown node")

// Position represents a 2D coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec converts p for vector arithmetic
func (p Position) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// SimulationConfig configures the force simulation
type SimulationConfig struct {
	Width           float64 // Canvas width
	Height          float64 // Canvas height
	LinkDistance    float64 // Target separation along an edge
	ChargeStrength  float64 // Pairwise charge; negative repels
	CenterStrength  float64 // Fraction of the centroid offset removed per tick
	DistanceMin     float64 // Floor on pair distance for the charge force
	AlphaMin        float64 // Energy below which the simulation idles
	AlphaDecay      float64 // Per-tick approach of alpha toward its target
	AlphaTarget     float64 // Resting energy target
	VelocityDecay   float64 // Fraction of velocity lost per tick
	DragAlphaTarget float64 // Energy target while a node is dragged
}

// DefaultSimulationConfig returns the canvas and force constants used by the client
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Width:           800,
		Height:          400,
		LinkDistance:    100,
		ChargeStrength:  -200,
		CenterStrength:  1,
		DistanceMin:     1,
		AlphaMin:        0.001,
		AlphaDecay:      1 - math.Pow(0.001, 1.0/300),
		VelocityDecay:   0.4,
		DragAlphaTarget: 0.3,
	}
}

// withDefaults fills zero fields from DefaultSimulationConfig
func (c SimulationConfig) withDefaults() SimulationConfig {
	d := DefaultSimulationConfig()
	if c.Width == 0 {
		c.Width = d.Width
	}
	if c.Height == 0 {
		c.Height = d.Height
	}
	if c.LinkDistance == 0 {
		c.LinkDistance = d.LinkDistance
	}
	if c.ChargeStrength == 0 {
		c.ChargeStrength = d.ChargeStrength
	}
	if c.CenterStrength == 0 {
		c.CenterStrength = d.CenterStrength
	}
	if c.DistanceMin == 0 {
		c.DistanceMin = d.DistanceMin
	}
	if c.AlphaMin == 0 {
		c.AlphaMin = d.AlphaMin
	}
	if c.AlphaDecay == 0 {
		c.AlphaDecay = 1 - math.Pow(c.AlphaMin, 1.0/300)
	}
	if c.VelocityDecay == 0 {
		c.VelocityDecay = d.VelocityDecay
	}
	if c.DragAlphaTarget == 0 {
		c.DragAlphaTarget = d.DragAlphaTarget
	}
	return c
}

// SimNode is a graph node together with its simulation state
type SimNode struct {
	ID      int
	Agent   string
	Message string
	Pos     r2.Vec  // Layout coordinates
	Vel     r2.Vec  // Velocity carried between ticks
	Pin     *r2.Vec // Fixed position while dragged; nil when free
}

// Pinned reports whether the node is held by a drag
func (n SimNode) Pinned() bool {
	return n.Pin != nil
}

// Position returns the node's layout coordinates
func (n SimNode) Position() Position {
	return Position{X: n.Pos.X, Y: n.Pos.Y}
}

// Rect is an axis-aligned bounding box
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width of the box
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height of the box
func (r Rect) Height() float64 { return r.MaxY - r.MinY }
