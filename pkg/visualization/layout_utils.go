package visualization

import "math"

// Bounds returns the bounding box of positions. An empty map yields a zero Rect.
func Bounds(positions map[int]Position) Rect {
	if len(positions) == 0 {
		return Rect{}
	}

	r := Rect{
		MinX: math.MaxFloat64, MinY: math.MaxFloat64,
		MaxX: -math.MaxFloat64, MaxY: -math.MaxFloat64,
	}
	for _, pos := range positions {
		r.MinX = math.Min(r.MinX, pos.X)
		r.MaxX = math.Max(r.MaxX, pos.X)
		r.MinY = math.Min(r.MinY, pos.Y)
		r.MaxY = math.Max(r.MaxY, pos.Y)
	}
	return r
}

// NormalizePositions scales positions to fit within width x height, keeping
// padding clear on every side. Degenerate axes collapse to the padding line.
func NormalizePositions(positions map[int]Position, width, height, padding float64) map[int]Position {
	if len(positions) == 0 {
		return positions
	}

	b := Bounds(positions)
	rangeX := b.Width()
	rangeY := b.Height()

	if rangeX < 0.01 {
		rangeX = 1
	}
	if rangeY < 0.01 {
		rangeY = 1
	}

	targetWidth := width - 2*padding
	targetHeight := height - 2*padding

	normalized := make(map[int]Position, len(positions))
	for id, pos := range positions {
		normalized[id] = Position{
			X: padding + ((pos.X-b.MinX)/rangeX)*targetWidth,
			Y: padding + ((pos.Y-b.MinY)/rangeY)*targetHeight,
		}
	}

	return normalized
}
