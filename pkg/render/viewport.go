package render

import (
	"math"

	"github.com/dd0wney/agentgraph/pkg/visualization"
)

// Viewport maps canvas coordinates onto a grid of terminal cells
type Viewport struct {
	Cols, Rows int
	World      visualization.Rect
}

// NewViewport shows the whole width x height canvas in cols x rows cells
func NewViewport(cols, rows int, width, height float64) Viewport {
	return Viewport{
		Cols:  max(cols, 1),
		Rows:  max(rows, 1),
		World: visualization.Rect{MaxX: width, MaxY: height},
	}
}

// FitViewport frames the given positions with padding canvas units around them.
// With no positions it frames the canvas.
func FitViewport(cols, rows int, width, height float64, positions map[int]visualization.Position, padding float64) Viewport {
	if len(positions) == 0 {
		return NewViewport(cols, rows, width, height)
	}

	b := visualization.Bounds(positions)
	b.MinX -= padding
	b.MinY -= padding
	b.MaxX += padding
	b.MaxY += padding

	return Viewport{Cols: max(cols, 1), Rows: max(rows, 1), World: b}
}

func (v Viewport) scale() (sx, sy float64) {
	sx = v.World.Width() / float64(v.Cols)
	sy = v.World.Height() / float64(v.Rows)
	if sx <= 0 {
		sx = 1
	}
	if sy <= 0 {
		sy = 1
	}
	return sx, sy
}

// ToCell returns the cell containing canvas point (x, y). The result may lie
// outside the grid.
func (v Viewport) ToCell(x, y float64) (col, row int) {
	sx, sy := v.scale()
	col = int(math.Floor((x - v.World.MinX) / sx))
	row = int(math.Floor((y - v.World.MinY) / sy))
	return col, row
}

// ToWorld returns the canvas point at the centre of a cell
func (v Viewport) ToWorld(col, row int) visualization.Position {
	sx, sy := v.scale()
	return visualization.Position{
		X: v.World.MinX + (float64(col)+0.5)*sx,
		Y: v.World.MinY + (float64(row)+0.5)*sy,
	}
}

// Contains reports whether a cell lies on the grid
func (v Viewport) Contains(col, row int) bool {
	return col >= 0 && col < v.Cols && row >= 0 && row < v.Rows
}
