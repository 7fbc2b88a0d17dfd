package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	edgeRune      = '·'
	nodeRune      = '█'
	highlightRune = '▓'
	pinnedRune    = '◆'

	// lines reaching this many grid sizes off screen are skipped
	maxLineSpan = 16
)

type cell struct {
	r     rune
	color string
}

// RasterOptions controls terminal rasterization
type RasterOptions struct {
	Highlight int  // node id drawn highlighted
	HasFocus  bool // whether Highlight is set
}

// Rasterize draws the scene into a cols x rows block of terminal text,
// edges first so nodes sit on top of them.
func Rasterize(s *Scene, v Viewport, opts RasterOptions) string {
	grid := make([][]cell, v.Rows)
	for r := range grid {
		grid[r] = make([]cell, v.Cols)
	}

	for _, l := range s.Lines {
		c0, r0 := v.ToCell(l.X1, l.Y1)
		c1, r1 := v.ToCell(l.X2, l.Y2)
		if abs(c0)+abs(c1)+abs(r0)+abs(r1) > maxLineSpan*(v.Cols+v.Rows) {
			continue
		}
		plotLine(c0, r0, c1, r1, func(c, r int) {
			if v.Contains(c, r) && grid[r][c].r == 0 {
				grid[r][c] = cell{r: edgeRune, color: l.Stroke}
			}
		})
	}

	sx, sy := v.scale()
	for _, c := range s.Circles {
		cc, cr := v.ToCell(c.CX, c.CY)
		rx := max(c.R/sx, 0.5)
		ry := max(c.R/sy, 0.5)

		glyph := nodeRune
		if opts.HasFocus && opts.Highlight == c.ID {
			glyph = highlightRune
		}

		for r := cr - int(ry); r <= cr+int(ry); r++ {
			for col := cc - int(rx); col <= cc+int(rx); col++ {
				if !v.Contains(col, r) {
					continue
				}
				dx := float64(col-cc) / rx
				dy := float64(r-cr) / ry
				if dx*dx+dy*dy <= 1 {
					grid[r][col] = cell{r: glyph, color: c.Fill}
				}
			}
		}
		if c.Pinned && v.Contains(cc, cr) {
			grid[cr][cc] = cell{r: pinnedRune, color: c.Fill}
		}
	}

	var b strings.Builder
	for r, row := range grid {
		writeRow(&b, row)
		if r < len(grid)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// writeRow emits runs of same-coloured cells through one lipgloss style each
func writeRow(b *strings.Builder, row []cell) {
	var run strings.Builder
	color := ""

	flush := func() {
		if run.Len() == 0 {
			return
		}
		if color == "" {
			b.WriteString(run.String())
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(run.String()))
		}
		run.Reset()
	}

	for _, c := range row {
		r := c.r
		if r == 0 {
			r = ' '
		}
		if c.color != color {
			flush()
			color = c.color
		}
		run.WriteRune(r)
	}
	flush()
}

// plotLine walks the cells between two points with Bresenham's algorithm
func plotLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
