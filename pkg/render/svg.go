package render

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/dd0wney/agentgraph/pkg/visualization"
)

// SVGOptions controls SVG export
type SVGOptions struct {
	// Fit rescales node positions into the canvas with Padding kept clear
	Fit     bool
	Padding float64
}

// WriteSVG writes the scene as a standalone SVG document: a links group of
// lines and a nodes group of circles, each carrying a <title> tooltip.
func WriteSVG(w io.Writer, s *Scene, opts SVGOptions) error {
	pos := s.Positions()
	if opts.Fit {
		pad := opts.Padding
		if pad == 0 {
			pad = NodeRadius * 2
		}
		pos = visualization.NormalizePositions(pos, s.Width, s.Height, pad)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g">`+"\n", s.Width, s.Height)

	bw.WriteString(`  <g class="links">` + "\n")
	for _, l := range s.Lines {
		a, b := pos[l.Source], pos[l.Target]
		fmt.Fprintf(bw, `    <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%g"/>`+"\n",
			a.X, a.Y, b.X, b.Y, l.Stroke, l.StrokeWidth)
	}
	bw.WriteString("  </g>\n")

	bw.WriteString(`  <g class="nodes">` + "\n")
	for _, c := range s.Circles {
		p := pos[c.ID]
		fmt.Fprintf(bw, `    <circle data-id="%d" cx="%.2f" cy="%.2f" r="%g" fill="%s"><title>`, c.ID, p.X, p.Y, c.R, c.Fill)
		if err := xml.EscapeText(bw, []byte(c.Title)); err != nil {
			return fmt.Errorf("escape title: %w", err)
		}
		bw.WriteString("</title></circle>\n")
	}
	bw.WriteString("  </g>\n</svg>\n")

	return bw.Flush()
}
