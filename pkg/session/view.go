package session

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/dd0wney/agentgraph/pkg/channel"
	"github.com/dd0wney/agentgraph/pkg/render"
)

const (
	// newest log entries listed under the canvas
	logPaneLines = 4

	// screen lines outside the canvas rows: title, two borders, tooltip,
	// the log pane and its header, three form lines, notice and help
	reservedLines = 10 + logPaneLines

	// cell of the first canvas column and row, inside the border
	canvasLeft = 1
	canvasTop  = 2

	minCanvasCols = 10
	minCanvasRows = 3
)

// canvasSize is the rasterized grid for the current window
func (m Model) canvasSize() (cols, rows int) {
	return max(m.width-2, minCanvasCols), max(m.height-reservedLines, minCanvasRows)
}

// viewport frames the canvas, or the current nodes in fit mode
func (m Model) viewport() render.Viewport {
	cols, rows := m.canvasSize()
	w, h := m.opts.Simulation.Width, m.opts.Simulation.Height
	if m.fit && m.scene.Len() > 0 {
		r := m.scene.Radius
		if r <= 0 {
			r = render.NodeRadius
		}
		return render.FitViewport(cols, rows, w, h, m.scene.Positions(), 2*r)
	}
	return render.NewViewport(cols, rows, w, h)
}

// View always renders the same number of lines so the renderer never
// scrolls the canvas away
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	vp := m.viewport()
	if m.dragging {
		vp = m.dragView
	}
	highlight, hasFocus := m.highlighted()
	canvas := render.Rasterize(m.scene, vp, render.RasterOptions{Highlight: highlight, HasFocus: hasFocus})

	lines := []string{m.titleLine()}
	lines = append(lines, strings.Split(canvasStyle.Render(canvas), "\n")...)
	lines = append(lines,
		m.tooltipLine(),
	)
	lines = append(lines, m.logPane()...)
	lines = append(lines,
		m.form.topicLine(m.focus),
		m.form.agentsLine(m.focus, m.width),
		m.form.optionsLine(m.focus),
		m.noticeLine(),
		dimStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())),
	)

	for i, l := range lines {
		lines[i] = ansi.Truncate(l, m.width, "…")
	}
	return strings.Join(lines, "\n")
}

// highlighted is the hovered node, else the inspected one
func (m Model) highlighted() (int, bool) {
	switch {
	case m.dragging:
		return m.dragID, true
	case m.hover >= 0:
		return m.hover, true
	case m.inspect >= 0:
		return m.inspect, true
	}
	return 0, false
}

func (m Model) titleLine() string {
	title := titleStyle.Render("Agent Graph")
	stats := fmt.Sprintf("  events %d  gen %d", m.log.Len(), m.generation)
	if m.sim != nil && m.sim.Running() {
		stats += fmt.Sprintf("  alpha %.3f", m.sim.Alpha())
	}
	if m.fit {
		stats += "  [fit]"
	}
	return title + dimStyle.Render(stats) + "  " + m.statusText()
}

func (m Model) statusText() string {
	switch m.status {
	case channel.StatusConnected:
		return successStyle.Render("● " + m.status.String())
	case channel.StatusClosed:
		if m.statusErr != nil {
			return errorStyle.Render("● " + m.status.String())
		}
		return dimStyle.Render("● " + m.status.String())
	default:
		return tooltipStyle.Render("● " + m.status.String())
	}
}

func (m Model) tooltipLine() string {
	id, ok := m.highlighted()
	if !ok {
		return dimStyle.Render("hover a node or press ] to inspect")
	}
	text, ok := m.scene.Tooltip(id)
	if !ok {
		return ""
	}
	return tooltipStyle.Render(fmt.Sprintf("#%d %s", id, text))
}

// logPane is a header plus exactly logPaneLines rows holding the newest
// events, oldest first
func (m Model) logPane() []string {
	lines := make([]string, 0, logPaneLines+1)
	lines = append(lines, labelStyle.Render("Updates")+dimStyle.Render(fmt.Sprintf(" (%d)", m.log.Len())))

	for _, e := range m.log.Tail(logPaneLines) {
		agent := lipgloss.NewStyle().Foreground(lipgloss.Color(render.ColorOf(e.Agent))).Render(e.Agent)
		// Results may span several lines; the pane shows one per event
		lines = append(lines, agent+": "+strings.Join(strings.Fields(e.Message), " "))
	}
	if m.log.Len() == 0 {
		lines = append(lines, dimStyle.Render("waiting for agent updates"))
	}
	for len(lines) < logPaneLines+1 {
		lines = append(lines, "")
	}
	return lines
}

func (m Model) noticeLine() string {
	switch {
	case m.notice == "":
		return ""
	case m.noticeErr:
		return errorStyle.Render("✗ " + m.notice)
	default:
		return successStyle.Render("✓ " + m.notice)
	}
}
