package session

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/agentgraph/pkg/dispatch"
	"github.com/dd0wney/agentgraph/pkg/events"
)

// focus is the part of the screen receiving keys
type focus int

const (
	focusGraph focus = iota
	focusTopic
	focusAgents
	focusLLM
	focusFile
	numFocus
)

func (f focus) next() focus { return (f + 1) % numFocus }
func (f focus) prev() focus { return (f + numFocus - 1) % numFocus }

// form holds the job and upload inputs
type form struct {
	topic    textinput.Model
	file     textinput.Model
	agents   []events.Agent
	selected map[events.Agent]bool
	cursor   int
	llm      dispatch.LLMType
}

func newForm(llm dispatch.LLMType) form {
	topic := textinput.New()
	topic.Placeholder = "research topic"
	topic.CharLimit = 500
	topic.Prompt = ""

	file := textinput.New()
	file.Placeholder = "path/to/file.csv"
	file.CharLimit = 4096
	file.Prompt = ""

	return form{
		topic:    topic,
		file:     file,
		agents:   events.SelectableAgents(),
		selected: make(map[events.Agent]bool),
		llm:      llm,
	}
}

// request is the job the form currently describes. Agents keep checklist order.
func (f form) request() dispatch.JobRequest {
	agents := []string{}
	for _, a := range f.agents {
		if f.selected[a] {
			agents = append(agents, a.Label())
		}
	}
	return dispatch.JobRequest{
		Topic:   strings.TrimSpace(f.topic.Value()),
		Agents:  agents,
		LLMType: f.llm,
	}
}

func (f form) filePath() string {
	return strings.TrimSpace(f.file.Value())
}

func (f *form) moveCursor(delta int) {
	n := len(f.agents)
	if n == 0 {
		return
	}
	f.cursor = (f.cursor + delta + n) % n
}

func (f *form) toggle() {
	if len(f.agents) == 0 {
		return
	}
	a := f.agents[f.cursor]
	f.selected[a] = !f.selected[a]
}

// focus moves keyboard input to fc's text field, if it has one
func (f *form) focus(fc focus) tea.Cmd {
	f.topic.Blur()
	f.file.Blur()
	switch fc {
	case focusTopic:
		return f.topic.Focus()
	case focusFile:
		return f.file.Focus()
	}
	return nil
}

func label(text string, focused bool) string {
	if focused {
		return focusedLabelStyle.Render(text)
	}
	return labelStyle.Render(text)
}

func (f form) topicLine(fc focus) string {
	return label("Topic:", fc == focusTopic) + " " + f.topic.View()
}

// agentsLine renders the checklist, scrolled so the cursor stays within width
func (f form) agentsLine(fc focus, width int) string {
	items := make([]string, len(f.agents))
	for i, a := range f.agents {
		box := "[ ]"
		if f.selected[a] {
			box = "[x]"
		}
		item := box + " " + a.Label()
		if fc == focusAgents && i == f.cursor {
			item = cursorStyle.Render(item)
		}
		items[i] = item
	}

	prefix := label("Agents:", fc == focusAgents) + " "
	start := 0
	for start < f.cursor && lipgloss.Width(prefix+strings.Join(items[start:f.cursor+1], "  ")) > width {
		start++
	}
	return prefix + strings.Join(items[start:], "  ")
}

func (f form) optionsLine(fc focus) string {
	return label("LLM:", fc == focusLLM) + " " + f.llm.String() + "   " +
		label("File:", fc == focusFile) + " " + f.file.View()
}
