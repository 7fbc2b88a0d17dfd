package session

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dd0wney/agentgraph/pkg/channel"
	"github.com/dd0wney/agentgraph/pkg/dispatch"
	"github.com/dd0wney/agentgraph/pkg/events"
)

// EventMsg carries one delivery from the listener into the loop
type EventMsg struct {
	channel.Delivery
}

// StatusMsg reports a push-channel state change
type StatusMsg struct {
	Status channel.Status
	Err    error
}

// tickMsg drives one simulation step of generation gen
type tickMsg struct {
	gen int
}

// noticeMsg shows a transient notice
type noticeMsg struct {
	text  string
	isErr bool
}

// noticeExpiredMsg clears notice seq if it is still showing
type noticeExpiredMsg struct {
	seq int
}

type submitDoneMsg struct {
	resp *dispatch.JobResponse
	err  error
}

type uploadDoneMsg struct {
	path  string
	event events.AgentEvent
	err   error
}

func tickCmd(gen int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func expireCmd(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

func submitCmd(ctx context.Context, d Dispatcher, req dispatch.JobRequest, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		resp, err := d.SubmitJob(ctx, req)
		return submitDoneMsg{resp: resp, err: err}
	}
}

func uploadCmd(ctx context.Context, d Dispatcher, path string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ev, err := d.UploadFile(ctx, path)
		return uploadDoneMsg{path: path, event: ev, err: err}
	}
}
