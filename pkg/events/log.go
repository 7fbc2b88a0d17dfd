package events

// Log is the append-only, arrival-ordered record of agent events.
// It is the single source of truth for the graph. Entries are never
// mutated, reordered or removed.
//
// A Log belongs to one goroutine (the session loop) and is not safe for
// concurrent use.
type Log struct {
	entries []AgentEvent
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{}
}

// Append adds e at the end of the log and returns its index.
// Every event is accepted: no deduplication, no agent validation.
func (l *Log) Append(e AgentEvent) int {
	l.entries = append(l.entries, e)
	return len(l.entries) - 1
}

// Len returns the number of events recorded
func (l *Log) Len() int {
	return len(l.entries)
}

// At returns the event at index i. It panics if i is out of range.
func (l *Log) At(i int) AgentEvent {
	return l.entries[i]
}

// Events returns a copy of the recorded events in arrival order
func (l *Log) Events() []AgentEvent {
	out := make([]AgentEvent, len(l.entries))
	copy(out, l.entries)
	return out
}

// Tail returns a copy of the last n events (fewer if the log is shorter)
func (l *Log) Tail(n int) []AgentEvent {
	if n <= 0 {
		return nil
	}
	start := len(l.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]AgentEvent, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}
