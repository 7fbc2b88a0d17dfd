package graph

// Node is one event of the log. ID is the event's index and never changes.
type Node struct {
	ID      int    `json:"id"`
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

// Edge links an event to its immediate predecessor
type Edge struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Graph is the path graph derived from the event log
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}
