package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// TypeAgentUpdate is the only push-channel message type the client consumes
const TypeAgentUpdate = "agent_update"

var (
	// ErrMalformedFrame is returned for frames that are not a well-formed agent update
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnsupportedType is returned for well-formed envelopes of another type
	ErrUnsupportedType = errors.New("unsupported message type")
)

// AgentEvent is a single reported unit of progress from a research worker
type AgentEvent struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

// Kind resolves the event's agent label against the known set
func (e AgentEvent) Kind() Agent {
	return ParseAgent(e.Agent)
}

// String renders the event the way tooltips and the log list show it
func (e AgentEvent) String() string {
	return e.Agent + ": " + e.Message
}

// envelope is the wire shape of a push-channel message
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// payload uses pointers so an absent key can be told apart from an empty string
type payload struct {
	Agent   *string `json:"agent" validate:"required"`
	Message *string `json:"message" validate:"required"`
}

var validate = validator.New()

// EncodeFrame wraps an event in an agent_update envelope
func EncodeFrame(e AgentEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.Marshal(envelope{Type: TypeAgentUpdate, Data: data})
}

// DecodeFrame parses an agent_update envelope.
// Both payload keys must be present and be strings; their values are not
// checked against the known agent set.
func DecodeFrame(b []byte) (AgentEvent, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return AgentEvent{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type != TypeAgentUpdate {
		return AgentEvent{}, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return AgentEvent{}, fmt.Errorf("%w: missing data", ErrMalformedFrame)
	}

	var p payload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return AgentEvent{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := validate.Struct(p); err != nil {
		return AgentEvent{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	return AgentEvent{Agent: *p.Agent, Message: *p.Message}, nil
}
