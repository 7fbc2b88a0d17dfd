package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Domain helpers

func Component(name string) Field {
	return String("component", name)
}

// Agent is the agent identity carried by an event
func Agent(name string) Field {
	return String("agent", name)
}

// Generation is the graph generation a simulation belongs to
func Generation(gen int) Field {
	return Int("generation", gen)
}

// EventIndex is an event's position in the event log
func EventIndex(i int) Field {
	return Int("event_index", i)
}

func NodeID(id int) Field {
	return Int("node_id", id)
}

func Transport(name string) Field {
	return String("transport", name)
}

func Address(addr string) Field {
	return String("address", addr)
}

// Attempt is a 1-based retry attempt
func Attempt(n int) Field {
	return Int("attempt", n)
}

func JobID(id string) Field {
	return String("job_id", id)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Path(p string) Field {
	return String("path", p)
}

func Status(code int) Field {
	return Int("status", code)
}
