package dispatch

import (
	"fmt"
	"strings"
)

// LLMType names the language model provider an LLM Integration step uses
type LLMType string

const (
	LLMOpenAI LLMType = "openai"
	LLMClaude LLMType = "claude"
	LLMOllama LLMType = "ollama"
)

// LLMTypes lists the providers in the order the form cycles through them
var LLMTypes = []LLMType{LLMOpenAI, LLMClaude, LLMOllama}

// ParseLLMType accepts a provider name case-insensitively
func ParseLLMType(s string) (LLMType, error) {
	t := LLMType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range LLMTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown llm type %q (want openai, claude or ollama)", s)
}

// Next returns the provider after t, wrapping around
func (t LLMType) Next() LLMType {
	for i, known := range LLMTypes {
		if t == known {
			return LLMTypes[(i+1)%len(LLMTypes)]
		}
	}
	return LLMTypes[0]
}

func (t LLMType) String() string {
	return string(t)
}
