package research

import (
	"context"
	"fmt"

	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/llm"
)

// ProviderFunc resolves an LLM provider by kind
type ProviderFunc func(kind string) (llm.Provider, error)

// LLMAgent sends the topic to the job's chosen language model
type LLMAgent struct {
	em       Emitter
	provider ProviderFunc
}

// NewLLMAgent creates the LLM Integration agent
func NewLLMAgent(em Emitter, provider ProviderFunc) *LLMAgent {
	return &LLMAgent{em: em, provider: provider}
}

func (a *LLMAgent) Name() string { return events.AgentLLMIntegration.Label() }

func (a *LLMAgent) Act(ctx context.Context, task Task) (string, error) {
	kind := task.LLMType
	if kind == "" {
		kind = llm.KindOpenAI
	}

	return step(ctx, a.em, a.Name(), fmt.Sprintf("Processing task with LLM (%s): %s", kind, task.Topic),
		func() (string, error) {
			p, err := a.provider(kind)
			if err != nil {
				return "", err
			}
			return p.Complete(ctx, task.Topic)
		},
		func(err error) string { return fmt.Sprintf("Error processing task with %s: %v", kind, err) })
}
