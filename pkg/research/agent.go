package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/dd0wney/agentgraph/pkg/events"
)

// File is an uploaded document handed to the Data Processing agent
type File struct {
	Name string
	Data []byte
}

// Task is an agent's input. Topic drives the research agents, File the
// Data Processing agent and Text the Sentiment Analysis agent.
type Task struct {
	Topic   string
	LLMType string
	File    *File
	Text    string
}

// Agent is one research worker. Act emits a start and a result update
// through its Emitter and returns the result message. A failing step still
// emits an "Error ..." result; the returned error is for logs and metrics.
type Agent interface {
	Name() string
	Act(ctx context.Context, task Task) (string, error)
}

// step emits start, runs fn and emits its result, or errorMessage(err) when
// fn fails
func step(ctx context.Context, em Emitter, agent, start string, fn func() (string, error), errorMessage func(error) string) (string, error) {
	if err := em.Emit(ctx, agent, start); err != nil {
		return "", err
	}

	result, err := fn()
	if err != nil {
		result = errorMessage(err)
	}

	if emitErr := em.Emit(ctx, agent, result); emitErr != nil {
		return result, emitErr
	}
	return result, err
}

// templateAgent reports canned progress for a topic
type templateAgent struct {
	name   string
	start  string
	result string
	em     Emitter
}

func (a *templateAgent) Name() string { return a.name }

func (a *templateAgent) Act(ctx context.Context, task Task) (string, error) {
	return step(ctx, a.em, a.name, fmt.Sprintf(a.start, task.Topic),
		func() (string, error) { return fmt.Sprintf(a.result, task.Topic), nil },
		func(err error) string { return fmt.Sprintf("Error working on %s: %v", task.Topic, err) })
}

// NewResearchAgent creates the Research Specialist
func NewResearchAgent(em Emitter) Agent {
	return &templateAgent{
		name:   events.AgentResearchSpecialist.Label(),
		start:  "Researching topic: %s",
		result: "Research notes ready for: %s",
		em:     em,
	}
}

// NewPolicyAgent creates the Policy Analyst
func NewPolicyAgent(em Emitter) Agent {
	return &templateAgent{
		name:   events.AgentPolicyAnalyst.Label(),
		start:  "Evaluating policy impacts for: %s",
		result: "Policy impact assessment complete for: %s",
		em:     em,
	}
}

// NewTechnicalAgent creates the Technologist
func NewTechnicalAgent(em Emitter) Agent {
	return &templateAgent{
		name:   events.AgentTechnologist.Label(),
		start:  "Assessing technical feasibility for: %s",
		result: "Technical feasibility assessed for: %s",
		em:     em,
	}
}

// NewCommunicationAgent creates the Communicator
func NewCommunicationAgent(em Emitter) Agent {
	return &templateAgent{
		name:   events.AgentCommunicator.Label(),
		start:  "Preparing communication materials for: %s",
		result: "Communication materials drafted for: %s",
		em:     em,
	}
}

// defaultRecommendations are offered for every topic
var defaultRecommendations = []string{"Read more on similar topics", "Consult a technical expert"}

type recommendationAgent struct {
	em Emitter
}

// NewRecommendationAgent creates the Recommendation agent
func NewRecommendationAgent(em Emitter) Agent {
	return &recommendationAgent{em: em}
}

func (a *recommendationAgent) Name() string { return events.AgentRecommendation.Label() }

func (a *recommendationAgent) Act(ctx context.Context, task Task) (string, error) {
	return step(ctx, a.em, a.Name(),
		"Generating recommendations based on context: "+task.Topic,
		func() (string, error) {
			return "Recommendations: " + strings.Join(defaultRecommendations, ", "), nil
		},
		func(err error) string { return fmt.Sprintf("Error generating recommendations: %v", err) })
}
