package events

// Agent identifies which research worker produced an event.
// The set is closed; identities outside it map to AgentUnknown.
type Agent int

const (
	// AgentUnknown is the fallback for any identity outside the known set
	AgentUnknown Agent = iota
	AgentResearchSpecialist
	AgentPolicyAnalyst
	AgentTechnologist
	AgentCommunicator
	AgentWebBrowser
	AgentDataProcessing
	AgentSentimentAnalysis
	AgentRecommendation
	AgentLLMIntegration
	AgentFileUpload
)

// FileUploadLabel is the agent label carried by events synthesized from uploads
const FileUploadLabel = "File Upload"

var agentLabels = map[Agent]string{
	AgentUnknown:            "Unknown",
	AgentResearchSpecialist: "Research Specialist",
	AgentPolicyAnalyst:      "Policy Analyst",
	AgentTechnologist:       "Technologist",
	AgentCommunicator:       "Communicator",
	AgentWebBrowser:         "Web Browser",
	AgentDataProcessing:     "Data Processing",
	AgentSentimentAnalysis:  "Sentiment Analysis",
	AgentRecommendation:     "Recommendation",
	AgentLLMIntegration:     "LLM Integration",
	AgentFileUpload:         FileUploadLabel,
}

var labelAgents = func() map[string]Agent {
	m := make(map[string]Agent, len(agentLabels))
	for a, label := range agentLabels {
		if a == AgentUnknown {
			continue
		}
		m[label] = a
	}
	return m
}()

// ParseAgent maps a label to its Agent. Unrecognized labels are not an
// error; they resolve to AgentUnknown.
func ParseAgent(label string) Agent {
	if a, ok := labelAgents[label]; ok {
		return a
	}
	return AgentUnknown
}

// Label returns the canonical display label
func (a Agent) Label() string {
	if label, ok := agentLabels[a]; ok {
		return label
	}
	return agentLabels[AgentUnknown]
}

// String implements fmt.Stringer
func (a Agent) String() string {
	return a.Label()
}

// Known reports whether a is one of the enumerated identities
func (a Agent) Known() bool {
	return a != AgentUnknown && agentLabels[a] != ""
}

// SelectableAgents returns the agents a research job can be started with,
// in form order.
func SelectableAgents() []Agent {
	return []Agent{
		AgentResearchSpecialist,
		AgentPolicyAnalyst,
		AgentTechnologist,
		AgentCommunicator,
		AgentWebBrowser,
		AgentRecommendation,
		AgentLLMIntegration,
	}
}
