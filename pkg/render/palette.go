package render

import "github.com/dd0wney/agentgraph/pkg/events"

// DefaultColor fills any node whose agent has no palette entry
const DefaultColor = "#17becf"

// Edge stroke
const (
	EdgeColor = "#999"
	EdgeWidth = 2
)

// NodeRadius is the fixed circle radius in canvas units
const NodeRadius = 20

var palette = map[events.Agent]string{
	events.AgentResearchSpecialist: "#ff7f0e",
	events.AgentPolicyAnalyst:      "#2ca02c",
	events.AgentTechnologist:       "#1f77b4",
	events.AgentCommunicator:       "#d62728",
	events.AgentWebBrowser:         "#9467bd",
	events.AgentDataProcessing:     "#8c564b",
	events.AgentSentimentAnalysis:  "#e377c2",
	events.AgentRecommendation:     "#7f7f7f",
	events.AgentLLMIntegration:     "#bcbd22",
}

// ColorOf returns the fill colour for an agent label. Labels outside the
// palette, including ones the client has never seen, get DefaultColor.
func ColorOf(agent string) string {
	return AgentColor(events.ParseAgent(agent))
}

// AgentColor returns the fill colour for a parsed agent
func AgentColor(a events.Agent) string {
	if c, ok := palette[a]; ok {
		return c
	}
	return DefaultColor
}
