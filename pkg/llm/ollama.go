package llm

import (
	"context"
	"fmt"
	"strings"
)

// OllamaClient talks to a local Ollama server's generate endpoint
type OllamaClient struct {
	endpoint
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (c *OllamaClient) Name() string { return KindOllama }

// Complete runs a non-streaming generate request
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := ollamaRequest{
		Model:   c.model,
		Prompt:  prompt,
		Options: ollamaOptions{NumPredict: c.maxTokens},
	}

	var resp ollamaResponse
	if err := c.postJSON(ctx, KindOllama, c.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}
	return strings.TrimSpace(resp.Response), nil
}
