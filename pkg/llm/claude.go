package llm

import (
	"context"
	"fmt"
	"strings"
)

// anthropicVersion is sent with every messages request
const anthropicVersion = "2023-06-01"

// ClaudeClient talks to the Anthropic messages API
type ClaudeClient struct {
	endpoint
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *ClaudeClient) Name() string { return KindClaude }

// Complete joins the text blocks of the reply
func (c *ClaudeClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := claudeRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp claudeResponse
	if err := c.postJSON(ctx, KindClaude, c.baseURL+"/messages", headers, req, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("claude: no text in response")
	}
	return strings.TrimSpace(b.String()), nil
}
