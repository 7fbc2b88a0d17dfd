package llm

import (
	"context"
	"fmt"
	"strings"
)

// OpenAIClient talks to an OpenAI-compatible chat completions API
type OpenAIClient struct {
	endpoint
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Name() string { return KindOpenAI }

// Complete sends prompt as a single user message
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := openAIRequest{
		Model:     c.model,
		Messages:  []openAIMessage{{Role: "user", Content: prompt}},
		MaxTokens: c.maxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp openAIResponse
	if err := c.postJSON(ctx, KindOpenAI, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
