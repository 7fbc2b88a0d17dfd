package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dd0wney/agentgraph/pkg/config"
)

// Provider kinds accepted by NewProvider
const (
	KindOpenAI = "openai"
	KindClaude = "claude"
	KindOllama = "ollama"
)

// DefaultMaxTokens bounds a completion when the configuration leaves it unset
const DefaultMaxTokens = 150

// ErrMissingAPIKey is returned when a hosted provider has no key configured
var ErrMissingAPIKey = errors.New("api key not configured")

// Provider completes a single prompt
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Name is the provider kind, used in messages and logs
	Name() string
}

// APIError is a non-200 answer from a provider
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.Status, e.Body)
}

// endpoint is the connection detail every client shares
type endpoint struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func newEndpoint(baseURL, apiKey, model string, cfg config.LLMConfig) endpoint {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return endpoint{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewProvider builds the client for kind from the server's LLM settings.
// Hosted providers without an API key are rejected up front.
func NewProvider(kind string, cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(kind) {
	case KindOpenAI, "":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
		}
		return &OpenAIClient{endpoint: newEndpoint(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg)}, nil
	case KindClaude:
		if cfg.ClaudeAPIKey == "" {
			return nil, fmt.Errorf("claude: %w", ErrMissingAPIKey)
		}
		return &ClaudeClient{endpoint: newEndpoint(cfg.ClaudeBaseURL, cfg.ClaudeAPIKey, cfg.ClaudeModel, cfg)}, nil
	case KindOllama:
		return &OllamaClient{endpoint: newEndpoint(cfg.OllamaURL, "", cfg.OllamaModel, cfg)}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", kind)
	}
}
