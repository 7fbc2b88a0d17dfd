package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/agentgraph/pkg/config"
)

func testConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: url + "/v1/",
		OpenAIModel:   "gpt-test",
		ClaudeAPIKey:  "claude-test",
		ClaudeBaseURL: url + "/v1",
		ClaudeModel:   "claude-test-model",
		OllamaURL:     url,
		OllamaModel:   "llama-test",
		Timeout:       5 * time.Second,
	}
}

func TestNewProvider(t *testing.T) {
	cfg := testConfig("http://localhost")

	tests := []struct {
		kind string
		want string
	}{
		{"openai", KindOpenAI},
		{"", KindOpenAI},
		{"Claude", KindClaude},
		{"ollama", KindOllama},
	}
	for _, tt := range tests {
		p, err := NewProvider(tt.kind, cfg)
		require.NoError(t, err, tt.kind)
		assert.Equal(t, tt.want, p.Name())
	}

	_, err := NewProvider("bard", cfg)
	assert.Error(t, err)
}

func TestNewProviderMissingKey(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.OpenAIAPIKey = ""
	cfg.ClaudeAPIKey = ""

	_, err := NewProvider(KindOpenAI, cfg)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = NewProvider(KindClaude, cfg)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	// Ollama runs locally without a key
	_, err = NewProvider(KindOllama, cfg)
	assert.NoError(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  solar is good \n"}}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(KindOpenAI, testConfig(srv.URL))
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), "Solar")
	require.NoError(t, err)
	assert.Equal(t, "solar is good", out)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, openAIMessage{Role: "user", Content: "Solar"}, got.Messages[0])
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(KindOpenAI, testConfig(srv.URL))
	require.NoError(t, err)
	_, err = p.Complete(context.Background(), "x")
	assert.ErrorContains(t, err, "no choices")
}

func TestClaudeComplete(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "claude-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"content":[{"type":"text","text":"Hello"},{"type":"text","text":" world"}]}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxTokens = 42
	p, err := NewProvider(KindClaude, cfg)
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", out)
	assert.Equal(t, 42, got.MaxTokens)
	assert.Equal(t, "claude-test-model", got.Model)
}

func TestOllamaComplete(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"response":"local answer","done":true}`))
	}))
	defer srv.Close()

	p, err := NewProvider(KindOllama, testConfig(srv.URL))
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "local answer", out)
	assert.False(t, got.Stream)
	assert.Equal(t, "llama-test", got.Model)
	assert.Equal(t, DefaultMaxTokens, got.Options.NumPredict)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	for _, kind := range []string{KindOpenAI, KindClaude, KindOllama} {
		p, err := NewProvider(kind, testConfig(srv.URL))
		require.NoError(t, err)

		_, err = p.Complete(context.Background(), "x")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr, kind)
		assert.Equal(t, kind, apiErr.Provider)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Contains(t, apiErr.Error(), "bad key")
	}
}

func TestCompleteContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p, err := NewProvider(KindOllama, testConfig(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Complete(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
