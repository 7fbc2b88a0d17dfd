package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Upload storage backends
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// ServerConfig configures research-server
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"required"`
	// NNGAddr is the mangos PUB listen address; empty disables NNG broadcast
	NNGAddr           string        `yaml:"nng_addr"`
	UploadDir         string        `yaml:"upload_dir" validate:"required"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes" validate:"gt=0"`
	Storage           StorageConfig `yaml:"storage"`
	MaxConcurrentJobs int64         `yaml:"max_concurrent_jobs" validate:"gte=1"`
	StepDelay         time.Duration `yaml:"step_delay" validate:"gte=0"`
	LLM               LLMConfig     `yaml:"llm"`
	LogLevel          string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	CORSOrigins       []string      `yaml:"cors_origins"`
	WikipediaURL      string        `yaml:"wikipedia_url" validate:"required,url"`
	TLS               TLSConfig     `yaml:"tls"`
}

// TLSConfig serves the API and push channel over HTTPS and WSS. Without a
// certificate pair a self-signed certificate for Hosts is generated at start.
type TLSConfig struct {
	Enabled  bool          `yaml:"enabled"`
	CertFile string        `yaml:"cert_file" validate:"required_with=KeyFile"`
	KeyFile  string        `yaml:"key_file" validate:"required_with=CertFile"`
	Hosts    []string      `yaml:"hosts"`
	ValidFor time.Duration `yaml:"valid_for" validate:"gte=0"`
}

// StorageConfig selects where uploads are kept
type StorageConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=local s3"`
	Bucket    string `yaml:"bucket" validate:"required_if=Backend s3"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// LLMConfig holds provider credentials and models for the LLM Integration agent
type LLMConfig struct {
	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url" validate:"required,url"`
	OpenAIModel   string        `yaml:"openai_model" validate:"required"`
	ClaudeAPIKey  string        `yaml:"claude_api_key"`
	ClaudeBaseURL string        `yaml:"claude_base_url" validate:"required,url"`
	ClaudeModel   string        `yaml:"claude_model" validate:"required"`
	OllamaURL     string        `yaml:"ollama_url" validate:"required,url"`
	OllamaModel   string        `yaml:"ollama_model" validate:"required"`
	MaxTokens     int           `yaml:"max_tokens" validate:"gt=0"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
}

// DefaultServerConfig returns the built-in server defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:        ":5000",
		NNGAddr:           "tcp://127.0.0.1:5001",
		UploadDir:         filepath.Join(HomeDir(), "uploads"),
		MaxUploadBytes:    32 << 20,
		Storage:           StorageConfig{Backend: StorageLocal, Region: "us-east-1"},
		MaxConcurrentJobs: 4,
		StepDelay:         time.Second,
		LLM: LLMConfig{
			OpenAIBaseURL: "https://api.openai.com/v1",
			OpenAIModel:   "gpt-3.5-turbo",
			ClaudeBaseURL: "https://api.anthropic.com/v1",
			ClaudeModel:   "claude-3-haiku-20240307",
			OllamaURL:     "http://localhost:11434",
			OllamaModel:   "llama2",
			MaxTokens:     150,
			Timeout:       60 * time.Second,
		},
		LogLevel:     "info",
		CORSOrigins:  []string{"*"},
		WikipediaURL: "https://en.wikipedia.org/wiki/",
		TLS: TLSConfig{
			Hosts:    []string{"localhost", "127.0.0.1"},
			ValidFor: 365 * 24 * time.Hour,
		},
	}
}

// LoadServer builds the server configuration from defaults, the optional
// YAML file at path and the environment, in increasing precedence.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("load server config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	cfg.LogLevel = normalizeLevel(cfg.LogLevel)
	if err := check(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ServerConfig) applyEnv() error {
	envString(&c.ListenAddr, "RESEARCH_LISTEN_ADDR")
	envString(&c.NNGAddr, "RESEARCH_NNG_ADDR")
	envString(&c.UploadDir, "RESEARCH_UPLOAD_DIR")
	envString(&c.LogLevel, "LOG_LEVEL")
	envList(&c.CORSOrigins, "RESEARCH_CORS_ORIGINS")

	envString(&c.Storage.Backend, "RESEARCH_STORAGE_BACKEND")
	envString(&c.Storage.Bucket, "RESEARCH_S3_BUCKET")
	envString(&c.Storage.Endpoint, "RESEARCH_S3_ENDPOINT")
	envString(&c.Storage.Region, "AWS_REGION")
	envString(&c.Storage.AccessKey, "AWS_ACCESS_KEY_ID")
	envString(&c.Storage.SecretKey, "AWS_SECRET_ACCESS_KEY")

	envString(&c.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	envString(&c.LLM.OpenAIBaseURL, "OPENAI_BASE_URL")
	envString(&c.LLM.ClaudeAPIKey, "CLAUDE_API_KEY")
	envString(&c.LLM.OllamaURL, "OLLAMA_URL")

	envString(&c.TLS.CertFile, "RESEARCH_TLS_CERT_FILE")
	envString(&c.TLS.KeyFile, "RESEARCH_TLS_KEY_FILE")
	if err := envBool(&c.TLS.Enabled, "RESEARCH_TLS"); err != nil {
		return err
	}

	if err := envInt64(&c.MaxConcurrentJobs, "RESEARCH_MAX_CONCURRENT_JOBS"); err != nil {
		return err
	}
	return envDuration(&c.StepDelay, "RESEARCH_STEP_DELAY")
}
