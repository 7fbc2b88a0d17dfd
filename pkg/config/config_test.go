package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigsValidate(t *testing.T) {
	assert.NoError(t, check(DefaultClientConfig()))
	assert.NoError(t, check(DefaultServerConfig()))
}

func TestLoadClient_FileAndDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeFile(t, `
server_url: http://research.local:8080
channel:
  transport: nng
  address: tcp://research.local:5001
  retry:
    initial_delay: 250ms
    max_delay: 5s
simulation:
  warm_start: true
  tick_interval: 20ms
`)

	cfg, err := LoadClient(path)
	require.NoError(t, err)

	assert.Equal(t, "http://research.local:8080", cfg.ServerURL)
	assert.Equal(t, TransportNNG, cfg.Channel.Transport)
	assert.Equal(t, "tcp://research.local:5001", cfg.Channel.Address)
	assert.Equal(t, 250*time.Millisecond, cfg.Channel.Retry.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.Channel.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Channel.Retry.Multiplier, "unset keys keep defaults")
	assert.True(t, cfg.Simulation.WarmStart)
	assert.Equal(t, 20*time.Millisecond, cfg.Simulation.TickInterval)
	assert.Equal(t, 800.0, cfg.Canvas.Width)
	assert.Equal(t, -200.0, cfg.Simulation.ChargeStrength)
}

func TestLoadClient_MissingDefaultFileIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadClient("")
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig(), *cfg)
}

func TestLoadClient_MissingExplicitFile(t *testing.T) {
	_, err := LoadClient(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadClient_UnknownKey(t *testing.T) {
	path := writeFile(t, "server_ur1: http://typo\n")

	_, err := LoadClient(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_ur1")
}

func TestLoadClient_EnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeFile(t, "server_url: http://from-file:5000\n")
	t.Setenv("AGENTGRAPH_SERVER_URL", "http://from-env:5000")
	t.Setenv("AGENTGRAPH_WARM_START", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:5000", cfg.ServerURL)
	assert.True(t, cfg.Simulation.WarmStart)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadClient_LogLevelSpellings(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"DEBUG", "debug"},
		{" Info ", "info"},
		{"warning", "warn"},
		{"Error", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv("LOG_LEVEL", tt.env)

			cfg, err := LoadClient("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.LogLevel)

			srv, err := LoadServer("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, srv.LogLevel)
		})
	}
}

func TestLoadClient_BadEnvBool(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AGENTGRAPH_WARM_START", "sometimes")

	_, err := LoadClient("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTGRAPH_WARM_START")
}

func TestLoadClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"transport", "channel:\n  transport: carrier-pigeon\n", "channel.transport"},
		{"backoff order", "channel:\n  retry:\n    initial_delay: 10s\n    max_delay: 1s\n", "channel.retry.max_delay"},
		{"multiplier", "channel:\n  retry:\n    multiplier: 0.5\n", "channel.retry.multiplier"},
		{"canvas", "canvas:\n  width: 0\n", "canvas.width"},
		{"alpha", "simulation:\n  alpha_min: 2\n", "simulation.alpha_min"},
		{"attracting charge", "simulation:\n  charge_strength: 200\n", "simulation.charge_strength"},
		{"log level", "log_level: verbose\n", "log_level"},
		{"llm", "default_llm: gpt\n", "default_llm"},
		{"url", "server_url: not a url\n", "server_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			_, err := LoadClient(writeFile(t, tt.body))
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "invalid config:"), err.Error())
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadServer(t *testing.T) {
	path := writeFile(t, `
listen_addr: ":9000"
nng_addr: ""
storage:
  backend: s3
  bucket: uploads
  endpoint: http://minio:9000
max_concurrent_jobs: 2
step_delay: 0s
`)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CLAUDE_API_KEY", "claude-test")
	t.Setenv("RESEARCH_CORS_ORIGINS", "http://a.local, http://b.local")

	cfg, err := LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Empty(t, cfg.NNGAddr)
	assert.Equal(t, StorageS3, cfg.Storage.Backend)
	assert.Equal(t, "uploads", cfg.Storage.Bucket)
	assert.Equal(t, int64(2), cfg.MaxConcurrentJobs)
	assert.Zero(t, cfg.StepDelay)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAIAPIKey)
	assert.Equal(t, "claude-test", cfg.LLM.ClaudeAPIKey)
	assert.Equal(t, 150, cfg.LLM.MaxTokens)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.CORSOrigins)
}

func TestLoadServer_S3NeedsBucket(t *testing.T) {
	path := writeFile(t, "storage:\n  backend: s3\n")

	_, err := LoadServer(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.bucket")
}

func TestLoadServer_NoFile(t *testing.T) {
	cfg, err := LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.ListenAddr)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
}

func TestLoadServer_TLS(t *testing.T) {
	t.Setenv("RESEARCH_TLS", "true")
	t.Setenv("RESEARCH_TLS_CERT_FILE", "/etc/research/server.crt")
	t.Setenv("RESEARCH_TLS_KEY_FILE", "/etc/research/server.key")

	cfg, err := LoadServer("")
	require.NoError(t, err)
	assert.True(t, cfg.TLS.Enabled)
	assert.Equal(t, "/etc/research/server.crt", cfg.TLS.CertFile)
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, cfg.TLS.Hosts)
}

func TestLoadServer_TLSNeedsBothFiles(t *testing.T) {
	path := writeFile(t, "tls:\n  enabled: true\n  cert_file: server.crt\n")

	_, err := LoadServer(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_file")
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultClientConfig()
	original.Channel.Transport = TransportNNG
	original.Channel.Address = "tcp://127.0.0.1:5001"
	original.Simulation.WarmStart = true

	require.NoError(t, Save(path, original))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not remain")

	loaded, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, original, *loaded)
}
