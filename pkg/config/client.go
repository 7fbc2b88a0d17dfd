package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// Push-channel transports
const (
	TransportWebSocket = "websocket"
	TransportNNG       = "nng"
)

// ClientConfig configures the agentgraph terminal client
type ClientConfig struct {
	ServerURL   string           `yaml:"server_url" validate:"required,url"`
	Channel     ChannelConfig    `yaml:"channel"`
	Canvas      CanvasConfig     `yaml:"canvas"`
	NodeRadius  float64          `yaml:"node_radius" validate:"gt=0"`
	Simulation  SimulationConfig `yaml:"simulation"`
	LogLevel    string           `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFile     string           `yaml:"log_file" validate:"required"`
	MetricsAddr string           `yaml:"metrics_addr"`
	DefaultLLM  string           `yaml:"default_llm" validate:"oneof=openai claude ollama"`
}

// ChannelConfig selects and addresses the push channel
type ChannelConfig struct {
	Transport string      `yaml:"transport" validate:"oneof=websocket nng"`
	Address   string      `yaml:"address" validate:"required"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig is the reconnect backoff
type RetryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" validate:"gt=0"`
	MaxDelay     time.Duration `yaml:"max_delay" validate:"gtefield=InitialDelay"`
	Multiplier   float64       `yaml:"multiplier" validate:"gte=1"`
	// MaxAttempts of 0 retries forever
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0"`
}

// CanvasConfig is the layout canvas in world units
type CanvasConfig struct {
	Width  float64 `yaml:"width" validate:"gt=0"`
	Height float64 `yaml:"height" validate:"gt=0"`
}

// SimulationConfig tunes the force layout
type SimulationConfig struct {
	LinkDistance    float64       `yaml:"link_distance" validate:"gt=0"`
	ChargeStrength  float64       `yaml:"charge_strength" validate:"lt=0"`
	AlphaMin        float64       `yaml:"alpha_min" validate:"gt=0,lt=1"`
	VelocityDecay   float64       `yaml:"velocity_decay" validate:"gt=0,lte=1"`
	DragAlphaTarget float64       `yaml:"drag_alpha_target" validate:"gte=0,lte=1"`
	TickInterval    time.Duration `yaml:"tick_interval" validate:"gt=0"`
	// WarmStart seeds each new generation with the previous settled positions
	// instead of restarting the layout from scratch.
	WarmStart bool `yaml:"warm_start"`
}

// DefaultClientConfig returns the built-in client defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL: "http://localhost:5000",
		Channel: ChannelConfig{
			Transport: TransportWebSocket,
			Address:   "ws://localhost:5000/ws",
			Retry: RetryConfig{
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     30 * time.Second,
				Multiplier:   2,
			},
		},
		Canvas:     CanvasConfig{Width: 800, Height: 400},
		NodeRadius: 20,
		Simulation: SimulationConfig{
			LinkDistance:    100,
			ChargeStrength:  -200,
			AlphaMin:        0.001,
			VelocityDecay:   0.4,
			DragAlphaTarget: 0.3,
			TickInterval:    time.Second / 60,
		},
		LogLevel:   "info",
		LogFile:    filepath.Join(HomeDir(), "agentgraph.log"),
		DefaultLLM: "openai",
	}
}

// DefaultClientPath is where LoadClient looks when no path is given
func DefaultClientPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// LoadClient builds the client configuration from defaults, the YAML file at
// path and the environment, in increasing precedence. An empty path reads
// DefaultClientPath if it exists; an explicit path must exist.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultClientPath()
	}
	if err := decodeFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load client config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("load client config: %w", err)
	}
	cfg.LogLevel = normalizeLevel(cfg.LogLevel)
	if err := check(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ClientConfig) applyEnv() error {
	envString(&c.ServerURL, "AGENTGRAPH_SERVER_URL")
	envString(&c.Channel.Transport, "AGENTGRAPH_TRANSPORT")
	envString(&c.Channel.Address, "AGENTGRAPH_CHANNEL_ADDRESS")
	envString(&c.LogLevel, "LOG_LEVEL")
	envString(&c.LogFile, "AGENTGRAPH_LOG_FILE")
	envString(&c.MetricsAddr, "AGENTGRAPH_METRICS_ADDR")
	envString(&c.DefaultLLM, "AGENTGRAPH_DEFAULT_LLM")
	return envBool(&c.Simulation.WarmStart, "AGENTGRAPH_WARM_START")
}
