package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dd0wney/agentgraph/pkg/config"
	"github.com/dd0wney/agentgraph/pkg/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentgraph",
	Short: "Watch research agents work as a live force-directed graph",
	Long: `agentgraph connects to a research server's push channel and draws every
agent update as a node in a force-directed path graph, newest last.

Running agentgraph without a subcommand starts the interactive view.`,
	SilenceUsage: true,
	RunE:         runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default "+config.DefaultClientPath()+")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openLogger logs to the configured file; the terminal belongs to the UI
func openLogger(cfg *config.ClientConfig) (logging.Logger, io.Closer, error) {
	logger, closer, err := logging.NewFileLogger(cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logger.With(logging.String("service", "agentgraph")), closer, nil
}
