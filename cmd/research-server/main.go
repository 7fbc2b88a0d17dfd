package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/agentgraph/pkg/config"
	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/metrics"
	"github.com/dd0wney/agentgraph/pkg/research"
	"github.com/dd0wney/agentgraph/pkg/server"
	tlsconfig "github.com/dd0wney/agentgraph/pkg/tls"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const systemMetricsInterval = 15 * time.Second

var configPath string

var rootCmd = &cobra.Command{
	Use:          "research-server",
	Short:        "Run research agents and push their updates to agentgraph clients",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, WebSocket hub and NNG publisher",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "research-server %s (%s)\n", version, runtime.Version())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (YAML)")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel)).
		With(logging.String("service", "research-server"), logging.String("version", version))
	logging.SetDefaultLogger(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.DefaultRegistry()
	s, err := research.Build(ctx, *cfg, logger, reg)
	if err != nil {
		return err
	}

	httpSrv := server.NewGracefulServer(cfg.ListenAddr, s.Handler(), logger)
	httpSrv.OnShutdown(s.Close)
	httpSrv.SetConfigReloadFunc(func() error {
		reloaded, err := config.LoadServer(configPath)
		if err != nil {
			return err
		}
		level := logging.ParseLevel(reloaded.LogLevel)
		logger.SetLevel(level)
		logger.Info("Log level reloaded", logging.String("level", level.String()))
		return nil
	})

	tlsCfg, err := tlsconfig.ServerConfig(cfg.TLS)
	if err != nil {
		s.Close(context.Background())
		return err
	}
	if tlsCfg != nil {
		httpSrv.SetTLSConfig(tlsCfg)
		if info, err := tlsconfig.Describe(tlsCfg); err == nil {
			logger.Info("Serving TLS",
				logging.String("subject", info.Subject),
				logging.Duration("expires_in", info.ExpiresIn()))
		}
	}

	logger.Info("Starting research server",
		logging.Address(cfg.ListenAddr),
		logging.String("nng_addr", cfg.NNGAddr),
		logging.String("storage", cfg.Storage.Backend),
		logging.Int64("max_concurrent_jobs", cfg.MaxConcurrentJobs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpSrv.Run(gctx)
	})
	g.Go(func() error {
		reportSystemMetrics(gctx, reg)
		return nil
	})

	err = g.Wait()
	logger.Info("Research server stopped")
	return err
}

func reportSystemMetrics(ctx context.Context, reg *metrics.Registry) {
	start := time.Now()
	t := time.NewTicker(systemMetricsInterval)
	defer t.Stop()
	for {
		reg.UpdateSystemMetrics(start)
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
}
