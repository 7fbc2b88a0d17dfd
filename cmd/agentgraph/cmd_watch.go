package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/metrics"
	"github.com/dd0wney/agentgraph/pkg/server"
	"github.com/dd0wney/agentgraph/pkg/session"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the interactive graph view",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	s, err := session.New(cfg, session.Deps{Logger: logger, Metrics: reg})
	if err != nil {
		return err
	}

	logger.Info("Starting agentgraph",
		logging.String("server_url", cfg.ServerURL),
		logging.Transport(cfg.Channel.Transport),
		logging.Address(cfg.Channel.Address))

	if cfg.MetricsAddr == "" {
		return s.Run(ctx)
	}

	// The metrics endpoint lives exactly as long as the session
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	metricsSrv := server.NewGracefulServer(cfg.MetricsAddr, reg.Handler(), logger)
	g.Go(func() error {
		return metricsSrv.Run(runCtx)
	})
	g.Go(func() error {
		defer cancel()
		return s.Run(runCtx)
	})
	return g.Wait()
}
