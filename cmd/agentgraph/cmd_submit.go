package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/agentgraph/pkg/dispatch"
	"github.com/dd0wney/agentgraph/pkg/events"
)

const requestTimeout = 60 * time.Second

func init() {
	rootCmd.AddCommand(submitCmd, uploadCmd)

	submitCmd.Flags().StringSlice("agents", nil, "agents to run, e.g. \"Research Specialist,Technologist\" (default all)")
	submitCmd.Flags().String("llm", "", "LLM provider for LLM Integration: openai, claude or ollama")
}

var submitCmd = &cobra.Command{
	Use:   "submit <topic>",
	Short: "Start a research job without opening the view",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmit,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file for Data Processing and Sentiment Analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	agents, _ := cmd.Flags().GetStringSlice("agents")
	if len(agents) == 0 {
		for _, a := range events.SelectableAgents() {
			agents = append(agents, a.Label())
		}
	}
	for _, a := range agents {
		if !events.ParseAgent(a).Known() {
			return fmt.Errorf("unknown agent %q", a)
		}
	}

	llmName, _ := cmd.Flags().GetString("llm")
	if llmName == "" {
		llmName = cfg.DefaultLLM
	}
	llm, err := dispatch.ParseLLMType(llmName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	d := dispatch.NewController(cfg.ServerURL, nil, dispatch.WithLogger(logger))
	resp, err := d.SubmitJob(ctx, dispatch.JobRequest{
		Topic:   strings.Join(args, " "),
		Agents:  agents,
		LLMType: llm,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	if resp.JobID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "job: %s\n", resp.JobID)
	}
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	d := dispatch.NewController(cfg.ServerURL, nil, dispatch.WithLogger(logger))
	ev, err := d.UploadFile(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ev.Message)
	return nil
}
