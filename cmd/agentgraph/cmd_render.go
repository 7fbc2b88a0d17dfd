package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/graph"
	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/render"
	"github.com/dd0wney/agentgraph/pkg/session"
	"github.com/dd0wney/agentgraph/pkg/visualization"
)

const (
	formatSVG  = "svg"
	formatJSON = "json"
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	renderCmd.Flags().String("format", formatSVG, "output format: svg or json")
	renderCmd.Flags().Bool("fit", false, "scale the layout to fill the canvas")
	renderCmd.Flags().Int("max-ticks", 1000, "stop the simulation after this many ticks")
}

var renderCmd = &cobra.Command{
	Use:   "render <frames-file>",
	Short: "Lay out a recorded event stream and export it",
	Long: `render reads agent_update frames, one JSON envelope per line, settles the
force layout headlessly and writes the final frame as SVG or JSON.
Malformed lines are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	format, _ := cmd.Flags().GetString("format")
	if format != formatSVG && format != formatJSON {
		return fmt.Errorf("unknown format %q (want svg or json)", format)
	}
	output, _ := cmd.Flags().GetString("output")
	fit, _ := cmd.Flags().GetBool("fit")
	maxTicks, _ := cmd.Flags().GetInt("max-ticks")

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	log, skipped, err := readFrames(f)
	if err != nil {
		return err
	}
	if skipped > 0 {
		logger.Warn("Skipped malformed frames", logging.Path(args[0]), logging.Count(skipped))
	}

	g := graph.Build(log.Events())
	sim := visualization.NewSimulation(g, session.OptionsFromConfig(cfg).Simulation, nil)
	ticks := sim.Settle(maxTicks)
	logger.Info("Layout settled", logging.Count(len(g.Nodes)), logging.Int("ticks", ticks))

	var out bytes.Buffer
	switch format {
	case formatJSON:
		frame := sim.Snapshot(1, render.ColorOf)
		b, err := frame.ExportJSON()
		if err != nil {
			return err
		}
		out.Write(b)
		out.WriteByte('\n')
	default:
		scene := render.NewScene(cfg.Canvas.Width, cfg.Canvas.Height)
		scene.Radius = cfg.NodeRadius
		scene.Reset(g)
		scene.Sync(sim.Nodes())
		if err := render.WriteSVG(&out, scene, render.SVGOptions{Fit: fit, Padding: 2 * cfg.NodeRadius}); err != nil {
			return err
		}
	}

	if output == "-" {
		_, err = cmd.OutOrStdout().Write(out.Bytes())
		return err
	}
	return os.WriteFile(output, out.Bytes(), 0o644)
}

// readFrames appends every well-formed frame in r to a new log
func readFrames(r io.Reader) (*events.Log, int, error) {
	log := events.NewLog()
	skipped := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 4<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := events.DecodeFrame(line)
		if err != nil {
			if errors.Is(err, events.ErrMalformedFrame) || errors.Is(err, events.ErrUnsupportedType) {
				skipped++
				continue
			}
			return nil, 0, err
		}
		log.Append(ev)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("read frames: %w", err)
	}
	return log, skipped, nil
}
