package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stampede-load/stampede/internal/config"
	"github.com/stampede-load/stampede/internal/engine"
	"github.com/stampede-load/stampede/internal/report"
)

// errFailed maps a failed verdict or an incomplete run to exit code 1. The
// summary already reported the outcome, so Execute suppresses the message.
var errFailed = errors.New("run failed")

var runCmd = &cobra.Command{
	Use:   "run <config-file>",
	Short: "Execute a load test and report the verdict",
	Long: `Execute the scenario described by a YAML config file.

The process exits 0 when every threshold passes and 1 otherwise, so the
command can gate CI pipelines directly:

  stampede run scenarios/listing-search.yaml --out result.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTest(cmd, args[0])
	},
}

func init() {
	runCmd.Flags().String("out", "", "write the JSON result document to this path")
	runCmd.Flags().Bool("quiet", false, "only print the final verdict")
	runCmd.Flags().Int("vus", 0, "override the scenario with a flat profile of this many VUs")
	runCmd.Flags().Duration("duration", 0, "hold the --vus override for this long (default 1m)")
}

func runTest(cmd *cobra.Command, path string) error {
	outPath, _ := cmd.Flags().GetString("out")
	quiet, _ := cmd.Flags().GetBool("quiet")
	vus, _ := cmd.Flags().GetInt("vus")
	duration, _ := cmd.Flags().GetDuration("duration")

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if vus > 0 {
		if duration <= 0 {
			duration = time.Minute
		}
		cfg.Scenario.StartVUs = vus
		cfg.Scenario.Stages = []config.StageConfig{
			{Duration: config.Duration(duration), Target: vus},
		}
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	if !quiet {
		go printProgress(ctx, eng, done)
	} else {
		close(done)
	}

	result, runErr := eng.Run(ctx)
	stop()
	<-done

	if result == nil {
		return runErr
	}

	console := report.NewConsole(os.Stdout, quiet)
	console.PrintSummary(result)

	if outPath != "" {
		if err := result.WriteJSONFile(outPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing result: %v\n", err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Run did not complete cleanly: %v\n", runErr)
		return errFailed
	}
	if !result.Passed {
		return errFailed
	}
	return nil
}

// printProgress emits a one-line status every second until the run ends.
func printProgress(ctx context.Context, eng *engine.Engine, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !eng.IsRunning() {
				return
			}
			stats := eng.Stats()
			fmt.Fprintf(os.Stderr, "elapsed=%s vus=%d target=%d iterations=%d stage=%d/%d\n",
				stats.Elapsed.Truncate(time.Second), stats.ActiveVUs, stats.TargetVUs,
				stats.Iterations, stats.CurrentStage+1, stats.TotalStages)
		}
	}
}
