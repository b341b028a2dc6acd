package cmd

// Observe never signals the target. It only reads its state.

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/slowdown/internal/config"
	"github.com/psantana5/slowdown/internal/observe"
)

var (
	observeDuration time.Duration
	observeInterval time.Duration
	observeJSON     bool
)

// observeCmd samples a process's job-control state
var observeCmd = &cobra.Command{
	Use:   "observe <pid>",
	Short: "Measure how much of the time a process is stopped",
	Long: `Samples the state of a process at a fixed interval and reports the share of
samples that found it stopped. Run it next to slowdown to check that the
observed stopped fraction matches pause_percent.`,
	Args: cobra.ExactArgs(1),
	RunE: runObserve,
}

func init() {
	rootCmd.AddCommand(observeCmd)

	observeCmd.Flags().DurationVar(&observeDuration, "duration", 10*time.Second, "sampling window")
	observeCmd.Flags().DurationVar(&observeInterval, "interval", 10*time.Millisecond, "time between samples")
	observeCmd.Flags().BoolVar(&observeJSON, "json", false, "print the result as JSON")
}

type observeResult struct {
	*observe.Sample
	StoppedFraction float64 `json:"stopped_fraction"`
}

func runObserve(cmd *cobra.Command, args []string) error {
	pid, err := config.ParsePID(args[0])
	if err != nil {
		return err
	}
	if observeDuration <= 0 || observeInterval <= 0 {
		return fmt.Errorf("duration and interval must be positive")
	}

	w, err := observe.New(pid)
	if err != nil {
		return err
	}

	sample, err := w.Sample(cmd.Context(), observeInterval, observeDuration)
	if err != nil {
		return fmt.Errorf("failed to sample process %d: %w", pid, err)
	}

	out := cmd.OutOrStdout()
	if observeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(observeResult{Sample: sample, StoppedFraction: sample.StoppedFraction()})
	}

	table := tablewriter.NewWriter(out)
	table.Header("PID", "Samples", "Stopped", "Running", "Stopped %", "Elapsed", "Exited")
	table.Append([]string{
		fmt.Sprintf("%d", sample.PID),
		fmt.Sprintf("%d", sample.Samples),
		fmt.Sprintf("%d", sample.Stopped),
		fmt.Sprintf("%d", sample.Running),
		fmt.Sprintf("%.1f", 100*sample.StoppedFraction()),
		sample.Elapsed.Round(time.Millisecond).String(),
		fmt.Sprintf("%t", sample.Gone),
	})
	return table.Render()
}
