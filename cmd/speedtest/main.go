package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/slowdown/internal/speedtest"
)

var (
	interval time.Duration
	period   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "speedtest",
	Short: "Report how fast this process is really running",
	Long: `speedtest increments a counter every interval and, once per period, prints
the increments it managed against the increments it should have managed.
Run it under slowdown to watch the effective speed drop to roughly
100 - pause_percent.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return speedtest.Run(ctx, cmd.OutOrStdout(), interval, period)
	},
}

func init() {
	rootCmd.Flags().DurationVar(&interval, "interval", speedtest.DefaultInterval, "time between increments")
	rootCmd.Flags().DurationVar(&period, "period", speedtest.DefaultPeriod, "reporting period")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
