package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tebeka/atexit"

	"github.com/psantana5/slowdown/internal/config"
	"github.com/psantana5/slowdown/internal/driver"
	"github.com/psantana5/slowdown/internal/logging"
	"github.com/psantana5/slowdown/internal/observe"
	"github.com/psantana5/slowdown/internal/report"
	"github.com/psantana5/slowdown/internal/throttle"
)

var (
	cfgFile     string
	tick        time.Duration
	stopSignal  string
	seed        uint64
	logLevel    string
	logFormat   string
	metricsAddr string

	// initErr holds a config file failure from initConfig until a command runs.
	initErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "slowdown <pid> [pause_percent]",
	Short: "Slow a running process down by pausing it at random",
	Long: `slowdown throttles a running process without touching its code. Every tick
it decides at random whether the target should be paused for the next tick,
and sends STOP or CONT only when that decision changes. On average the target
spends pause_percent of its wall-clock time stopped (default 50).

The pid must name a process that exists when slowdown starts, and may not be
slowdown itself. If the target exits later, failed signals are logged and
slowdown keeps running until interrupted.

Press Ctrl-C to stop. The target is always resumed before slowdown exits.`,
	Example: `  slowdown 4242          # pause 4242 half of the time
  slowdown 4242 80       # pause it 80% of the time
  slowdown --tick 50ms 4242 25
  slowdown -- 4242 -5    # after --, values starting with a dash are arguments`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initErr
	},
	RunE: runSlowdown,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.slowdown/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "log format: text or json")

	rootCmd.Flags().DurationVar(&tick, "tick", config.DefaultTick, "decision period")
	rootCmd.Flags().StringVar(&stopSignal, "signal", config.DefaultStopSignal, "pause signal: STOP or TSTP")
	rootCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 seeds from the clock)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("tick", rootCmd.Flags().Lookup("tick"))
	viper.BindPFlag("stop_signal", rootCmd.Flags().Lookup("signal"))
	viper.BindPFlag("seed", rootCmd.Flags().Lookup("seed"))
	viper.BindPFlag("metrics_addr", rootCmd.Flags().Lookup("metrics-addr"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	initErr = config.Init(viper.GetViper(), cfgFile)
}

func runSlowdown(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper(), args)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	logger := logging.New(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel), cfg.LogFormat).
		With("session", sessionID, "pid", cfg.PID)

	if err := checkTarget(cfg.PID); err != nil {
		return err
	}

	sig, err := throttle.ParseStopSignal(cfg.StopSignal)
	if err != nil {
		return err
	}

	metrics := report.NewMetrics(cfg.PausePercent)
	ctrl, err := throttle.New(cfg.PID, cfg.PausePercent,
		throttle.WithStopSignal(sig),
		throttle.WithSeed(cfg.Seed),
		throttle.WithRecorder(metrics),
		throttle.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	// Any atexit.Exit path resumes the target. Terminate is a no-op once
	// the driver has already run it.
	atexit.Register(func() {
		if err := ctrl.Terminate(); err != nil {
			logger.Error("Failed to resume process before exiting", "error", err)
		}
	})

	var server *report.Server
	if cfg.MetricsAddr != "" {
		server, err = report.Serve(cfg.MetricsAddr, metrics, logger)
		if err != nil {
			return err
		}
	}

	d, err := driver.New(ctrl, cfg.Tick, driver.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("Throttling process",
		"pause_percent", cfg.PausePercent,
		"tick", cfg.Tick.String(),
		"signal", sig.String())

	start := time.Now()
	runErr := d.Run(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout())

	result := metrics.Result(sessionID, cfg.PID, cfg.PausePercent, start, time.Now())
	result.SetExitError(runErr)
	result.LogSummary(logger)

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}

	// A failed final resume has been reported; the exit status stays 0.
	return nil
}

// checkTarget rejects PIDs that cannot be throttled before any signal is sent.
func checkTarget(pid int) error {
	if pid == os.Getpid() {
		return throttle.NewError(throttle.InvalidArgument, "check", pid, "refusing to slow down slowdown itself", nil)
	}
	if !observe.Exists(pid) {
		return throttle.NewError(throttle.InvalidArgument, "check", pid, "no such process", nil)
	}
	return nil
}
