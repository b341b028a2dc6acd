package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/psantana5/slowdown/internal/throttle"
)

// Defaults
const (
	DefaultPausePercent = 50
	DefaultTick         = 10 * time.Millisecond
	DefaultStopSignal   = "STOP"
	DefaultLogLevel     = "warn"
	DefaultLogFormat    = "text"

	EnvPrefix = "SLOWDOWN"
)

// Config is the complete configuration of a throttling session.
type Config struct {
	PID          int           `mapstructure:"pid" yaml:"pid,omitempty" validate:"gt=0,lte=2147483647"`
	PausePercent int           `mapstructure:"pause_percent" yaml:"pause_percent" validate:"gte=0,lte=100"`
	Tick         time.Duration `mapstructure:"tick" yaml:"tick" validate:"gt=0"`
	StopSignal   string        `mapstructure:"stop_signal" yaml:"stop_signal" validate:"oneof=STOP TSTP"`
	Seed         uint64        `mapstructure:"seed" yaml:"seed,omitempty"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat    string        `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
	MetricsAddr  string        `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
}

// MarshalYAML renders Tick as a duration string instead of nanoseconds.
func (c Config) MarshalYAML() (any, error) {
	return struct {
		PID          int    `yaml:"pid,omitempty"`
		PausePercent int    `yaml:"pause_percent"`
		Tick         string `yaml:"tick"`
		StopSignal   string `yaml:"stop_signal"`
		Seed         uint64 `yaml:"seed,omitempty"`
		LogLevel     string `yaml:"log_level"`
		LogFormat    string `yaml:"log_format"`
		MetricsAddr  string `yaml:"metrics_addr,omitempty"`
	}{
		PID:          c.PID,
		PausePercent: c.PausePercent,
		Tick:         c.Tick.String(),
		StopSignal:   c.StopSignal,
		Seed:         c.Seed,
		LogLevel:     c.LogLevel,
		LogFormat:    c.LogFormat,
		MetricsAddr:  c.MetricsAddr,
	}, nil
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("pause_percent", DefaultPausePercent)
	v.SetDefault("tick", DefaultTick)
	v.SetDefault("stop_signal", DefaultStopSignal)
	v.SetDefault("seed", 0)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("metrics_addr", "")
}

// Init wires defaults, SLOWDOWN_* environment variables and the config
// file into v. Without an explicit path, $HOME/.slowdown/config.yaml is
// read if it exists.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil // no home, no default config file
		}
		v.AddConfigPath(filepath.Join(home, ".slowdown"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return throttle.NewError(throttle.InvalidArgument, "config", 0, "failed to read config file", err)
	}
	return nil
}

// Load builds a validated Config from v and the positional arguments
// `<pid> [pause_percent]`. Positional values win over v.
func Load(v *viper.Viper, args []string) (*Config, error) {
	cfg, err := Effective(v)
	if err != nil {
		return nil, err
	}

	if len(args) < 1 {
		return nil, throttle.NewError(throttle.InvalidArgument, "parse", 0,
			"run with the PID of the program to slow down", nil)
	}
	if len(args) > 2 {
		return nil, throttle.NewError(throttle.InvalidArgument, "parse", 0,
			fmt.Sprintf("expected at most 2 arguments, got %d", len(args)), nil)
	}

	pid, err := ParsePID(args[0])
	if err != nil {
		return nil, err
	}
	cfg.PID = pid

	if len(args) == 2 {
		percent, err := ParsePausePercent(args[1])
		if err != nil {
			return nil, err
		}
		cfg.PausePercent = percent
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Effective returns the normalized configuration held by v, without a
// target and without validation.
func Effective(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, throttle.NewError(throttle.InvalidArgument, "config", 0, "failed to parse configuration", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.StopSignal = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(c.StopSignal)), "SIG")
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Example configuration as a string
const ExampleConfig = `# slowdown configuration
# Every key can also be set with a SLOWDOWN_<KEY> environment variable,
# e.g. SLOWDOWN_PAUSE_PERCENT=75.

# Percentage of ticks the target spends stopped when no pause_percent
# argument is given on the command line (0-100).
pause_percent: 50

# Decision period. Each tick draws once and signals only on a change.
tick: "10ms"

# Pause signal: STOP cannot be caught by the target, TSTP can.
# Both are undone with CONT.
stop_signal: STOP

# PRNG seed; 0 seeds from the current time.
seed: 0

# Diagnostics go to stderr. warn keeps normal operation silent.
log_level: warn
log_format: text   # text | json

# Serve /metrics, /healthz and /failures here. Empty disables it.
metrics_addr: ""
`
