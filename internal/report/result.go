package report

import (
	"log/slog"
	"time"
)

// Result is the immutable summary of one throttling session.
type Result struct {
	SessionID    string `json:"session_id"`
	PID          int    `json:"pid"`
	PausePercent int    `json:"pause_percent"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ns"`

	Ticks       uint64 `json:"ticks"`
	PausedTicks uint64 `json:"paused_ticks"`
	Stops       uint64 `json:"stops"`
	Continues   uint64 `json:"continues"`
	Failures    uint64 `json:"failures"`

	// ExitError is set when the final resume failed and the target may
	// have been left stopped.
	ExitError string `json:"exit_error,omitempty"`
}

// PausedFraction is the share of ticks that ended with the target paused.
func (r *Result) PausedFraction() float64 {
	if r.Ticks == 0 {
		return 0
	}
	return float64(r.PausedTicks) / float64(r.Ticks)
}

// SetExitError records a failed final resume. Call this ONCE.
func (r *Result) SetExitError(err error) {
	if err != nil {
		r.ExitError = err.Error()
	}
}

// LogSummary emits a one-line summary of the session.
func (r *Result) LogSummary(logger *slog.Logger) {
	attrs := []any{
		"session", r.SessionID,
		"pid", r.PID,
		"pause_percent", r.PausePercent,
		"runtime", r.Duration.Round(time.Millisecond).String(),
		"ticks", r.Ticks,
		"paused_fraction", r.PausedFraction(),
		"stops", r.Stops,
		"continues", r.Continues,
		"failures", r.Failures,
	}

	if r.ExitError != "" {
		logger.Error("Session ended with target possibly left stopped", append(attrs, "error", r.ExitError)...)
		return
	}
	logger.Info("Session ended", attrs...)
}
