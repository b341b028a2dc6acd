package observe

// Passive observation only. Watching a target never signals it.

import (
	"context"
	"slices"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/psantana5/slowdown/internal/throttle"
)

// State is the job-control state of a target as seen by the kernel.
type State string

const (
	StateRunning State = "running" // anything that is not stopped
	StateStopped State = "stopped"
	StateGone    State = "gone" // exited or zombie
)

// Exists checks if PID exists
func Exists(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// Watcher reads the state of a single PID.
type Watcher struct {
	pid  int
	proc *process.Process
}

// New creates a watcher for an existing PID.
func New(pid int) (*Watcher, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, throttle.NewError(throttle.InvalidArgument, "observe", pid, "process does not exist", err)
	}
	return &Watcher{pid: pid, proc: proc}, nil
}

// PID returns the watched process id.
func (w *Watcher) PID() int {
	return w.pid
}

// State returns the current state of the process.
func (w *Watcher) State(ctx context.Context) (State, error) {
	statuses, err := w.proc.StatusWithContext(ctx)
	if err != nil {
		if !Exists(w.pid) {
			return StateGone, nil
		}
		return "", err
	}

	if slices.Contains(statuses, process.Zombie) {
		return StateGone, nil
	}
	if slices.Contains(statuses, process.Stop) {
		return StateStopped, nil
	}
	return StateRunning, nil
}

// Sample is the tally of a sampling window.
type Sample struct {
	PID     int           `json:"pid"`
	Samples int           `json:"samples"`
	Stopped int           `json:"stopped"`
	Running int           `json:"running"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Gone    bool          `json:"gone"`
}

// StoppedFraction is the share of samples that found the process stopped.
func (s *Sample) StoppedFraction() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.Stopped) / float64(s.Samples)
}

// Sample polls the process state every interval for duration, stopping
// early if ctx is done or the process goes away.
func (w *Watcher) Sample(ctx context.Context, interval, duration time.Duration) (*Sample, error) {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}

	result := &Sample{PID: w.pid}
	start := time.Now()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			result.Elapsed = time.Since(start)
			return result, nil
		case <-ticker.C:
			state, err := w.State(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				return result, err
			}

			switch state {
			case StateGone:
				result.Gone = true
				result.Elapsed = time.Since(start)
				return result, nil
			case StateStopped:
				result.Stopped++
			default:
				result.Running++
			}
			result.Samples++
		}
	}
}
