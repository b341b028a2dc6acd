package throttle

// If slowdown exits, the target MUST be left running.
// Signal only on a state change. Never twice in a row.
// A failed signal is reported, never fatal.

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// DrawRange is the size of the uniform range Tick draws from. It is a
// multiple of 100 so every whole percent maps to an exact threshold.
const DrawRange uint64 = 100 << 24

// Signal actions as reported to a Recorder.
const (
	ActionStop     = "stop"
	ActionContinue = "continue"
)

// Source is the uniform random source consumed by Tick.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Uint64N(n uint64) uint64
}

// Recorder observes controller activity. It is called with the controller
// lock held, so implementations must not block.
type Recorder interface {
	RecordTick(paused bool)
	RecordSignal(action string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordTick(bool)            {}
func (nopRecorder) RecordSignal(string, error) {}

// Controller holds the duty-cycle state for a single target process.
type Controller struct {
	mu sync.Mutex

	pid          int
	pausePercent int
	threshold    uint64
	stopSignal   unix.Signal

	paused     bool // last state-changing signal that succeeded was a stop
	terminated bool

	rand     Source
	signaler Signaler
	recorder Recorder
	logger   *slog.Logger
	warnings *rate.Limiter
}

// Option configures a Controller.
type Option func(*Controller)

// WithSignaler replaces kill(2) as the signal transport.
func WithSignaler(s Signaler) Option {
	return func(c *Controller) { c.signaler = s }
}

// WithSource replaces the random source.
func WithSource(src Source) Option {
	return func(c *Controller) { c.rand = src }
}

// WithSeed seeds the default PCG source. A zero seed keeps the time-based seed.
func WithSeed(seed uint64) Option {
	return func(c *Controller) {
		if seed != 0 {
			c.rand = newSource(seed)
		}
	}
}

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithLogger sets the logger used for signal failure warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithStopSignal picks the pause signal (SIGSTOP or SIGTSTP).
func WithStopSignal(sig unix.Signal) Option {
	return func(c *Controller) { c.stopSignal = sig }
}

// New validates the target and pause percentage and returns a controller
// that assumes the target is currently running.
func New(pid, pausePercent int, opts ...Option) (*Controller, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return nil, NewError(InvalidArgument, "initialize", 0,
			fmt.Sprintf("pid %d is not a valid process id", pid), nil)
	}
	if pausePercent < 0 || pausePercent > 100 {
		return nil, NewError(InvalidArgument, "initialize", 0,
			fmt.Sprintf("pause percent %d should be between 0 and 100", pausePercent), nil)
	}

	c := &Controller{
		pid:          pid,
		pausePercent: pausePercent,
		threshold:    Threshold(pausePercent),
		stopSignal:   unix.SIGSTOP,
		rand:         newSource(uint64(time.Now().UnixNano())),
		signaler:     KillSignaler{},
		recorder:     nopRecorder{},
		logger:       slog.New(slog.DiscardHandler),
		warnings:     rate.NewLimiter(rate.Every(time.Second), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Threshold converts a pause percentage into the exclusive upper bound a
// draw from [0, DrawRange) must fall under for the tick to pause.
func Threshold(pausePercent int) uint64 {
	return uint64(pausePercent) * (DrawRange / 100)
}

func newSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Tick makes one pause/resume decision and converges the target to it.
// When the target is already in the decided state no system call is made.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return
	}

	shouldPause := c.rand.Uint64N(DrawRange) < c.threshold

	switch {
	case !c.paused && shouldPause:
		if c.send(c.stopSignal, ActionStop) == nil {
			c.paused = true
		}
	case c.paused && !shouldPause:
		if c.send(unix.SIGCONT, ActionContinue) == nil {
			c.paused = false
		}
	}

	c.recorder.RecordTick(c.paused)
}

// send delivers sig and reports a failure. The next tick decides afresh,
// so a failed transition is retried only if the draw still calls for it.
func (c *Controller) send(sig unix.Signal, action string) error {
	err := c.signaler.Signal(c.pid, sig)
	c.recorder.RecordSignal(action, err)
	if err == nil {
		return nil
	}

	if c.warnings.Allow() {
		c.logger.Warn("Failed to signal target",
			"pid", c.pid,
			"action", action,
			"error", err)
	}
	return NewError(SignalDeliveryFailure, "tick", c.pid, "failed to "+action+" process", err)
}

// Terminate resumes the target if it is believed paused. Only the first
// call acts; later calls are no-ops, as are any ticks after it.
func (c *Controller) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return nil
	}
	c.terminated = true

	if !c.paused {
		return nil
	}

	err := c.signaler.Signal(c.pid, unix.SIGCONT)
	c.recorder.RecordSignal(ActionContinue, err)
	if err != nil {
		return NewError(SignalDeliveryFailure, "terminate", c.pid,
			"failed to resume process before exiting", err)
	}
	c.paused = false
	return nil
}

// Paused reports whether the target is believed to be stopped.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Terminated reports whether Terminate has run.
func (c *Controller) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

// PID returns the target process id.
func (c *Controller) PID() int { return c.pid }

// PausePercent returns the configured pause percentage.
func (c *Controller) PausePercent() int { return c.pausePercent }

// Threshold returns the draw threshold derived from the pause percentage.
func (c *Controller) Threshold() uint64 { return c.threshold }
