// Package driver feeds a duty-cycle controller with periodic ticks and
// delivers the operator's termination request to it exactly once.
package driver

// The loop is the only goroutine that calls into the controller.
// A tick and the termination path can never overlap.

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/psantana5/slowdown/internal/throttle"
)

// DefaultInterval is the tick period.
const DefaultInterval = 10 * time.Millisecond

// Controller is the part of the throttle controller the driver invokes.
type Controller interface {
	Tick()
	Terminate() error
}

// Driver owns the tick source and the interrupt subscription.
type Driver struct {
	ctrl       Controller
	interval   time.Duration
	interrupts <-chan os.Signal
	logger     *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithInterrupts replaces the SIGINT/SIGTERM subscription with ch.
func WithInterrupts(ch <-chan os.Signal) Option {
	return func(d *Driver) { d.interrupts = ch }
}

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// New validates the tick period. A period that cannot arm a ticker is a
// setup failure.
func New(ctrl Controller, interval time.Duration, opts ...Option) (*Driver, error) {
	if ctrl == nil {
		return nil, throttle.NewError(throttle.SetupFailure, "arm", 0, "failed to set up timer handler", nil)
	}
	if interval <= 0 {
		return nil, throttle.NewError(throttle.SetupFailure, "arm", 0,
			"failed to start timer: tick interval must be positive, got "+interval.String(), nil)
	}

	d := &Driver{
		ctrl:     ctrl,
		interval: interval,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run ticks the controller every interval until an interrupt arrives or ctx
// is cancelled, then runs the controller's termination path once and
// returns its error. The interrupt subscription is left in place so a
// repeated Ctrl-C cannot kill the process before the caller exits.
func (d *Driver) Run(ctx context.Context) error {
	interrupts := d.interrupts
	if interrupts == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		interrupts = ch
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Debug("Timer armed", "interval", d.interval)

	for {
		select {
		case <-ticker.C:
			d.ctrl.Tick()
		case sig := <-interrupts:
			d.logger.Info("Received signal, resuming target", "signal", sig.String())
			return d.ctrl.Terminate()
		case <-ctx.Done():
			d.logger.Info("Context done, resuming target", "reason", ctx.Err())
			return d.ctrl.Terminate()
		}
	}
}
