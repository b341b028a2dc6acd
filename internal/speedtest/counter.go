// Package speedtest measures how much wall-clock progress a process makes
// while it is being throttled. A counter is incremented at a fixed
// frequency and compared with the increments that should have happened.
package speedtest

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Defaults
const (
	DefaultInterval = time.Millisecond
	DefaultPeriod   = time.Second
)

// Report describes one measurement period.
type Report struct {
	Speed    float64       `json:"speed_percent"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Count    int           `json:"count"`
	Expected float64       `json:"expected"`
}

func (r Report) String() string {
	return fmt.Sprintf("%6.2f%%, %5.2f sec, %4d incr, %6.1f expected incr",
		r.Speed, r.Elapsed.Seconds(), r.Count, r.Expected)
}

// Counter tallies increments and closes a period once it has run long enough.
// It is not safe for concurrent use.
type Counter struct {
	freq   time.Duration
	period time.Duration
	last   time.Time
	count  int
}

// NewCounter starts the first period at now.
func NewCounter(freq, period time.Duration, now time.Time) (*Counter, error) {
	if freq <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", freq)
	}
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %s", period)
	}
	return &Counter{freq: freq, period: period, last: now}, nil
}

// Incr counts one increment at now. When at least one period has elapsed
// since the last report it returns the closed period and starts a new one.
func (c *Counter) Incr(now time.Time) (Report, bool) {
	c.count++

	elapsed := now.Sub(c.last)
	if elapsed < c.period {
		return Report{}, false
	}

	expected := float64(elapsed) / float64(c.freq)
	r := Report{
		Elapsed:  elapsed,
		Count:    c.count,
		Expected: expected,
		Speed:    100 * float64(c.count) / expected,
	}

	c.count = 0
	c.last = now
	return r, true
}

// Run increments a counter every freq and writes one line per period to w
// until ctx is done. Ticks missed while the process was stopped are not
// replayed, which is exactly what the report measures.
func Run(ctx context.Context, w io.Writer, freq, period time.Duration) error {
	counter, err := NewCounter(freq, period, time.Now())
	if err != nil {
		return err
	}

	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r, ok := counter.Incr(now)
			if !ok {
				continue
			}
			if _, err := fmt.Fprintln(w, r); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}
	}
}
