package report

// Boring counters only. Every number must be explainable from the ticks
// and signals of a single session.

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/psantana5/slowdown/internal/throttle"
)

var _ throttle.Recorder = (*Metrics)(nil)

// Metrics counts controller activity and mirrors it into a private
// Prometheus registry. It implements throttle.Recorder.
type Metrics struct {
	Ticks       atomic.Uint64 // every decision
	PausedTicks atomic.Uint64 // decisions that left the target paused

	Stops            atomic.Uint64
	Continues        atomic.Uint64
	StopFailures     atomic.Uint64
	ContinueFailures atomic.Uint64

	registry     *prometheus.Registry
	ticksTotal   prometheus.Counter
	signalsTotal *prometheus.CounterVec
	paused       prometheus.Gauge
	failures     *FailureLog
}

// NewMetrics creates metrics for a session throttling at pausePercent.
func NewMetrics(pausePercent int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slowdown_ticks_total",
			Help: "Total pause/resume decisions made",
		}),
		signalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slowdown_signals_total",
			Help: "Job-control signals sent to the target by signal and result",
		}, []string{"signal", "result"}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slowdown_paused",
			Help: "1 if the target is believed stopped, 0 otherwise",
		}),
		failures: NewFailureLog(50),
	}

	target := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slowdown_pause_percent",
		Help: "Configured percentage of ticks the target should spend paused",
	})
	target.Set(float64(pausePercent))

	m.registry.MustRegister(
		m.ticksTotal,
		m.signalsTotal,
		m.paused,
		target,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordTick implements throttle.Recorder.
func (m *Metrics) RecordTick(paused bool) {
	m.Ticks.Add(1)
	m.ticksTotal.Inc()
	if paused {
		m.PausedTicks.Add(1)
	}
	m.setPaused(paused)
}

// RecordSignal implements throttle.Recorder.
func (m *Metrics) RecordSignal(action string, err error) {
	if err != nil {
		m.signalsTotal.WithLabelValues(action, "failure").Inc()
		m.failures.Record(action, err)
		switch action {
		case throttle.ActionStop:
			m.StopFailures.Add(1)
		case throttle.ActionContinue:
			m.ContinueFailures.Add(1)
		}
		return
	}

	m.signalsTotal.WithLabelValues(action, "success").Inc()
	switch action {
	case throttle.ActionStop:
		m.Stops.Add(1)
		m.setPaused(true)
	case throttle.ActionContinue:
		m.Continues.Add(1)
		m.setPaused(false)
	}
}

func (m *Metrics) setPaused(paused bool) {
	if paused {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
}

// Registry returns the registry the metrics are exported from.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Failures returns the recent signal failures.
func (m *Metrics) Failures() *FailureLog {
	return m.failures
}

// Snapshot returns current counter values
func (m *Metrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"ticks":             m.Ticks.Load(),
		"paused_ticks":      m.PausedTicks.Load(),
		"stops":             m.Stops.Load(),
		"continues":         m.Continues.Load(),
		"stop_failures":     m.StopFailures.Load(),
		"continue_failures": m.ContinueFailures.Load(),
	}
}

// Result freezes the counters into a session Result.
func (m *Metrics) Result(sessionID string, pid, pausePercent int, start, end time.Time) *Result {
	return &Result{
		SessionID:    sessionID,
		PID:          pid,
		PausePercent: pausePercent,
		StartTime:    start,
		EndTime:      end,
		Duration:     end.Sub(start),
		Ticks:        m.Ticks.Load(),
		PausedTicks:  m.PausedTicks.Load(),
		Stops:        m.Stops.Load(),
		Continues:    m.Continues.Load(),
		Failures:     m.StopFailures.Load() + m.ContinueFailures.Load(),
	}
}
