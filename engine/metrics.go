package engine

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhiyu/hypergen/core"
)

// Metrics are the Prometheus collectors an Engine reports to. A nil
// *Metrics records nothing.
type Metrics struct {
	ticks    prometheus.Counter
	actions  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewMetrics creates the engine collectors and registers them with reg when
// it is non-nil. Collectors already registered by an earlier call are
// reused, so every engine of a batch can share one registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hypergen",
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Scheduler ticks applied.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergen",
			Subsystem: "engine",
			Name:      "actions_total",
			Help:      "Node actions run, by action and task type.",
		}, []string{"action", "task_type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergen",
			Subsystem: "engine",
			Name:      "action_failures_total",
			Help:      "Node actions that returned an error.",
		}, []string{"action"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hypergen",
			Subsystem: "engine",
			Name:      "action_duration_seconds",
			Help:      "Wall time of node actions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"action"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergen",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Item runs by outcome.",
		}, []string{"outcome"}),
	}
	if reg == nil {
		return m
	}
	m.ticks = register(reg, m.ticks)
	m.actions = register(reg, m.actions)
	m.failures = register(reg, m.failures)
	m.duration = register(reg, m.duration)
	m.runs = register(reg, m.runs)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) action(a core.Action, tt core.TaskType, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(string(a), tt.String()).Inc()
	m.duration.WithLabelValues(string(a)).Observe(d.Seconds())
	if err != nil {
		m.failures.WithLabelValues(string(a)).Inc()
	}
}

// Run outcomes.
const (
	outcomeFinished   = "finished"
	outcomeStopped    = "stopped"
	outcomeOutOfSteps = "out_of_steps"
	outcomeFailed     = "failed"
)

func (m *Metrics) run(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}
