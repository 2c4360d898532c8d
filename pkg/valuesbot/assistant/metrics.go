package assistant

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report orchestrator activity.
type Metrics struct {
	requests    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	toolCalls   *prometheus.CounterVec
	threadsLive prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the metrics registered with the global Prometheus
// registry. Collectors are created once so that several orchestrators (or
// tests) in one process do not panic on duplicate registration.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs Metrics on the provided registerer and panics on
// registration errors other than an identical collector already present.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valuesbot",
			Subsystem: "assistant",
			Name:      "requests_total",
			Help:      "Assistant requests by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "valuesbot",
			Subsystem: "assistant",
			Name:      "run_duration_seconds",
			Help:      "Time from message append to the run's terminal state.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"status"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valuesbot",
			Subsystem: "assistant",
			Name:      "tool_calls_total",
			Help:      "Tool calls requested by the assistant, by tool and result.",
		}, []string{"tool", "result"}),
		threadsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "valuesbot",
			Subsystem: "assistant",
			Name:      "threads",
			Help:      "Conversation threads currently held in the registry.",
		}),
	}

	m.requests = register(reg, m.requests)
	m.runDuration = register(reg, m.runDuration)
	m.toolCalls = register(reg, m.toolCalls)
	m.threadsLive = register(reg, m.threadsLive)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observeRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) observeToolCall(tool, result string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, result).Inc()
}

func (m *Metrics) setThreads(n int) {
	if m == nil {
		return
	}
	m.threadsLive.Set(float64(n))
}
