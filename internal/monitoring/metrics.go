// Package monitoring exposes Prometheus metrics for executions, sessions,
// and the HTTP surface.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ExecutionTimeouts prometheus.Counter
	SecurityBlocks    *prometheus.CounterVec

	// Session metrics
	SessionsActive    prometheus.GaugeFunc
	SessionEvictions  prometheus.CounterFunc
	SessionExpiries   prometheus.CounterFunc
	sessionStatsAdded bool
}

// NewMetrics creates and registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "execd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execd_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool", "status"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "execd_execution_duration_seconds",
				Help:    "Tool execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		ExecutionTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "execd_execution_timeouts_total",
				Help: "Total number of executions killed by the timeout",
			},
		),
		SecurityBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execd_security_blocks_total",
				Help: "Total number of requests rejected by the security filter",
			},
			[]string{"kind"},
		),
	}
}

// ObserveSessions wires session registry counters as live collector
// functions. The callbacks read the registry state at scrape time.
func (m *Metrics) ObserveSessions(reg prometheus.Registerer, active, evictions, expiries func() float64) {
	if m.sessionStatsAdded {
		return
	}
	m.sessionStatsAdded = true

	factory := promauto.With(reg)
	m.SessionsActive = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "execd_sessions_active",
			Help: "Number of live sessions in the registry",
		},
		active,
	)
	m.SessionEvictions = factory.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "execd_session_evictions_total",
			Help: "Total number of sessions evicted under capacity pressure",
		},
		evictions,
	)
	m.SessionExpiries = factory.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "execd_session_expiries_total",
			Help: "Total number of sessions destroyed after idling past the timeout",
		},
		expiries,
	)
}

// RecordExecution records one completed tool execution.
func (m *Metrics) RecordExecution(tool string, success bool, timedOut bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.ExecutionsTotal.WithLabelValues(tool, status).Inc()
	m.ExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if timedOut {
		m.ExecutionTimeouts.Inc()
	}
}

// RecordSecurityBlock records a denylist rejection; kind is "import" or
// "shell_pattern".
func (m *Metrics) RecordSecurityBlock(kind string) {
	m.SecurityBlocks.WithLabelValues(kind).Inc()
}
