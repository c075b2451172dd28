// Package metrics provides Prometheus metrics for capture sessions
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for face enrollment.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Capture metrics
	CyclesStarted  prometheus.Counter
	CyclesFinished *prometheus.CounterVec
	Samples        *prometheus.CounterVec
	ActiveSessions prometheus.Gauge

	// Decision metrics
	Decisions  *prometheus.CounterVec
	Confidence prometheus.Histogram

	// Oracle metrics
	OracleDuration prometheus.Histogram
	OracleErrors   prometheus.Counter
	DroppedTicks   prometheus.Counter
}

// New creates all metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CyclesStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "face_capture_cycles_started_total",
			Help: "Total number of capture cycles started",
		}),
		CyclesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "face_capture_cycles_finished_total",
			Help: "Total number of capture cycles by outcome",
		}, []string{"outcome"}),
		Samples: f.NewCounterVec(prometheus.CounterOpts{
			Name: "face_capture_samples_total",
			Help: "Offered frames by acceptance result",
		}, []string{"result"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "face_sessions_active",
			Help: "Number of open capture sessions",
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "face_decisions_total",
			Help: "Matcher decisions by kind",
		}, []string{"kind"}),
		Confidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "face_match_confidence",
			Help:    "Confidence of verification attempts",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
		}),
		OracleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "face_oracle_duration_seconds",
			Help:    "Duration of detection oracle calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),
		OracleErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "face_oracle_errors_total",
			Help: "Total number of failed detection oracle calls",
		}),
		DroppedTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "face_ticks_dropped_total",
			Help: "Ticks dropped because the previous poll was still running",
		}),
	}
}

func (m *Metrics) CycleStarted() {
	if m == nil {
		return
	}
	m.CyclesStarted.Inc()
}

// CycleFinished records completed, stalled, failed or aborted.
func (m *Metrics) CycleFinished(outcome string) {
	if m == nil {
		return
	}
	m.CyclesFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Sample(result string) {
	if m == nil {
		return
	}
	m.Samples.WithLabelValues(result).Inc()
}

func (m *Metrics) Decision(kind string, confidence int, hasConfidence bool) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(kind).Inc()
	if hasConfidence {
		m.Confidence.Observe(float64(confidence))
	}
}

func (m *Metrics) OracleCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.OracleDuration.Observe(d.Seconds())
	if err != nil {
		m.OracleErrors.Inc()
	}
}

func (m *Metrics) TickDropped() {
	if m == nil {
		return
	}
	m.DroppedTicks.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
