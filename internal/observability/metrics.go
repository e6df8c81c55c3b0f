package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions prometheus.Gauge
	sessionsTotal  *prometheus.CounterVec

	commandsQueued    prometheus.Counter
	commandsDelivered prometheus.Counter
	pendingCommands   *prometheus.GaugeVec

	turnsTotal    *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	sabotageTotal *prometheus.CounterVec

	providerCallTotal    *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec

	toolInvocationTotal *prometheus.CounterVec

	detectionRunTotal  *prometheus.CounterVec
	detectionDuration  prometheus.Histogram
	storeWriteDuration prometheus.Histogram
	storeReadDuration  prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current count of sessions in running or paused state.",
				},
			),
			sessionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sessions_total",
					Help: "Total session lifecycle transitions by resulting status.",
				},
				[]string{"status"},
			),
			commandsQueued: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "commands_queued_total",
					Help: "Total out-of-band commands enqueued.",
				},
			),
			commandsDelivered: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "commands_delivered_total",
					Help: "Total commands marked delivered.",
				},
			),
			pendingCommands: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "pending_commands",
					Help: "Undelivered commands by session.",
				},
				[]string{"session"},
			),
			turnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "turns_total",
					Help: "Total agent turns executed by status.",
				},
				[]string{"status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "turn_duration_seconds",
					Help:    "Agent turn duration in seconds by agent.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"agent"},
			),
			sabotageTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sabotage_events_total",
					Help: "Total sabotage events recorded by type.",
				},
				[]string{"type"},
			),
			providerCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "provider_call_total",
					Help: "Total LLM provider calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			providerCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "provider_call_duration_seconds",
					Help:    "LLM provider call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			toolInvocationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_invocation_total",
					Help: "Total tool invocations by tool and status.",
				},
				[]string{"tool", "status"},
			),
			detectionRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "detection_run_total",
					Help: "Total detection analyses by mode (full or degraded).",
				},
				[]string{"mode"},
			),
			detectionDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "detection_duration_seconds",
					Help:    "Detection analysis duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			storeWriteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "store_write_duration_seconds",
					Help:    "Record store write duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			storeReadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "store_read_duration_seconds",
					Help:    "Record store read duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionsTotal,
			m.commandsQueued,
			m.commandsDelivered,
			m.pendingCommands,
			m.turnsTotal,
			m.turnDuration,
			m.sabotageTotal,
			m.providerCallTotal,
			m.providerCallDuration,
			m.toolInvocationTotal,
			m.detectionRunTotal,
			m.detectionDuration,
			m.storeWriteDuration,
			m.storeReadDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns an http.Handler exposing the process metrics.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionTransition(status string) {
	getMetrics().sessionsTotal.WithLabelValues(status).Inc()
}

func RecordCommandQueued(session string, pending int) {
	m := getMetrics()
	m.commandsQueued.Inc()
	m.pendingCommands.WithLabelValues(session).Set(float64(pending))
}

func RecordCommandDelivered(session string, pending int) {
	m := getMetrics()
	m.commandsDelivered.Inc()
	m.pendingCommands.WithLabelValues(session).Set(float64(pending))
}

func RecordTurn(agent string, duration time.Duration, degraded bool) {
	m := getMetrics()
	status := "ok"
	if degraded {
		status = "degraded"
	}
	m.turnsTotal.WithLabelValues(status).Inc()
	m.turnDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

func RecordSabotageEvent(eventType string) {
	getMetrics().sabotageTotal.WithLabelValues(eventType).Inc()
}

func RecordProviderCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.providerCallTotal.WithLabelValues(provider, status).Inc()
	m.providerCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordToolInvocation(tool string, success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().toolInvocationTotal.WithLabelValues(tool, status).Inc()
}

func RecordDetectionRun(duration time.Duration, degraded bool) {
	m := getMetrics()
	mode := "full"
	if degraded {
		mode = "degraded"
	}
	m.detectionRunTotal.WithLabelValues(mode).Inc()
	m.detectionDuration.Observe(duration.Seconds())
}

func RecordStoreWrite(duration time.Duration) {
	getMetrics().storeWriteDuration.Observe(duration.Seconds())
}

func RecordStoreRead(duration time.Duration) {
	getMetrics().storeReadDuration.Observe(duration.Seconds())
}
