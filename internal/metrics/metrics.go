// Package metrics exposes the service counters on a per-instance prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel"

// Metrics holds every collector of the service.
type Metrics struct {
	registry *prometheus.Registry

	framesReceived  *prometheus.CounterVec
	requestsSent    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeChannels  prometheus.Gauge
	queueDepth      prometheus.Gauge
	tasksDropped    *prometheus.CounterVec
	ruleRuns        *prometheus.CounterVec
	alertsRaised    *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	processors      prometheus.Gauge
	reconnects      prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_received_total",
			Help:      "Inbound frames by kind.",
		}, []string{"kind"}),
		requestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "requests_sent_total",
			Help:      "Control requests written to the connection by method.",
		}, []string{"method"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "request_duration_seconds",
			Help:      "Round trip of control requests by method and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "outcome"}),
		activeChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active_channels",
			Help:      "Channels in the reconciled subscription set.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "outbound_queue_depth",
			Help:      "Requests waiting for the rate limiter.",
		}),
		tasksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dropped_total",
			Help:      "Tasks rejected because a worker queue was full.",
		}, []string{"pool"}),
		ruleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rule",
			Name:      "runs_total",
			Help:      "Rule evaluations by rule and outcome.",
		}, []string{"rule", "outcome"}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rule",
			Name:      "alerts_total",
			Help:      "Alerts raised by rule.",
		}, []string{"rule"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by outcome.",
		}, []string{"outcome"}),
		processors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "count",
			Help:      "Registered processors.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Stream sessions restarted after a transport failure.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.framesReceived,
		m.requestsSent,
		m.requestDuration,
		m.activeChannels,
		m.queueDepth,
		m.tasksDropped,
		m.ruleRuns,
		m.alertsRaised,
		m.deliveries,
		m.processors,
		m.reconnects,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}

	m.framesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) RequestSent(method string) {
	if m == nil {
		return
	}

	m.requestsSent.WithLabelValues(method).Inc()
}

func (m *Metrics) ObserveRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.requestDuration.WithLabelValues(method, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) SetActiveChannels(n int) {
	if m == nil {
		return
	}

	m.activeChannels.Set(float64(n))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}

	m.queueDepth.Set(float64(n))
}

func (m *Metrics) TaskDropped(pool string) {
	if m == nil {
		return
	}

	m.tasksDropped.WithLabelValues(pool).Inc()
}

func (m *Metrics) RuleRun(rule, outcome string) {
	if m == nil {
		return
	}

	m.ruleRuns.WithLabelValues(rule, outcome).Inc()
}

func (m *Metrics) AlertRaised(rule string) {
	if m == nil {
		return
	}

	m.alertsRaised.WithLabelValues(rule).Inc()
}

func (m *Metrics) Delivery(outcome string) {
	if m == nil {
		return
	}

	m.deliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetProcessors(n int) {
	if m == nil {
		return
	}

	m.processors.Set(float64(n))
}

func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}

	m.reconnects.Inc()
}
