package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/meshgate-core/internal/events"
)

const namespace = "meshgate"

// Metrics holds every meshgate collector.
type Metrics struct {
	registry *prometheus.Registry

	relayDecisions *prometheus.CounterVec
	registrations  *prometheus.CounterVec
	gatewayAuth    *prometheus.CounterVec
	events         *prometheus.CounterVec
	upstreamErrors prometheus.Counter
	httpDuration   *prometheus.HistogramVec
}

// New creates a Metrics with Go runtime and process collectors attached.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		relayDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "decisions_total",
			Help:      "Relay authorization decisions by action and outcome.",
		}, []string{"action", "decision"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "registrations_total",
			Help:      "Reported devices by reconciliation status.",
		}, []string{"status"}),
		gatewayAuth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "auth_total",
			Help:      "Gateway API key checks by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Lifecycle events dispatched by type.",
		}, []string{"type"}),
		upstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "upstream_errors_total",
			Help:      "Failed calls to the relay status endpoint.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.relayDecisions,
		m.registrations,
		m.gatewayAuth,
		m.events,
		m.upstreamErrors,
		m.httpDuration,
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordRelayDecision implements relay.Recorder.
func (m *Metrics) RecordRelayDecision(action string, allowed bool, _ string) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.relayDecisions.WithLabelValues(action, decision).Inc()
}

// RecordRegistration counts one reconciliation pass.
func (m *Metrics) RecordRegistration(created, existing int) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues("created").Add(float64(created))
	m.registrations.WithLabelValues("existing").Add(float64(existing))
}

// RecordGatewayAuth counts one gateway key check.
func (m *Metrics) RecordGatewayAuth(ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "accepted"
	}
	m.gatewayAuth.WithLabelValues(result).Inc()
}

// RecordUpstreamError counts one failed relay status call.
func (m *Metrics) RecordUpstreamError() {
	if m == nil {
		return
	}
	m.upstreamErrors.Inc()
}

// ObserveHTTP records the latency of one HTTP request. route is the chi
// route pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Name implements events.Sink.
func (m *Metrics) Name() string { return "metrics" }

// Handle implements events.Sink.
func (m *Metrics) Handle(_ context.Context, e events.Event) error {
	if m == nil {
		return nil
	}
	m.events.WithLabelValues(e.Type).Inc()
	return nil
}
