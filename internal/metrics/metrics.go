// Package metrics exposes the Prometheus collectors of the web front end
// and the export worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wallet"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics groups every collector the binaries record into.
type Metrics struct {
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	APICalls        *prometheus.CounterVec
	APIDuration     *prometheus.HistogramVec
	BreakerOpen     prometheus.Gauge
	RatingGestures  *prometheus.CounterVec
	RevealToggles   *prometheus.CounterVec
	InvalidRecords  prometheus.Counter
	SubmitBlocked   *prometheus.CounterVec
	SnapshotServed  prometheus.Counter
	ActiveSessions  prometheus.Gauge
	EventsPublished *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec
	LedgerExports   *prometheus.CounterVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		APICalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "calls_total",
			Help:      "Calls to the expense API by operation and outcome.",
		}, []string{"operation", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "call_duration_seconds",
			Help:      "Duration of expense API calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "circuit_open",
			Help:      "1 while the expense API circuit breaker is not closed.",
		}),
		RatingGestures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rating",
			Name:      "gestures_total",
			Help:      "Rating control gestures by action and result.",
		}, []string{"action", "result"}),
		RevealToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "masking",
			Name:      "reveal_toggles_total",
			Help:      "Reveal toggles by scope (list or figure).",
		}, []string{"scope"}),
		InvalidRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "masking",
			Name:      "invalid_records_total",
			Help:      "Expense lists rejected because a record broke the API contract.",
		}),
		SubmitBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "form",
			Name:      "submit_blocked_total",
			Help:      "Form submissions rejected before reaching the API, by reason.",
		}, []string{"reason"}),
		SnapshotServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "served_total",
			Help:      "Dashboards rendered from the offline snapshot.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "View sessions currently held in memory.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Expense change events published, by action and result.",
		}, []string{"action", "result"}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Expense change events consumed, by consumer and result.",
		}, []string{"consumer", "result"}),
		LedgerExports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "exports_total",
			Help:      "Ledger writes by operation and result.",
		}, []string{"operation", "result"}),
	}

	reg.MustRegister(
		m.HTTPRequests, m.HTTPDuration,
		m.APICalls, m.APIDuration, m.BreakerOpen,
		m.RatingGestures, m.RevealToggles, m.InvalidRecords, m.SubmitBlocked,
		m.SnapshotServed, m.ActiveSessions,
		m.EventsPublished, m.EventsConsumed, m.LedgerExports,
	)
	return m
}

// ObserveAPICall records one expense API request.
func (m *Metrics) ObserveAPICall(op, outcome string, d time.Duration) {
	m.APICalls.WithLabelValues(op, outcome).Inc()
	m.APIDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetBreakerState tracks the circuit breaker state by its gobreaker name.
func (m *Metrics) SetBreakerState(state string) {
	if state == "closed" {
		m.BreakerOpen.Set(0)
		return
	}
	m.BreakerOpen.Set(1)
}

// ObserveHTTP records a finished request under its route pattern.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveGesture(action string, err error) {
	m.RatingGestures.WithLabelValues(action, result(err)).Inc()
}

func (m *Metrics) ObservePublish(action string, err error) {
	m.EventsPublished.WithLabelValues(action, result(err)).Inc()
}

func (m *Metrics) ObserveConsume(consumer string, err error) {
	m.EventsConsumed.WithLabelValues(consumer, result(err)).Inc()
}

func (m *Metrics) ObserveExport(op string, err error) {
	m.LedgerExports.WithLabelValues(op, result(err)).Inc()
}
