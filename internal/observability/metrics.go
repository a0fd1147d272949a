package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the router's prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	requestTime  *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	dispatches   *prometheus.CounterVec
	recipients   *prometheus.CounterVec
	slaLookups   *prometheus.CounterVec
	deltas       *prometheus.CounterVec
	consumed     *prometheus.CounterVec
	cycleSeconds *prometheus.HistogramVec
}

// NewMetrics registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketrouter_http_requests_total",
			Help: "HTTP requests served by the ops API",
		}, []string{"path", "method", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketrouter_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketrouter_http_errors_total",
			Help: "HTTP errors by domain error code",
		}, []string{"path", "method", "code"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketrouter_dispatch_actions_total",
			Help: "Workflow dispatcher decisions",
		}, []string{"action", "result"}),
		recipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketrouter_recipient_resolutions_total",
			Help: "Recipient resolutions by tier and outcome",
		}, []string{"tier", "result"}),
		slaLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketrouter_sla_lookups_total",
			Help: "SLA policy lookups by outcome",
		}, []string{"result"}),
		deltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketrouter_deltas_processed_total",
			Help: "Ticket deltas handled by the poller",
		}, []string{"result"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketrouter_handoff_messages_total",
			Help: "Handoff queue messages by outcome",
		}, []string{"outcome"}),
		cycleSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketrouter_poll_cycle_seconds",
			Help:    "Duration of poll cycles",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestTime,
		m.errors,
		m.dispatches,
		m.recipients,
		m.slaLookups,
		m.deltas,
		m.consumed,
		m.cycleSeconds,
	)
	return m
}

// Registry is served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestTime.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordDispatch counts one dispatcher action.
func (m *Metrics) RecordDispatch(action, result string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(action, result).Inc()
}

// RecordRecipients counts a recipient resolution.
func (m *Metrics) RecordRecipients(tier, result string) {
	if m == nil {
		return
	}
	m.recipients.WithLabelValues(tier, result).Inc()
}

// RecordSLALookup counts an SLA policy lookup.
func (m *Metrics) RecordSLALookup(result string) {
	if m == nil {
		return
	}
	m.slaLookups.WithLabelValues(result).Inc()
}

// RecordDelta counts a processed delta.
func (m *Metrics) RecordDelta(result string) {
	if m == nil {
		return
	}
	m.deltas.WithLabelValues(result).Inc()
}

// RecordConsumed counts a handoff queue message.
func (m *Metrics) RecordConsumed(outcome string) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(outcome).Inc()
}

// ObserveCycle records one poll cycle.
func (m *Metrics) ObserveCycle(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleSeconds.WithLabelValues(result).Observe(duration.Seconds())
}
