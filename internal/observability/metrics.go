package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters for the assignment engine and the notification
// pipeline via Prometheus.
type Metrics struct {
	Assignments        *prometheus.CounterVec
	AvailabilityFlips  *prometheus.CounterVec
	SweepTickets       prometheus.Counter
	NotificationSends  *prometheus.CounterVec
	NotificationRetry  prometheus.Counter
	NotificationDrops  prometheus.Counter
	EventsBroadcast    *prometheus.CounterVec
	RequestCount       *prometheus.CounterVec
	RequestErrorsTotal *prometheus.CounterVec
}

// NewMetrics registers collectors on reg. A nil registerer falls back to the
// default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_assignments_total",
			Help: "Assignment attempts by outcome (assigned, deferred, noop, not_found)",
		}, []string{"outcome"}),
		AvailabilityFlips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_availability_flips_total",
			Help: "Availability recomputations that changed agent state",
		}, []string{"direction"}),
		SweepTickets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_sweep_tickets_total",
			Help: "Backlog tickets re-offered to the scheduler after an agent came online",
		}),
		NotificationSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_sends_total",
			Help: "Notification deliveries by result (ok, failed)",
		}, []string{"result"}),
		NotificationRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_retries_total",
			Help: "Notification delivery retries",
		}),
		NotificationDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_drops_total",
			Help: "Notifications dropped after exhausting retries",
		}),
		EventsBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_events_broadcast_total",
			Help: "Realtime events published by kind",
		}, []string{"kind"}),
		RequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		RequestErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "HTTP requests rejected with a domain error code",
		}, []string{"code"}),
	}
	reg.MustRegister(
		m.Assignments,
		m.AvailabilityFlips,
		m.SweepTickets,
		m.NotificationSends,
		m.NotificationRetry,
		m.NotificationDrops,
		m.EventsBroadcast,
		m.RequestCount,
		m.RequestErrorsTotal,
	)
	return m
}

// RecordAssignment tracks a scheduler outcome.
func (m *Metrics) RecordAssignment(outcome string) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(outcome).Inc()
}

// RecordAvailabilityFlip tracks a recompute that wrote a new value.
func (m *Metrics) RecordAvailabilityFlip(nowAvailable bool) {
	if m == nil {
		return
	}
	direction := "down"
	if nowAvailable {
		direction = "up"
	}
	m.AvailabilityFlips.WithLabelValues(direction).Inc()
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(method string, status int) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordError increments the domain-error counter.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.RequestErrorsTotal.WithLabelValues(code).Inc()
}

// RecordBroadcast tracks a published realtime event.
func (m *Metrics) RecordBroadcast(kind string) {
	if m == nil {
		return
	}
	m.EventsBroadcast.WithLabelValues(kind).Inc()
}
