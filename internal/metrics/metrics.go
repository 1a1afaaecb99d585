package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskgate"

// Metrics holds the Prometheus collectors for approval transitions and sweeps.
type Metrics struct {
	TransitionsTotal      *prometheus.CounterVec
	TransitionErrorsTotal *prometheus.CounterVec

	SweepDuration   *prometheus.HistogramVec
	SweepTasksTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Committed approval transitions by event type",
			},
			[]string{"type"},
		),
		TransitionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transition_errors_total",
				Help:      "Rejected or failed approval transitions by event type and reason",
			},
			[]string{"type", "reason"},
		),
		// Buckets: 10ms to 2m, sweeps touch one transaction per due task
		SweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of sweep runs in seconds",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"kind"},
		),
		SweepTasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_tasks_total",
				Help:      "Tasks handled by sweeps by outcome",
			},
			[]string{"kind", "outcome"},
		),
		gatherer: reg,
	}
}

// RecordTransition counts a committed transition.
func (m *Metrics) RecordTransition(eventType domain.EventType) {
	m.TransitionsTotal.WithLabelValues(string(eventType)).Inc()
}

// RecordTransitionError counts a transition that did not commit.
func (m *Metrics) RecordTransitionError(eventType domain.EventType, err error) {
	m.TransitionErrorsTotal.WithLabelValues(string(eventType), Reason(err)).Inc()
}

// ObserveSweep records how long a sweep run took.
func (m *Metrics) ObserveSweep(kind string, d time.Duration) {
	m.SweepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordSweepTask counts one task outcome of a sweep.
func (m *Metrics) RecordSweepTask(kind, outcome string) {
	m.SweepTasksTotal.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Reason maps an error to a low-cardinality label value.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrStaleState):
		return "stale_state"
	case errors.Is(err, domain.ErrChecklistIncomplete):
		return "checklist_incomplete"
	case errors.Is(err, domain.ErrInvalidReason):
		return "invalid_reason"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrNotDue):
		return "not_due"
	case errors.Is(err, domain.ErrAlreadyEscalated):
		return "already_escalated"
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrRequestNotFound),
		errors.Is(err, domain.ErrChecklistItemNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
