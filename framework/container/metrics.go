package container

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records container activity as Prometheus metrics. A nil *Metrics
// records nothing.
type Metrics struct {
	// ResolutionsTotal counts resolutions by kind (instance, collection) and
	// outcome.
	ResolutionsTotal *prometheus.CounterVec

	// ResolutionDuration measures resolution duration in seconds.
	ResolutionDuration *prometheus.HistogramVec

	// ConstructionsTotal counts constructor runs by lifestyle.
	ConstructionsTotal *prometheus.CounterVec

	// PlansBuilt counts plans added to the producer cache.
	PlansBuilt prometheus.Counter

	// VerificationsTotal counts Verify calls by outcome.
	VerificationsTotal *prometheus.CounterVec

	// VerificationDuration measures Verify duration in seconds.
	VerificationDuration prometheus.Histogram
}

// NewMetrics creates the container metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "container",
				Name:      "resolutions_total",
				Help:      "Total number of container resolutions",
			},
			[]string{"kind", "outcome"},
		),
		ResolutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "container",
				Name:      "resolution_duration_seconds",
				Help:      "Duration of container resolutions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ConstructionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "container",
				Name:      "constructions_total",
				Help:      "Total number of constructor invocations",
			},
			[]string{"lifestyle"},
		),
		PlansBuilt: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "container",
				Name:      "plans_built_total",
				Help:      "Total number of construction plans built",
			},
		),
		VerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "container",
				Name:      "verifications_total",
				Help:      "Total number of container verifications",
			},
			[]string{"outcome"},
		),
		VerificationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "container",
				Name:      "verification_duration_seconds",
				Help:      "Duration of container verifications in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) resolved(kind string, err error, start time.Time) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(kind, Outcome(err)).Inc()
	m.ResolutionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (m *Metrics) constructed(l Lifestyle) {
	if m == nil {
		return
	}
	m.ConstructionsTotal.WithLabelValues(l.String()).Inc()
}

func (m *Metrics) built(n int) {
	if m == nil || n == 0 {
		return
	}
	m.PlansBuilt.Add(float64(n))
}

func (m *Metrics) verified(err error, start time.Time) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(Outcome(err)).Inc()
	m.VerificationDuration.Observe(time.Since(start).Seconds())
}

// Outcome classifies err into a short label: "ok" for nil, otherwise the
// name of the first matching container error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingRegistration):
		return "missing"
	case errors.Is(err, ErrCircularDependency):
		return "circular"
	case errors.Is(err, ErrAmbiguousResolution):
		return "ambiguous"
	case errors.Is(err, ErrNoActiveScope):
		return "no_scope"
	case errors.Is(err, ErrNullInstance):
		return "null"
	case errors.Is(err, ErrConstructorPanic):
		return "panic"
	case errors.Is(err, ErrInvalidRegistration):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
