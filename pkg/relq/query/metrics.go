package query

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cognicore/relq/pkg/relq/internalerr"
)

// Metrics records query activity. A nil *Metrics records nothing.
type Metrics struct {
	queries    prometheus.Counter
	errors     *prometheus.CounterVec
	candidates prometheus.Counter
	rows       prometheus.Counter
	duration   prometheus.Histogram
}

// NewMetrics creates the query collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relq_queries_total",
			Help: "Queries evaluated, including failed ones.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relq_query_errors_total",
			Help: "Queries that returned an error, by kind.",
		}, []string{"kind"}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relq_candidates_total",
			Help: "Candidate facts tried against a pattern.",
		}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relq_rows_total",
			Help: "Rows returned to callers.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relq_query_duration_seconds",
			Help:    "Wall time of query evaluation.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	reg.MustRegister(m.queries, m.errors, m.candidates, m.rows, m.duration)
	return m
}

func (m *Metrics) observe(res *Result, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.Inc()
	m.duration.Observe(d.Seconds())
	if err != nil {
		m.errors.WithLabelValues(errorKind(err)).Inc()
		return
	}
	m.candidates.Add(float64(res.Stats.Candidates))
	m.rows.Add(float64(len(res.Rows)))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, internalerr.ErrUnsafeNegation):
		return "unsafe_negation"
	case errors.Is(err, internalerr.ErrUnboundProjection):
		return "unbound_projection"
	case errors.Is(err, internalerr.ErrInvalidPattern):
		return "invalid_pattern"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
