package celeryconn

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace prefixes every metric name
	Namespace = "celeryconn"

	StatusLabelSuccess = "success"
	StatusLabelError   = "error"

	OutcomeFound   = "found"
	OutcomeAbsent  = "absent"
	OutcomeRemoved = "removed"
	OutcomeError   = "error"

	OperationPublish  = "publish"
	OperationFetch    = "fetch"
	OperationFinalize = "finalize"
)

// Metrics counts connector operations per driver. A nil *Metrics records nothing.
type Metrics struct {
	published *prometheus.CounterVec // by driver, status
	fetched   *prometheus.CounterVec // by driver, outcome
	finalized *prometheus.CounterVec // by driver, outcome
	duration  *prometheus.HistogramVec
}

// NewMetrics creates connector metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "publish_total",
			Help:      "Total number of publish calls by driver and status",
		}, []string{"driver", "status"}),
		fetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetch_total",
			Help:      "Total number of result fetches by driver and outcome",
		}, []string{"driver", "outcome"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "finalize_total",
			Help:      "Total number of result finalizations by driver and outcome",
		}, []string{"driver", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of connector operations against the store",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"driver", "operation"}),
	}

	collectors := []prometheus.Collector{m.published, m.fetched, m.finalized, m.duration}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observePublish(driver string, err error, start time.Time) {
	if m == nil {
		return
	}
	status := StatusLabelSuccess
	if err != nil {
		status = StatusLabelError
	}
	m.published.WithLabelValues(driver, status).Inc()
	m.duration.WithLabelValues(driver, OperationPublish).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeFetch(driver, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.fetched.WithLabelValues(driver, outcome).Inc()
	m.duration.WithLabelValues(driver, OperationFetch).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeFinalize(driver, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.finalized.WithLabelValues(driver, outcome).Inc()
	m.duration.WithLabelValues(driver, OperationFinalize).Observe(time.Since(start).Seconds())
}
