package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// CSP report metrics
	CSPReportsReceived *prometheus.CounterVec
	CSPReportsRejected *prometheus.CounterVec
	CSPReportsPurged   prometheus.Counter

	// Password expiry metrics
	PasswordExpiryLookups     *prometheus.CounterVec
	PasswordExpiryTransitions *prometheus.CounterVec

	// Cache metrics
	CacheOperations *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CSPReportsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "csp_reports_received_total",
			Help:      "Total number of stored CSP violation reports",
		}, []string{"directive"}),
		CSPReportsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "csp_reports_rejected_total",
			Help:      "Total number of CSP violation reports that failed decoding or validation",
		}, []string{"reason"}),
		CSPReportsPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "csp_reports_purged_total",
			Help:      "Total number of CSP violation reports removed by retention",
		}),

		PasswordExpiryLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "password_expiry_lookups_total",
			Help:      "Password expiry lookups by result",
		}, []string{"result"}),
		PasswordExpiryTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "password_expiry_transitions_total",
			Help:      "Persisted password expiry state changes by resulting state",
		}, []string{"state"}),

		CacheOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_operations_total",
			Help:      "Expiry cache operations by result",
		}, []string{"operation", "result"}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}

// New returns metrics bound to a private registry, for tests and tools that
// never expose them.
func New(namespace string) *Metrics {
	return NewMetrics(namespace, "", prometheus.NewRegistry())
}
