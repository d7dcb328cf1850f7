package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourorg/specsync/pkg/types"
)

// Metrics are the reconcile counters exported on /metrics. A nil *Metrics
// records nothing.
type Metrics struct {
	runs                *prometheus.CounterVec
	pathsRemoved        prometheus.Counter
	extensionsPreserved prometheus.Counter
	duration            prometheus.Histogram
}

// NewMetrics registers the reconcile metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "specsync_reconcile_runs_total",
			Help: "Reconcile runs by final status.",
		}, []string{"status"}),
		pathsRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "specsync_reconcile_paths_removed_total",
			Help: "Stale paths pruned from written documents.",
		}),
		extensionsPreserved: f.NewCounter(prometheus.CounterOpts{
			Name: "specsync_reconcile_extensions_preserved_total",
			Help: "Extension fields carried over from existing documents.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "specsync_reconcile_duration_seconds",
			Help:    "Time spent per reconcile run.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (m *Metrics) observe(run *types.Run) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(run.Status).Inc()
	m.pathsRemoved.Add(float64(run.PathsRemoved))
	m.extensionsPreserved.Add(float64(run.ExtensionsPreserved))
	m.duration.Observe(run.Duration.Seconds())
}
