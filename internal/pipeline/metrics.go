package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the pipeline's Prometheus instruments. A registry is
// injected so tests can use a private one instead of the global default.
type metrics struct {
	stageSeconds *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &metrics{
		stageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragapi",
			Subsystem: "pipeline",
			Name:      "stage_seconds",
			Help:      "Wall-clock duration of each answer pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}
