package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Runs      *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Questions prometheus.Counter
	Warnings  *prometheus.CounterVec
	Images    prometheus.Counter
}

// NewMetrics registers the ingestion collectors on reg. Pass
// prometheus.NewRegistry() in tests to keep them isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizdocs_ingest_runs_total",
				Help: "Ingest and reparse runs by outcome",
			},
			[]string{"op", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quizdocs_ingest_duration_seconds",
				Help:    "Time from extraction start to terminal status",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"op"},
		),
		Questions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quizdocs_questions_persisted_total",
			Help: "Questions committed by successful runs",
		}),
		Warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizdocs_normalize_warnings_total",
				Help: "Draft problems replaced by defaults",
			},
			[]string{"kind"},
		),
		Images: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quizdocs_archive_images_total",
			Help: "Images unpacked from uploaded archives",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Duration, m.Questions, m.Warnings, m.Images)
	}
	return m
}
