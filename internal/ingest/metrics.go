package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailarchive_messages_total",
			Help: "Candidate messages processed, by outcome.",
		},
		[]string{"status"},
	)
	metricParts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailarchive_parts_stored_total",
			Help: "Attachments and inline parts written to the attachment store.",
		},
	)
	metricFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailarchive_fetch_duration_seconds",
			Help:    "Duration of one fetch over a mailbox.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
)

func recordOutcome(o Outcome) {
	metricMessages.WithLabelValues(string(o.Status)).Inc()
	metricParts.Add(float64(o.Parts))
}
