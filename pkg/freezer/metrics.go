package freezer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalPagesFrozen tracks pages rendered and written across all freezes.
	TotalPagesFrozen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "permafrost_pages_frozen_total",
		Help: "The total number of pages rendered and written to the frozen tree.",
	})
	// TotalBytesFrozen tracks the payload bytes written to frozen trees.
	TotalBytesFrozen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "permafrost_bytes_frozen_total",
		Help: "The total number of payload bytes written to frozen trees.",
	})
	// TotalFreezes counts freeze runs by outcome.
	TotalFreezes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permafrost_freezes_total",
		Help: "The total number of freeze runs, labeled by outcome.",
	}, []string{"outcome"})
	// FreezeDuration observes how long complete freeze runs take.
	FreezeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "permafrost_freeze_duration_seconds",
		Help:    "Histogram of freeze run durations.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
	})
)
