package linkcheck

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalChecks counts external link probes by result.
	TotalChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permafrost_linkcheck_checks_total",
		Help: "The total number of external link probes, labeled by result.",
	}, []string{"result"})
	// RateLimitDelay observes time spent waiting on per-host token buckets.
	RateLimitDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "permafrost_linkcheck_ratelimit_delay_seconds",
		Help:    "Histogram of delays introduced by the per-host rate limiter.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"host"})
)
