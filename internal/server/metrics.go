package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution sources for FilesServed. Request-level counts live in the
// telemetry package; this counter tracks which path convention matched.
const (
	sourcePage     = "page"
	sourceVerbatim = "verbatim"
	sourceMiss     = "miss"
)

var (
	// FilesServed counts lookups against the frozen tree by how the
	// request path resolved to a file.
	FilesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permafrost_server_files_served_total",
		Help: "The total number of tree lookups, labeled by resolution source.",
	}, []string{"source"})
)
