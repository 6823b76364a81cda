package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/permafrost/internal/progress"
)

// PrometheusSink exports freeze progress metrics via Prometheus. It owns all
// collectors for runs started/completed/running, per-site page counters, and
// deploy outcomes.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runRuntime    *prometheus.HistogramVec

	pagesWritten   *prometheus.CounterVec
	pageBytes      *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec

	deploysCompleted *prometheus.CounterVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "permafrost_runs_started_total",
			Help: "Total freeze runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permafrost_runs_completed_total",
			Help: "Total freeze runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "permafrost_runs_running",
			Help: "Current number of running freeze runs.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permafrost_run_runtime_seconds",
			Help:    "Wall time per completed freeze run.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"result"}),
		pagesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permafrost_progress_pages_written_total",
			Help: "Pages written to the frozen tree per site.",
		}, []string{"site"}),
		pageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permafrost_progress_page_bytes_total",
			Help: "Payload bytes written per site.",
		}, []string{"site"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permafrost_page_render_seconds",
			Help:    "In-process render duration per site.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}, []string{"site"}),
		deploysCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permafrost_deploys_total",
			Help: "Total deploys partitioned by result.",
		}, []string{"result"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runRuntime,
		s.pagesWritten,
		s.pageBytes,
		s.renderDuration,
		s.deploysCompleted,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
		s.handleRunEvent(evt)
	case progress.StagePageRendered:
		if evt.Dur > 0 {
			s.renderDuration.WithLabelValues(siteLabel(evt)).Observe(evt.Dur.Seconds())
		}
	case progress.StagePageWritten:
		s.handlePageEvent(evt)
	case progress.StageDeployDone:
		s.deploysCompleted.WithLabelValues("success").Inc()
	case progress.StageDeployError:
		s.deploysCompleted.WithLabelValues("error").Inc()
	}
}

func (s *PrometheusSink) handleRunEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
	if evt.Stage != progress.StageRunStart && s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handlePageEvent(evt progress.Event) {
	site := siteLabel(evt)
	if evt.Pages > 0 {
		s.pagesWritten.WithLabelValues(site).Add(float64(evt.Pages))
	}
	if evt.Bytes > 0 {
		s.pageBytes.WithLabelValues(site).Add(float64(evt.Bytes))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func siteLabel(evt progress.Event) string {
	if evt.Site == "" {
		return "unknown"
	}
	return evt.Site
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
