// Package linkcheck verifies that the external links collected during a
// freeze still resolve. Checks are opt-in, rate limited per host, and
// advisory: a broken external link is reported, never fatal, because the
// linked site's availability is outside the frozen application's control.
package linkcheck

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/pkg/freezer"
)

// Config controls probe behavior.
type Config struct {
	Timeout     time.Duration
	PerHostRPS  float64
	Burst       int
	MaxParallel int
	UserAgent   string
}

// Result is the outcome of probing one external link.
type Result struct {
	Link       freezer.Link
	StatusCode int
	OK         bool
	Reason     string
}

// Checker probes external links over HTTP using a shared collector.
type Checker struct {
	cfg     Config
	limiter *hostLimiter
	logger  *zap.Logger
	base    *colly.Collector
}

// New builds a Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	// Error statuses must reach OnResponse; the status code is the result.
	c.ParseHTTPErrorResponse = true
	// Clones share one visited store; repeat probes across runs are wanted.
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())
	return &Checker{
		cfg:     cfg,
		limiter: newHostLimiter(cfg.PerHostRPS, cfg.Burst),
		logger:  logger,
		base:    c,
	}
}

// Check probes every link and returns one result per link in input order.
// Probes run on a bounded pool; a canceled ctx turns the remaining links
// into error results instead of aborting the slice.
func (c *Checker) Check(ctx context.Context, links []freezer.Link) []Result {
	results := make([]Result, len(links))
	sem := make(chan struct{}, c.parallel())
	var wg sync.WaitGroup

	for i, link := range links {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, link freezer.Link) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = c.checkOne(ctx, link)
		}(i, link)
	}
	wg.Wait()
	return results
}

func (c *Checker) checkOne(ctx context.Context, link freezer.Link) Result {
	if err := c.limiter.wait(ctx, link.Target); err != nil {
		TotalChecks.WithLabelValues("error").Inc()
		return Result{Link: link, Reason: err.Error()}
	}

	status, err := c.probe(ctx, http.MethodHead, link.Target)
	// Some hosts reject HEAD outright; give those one GET before judging.
	if (err != nil || status >= http.StatusBadRequest) && ctx.Err() == nil {
		status, err = c.probe(ctx, http.MethodGet, link.Target)
	}

	res := Result{Link: link, StatusCode: status}
	switch {
	case err != nil:
		res.Reason = err.Error()
		TotalChecks.WithLabelValues("error").Inc()
		c.logger.Warn("external link unreachable",
			zap.String("url", link.Target),
			zap.String("source", link.Source),
			zap.Error(err))
	case status >= http.StatusBadRequest:
		res.Reason = fmt.Sprintf("status %d %s", status, http.StatusText(status))
		TotalChecks.WithLabelValues("broken").Inc()
		c.logger.Warn("external link broken",
			zap.String("url", link.Target),
			zap.String("source", link.Source),
			zap.Int("status", status))
	default:
		res.OK = true
		TotalChecks.WithLabelValues("ok").Inc()
	}
	return res
}

// probe runs one request through a cloned collector and reports the final
// status after redirects. A zero status with an error means the host never
// answered.
func (c *Checker) probe(ctx context.Context, method, rawURL string) (int, error) {
	collector := c.base.Clone()
	collector.SetRequestTimeout(c.cfg.Timeout)
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}

	var (
		status   int
		probeErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		probeErr = err
	})

	done := make(chan error, 1)
	go func() {
		if method == http.MethodHead {
			done <- collector.Head(rawURL)
		} else {
			done <- collector.Visit(rawURL)
		}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil && probeErr == nil {
			probeErr = err
		}
		if status != 0 {
			return status, nil
		}
		if probeErr != nil {
			return 0, fmt.Errorf("%s %s: %w", method, rawURL, probeErr)
		}
		return status, nil
	}
}

func (c *Checker) parallel() int {
	if c.cfg.MaxParallel <= 0 {
		return 4
	}
	return c.cfg.MaxParallel
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
