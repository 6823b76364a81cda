package prerender

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/pkg/freezer"
)

// Config controls the headless renderer.
type Config struct {
	// BaseURL is the site's public URL; loopback-origin references in the
	// rendered DOM are rewritten back to it.
	BaseURL string
	// MaxParallel bounds concurrent browser tabs. Zero means unbounded.
	MaxParallel int
	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string
	// NavTimeout bounds one navigation; defaults to 45s.
	NavTimeout time.Duration
	// BodyThreshold is handed to the promotion heuristic.
	BodyThreshold int
}

// Renderer wraps an inner freezer.Renderer and re-renders promoted pages
// with headless Chrome. The browser cannot call an in-process handler, so
// the Renderer serves the handler on a loopback listener for the browser to
// navigate to.
type Renderer struct {
	cfg      Config
	inner    freezer.Renderer
	detector *Heuristic
	logger   *zap.Logger

	origin   string
	listener net.Listener
	srv      *http.Server

	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New starts the loopback origin and prepares the browser allocator. The
// browser process itself only launches on the first promoted page. Callers
// must Close the renderer to release the listener and the allocator.
func New(handler http.Handler, inner freezer.Renderer, cfg Config, logger *zap.Logger) (*Renderer, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if inner == nil {
		return nil, fmt.Errorf("inner renderer is required")
	}
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen loopback origin: %w", err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go srv.Serve(ln) //nolint:errcheck // shut down via Close

	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		inner:       inner,
		detector:    NewHeuristic(cfg.BodyThreshold),
		logger:      logger,
		origin:      "http://" + ln.Addr().String(),
		listener:    ln,
		srv:         srv,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close stops the loopback origin and cancels the browser allocator.
func (r *Renderer) Close() {
	r.allocCancel()
	if r.srv != nil {
		r.srv.Close() //nolint:errcheck // best-effort teardown
	}
}

// Render produces the page via the inner renderer and, when the heuristic
// promotes it, replaces the body with the browser-settled DOM. A headless
// failure is logged and the handler output kept, so an unavailable browser
// never fails a freeze.
func (r *Renderer) Render(ctx context.Context, rawURL string) (*freezer.Page, error) {
	page, err := r.inner.Render(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !r.detector.ShouldPromote(page) {
		return page, nil
	}

	html, err := r.renderHeadless(ctx, rawURL)
	if err != nil {
		r.logger.Warn("headless render failed, keeping handler output",
			zap.String("url", rawURL), zap.Error(err))
		return page, nil
	}

	promoted := *page
	promoted.Body = []byte(r.rewriteOrigin(html))
	r.logger.Debug("page promoted to headless render",
		zap.String("url", rawURL), zap.Int("bytes", len(promoted.Body)))
	return &promoted, nil
}

func (r *Renderer) renderHeadless(ctx context.Context, rawURL string) (string, error) {
	if err := r.acquire(ctx); err != nil {
		return "", err
	}
	defer r.release()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.cfg.NavTimeout)
	defer cancel()

	var html string
	actions := []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(r.originURL(rawURL)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// originURL maps a site URL onto the loopback origin, keeping path and
// query.
func (r *Renderer) originURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return r.origin + "/"
	}
	return r.origin + u.RequestURI()
}

// rewriteOrigin replaces loopback-origin references the application wrote
// into the DOM with the public base URL, so link extraction and the frozen
// output both see site URLs.
func (r *Renderer) rewriteOrigin(html string) string {
	base := strings.TrimSuffix(r.cfg.BaseURL, "/")
	if base == "" {
		return html
	}
	return strings.ReplaceAll(html, r.origin, base)
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}
