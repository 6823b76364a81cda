package freezer

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// CNAMEFile is the host-mapping file some static hosts read from the tree
// root.
const CNAMEFile = "CNAME"

// Config carries everything one freeze invocation needs. Nothing in it is
// ambient: the same Freezer run twice with the same Config produces the
// same tree, and no state survives between runs.
type Config struct {
	// Destination is the directory (or store prefix) the tree is written
	// under. Required.
	Destination string
	// BaseURL is the external URL of the site; its host names the site in
	// generated absolute links and in the CNAME file. Required.
	BaseURL string
	// CNAME emits a CNAME file containing the base URL host.
	CNAME bool
	// Seeds are the starting URLs; defaults to "/" when empty.
	Seeds []string
	// Generators contribute seed URLs that links cannot reach.
	Generators *Registry
	// OnEvent, when set, receives progress events as the freeze advances.
	OnEvent func(Event)
}

// Freezer orchestrates crawler and writer under the strict consistency
// policy: the first broken link, path collision, or content type mismatch
// aborts the run, and whatever was written before the failure is not a
// valid tree.
type Freezer struct {
	cfg      Config
	renderer Renderer
	store    FileStore
	logger   *zap.Logger
}

// New validates the configuration and builds a Freezer. Missing
// destination or base URL fail here, before any rendering, with a
// *ConfigurationError.
func New(cfg Config, renderer Renderer, store FileStore, logger *zap.Logger) (*Freezer, error) {
	if cfg.Destination == "" {
		return nil, &ConfigurationError{Field: "destination", Reason: "no path provided"}
	}
	if cfg.BaseURL == "" {
		return nil, &ConfigurationError{Field: "base_url", Reason: "no base URL provided"}
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, &ConfigurationError{Field: "base_url", Reason: fmt.Sprintf("%q is not an absolute URL", cfg.BaseURL)}
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if store == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Freezer{cfg: cfg, renderer: renderer, store: store, logger: logger}, nil
}

// Host returns the site host derived from the base URL, port included when
// one is configured.
func (f *Freezer) Host() string {
	u, _ := url.Parse(f.cfg.BaseURL)
	return u.Host
}

// Freeze walks the site and writes the frozen tree. It returns the run
// summary on success. On failure the error is a *BrokenLinkError,
// *PathCollisionError, or a wrapped render error, and the partially
// written destination must be treated as invalid.
func (f *Freezer) Freeze(ctx context.Context) (*Result, error) {
	start := time.Now()
	f.emit(Event{Stage: StageFreezeStart, URL: f.cfg.BaseURL})

	seeds := f.cfg.Seeds
	if len(seeds) == 0 {
		seeds = []string{"/"}
	}
	if f.cfg.Generators != nil {
		extra, err := f.cfg.Generators.URLs(ctx)
		if err != nil {
			return nil, f.fail(start, fmt.Errorf("collect generated urls: %w", err))
		}
		seeds = append(append([]string{}, seeds...), extra...)
	}

	crawler, err := NewCrawler(f.renderer, f.cfg.BaseURL, f.logger)
	if err != nil {
		return nil, f.fail(start, err)
	}
	writer := NewWriter(f.store)

	pages := 0
	externals, err := crawler.Crawl(ctx, seeds, func(page *Page) error {
		f.emit(Event{Stage: StagePageRendered, URL: page.URL, Bytes: len(page.Body), Dur: page.RenderDur})
		rel, err := writer.Write(ctx, page)
		if err != nil {
			return err
		}
		pages++
		TotalPagesFrozen.Inc()
		f.emit(Event{Stage: StagePageWritten, URL: page.URL, Path: rel, Bytes: len(page.Body)})
		return nil
	})
	if err != nil {
		return nil, f.fail(start, err)
	}

	files := writer.Files()
	if f.cfg.CNAME {
		host := f.Host()
		if _, err := f.store.PutObject(ctx, CNAMEFile, "application/octet-stream", []byte(host)); err != nil {
			return nil, f.fail(start, fmt.Errorf("write CNAME: %w", err))
		}
		files = append(files, CNAMEFile)
	}

	result := &Result{
		Pages:    pages,
		Bytes:    writer.Bytes(),
		Files:    files,
		External: externals,
		Duration: time.Since(start),
	}

	TotalBytesFrozen.Add(float64(result.Bytes))
	TotalFreezes.WithLabelValues("success").Inc()
	FreezeDuration.Observe(result.Duration.Seconds())

	f.logger.Info("freeze complete",
		zap.Int("pages", result.Pages),
		zap.Int64("bytes", result.Bytes),
		zap.Int("files", len(result.Files)),
		zap.Int("external_links", len(result.External)),
		zap.Duration("duration", result.Duration))
	f.emit(Event{Stage: StageFreezeComplete, URL: f.cfg.BaseURL, Bytes: int(result.Bytes), Dur: result.Duration})

	return result, nil
}

// fail records the failed outcome once and passes the error through.
func (f *Freezer) fail(start time.Time, err error) error {
	TotalFreezes.WithLabelValues("failure").Inc()
	FreezeDuration.Observe(time.Since(start).Seconds())
	f.logger.Error("freeze failed", zap.Error(err))
	f.emit(Event{Stage: StageFreezeFailed, URL: f.cfg.BaseURL, Dur: time.Since(start), Err: err})
	return err
}

func (f *Freezer) emit(ev Event) {
	if f.cfg.OnEvent != nil {
		f.cfg.OnEvent(ev)
	}
}
