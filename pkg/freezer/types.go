package freezer

import (
	"net/http"
	"time"
)

// Page is one rendered URL: the bytes the application produced plus the
// metadata the writer and the consistency checks need. A Page is created
// per crawl step, handed to the visit callback, and discarded.
type Page struct {
	URL         string // canonical URL as crawled
	FinalURL    string // URL that produced the body after internal redirects
	Referrer    string // page the URL was discovered on, empty for seeds
	StatusCode  int
	ContentType string
	Headers     http.Header
	Body        []byte
	// RenderDur is the wall time spent producing the body, including
	// internal redirect hops.
	RenderDur time.Duration
}

// Link is an edge extracted from a rendered page.
type Link struct {
	Source   string // page the link was found on
	Target   string // absolute target URL
	External bool   // target host differs from the base URL host
}

// Result summarizes a completed freeze.
type Result struct {
	Pages    int
	Bytes    int64
	Files    []string // relative paths written, in write order
	External []Link   // deduplicated external links, first-seen order
	Duration time.Duration
}

// Stage labels a point in the freeze lifecycle for progress reporting.
type Stage string

// Stages emitted through Config.OnEvent.
const (
	StageFreezeStart    Stage = "FREEZE_START"
	StagePageRendered   Stage = "PAGE_RENDERED"
	StagePageWritten    Stage = "PAGE_WRITTEN"
	StageFreezeComplete Stage = "FREEZE_COMPLETE"
	StageFreezeFailed   Stage = "FREEZE_FAILED"
)

// Event is delivered to the optional progress hook as the freeze advances.
type Event struct {
	Stage Stage
	URL   string
	Path  string
	Bytes int
	Dur   time.Duration
	Err   error
}
