package freezer

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxRedirectHops bounds how many internal redirects one URL may chain
// through before the freeze gives up on it.
const maxRedirectHops = 5

// Crawler walks the reachable URL graph of one site, a single page at a
// time. A Crawler is cheap; build one per freeze.
type Crawler struct {
	renderer Renderer
	base     *url.URL
	logger   *zap.Logger
}

// NewCrawler builds a crawler bound to a renderer and the site's base URL.
// The base URL host decides which links are internal.
func NewCrawler(renderer Renderer, baseURL string, logger *zap.Logger) (*Crawler, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	normalized, err := NormalizeURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("normalize base url: %w", err)
	}
	base, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{renderer: renderer, base: base, logger: logger}, nil
}

// pendingURL is one frontier entry. The referrer travels with the URL so a
// failure can name the page that linked to it.
type pendingURL struct {
	url      string
	referrer string
}

// Crawl renders every URL reachable from the seeds and streams each page
// to visit in discovery order. Every call owns a fresh visited set, so the
// sequence is finite for any finite link graph: a URL is enqueued at most
// once. The walk stops at the first render inconsistency, which surfaces
// as a *BrokenLinkError; on success it returns the deduplicated external
// links seen along the way.
func (c *Crawler) Crawl(ctx context.Context, seeds []string, visit func(*Page) error) ([]Link, error) {
	queue := make([]pendingURL, 0, len(seeds))
	visited := make(map[string]bool)

	for _, seed := range seeds {
		canon, err := c.canonicalize(seed)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", seed, err)
		}
		if !visited[canon] {
			visited[canon] = true
			queue = append(queue, pendingURL{url: canon})
		}
	}

	var externals []Link
	seenExternal := make(map[string]bool)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl canceled: %w", err)
		}
		item := queue[0]
		queue = queue[1:]

		page, err := c.renderPage(ctx, item)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("page rendered",
			zap.String("url", page.URL),
			zap.Int("status", page.StatusCode),
			zap.Int("bytes", len(page.Body)))

		if isHTML(page.ContentType) {
			refs, err := ExtractLinks(page.Body)
			if err != nil {
				return nil, fmt.Errorf("extract links from %s: %w", page.URL, err)
			}
			final, err := url.Parse(page.FinalURL)
			if err != nil {
				return nil, fmt.Errorf("parse final url %q: %w", page.FinalURL, err)
			}
			for _, ref := range refs {
				target, err := resolveHref(final, ref)
				if err != nil {
					c.logger.Warn("skipping unparseable link",
						zap.String("page", page.URL), zap.String("href", ref))
					continue
				}
				if target.Scheme != "" && target.Scheme != "http" && target.Scheme != "https" {
					continue
				}
				canon, err := NormalizeURL(target.String())
				if err != nil {
					continue
				}
				if hostOf(target) != c.base.Host {
					if !seenExternal[canon] {
						seenExternal[canon] = true
						externals = append(externals, Link{Source: page.URL, Target: canon, External: true})
					}
					continue
				}
				if !visited[canon] {
					visited[canon] = true
					queue = append(queue, pendingURL{url: canon, referrer: page.URL})
				}
			}
		}

		if err := visit(page); err != nil {
			return nil, err
		}
	}

	return externals, nil
}

// canonicalize turns a seed or link into the absolute normalized form used
// for visited-set keys.
func (c *Crawler) canonicalize(raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return NormalizeURL(c.base.ResolveReference(ref).String())
}

// renderPage renders one frontier entry, following internal redirects up
// to maxRedirectHops. The returned page keeps the original URL so the
// writer files the final body under the path the link graph refers to.
func (c *Crawler) renderPage(ctx context.Context, item pendingURL) (*Page, error) {
	started := time.Now()
	current := item.url
	for hop := 0; ; hop++ {
		page, err := c.renderer.Render(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", current, err)
		}

		if page.StatusCode >= 300 && page.StatusCode < 400 {
			location := page.Headers.Get("Location")
			if location == "" {
				return nil, &BrokenLinkError{
					URL: item.url, Referrer: item.referrer, StatusCode: page.StatusCode,
					Reason: "redirect without a Location header",
				}
			}
			cur, err := url.Parse(current)
			if err != nil {
				return nil, fmt.Errorf("parse url %q: %w", current, err)
			}
			target, err := resolveHref(cur, location)
			if err != nil {
				return nil, &BrokenLinkError{
					URL: item.url, Referrer: item.referrer, StatusCode: page.StatusCode,
					Reason: fmt.Sprintf("redirect to unparseable location %q", location),
				}
			}
			if hostOf(target) != c.base.Host {
				return nil, &BrokenLinkError{
					URL: item.url, Referrer: item.referrer, StatusCode: page.StatusCode,
					Reason: fmt.Sprintf("redirects off the site to %s", target),
				}
			}
			if hop >= maxRedirectHops {
				return nil, &BrokenLinkError{
					URL: item.url, Referrer: item.referrer, StatusCode: page.StatusCode,
					Reason: fmt.Sprintf("more than %d redirects", maxRedirectHops),
				}
			}
			next, err := NormalizeURL(target.String())
			if err != nil {
				return nil, fmt.Errorf("normalize redirect target %q: %w", location, err)
			}
			current = next
			continue
		}

		if page.StatusCode != http.StatusOK {
			return nil, &BrokenLinkError{
				URL: item.url, Referrer: item.referrer, StatusCode: page.StatusCode,
				Reason: fmt.Sprintf("status %d %s", page.StatusCode, http.StatusText(page.StatusCode)),
			}
		}

		page.URL = item.url
		page.FinalURL = current
		page.Referrer = item.referrer
		page.RenderDur = time.Since(started)
		return page, nil
	}
}

// isHTML reports whether a content type is worth parsing for links.
func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
