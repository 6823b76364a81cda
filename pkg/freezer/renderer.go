package freezer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
)

// Renderer produces the application's response for one URL.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (*Page, error)
}

// HandlerRenderer renders by invoking an http.Handler in process: the
// request is synthesized, the response captured in memory, and no network
// round trip happens. The request carries the base URL's host so the
// application generates external links for the right site.
type HandlerRenderer struct {
	handler http.Handler
	host    string
}

// NewHandlerRenderer builds a renderer around the application handler.
func NewHandlerRenderer(handler http.Handler, baseURL string) (*HandlerRenderer, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	return &HandlerRenderer{handler: handler, host: u.Host}, nil
}

// Render dispatches a GET for rawURL to the handler and returns the
// captured response. Redirects are not followed here; the crawler decides
// what a 3xx means.
func (r *HandlerRenderer) Render(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	target := u.RequestURI()

	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	req.Host = r.host

	rec := httptest.NewRecorder()
	r.handler.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close() //nolint:errcheck // in-memory reader

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body for %s: %w", rawURL, err)
	}

	contentType := res.Header.Get("Content-Type")
	if contentType == "" && len(body) > 0 {
		contentType = http.DetectContentType(body)
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    rawURL,
		StatusCode:  res.StatusCode,
		ContentType: contentType,
		Headers:     res.Header,
		Body:        body,
	}, nil
}
