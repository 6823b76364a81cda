package prerender

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/permafrost/pkg/freezer"
)

type stubRenderer struct {
	page *freezer.Page
	err  error
}

func (s *stubRenderer) Render(context.Context, string) (*freezer.Page, error) {
	return s.page, s.err
}

func newTestRenderer(t *testing.T, inner freezer.Renderer, cfg Config) *Renderer {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck // test handler
	})
	r, err := New(handler, inner, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	inner := &stubRenderer{}
	handler := http.NewServeMux()

	_, err := New(nil, inner, Config{}, nil)
	require.Error(t, err)

	_, err = New(handler, nil, Config{}, nil)
	require.Error(t, err)

	_, err = New(handler, inner, Config{MaxParallel: -1}, nil)
	require.Error(t, err)
}

func TestNewDefaultsAndLimiter(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, &stubRenderer{}, Config{MaxParallel: 2})
	require.Equal(t, 45*time.Second, r.cfg.NavTimeout)
	require.Equal(t, 2, cap(r.limiter))
	require.True(t, strings.HasPrefix(r.origin, "http://127.0.0.1:"))
}

func TestRenderPassesThroughUnpromotedPages(t *testing.T) {
	t.Parallel()

	page := &freezer.Page{
		URL:         "https://www.example.org/about/",
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(`<html><body><p>Static enough to keep as rendered by the handler.</p></body></html>`),
	}
	r := newTestRenderer(t, &stubRenderer{page: page}, Config{BodyThreshold: 10})

	got, err := r.Render(context.Background(), page.URL)
	require.NoError(t, err)
	require.Same(t, page, got)
}

func TestRenderPropagatesInnerErrors(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, &stubRenderer{err: context.DeadlineExceeded}, Config{})
	_, err := r.Render(context.Background(), "https://www.example.org/")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOriginURLMapping(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, &stubRenderer{}, Config{})
	require.Equal(t, r.origin+"/about/?a=1", r.originURL("https://www.example.org/about/?a=1"))
	require.Equal(t, r.origin+"/", r.originURL("https://www.example.org"))
	require.Equal(t, r.origin+"/", r.originURL("://bad"))
}

func TestRewriteOrigin(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, &stubRenderer{}, Config{BaseURL: "https://www.example.org/"})
	html := `<a href="` + r.origin + `/about/">about</a>`
	require.Equal(t, `<a href="https://www.example.org/about/">about</a>`, r.rewriteOrigin(html))

	r.cfg.BaseURL = ""
	require.Equal(t, html, r.rewriteOrigin(html))
}

func TestAcquireRespectsContext(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, &stubRenderer{}, Config{MaxParallel: 1})
	require.NoError(t, r.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.acquire(ctx)
	require.Error(t, err)

	r.release()
	require.NoError(t, r.acquire(context.Background()))
}
