package freezer

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/permafrost/internal/storage"
)

// scenarioSite serves / linking to /about and /contact.json.
func scenarioSite() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a href="/about">About</a> <a href="/contact.json">Contact</a></body></html>`))
	})
	r.Get("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a href="/">Home</a></body></html>`))
	})
	r.Get("/contact.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"team@example.org"}`))
	})
	return r
}

func newTestFreezer(t *testing.T, cfg Config, handler http.Handler, store FileStore) *Freezer {
	t.Helper()

	renderer, err := NewHandlerRenderer(handler, cfg.BaseURL)
	require.NoError(t, err)
	f, err := New(cfg, renderer, store, nil)
	require.NoError(t, err)
	return f
}

func TestFreezeWritesExactlyTheReachableTree(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	f := newTestFreezer(t, Config{
		Destination: "_build",
		BaseURL:     "https://example.org",
	}, scenarioSite(), store)

	result, err := f.Freeze(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"index.html", "about/index.html", "contact.json"}, result.Files)
	assert.Len(t, store.objects, 3)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, `{"email":"team@example.org"}`, string(store.objects["contact.json"]))
}

func TestFreezeEmitsCNAME(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	f := newTestFreezer(t, Config{
		Destination: "_build",
		BaseURL:     "https://www.example.org:8443",
		CNAME:       true,
	}, scenarioSite(), store)

	result, err := f.Freeze(context.Background())
	require.NoError(t, err)

	assert.Contains(t, result.Files, "CNAME")
	assert.Equal(t, "www.example.org:8443", string(store.objects["CNAME"]))
	assert.Equal(t, "www.example.org:8443", f.Host())
}

func TestFreezeIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := Config{Destination: "_build", BaseURL: "https://example.org", CNAME: true}

	first := newMemStore()
	_, err := newTestFreezer(t, cfg, scenarioSite(), first).Freeze(context.Background())
	require.NoError(t, err)

	second := newMemStore()
	_, err = newTestFreezer(t, cfg, scenarioSite(), second).Freeze(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first.objects), len(second.objects))
	for path, data := range first.objects {
		assert.Equal(t, data, second.objects[path], "content differs at %s", path)
	}
}

func TestFreezeFailsOnBrokenLinkWithoutValidResult(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/missing">dead end</a>`))
	})

	store := newMemStore()
	f := newTestFreezer(t, Config{Destination: "_build", BaseURL: "https://example.org"}, r, store)

	result, err := f.Freeze(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)

	var broken *BrokenLinkError
	require.ErrorAs(t, err, &broken)
	assert.Equal(t, "https://example.org/missing", broken.URL)
	assert.Equal(t, "https://example.org/", broken.Referrer)
}

func TestNewFailsFastOnMissingConfiguration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"missing destination", Config{BaseURL: "https://example.org"}, "destination"},
		{"missing base url", Config{Destination: "_build"}, "base_url"},
		{"relative base url", Config{Destination: "_build", BaseURL: "/nope"}, "base_url"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			renderer := new(MockRenderer)
			_, err := New(tc.cfg, renderer, newMemStore(), nil)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
			// Validation happens before any rendering.
			renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
		})
	}
}

func TestFreezeRunsGeneratorsOncePerRun(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	for _, p := range []string{"/", "/hidden/1", "/hidden/2"} {
		r.Get(p, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body>page</body></html>`))
		})
	}

	calls := 0
	registry := NewRegistry()
	registry.Register(func(context.Context) ([]string, error) {
		calls++
		return []string{"/hidden/1", "/hidden/2"}, nil
	})

	store := newMemStore()
	f := newTestFreezer(t, Config{
		Destination: "_build",
		BaseURL:     "https://example.org",
		Generators:  registry,
	}, r, store)

	result, err := f.Freeze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.ElementsMatch(t, []string{"index.html", "hidden/1/index.html", "hidden/2/index.html"}, result.Files)
}

func TestFreezeHandsStoreTypedObjects(t *testing.T) {
	t.Parallel()

	store := new(storage.MockStore)
	store.On("PutObject", mock.Anything, "index.html", "text/html; charset=utf-8", mock.Anything).
		Return("mem://index.html", nil).Once()
	store.On("PutObject", mock.Anything, "about/index.html", "text/html; charset=utf-8", mock.Anything).
		Return("mem://about/index.html", nil).Once()
	store.On("PutObject", mock.Anything, "contact.json", "application/json", mock.Anything).
		Return("mem://contact.json", nil).Once()

	f := newTestFreezer(t, Config{
		Destination: "_build",
		BaseURL:     "https://example.org",
	}, scenarioSite(), store)

	_, err := f.Freeze(context.Background())
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestFreezeFailsWhenCNAMECannotBeWritten(t *testing.T) {
	t.Parallel()

	store := new(storage.MockStore)
	store.On("PutObject", mock.Anything, mock.MatchedBy(func(p string) bool { return p != CNAMEFile }), mock.Anything, mock.Anything).
		Return("mem://page", nil)
	store.On("PutObject", mock.Anything, CNAMEFile, mock.Anything, mock.Anything).
		Return("", errors.New("bucket gone"))

	f := newTestFreezer(t, Config{
		Destination: "_build",
		BaseURL:     "https://example.org",
		CNAME:       true,
	}, scenarioSite(), store)

	result, err := f.Freeze(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "write CNAME")
}

func TestFreezeEmitsProgressEvents(t *testing.T) {
	t.Parallel()

	var stages []Stage
	store := newMemStore()
	f := newTestFreezer(t, Config{
		Destination: "_build",
		BaseURL:     "https://example.org",
		OnEvent:     func(ev Event) { stages = append(stages, ev.Stage) },
	}, scenarioSite(), store)

	_, err := f.Freeze(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, stages)
	assert.Equal(t, StageFreezeStart, stages[0])
	assert.Equal(t, StageFreezeComplete, stages[len(stages)-1])
	assert.Contains(t, stages, StagePageRendered)
	assert.Contains(t, stages, StagePageWritten)
}
