package permafrost_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/permafrost"
)

func siteHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><body><a href="/about">About</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><body>About us</body></html>`)
	})
	mux.HandleFunc("/hidden/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><body>Not linked from anywhere</body></html>`)
	})
	return mux
}

func TestMainFreezesThroughFacade(t *testing.T) {
	dest := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := permafrost.Main(context.Background(), siteHandler(),
		permafrost.WithBaseURL("https://example.org"),
		permafrost.WithPages("/hidden/"),
		permafrost.WithArgs([]string{"freeze", "--path", dest}),
		permafrost.WithOutput(&stdout, &stderr),
	)

	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "Generating HTML...")
	assert.FileExists(t, filepath.Join(dest, "index.html"))
	assert.FileExists(t, filepath.Join(dest, "about", "index.html"))
	assert.FileExists(t, filepath.Join(dest, "hidden", "index.html"))
}

func TestMainGeneratorFailureStopsFreeze(t *testing.T) {
	dest := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := permafrost.Main(context.Background(), siteHandler(),
		permafrost.WithBaseURL("https://example.org"),
		permafrost.WithGenerator(func(context.Context) ([]string, error) {
			return nil, fmt.Errorf("catalog unavailable")
		}),
		permafrost.WithArgs([]string{"freeze", "--path", dest}),
		permafrost.WithOutput(&stdout, &stderr),
	)

	require.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "catalog unavailable")
}

func TestMainUsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := permafrost.Main(context.Background(), siteHandler(),
		permafrost.WithArgs([]string{"freeze", "--path", t.TempDir()}),
		permafrost.WithOutput(&stdout, &stderr),
	)

	require.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Error:")
}

func TestCommandIsEmbeddable(t *testing.T) {
	cmd := permafrost.Command(siteHandler())
	require.NotNil(t, cmd)

	for _, name := range []string{"freeze", "serve", "deploy"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func ExampleRun() {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<html><body>hello</body></html>")
	})

	permafrost.Run(mux,
		permafrost.WithBaseURL("https://example.org"),
		permafrost.WithPages("/feeds/all.atom.xml"),
	)
}
