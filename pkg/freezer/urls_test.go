package freezer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTP://Example.COM/About", "http://example.com/About"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"keeps custom port", "http://example.com:8003/a", "http://example.com:8003/a"},
		{"drops fragment", "http://example.com/a#section", "http://example.com/a"},
		{"sorts query parameters", "http://example.com/a?b=2&a=1", "http://example.com/a?a=1&b=2"},
		{"forces root path", "http://example.com", "http://example.com/"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURLRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := NormalizeURL("http://exa mple.com/\x7f")
	require.Error(t, err)
}

func TestPagePath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"root", "/", "index.html"},
		{"empty", "", "index.html"},
		{"directory style", "/a/b", "a/b/index.html"},
		{"trailing slash", "/a/b/", "a/b/index.html"},
		{"extension maps verbatim", "/a/b.json", "a/b.json"},
		{"nested extension", "/static/css/site.css", "static/css/site.css"},
		{"dotted parent segment", "/v1.2/docs", "v1.2/docs/index.html"},
		{"duplicate slashes collapse", "//a//b", "a/b/index.html"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, PagePath(tc.in))
		})
	}
}
