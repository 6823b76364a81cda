package freezer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head>
		<link rel="stylesheet" href="/static/site.css">
		<script src="/static/app.js"></script>
	</head><body>
		<a href="/about">About</a>
		<a href="contact.json">Contact</a>
		<a href="https://other.example/page">Elsewhere</a>
		<a href="#top">Top</a>
		<a href="mailto:team@example.com">Mail</a>
		<a href="javascript:void(0)">Noop</a>
		<img src="/static/logo.png">
		<iframe src="/embed"></iframe>
	</body></html>`)

	refs, err := ExtractLinks(body)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"/static/site.css",
		"/static/app.js",
		"/about",
		"contact.json",
		"https://other.example/page",
		"/static/logo.png",
		"/embed",
	}, refs)
}

func TestExtractLinksEmptyBody(t *testing.T) {
	t.Parallel()

	refs, err := ExtractLinks(nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestExtractLinksKeepsDocumentOrderPerAttribute(t *testing.T) {
	t.Parallel()

	body := []byte(`<body><a href="/one">1</a><a href="/two">2</a><a href="/three">3</a></body>`)
	refs, err := ExtractLinks(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"/one", "/two", "/three"}, refs)
}
