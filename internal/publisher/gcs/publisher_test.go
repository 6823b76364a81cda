package gcs

import (
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, Config{Bucket: "site"}, nil)
	require.Error(t, err)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(&storage.Client{}, Config{}, nil)
	require.Error(t, err)
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		rel    string
		want   string
	}{
		{"no prefix", "", "index.html", "index.html"},
		{"nested path", "", "about/index.html", "about/index.html"},
		{"prefix joined", "site", "index.html", "site/index.html"},
		{"prefix slashes trimmed", "/site/", "a/b.json", "site/a/b.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, objectName(tt.prefix, tt.rel))
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Contains(t, contentTypeFor("index.html"), "text/html")
	assert.Contains(t, contentTypeFor("data.json"), "application/json")
	assert.Equal(t, "application/octet-stream", contentTypeFor("CNAME"))
}
