package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutObjectAndGet(t *testing.T) {
	t.Parallel()

	store := New()
	uri, err := store.PutObject(context.Background(), "index.html", "text/html", []byte("<p>hi</p>"))
	require.NoError(t, err)
	assert.Equal(t, "memory://index.html", uri)

	data, ok := store.Get("index.html")
	require.True(t, ok)
	assert.Equal(t, "<p>hi</p>", string(data))
	assert.Equal(t, "text/html", store.ContentType("index.html"))
}

func TestPutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := New()
	payload := []byte("original")
	_, err := store.PutObject(context.Background(), "a", "text/plain", payload)
	require.NoError(t, err)

	payload[0] = 'X'
	data, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, "original", string(data))
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store := New()
	_, err := store.PutObject(context.Background(), "", "text/plain", []byte("x"))
	require.Error(t, err)
}

func TestPathsSorted(t *testing.T) {
	t.Parallel()

	store := New()
	for _, p := range []string{"b/index.html", "a/index.html", "CNAME"} {
		_, err := store.PutObject(context.Background(), p, "", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"CNAME", "a/index.html", "b/index.html"}, store.Paths())
}

func TestGetMissingPath(t *testing.T) {
	t.Parallel()

	store := New()
	_, ok := store.Get("nope")
	assert.False(t, ok)
}
