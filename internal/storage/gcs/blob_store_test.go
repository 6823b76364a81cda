package gcs

import (
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	t.Run("nil client", func(t *testing.T) {
		t.Parallel()

		_, err := New(nil, Config{Bucket: "frozen-sites"})
		require.Error(t, err)
	})

	t.Run("missing bucket", func(t *testing.T) {
		t.Parallel()

		_, err := New(&storage.Client{}, Config{})
		require.Error(t, err)
	})

	t.Run("prefix trimmed", func(t *testing.T) {
		t.Parallel()

		store, err := New(&storage.Client{}, Config{Bucket: "frozen-sites", Prefix: "/example.org/"})
		require.NoError(t, err)
		require.Equal(t, "example.org", store.prefix)
	})
}
