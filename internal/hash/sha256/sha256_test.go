// Package sha256 includes tests for the SHA-256 hasher adapter.
package sha256

import "testing"

// TestHasherHashDeterministic ensures repeated hashing yields the same digest.
func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got := h.Hash([]byte("hello world"))
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if again := h.Hash([]byte("hello world")); again != got {
		t.Fatalf("expected deterministic hash, got %s vs %s", got, again)
	}
}

// TestHasherHashDistinguishesContent checks different bytes hash differently.
func TestHasherHashDistinguishesContent(t *testing.T) {
	t.Parallel()

	h := New()
	if h.Hash([]byte("a")) == h.Hash([]byte("b")) {
		t.Fatal("expected distinct digests for distinct content")
	}
}
