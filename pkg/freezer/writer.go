package freezer

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/JakeFAU/permafrost/internal/hash/sha256"
)

// FileStore persists frozen files. Implementations create missing parent
// directories and return a URI describing where the object landed.
type FileStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// PagePath maps a URL path onto its location in the frozen tree.
// Directory-style paths gain an index.html; a final segment carrying an
// extension maps verbatim. The result is slash-separated and relative.
//
//	/        -> index.html
//	/a/b     -> a/b/index.html
//	/a/b/    -> a/b/index.html
//	/a/b.json -> a/b.json
func PagePath(urlPath string) string {
	p := urlPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	clean := path.Clean(p)
	if clean == "/" {
		return "index.html"
	}
	rel := strings.TrimPrefix(clean, "/")
	if strings.HasSuffix(p, "/") || path.Ext(rel) == "" {
		return rel + "/index.html"
	}
	return rel
}

// Writer maps rendered pages onto the destination tree and guards against
// two URLs landing on the same file with different content. One Writer
// serves exactly one freeze; it owns the per-run bookkeeping.
type Writer struct {
	store   FileStore
	hasher  *sha256.Hasher
	written map[string]writeRecord
	files   []string
	bytes   int64
}

type writeRecord struct {
	digest string
	url    string
}

// NewWriter creates a Writer backed by the given store.
func NewWriter(store FileStore) *Writer {
	return &Writer{
		store:   store,
		hasher:  sha256.New(),
		written: make(map[string]writeRecord),
	}
}

// Write persists one page and returns the relative path it landed on.
// Writing a path twice is allowed only when the content is identical; the
// duplicate write is skipped. Different content on the same path surfaces
// a *PathCollisionError.
func (w *Writer) Write(ctx context.Context, page *Page) (string, error) {
	u, err := url.Parse(page.URL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", page.URL, err)
	}
	rel := PagePath(u.Path)

	if err := checkContentType(page, rel); err != nil {
		return "", err
	}

	digest := w.hasher.Hash(page.Body)
	if prev, ok := w.written[rel]; ok {
		if prev.digest == digest {
			return rel, nil
		}
		return "", &PathCollisionError{Path: rel, FirstURL: prev.url, SecondURL: page.URL}
	}

	if _, err := w.store.PutObject(ctx, rel, page.ContentType, page.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}

	w.written[rel] = writeRecord{digest: digest, url: page.URL}
	w.files = append(w.files, rel)
	w.bytes += int64(len(page.Body))
	return rel, nil
}

// Files returns the relative paths written so far, in write order.
func (w *Writer) Files() []string {
	return w.files
}

// Bytes returns the total payload size written so far.
func (w *Writer) Bytes() int64 {
	return w.bytes
}

// checkContentType compares the response content type against the type
// implied by the destination file name. A page served as text/html landing
// on a .json file would mislead every static host serving the tree, so the
// mismatch fails the freeze.
func checkContentType(page *Page, rel string) error {
	want := mime.TypeByExtension(path.Ext(rel))
	if want == "" || page.ContentType == "" {
		return nil
	}
	wantType, _, err := mime.ParseMediaType(want)
	if err != nil {
		return nil
	}
	gotType, _, err := mime.ParseMediaType(page.ContentType)
	if err != nil {
		return &BrokenLinkError{
			URL:        page.URL,
			Referrer:   page.Referrer,
			StatusCode: page.StatusCode,
			Reason:     fmt.Sprintf("unparseable content type %q", page.ContentType),
		}
	}
	if gotType != wantType {
		return &BrokenLinkError{
			URL:        page.URL,
			Referrer:   page.Referrer,
			StatusCode: page.StatusCode,
			Reason:     fmt.Sprintf("content type %s does not match %s expected for %s", gotType, wantType, rel),
		}
	}
	return nil
}
