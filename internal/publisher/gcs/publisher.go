// Package gcs deploys a frozen tree by uploading it to a Google Cloud
// Storage bucket configured for static website hosting.
//
// Uploading is the deployment, so the push flag on the request is
// ignored; there is no local-only mode for an object store.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/internal/publisher"
)

const defaultContentType = "application/octet-stream"

// Config locates the destination bucket.
type Config struct {
	Bucket string
	Prefix string
}

// Publisher uploads frozen trees to GCS.
type Publisher struct {
	client *storage.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a Publisher backed by the given client.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("gcs client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, cfg: cfg, logger: logger}, nil
}

// Deploy walks the tree at req.Path and uploads every regular file,
// preserving relative paths under the configured prefix.
func (p *Publisher) Deploy(ctx context.Context, req publisher.Request) (*publisher.Receipt, error) {
	info, err := os.Stat(req.Path)
	if err != nil || !info.IsDir() {
		return nil, &publisher.DeployError{Kind: publisher.ErrNoTree, Path: req.Path, Err: err}
	}

	bucket := p.client.Bucket(p.cfg.Bucket)
	uploaded := 0
	err = filepath.WalkDir(req.Path, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(req.Path, fp)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", fp, err)
		}
		object := objectName(p.cfg.Prefix, rel)
		if err := p.upload(ctx, bucket, fp, object); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return nil, &publisher.DeployError{Kind: publisher.ErrPush, Path: req.Path, Err: err}
	}

	uri := "gs://" + path.Join(p.cfg.Bucket, p.cfg.Prefix)
	p.logger.Info("deployed frozen tree",
		zap.String("uri", uri),
		zap.Int("files", uploaded),
	)
	return &publisher.Receipt{Pushed: true, URI: uri}, nil
}

func (p *Publisher) upload(ctx context.Context, bucket *storage.BucketHandle, fp, object string) error {
	f, err := os.Open(fp)
	if err != nil {
		return fmt.Errorf("opening %s: %w", fp, err)
	}
	defer f.Close()

	w := bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentTypeFor(object)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("uploading %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", object, err)
	}
	return nil
}

// objectName joins the prefix with the tree-relative path using forward
// slashes regardless of the local separator.
func objectName(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	if prefix == "" {
		return rel
	}
	return path.Join(strings.Trim(prefix, "/"), rel)
}

func contentTypeFor(object string) string {
	if ct := mime.TypeByExtension(path.Ext(object)); ct != "" {
		return ct
	}
	return defaultContentType
}
