// Package app resolves configuration into the concrete services the
// commands share: logger, file store, publisher, notifier, audit store,
// and the progress hub. It is the single place provider names from the
// configuration are turned into implementations.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/internal/config"
	iduuid "github.com/JakeFAU/permafrost/internal/id/uuid"
	"github.com/JakeFAU/permafrost/internal/logging"
	"github.com/JakeFAU/permafrost/internal/notify"
	notifymemory "github.com/JakeFAU/permafrost/internal/notify/memory"
	notifypubsub "github.com/JakeFAU/permafrost/internal/notify/pubsub"
	"github.com/JakeFAU/permafrost/internal/prerender"
	"github.com/JakeFAU/permafrost/internal/progress"
	"github.com/JakeFAU/permafrost/internal/progress/sinks"
	"github.com/JakeFAU/permafrost/internal/publisher"
	publishergcs "github.com/JakeFAU/permafrost/internal/publisher/gcs"
	publishergit "github.com/JakeFAU/permafrost/internal/publisher/git"
	storagegcs "github.com/JakeFAU/permafrost/internal/storage/gcs"
	storagelocal "github.com/JakeFAU/permafrost/internal/storage/local"
	storagememory "github.com/JakeFAU/permafrost/internal/storage/memory"
	"github.com/JakeFAU/permafrost/internal/storage/postgres"
	"github.com/JakeFAU/permafrost/internal/store"
	"github.com/JakeFAU/permafrost/pkg/freezer"
)

// Components holds the wired services for one process. Optional
// integrations are nil when their configuration is absent; callers check
// before use.
type Components struct {
	Config config.Config
	Logger *zap.Logger

	// Files receives the frozen tree.
	Files freezer.FileStore
	// Publisher deploys frozen trees.
	Publisher publisher.Publisher
	// Notifier is nil when notify.provider is "none".
	Notifier notify.Notifier
	// Runs is nil unless database.dsn is set.
	Runs store.FreezeRunRepository
	// Hub fans progress events out to the configured sinks.
	Hub *progress.Hub
	// IDs mints run identifiers.
	IDs *iduuid.Generator

	storageClient  *gcstorage.Client
	pubsubClient   *pubsub.Client
	pubsubNotifier *notifypubsub.Notifier
	runStore       *postgres.FreezeStore
}

// The progress collectors register on the process-global registry; a
// second Build in the same process reuses the first sink.
var (
	promSinkOnce sync.Once
	promSink     *sinks.PrometheusSink
	promSinkErr  error
)

func prometheusSink() (*sinks.PrometheusSink, error) {
	promSinkOnce.Do(func() {
		promSink, promSinkErr = sinks.NewPrometheusSink(nil)
	})
	return promSink, promSinkErr
}

// Build wires every configured service. On error the partially built
// components are closed before returning.
func Build(ctx context.Context, cfg config.Config) (*Components, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	c := &Components{
		Config: cfg,
		Logger: logger,
		IDs:    iduuid.New(),
	}

	for _, setup := range []func(context.Context) error{
		c.setupFiles,
		c.setupPublisher,
		c.setupAuditStore,
		c.setupNotifier,
		c.setupProgress,
	} {
		if err := setup(ctx); err != nil {
			c.Close(context.Background())
			return nil, err
		}
	}
	return c, nil
}

func (c *Components) setupFiles(ctx context.Context) error {
	switch c.Config.Storage.Provider {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("creating storage client: %w", err)
		}
		c.storageClient = client
		files, err := storagegcs.New(client, storagegcs.Config{
			Bucket: c.Config.Storage.GCS.Bucket,
			Prefix: c.Config.Storage.GCS.Prefix,
		})
		if err != nil {
			return fmt.Errorf("initializing gcs store: %w", err)
		}
		c.Files = files
		c.Logger.Info("using GCS file store",
			zap.String("bucket", c.Config.Storage.GCS.Bucket),
			zap.String("prefix", c.Config.Storage.GCS.Prefix))
	case "memory":
		c.Files = storagememory.New()
		c.Logger.Info("using in-memory file store")
	default:
		files, err := storagelocal.New(storagelocal.Config{BaseDir: c.Config.Freeze.Destination})
		if err != nil {
			return fmt.Errorf("initializing local store: %w", err)
		}
		c.Files = files
		c.Logger.Info("using local file store", zap.String("dir", c.Config.Freeze.Destination))
	}
	return nil
}

func (c *Components) setupPublisher(ctx context.Context) error {
	switch c.Config.Deploy.Provider {
	case "gcs":
		client := c.storageClient
		if client == nil {
			var err error
			client, err = gcstorage.NewClient(ctx)
			if err != nil {
				return fmt.Errorf("creating storage client: %w", err)
			}
			c.storageClient = client
		}
		pub, err := publishergcs.New(client, publishergcs.Config{
			Bucket: c.Config.Deploy.GCS.Bucket,
			Prefix: c.Config.Deploy.GCS.Prefix,
		}, c.Logger.Named("deploy"))
		if err != nil {
			return fmt.Errorf("initializing gcs publisher: %w", err)
		}
		c.Publisher = pub
	default:
		c.Publisher = publishergit.New(c.Logger.Named("deploy"))
	}
	return nil
}

func (c *Components) setupAuditStore(ctx context.Context) error {
	if c.Config.Database.DSN == "" {
		c.Logger.Info("audit store disabled; set database.dsn to record runs")
		return nil
	}
	s, err := postgres.NewFreezeStore(ctx, postgres.FreezeStoreConfig{
		DSN:             c.Config.Database.DSN,
		Table:           c.Config.Database.Table,
		MaxConns:        c.Config.Database.MaxConns,
		MinConns:        c.Config.Database.MinConns,
		MaxConnLifetime: c.Config.Database.MaxConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("connecting audit store: %w", err)
	}
	c.runStore = s
	c.Runs = s
	c.Logger.Info("audit store connected", zap.String("table", c.Config.Database.Table))
	return nil
}

func (c *Components) setupNotifier(ctx context.Context) error {
	switch c.Config.Notify.Provider {
	case "", "none":
		return nil
	case "memory":
		c.Notifier = notifymemory.New()
	case "pubsub":
		client, err := pubsub.NewClient(ctx, c.Config.Notify.ProjectID)
		if err != nil {
			return fmt.Errorf("creating pubsub client: %w", err)
		}
		c.pubsubClient = client
		n := notifypubsub.New(client.Topic(c.Config.Notify.Topic))
		c.pubsubNotifier = n
		c.Notifier = n
		c.Logger.Info("pubsub notifier ready",
			zap.String("project", c.Config.Notify.ProjectID),
			zap.String("topic", c.Config.Notify.Topic))
	default:
		return fmt.Errorf("unknown notify provider %q", c.Config.Notify.Provider)
	}
	return nil
}

func (c *Components) setupProgress(ctx context.Context) error {
	var sinkList []progress.Sink
	if c.Config.Progress.LogEvents {
		sinkList = append(sinkList, sinks.NewLogSink(c.Logger.Named("progress")))
	}
	prom, err := prometheusSink()
	if err != nil {
		return fmt.Errorf("initializing progress metrics: %w", err)
	}
	sinkList = append(sinkList, prom)
	if c.Runs != nil {
		sinkList = append(sinkList, sinks.NewStoreSink(c.Runs, c.Logger.Named("progress_store")))
	}

	c.Hub = progress.NewHub(progress.Config{
		BufferSize:     c.Config.Progress.Buffer,
		MaxBatchEvents: c.Config.Progress.BatchSize,
		MaxBatchWait:   c.Config.Progress.FlushInterval(),
		BaseContext:    ctx,
		Logger:         c.Logger.Named("progress_hub"),
	}, sinkList...)
	return nil
}

// Renderer builds the render pipeline for the given handler: the
// in-process renderer, wrapped by the headless prerenderer when enabled.
// The returned func releases prerender resources and is safe to call
// when prerendering is off.
func (c *Components) Renderer(handler http.Handler) (freezer.Renderer, func(), error) {
	inner, err := freezer.NewHandlerRenderer(handler, c.Config.Freeze.BaseURL)
	if err != nil {
		return nil, nil, err
	}
	if !c.Config.Prerender.Enabled {
		return inner, func() {}, nil
	}
	pr, err := prerender.New(handler, inner, prerender.Config{
		BaseURL:     c.Config.Freeze.BaseURL,
		MaxParallel: c.Config.Prerender.MaxParallel,
		UserAgent:   c.Config.Prerender.UserAgent,
		NavTimeout:  c.Config.Prerender.NavTimeout(),
	}, c.Logger.Named("prerender"))
	if err != nil {
		return nil, nil, fmt.Errorf("starting prerenderer: %w", err)
	}
	return pr, pr.Close, nil
}

// DestinationLabel names where frozen files land, for logs and audit
// records. Object-store backends are labelled by their bucket URI.
func (c *Components) DestinationLabel() string {
	if c.Config.Storage.Provider == "gcs" {
		if p := c.Config.Storage.GCS.Prefix; p != "" {
			return fmt.Sprintf("gs://%s/%s", c.Config.Storage.GCS.Bucket, p)
		}
		return "gs://" + c.Config.Storage.GCS.Bucket
	}
	return c.Config.Freeze.Destination
}

// Close releases every owned resource. The hub is closed first so
// pending events still reach the store before it shuts down.
func (c *Components) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Hub != nil {
		if err := c.Hub.Close(ctx); err != nil {
			c.Logger.Warn("closing progress hub", zap.Error(err))
		}
	}
	if c.pubsubNotifier != nil {
		c.pubsubNotifier.Stop()
	}
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			c.Logger.Warn("closing pubsub client", zap.Error(err))
		}
	}
	if c.storageClient != nil {
		if err := c.storageClient.Close(); err != nil {
			c.Logger.Warn("closing storage client", zap.Error(err))
		}
	}
	if c.runStore != nil {
		c.runStore.Close()
	}
	_ = c.Logger.Sync()
}
