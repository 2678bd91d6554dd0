// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	pubsubv2 "cloud.google.com/go/pubsub/v2"

	"github.com/quizforge/quizd/internal/config"
	"github.com/quizforge/quizd/internal/fetcher/headless"
	"github.com/quizforge/quizd/internal/llm"
	"github.com/quizforge/quizd/internal/logging"
	pubmem "github.com/quizforge/quizd/internal/publisher/memory"
	pubgcp "github.com/quizforge/quizd/internal/publisher/pubsub"
	"github.com/quizforge/quizd/internal/quiz"
	"github.com/quizforge/quizd/internal/storage/gcs"
	"github.com/quizforge/quizd/internal/storage/local"
	storagemem "github.com/quizforge/quizd/internal/storage/memory"
	storemem "github.com/quizforge/quizd/internal/store/memory"
	storepg "github.com/quizforge/quizd/internal/store/postgres"
)

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and passed to the components that need it.
type App struct {
	logger   *zap.Logger
	cfg      config.Config
	jobStore quiz.JobStore
	blobs    quiz.BlobStore
	events   quiz.Publisher
	renderer quiz.Renderer
	model    llm.Model

	pgStore      *storepg.JobStore
	pubsubClient *pubsubv2.Client
	gcsClient    *gcstorage.Client
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// JobStore exposes job persistence.
func (a *App) JobStore() quiz.JobStore { return a.jobStore }

// BlobStore exposes page snapshot storage.
func (a *App) BlobStore() quiz.BlobStore { return a.blobs }

// Publisher exposes the chain-event publisher. Nil when disabled.
func (a *App) Publisher() quiz.Publisher { return a.events }

// Renderer exposes the headless renderer. Nil when disabled.
func (a *App) Renderer() quiz.Renderer { return a.renderer }

// Model exposes the configured language model.
func (a *App) Model() llm.Model { return a.model }

// New creates and initializes an App from configuration. It fails fast if
// any critical service cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Info("initializing application services")

	a := &App{logger: logger, cfg: cfg}

	if err := a.initJobStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initBlobStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		return nil, err
	}
	if err := a.initModel(ctx); err != nil {
		return nil, err
	}
	a.initRenderer()

	logger.Info("application services initialized")
	return a, nil
}

func (a *App) initJobStore(ctx context.Context) error {
	switch a.cfg.Store.Provider {
	case "memory":
		a.logger.Info("using in-memory job store")
		a.jobStore = storemem.NewJobStore()
	case "postgres":
		a.logger.Info("connecting to postgres",
			zap.String("table", a.cfg.Store.Postgres.Table))
		store, err := storepg.NewJobStore(ctx, storepg.JobStoreConfig{
			DSN:      a.cfg.Store.Postgres.DSN,
			Table:    a.cfg.Store.Postgres.Table,
			MaxConns: a.cfg.Store.Postgres.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres job store: %w", err)
		}
		a.pgStore = store
		a.jobStore = store
	default:
		return fmt.Errorf("unknown store provider: %s", a.cfg.Store.Provider)
	}
	return nil
}

func (a *App) initBlobStore(ctx context.Context) error {
	switch a.cfg.Storage.Provider {
	case "local":
		a.logger.Info("using local blob storage",
			zap.String("base_dir", a.cfg.Storage.BaseDir))
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
		a.blobs = prefixedBlobStore{inner: store, prefix: a.cfg.Storage.Prefix}
	case "gcs":
		a.logger.Info("using GCS blob storage",
			zap.String("bucket", a.cfg.Storage.GCSBucket))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs storage: %w", err)
		}
		a.blobs = prefixedBlobStore{inner: store, prefix: a.cfg.Storage.Prefix}
	case "memory":
		a.logger.Info("using in-memory blob storage")
		a.blobs = storagemem.New()
	default:
		return fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	switch a.cfg.Publisher.Provider {
	case "none":
		a.logger.Info("chain events disabled")
	case "memory":
		a.logger.Info("using in-memory event publisher")
		a.events = pubmem.New()
	case "pubsub":
		a.logger.Info("connecting to pub/sub",
			zap.String("project", a.cfg.Publisher.ProjectID),
			zap.String("topic", a.cfg.Publisher.TopicID))
		client, err := pubsubv2.NewClient(ctx, a.cfg.Publisher.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		a.pubsubClient = client
		a.events = pubgcp.New(client.Publisher(a.cfg.Publisher.TopicID))
	default:
		return fmt.Errorf("unknown publisher provider: %s", a.cfg.Publisher.Provider)
	}
	return nil
}

func (a *App) initModel(ctx context.Context) error {
	model, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey: a.cfg.LLM.APIKey,
		Model:  a.cfg.LLM.Model,
	})
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}
	a.model = model
	return nil
}

func (a *App) initRenderer() {
	renderer, err := headless.NewChromedpRenderer(headless.Config{
		Enabled:           a.cfg.Headless.Enabled,
		MaxParallel:       a.cfg.Headless.MaxParallel,
		NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
		DomainQPS:         a.cfg.Headless.DomainQPS,
		UserAgent:         a.cfg.HTTP.UserAgent,
	}, a.logger)
	if err != nil {
		// The plain HTTP path still works; rendering is best-effort.
		a.logger.Warn("headless renderer unavailable", zap.Error(err))
		a.renderer = headless.NewNoop()
		return
	}
	a.renderer = renderer
}

// Close gracefully shuts down all services in the container.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("shutting down application services")
	if a.renderer != nil {
		if err := a.renderer.Close(ctx); err != nil {
			a.logger.Warn("error closing renderer", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("error closing pubsub client", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("error closing gcs client", zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		// Best effort; stderr may not be syncable.
		_ = err
	}
}

// prefixedBlobStore namespaces all object paths under a fixed prefix.
type prefixedBlobStore struct {
	inner  quiz.BlobStore
	prefix string
}

func (p prefixedBlobStore) PutObject(ctx context.Context, objectPath string, contentType string, data io.Reader) (string, error) {
	if p.prefix != "" {
		objectPath = path.Join(p.prefix, objectPath)
	}
	return p.inner.PutObject(ctx, objectPath, contentType, data)
}
