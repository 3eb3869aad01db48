// Package app builds the long-lived services a command needs from
// configuration and tears them down again, acting as a dependency injection
// container for the CLI.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/capture"
	"github.com/JakeFAU/adcatalog/internal/catalog"
	"github.com/JakeFAU/adcatalog/internal/clock/system"
	"github.com/JakeFAU/adcatalog/internal/config"
	"github.com/JakeFAU/adcatalog/internal/enrich"
	"github.com/JakeFAU/adcatalog/internal/id/uuid"
	"github.com/JakeFAU/adcatalog/internal/pipeline"
	"github.com/JakeFAU/adcatalog/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/adcatalog/internal/publisher/pubsub"
	"github.com/JakeFAU/adcatalog/internal/storage"
	"github.com/JakeFAU/adcatalog/internal/storage/gcs"
	"github.com/JakeFAU/adcatalog/internal/storage/local"
	"github.com/JakeFAU/adcatalog/internal/storage/memory"
	"github.com/JakeFAU/adcatalog/internal/storage/postgres"
)

// App holds the shared services for one command invocation.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   storage.Store
	catalog *catalog.Catalog
	ids     *uuid.Generator
	clock   *system.Clock

	audit     *postgres.AuditStore
	publisher *pubsubpublisher.Publisher

	closers []func() error
}

// New opens the resource store, loads the catalog and connects the optional
// audit and notification sinks. It fails fast if any configured service
// cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		ids:    uuid.New(),
		clock:  system.New(),
	}
	if cfg.Catalog.TimeOrderedIDs {
		a.ids = uuid.NewTimeOrdered()
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	a.catalog, err = catalog.Open(ctx, store, catalog.Options{
		Layout:    cfg.CatalogLayout(),
		Threshold: cfg.Catalog.Threshold,
		Logger:    logger.Named("catalog"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	if cfg.DB.DSN != "" {
		if err := a.openAudit(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	if cfg.PubSub.TopicName != "" {
		if err := a.openPublisher(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the resource store backing the catalog.
func (a *App) Store() storage.Store { return a.store }

// Catalog returns the loaded catalog.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// Audit returns the audit store, or nil when none is configured.
func (a *App) Audit() *postgres.AuditStore { return a.audit }

// Enricher authenticates against the content API. It is built on demand so
// commands that never enrich do not need credentials.
func (a *App) Enricher(ctx context.Context) (*enrich.Client, error) {
	if err := a.cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	client, err := enrich.New(ctx, a.cfg.EnrichSettings(), a.logger, enrich.WithNow(a.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("connect content api: %w", err)
	}
	return client, nil
}

// Links returns the configured content link matcher.
func (a *App) Links() (*enrich.LinkMatcher, error) {
	m, err := enrich.NewLinkMatcher(a.cfg.Enrich.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("enrich.link_pattern: %w", err)
	}
	return m, nil
}

// Pipeline assembles a capture run from the configured services.
func (a *App) Pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	deps := pipeline.Deps{
		Capturer: capture.NewSession(a.cfg.CaptureSettings(), a.logger,
			capture.WithClock(a.clock),
			capture.WithIDGenerator(a.ids),
		),
		Catalog: a.catalog,
		Clock:   a.clock,
	}
	if a.cfg.Enrich.Enabled {
		enricher, err := a.Enricher(ctx)
		if err != nil {
			return nil, err
		}
		links, err := a.Links()
		if err != nil {
			return nil, err
		}
		deps.Enricher = enricher
		deps.Links = links
		deps.Limiter = ratelimit.New(ratelimit.Config{Interval: a.cfg.Enrich.Delay, Burst: 1})
	}
	if a.publisher != nil {
		deps.Publisher = a.publisher
	}
	if a.audit != nil {
		deps.Auditor = a.audit
	}
	return pipeline.New(deps, pipeline.Config{EnrichTarget: a.cfg.Enrich.APIBaseURL}, a.logger)
}

// Close releases every service in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Catalog.Backend {
	case config.BackendLocal:
		a.logger.Info("using local catalog store", zap.String("dir", a.cfg.Catalog.Dir))
		store, err := local.New(local.Config{BaseDir: a.cfg.Catalog.Dir})
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		return store, nil
	case config.BackendGCS:
		a.logger.Info("using GCS catalog store", zap.String("bucket", a.cfg.Catalog.GCSBucket))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Catalog.GCSBucket, Prefix: a.cfg.Catalog.GCSPrefix})
		if err != nil {
			return nil, fmt.Errorf("open gcs store: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		a.logger.Info("using in-memory catalog store, nothing will be persisted")
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend: %s", a.cfg.Catalog.Backend)
	}
}

func (a *App) openAudit(ctx context.Context) error {
	a.logger.Info("connecting to audit database", zap.String("table", a.cfg.DB.Table))
	audit, err := postgres.New(ctx, postgres.Config{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
		MinConns: a.cfg.DB.MinConns,
	}, a.ids)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	a.closers = append(a.closers, func() error {
		audit.Close()
		return nil
	})
	if err := audit.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("prepare audit schema: %w", err)
	}
	a.audit = audit
	return nil
}

func (a *App) openPublisher(ctx context.Context) error {
	a.logger.Info("connecting to Pub/Sub", zap.String("topic", a.cfg.PubSub.TopicName))
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	topic := client.Topic(a.cfg.PubSub.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check pubsub topic %q: %w", a.cfg.PubSub.TopicName, err)
	}
	if !exists {
		return fmt.Errorf("pubsub topic %q does not exist in project %q", a.cfg.PubSub.TopicName, a.cfg.PubSub.ProjectID)
	}
	a.publisher = pubsubpublisher.New(topic)
	a.closers = append(a.closers, func() error {
		a.publisher.Close()
		return nil
	})
	return nil
}
