// Package pipeline runs one capture pass end to end: capture the banner ads,
// fold them into the catalog, and enrich each linked content record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/capture"
	"github.com/JakeFAU/adcatalog/internal/catalog"
	"github.com/JakeFAU/adcatalog/internal/enrich"
	"github.com/JakeFAU/adcatalog/internal/metrics"
)

const tracerName = "github.com/JakeFAU/adcatalog/internal/pipeline"

// Capturer produces the ads on the target page.
type Capturer interface {
	Capture(ctx context.Context) (capture.Result, error)
}

// Catalog persists ads and content records.
type Catalog interface {
	Save(ctx context.Context, ad catalog.AdRecord) (catalog.SaveResult, error)
	SaveMetadata(ctx context.Context, rec catalog.ContentRecord) error
}

type collectionSizer interface {
	Ads() []catalog.AdRecord
	Content() []catalog.ContentRecord
}

// Enricher fetches a content record by id. Failures wrap enrich.ErrSkip.
type Enricher interface {
	Fetch(ctx context.Context, id int64) (catalog.ContentRecord, error)
}

// LinkMatcher extracts a content id from an ad destination.
type LinkMatcher interface {
	ContentID(link string) (int64, bool)
}

// Limiter spaces out requests to the same host.
type Limiter interface {
	Wait(ctx context.Context, target string) error
}

// Publisher announces catalog events.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) (string, error)
}

// Auditor records catalog events durably.
type Auditor interface {
	Record(ctx context.Context, event catalog.Event) error
}

// Clock supplies event timestamps.
type Clock interface {
	Now() time.Time
}

// Deps are the collaborators of a run. Enricher, Limiter, Publisher and
// Auditor are optional.
type Deps struct {
	Capturer  Capturer
	Catalog   Catalog
	Enricher  Enricher
	Links     LinkMatcher
	Limiter   Limiter
	Publisher Publisher
	Auditor   Auditor
	Clock     Clock
}

// Config tunes a run.
type Config struct {
	// EnrichTarget keys the politeness limiter, normally the API base URL.
	EnrichTarget string
}

// Summary counts what a run did.
type Summary struct {
	Captured   int
	Accepted   int
	Superseded int
	Enriched   int
	Skipped    int
	Degraded   bool
}

// Pipeline wires capture, catalog and enrichment together.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// New validates deps and returns a Pipeline.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if deps.Capturer == nil {
		return nil, errors.New("pipeline: capturer is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("pipeline: catalog is required")
	}
	if deps.Enricher != nil && deps.Links == nil {
		return nil, errors.New("pipeline: link matcher is required for enrichment")
	}
	if deps.Clock == nil {
		deps.Clock = utcClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("pipeline"),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Run performs one pass. A structural capture failure, an invalid ad or a
// persistence fault stops the run and is returned; everything else is logged
// and counted.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	var summary Summary
	started := time.Now()
	res, err := p.deps.Capturer.Capture(ctx)
	switch {
	case err != nil:
		metrics.ObserveCapture(metrics.CaptureStructuralFailure, time.Since(started))
		span.RecordError(err)
		span.SetStatus(codes.Error, "capture failed")
		p.logger.Error("capture failed", zap.Error(err))
		return summary, fmt.Errorf("capture: %w", err)
	case res.Fault != nil:
		metrics.ObserveCapture(metrics.CaptureDegraded, time.Since(started))
		summary.Degraded = true
		p.logger.Warn("capture degraded, continuing with partial result",
			zap.Error(res.Fault),
			zap.Int("ads", len(res.Ads)),
		)
	default:
		metrics.ObserveCapture(metrics.CaptureOK, time.Since(started))
	}
	summary.Captured = len(res.Ads)
	span.SetAttributes(
		attribute.Int("capture.containers", res.Containers),
		attribute.Int("capture.ads", len(res.Ads)),
	)
	p.logger.Info("capture complete",
		zap.Int("containers", res.Containers),
		zap.Int("images", res.Images),
		zap.Int("banners", res.Banners),
		zap.Int("ads", len(res.Ads)),
	)

	for _, ad := range res.Ads {
		if err := p.processAd(ctx, ad, &summary); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ad processing failed")
			return summary, err
		}
	}

	if c, ok := p.deps.Catalog.(collectionSizer); ok {
		metrics.SetCatalogEntries("ads", len(c.Ads()))
		metrics.SetCatalogEntries("content", len(c.Content()))
	}
	p.logger.Info("run complete",
		zap.Int("captured", summary.Captured),
		zap.Int("accepted", summary.Accepted),
		zap.Int("superseded", summary.Superseded),
		zap.Int("enriched", summary.Enriched),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (p *Pipeline) processAd(ctx context.Context, ad catalog.AdRecord, summary *Summary) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.ad", trace.WithAttributes(
		attribute.String("ad.id", ad.ID),
		attribute.String("ad.link", ad.Link),
	))
	defer span.End()

	result, err := p.deps.Catalog.Save(ctx, ad)
	if err != nil {
		metrics.ObserveAds(metrics.AdRejected, 1)
		span.RecordError(err)
		return fmt.Errorf("save ad %s: %w", ad.ID, err)
	}
	summary.Accepted++
	summary.Superseded += len(result.Superseded)
	metrics.ObserveAds(metrics.AdAccepted, 1)
	metrics.ObserveAds(metrics.AdSuperseded, len(result.Superseded))
	p.logger.Info("ad saved",
		zap.String("ad_id", ad.ID),
		zap.String("link", ad.Link),
		zap.Strings("superseded", result.Superseded),
	)

	now := p.deps.Clock.Now()
	p.emit(ctx, catalog.Event{Kind: catalog.EventAdAccepted, RecordID: ad.ID, Link: ad.Link, At: now})
	for _, old := range result.Superseded {
		p.emit(ctx, catalog.Event{Kind: catalog.EventAdSuperseded, RecordID: old, RelatedID: ad.ID, At: now})
	}

	if p.deps.Enricher == nil {
		return nil
	}
	return p.enrich(ctx, ad, summary)
}

func (p *Pipeline) enrich(ctx context.Context, ad catalog.AdRecord, summary *Summary) error {
	id, ok := p.deps.Links.ContentID(ad.Link)
	if !ok {
		metrics.ObserveEnrichment(metrics.EnrichNoLink)
		p.logger.Debug("ad does not link to content", zap.String("ad_id", ad.ID), zap.String("link", ad.Link))
		return nil
	}
	if p.deps.Limiter != nil {
		if err := p.deps.Limiter.Wait(ctx, p.cfg.EnrichTarget); err != nil {
			return fmt.Errorf("wait for enrichment slot: %w", err)
		}
	}

	rec, err := p.deps.Enricher.Fetch(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("enrich content %d: %w", id, ctxErr)
		}
		summary.Skipped++
		metrics.ObserveEnrichment(metrics.EnrichSkipped)
		level := zap.WarnLevel
		if errors.Is(err, enrich.ErrSkip) {
			level = zap.InfoLevel
		}
		p.logger.Log(level, "enrichment skipped", zap.Int64("content_id", id), zap.Error(err))
		return nil
	}

	if err := p.deps.Catalog.SaveMetadata(ctx, rec); err != nil {
		return fmt.Errorf("save content %d: %w", id, err)
	}
	summary.Enriched++
	metrics.ObserveEnrichment(metrics.EnrichSaved)
	p.logger.Info("content saved", zap.Int64("content_id", id), zap.String("title", rec.Title))
	p.emit(ctx, catalog.Event{
		Kind:      catalog.EventContentSaved,
		RecordID:  strconv.FormatInt(id, 10),
		RelatedID: ad.ID,
		Link:      ad.Link,
		At:        p.deps.Clock.Now(),
	})
	return nil
}

// emit hands an event to the optional sinks. Sink failures never fail a run.
func (p *Pipeline) emit(ctx context.Context, event catalog.Event) {
	if p.deps.Publisher != nil {
		if _, err := p.deps.Publisher.Publish(ctx, string(event.Kind), event); err != nil {
			p.logger.Warn("publish event failed",
				zap.String("kind", string(event.Kind)),
				zap.String("record_id", event.RecordID),
				zap.Error(err),
			)
		}
	}
	if p.deps.Auditor != nil {
		if err := p.deps.Auditor.Record(ctx, event); err != nil {
			p.logger.Warn("audit event failed",
				zap.String("kind", string(event.Kind)),
				zap.String("record_id", event.RecordID),
				zap.Error(err),
			)
		}
	}
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }
