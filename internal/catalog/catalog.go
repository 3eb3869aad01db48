package catalog

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/imaging"
	"github.com/JakeFAU/adcatalog/internal/storage"
)

const pngExt = ".png"

// Layout names the resources the catalog keeps inside its store.
type Layout struct {
	AdsDir        string
	AdIndex       string
	CoversDir     string
	ContentIndex  string
	QuarantineDir string
}

// DefaultLayout mirrors the on-disk layout of the archive.
func DefaultLayout() Layout {
	return Layout{
		AdsDir:        "300x250",
		AdIndex:       "300x250/entries.json",
		CoversDir:     "200x300",
		ContentIndex:  "fiction.json",
		QuarantineDir: "debug",
	}
}

// Options tunes a Catalog.
type Options struct {
	Layout    Layout
	Threshold float64
	Logger    *zap.Logger
}

// SaveResult reports what an ad save displaced.
type SaveResult struct {
	Superseded []string
}

// Catalog is the in-memory view of both indexes plus the store that backs
// them. Methods serialize on an internal lock; the pipeline is still expected
// to be the only writer.
type Catalog struct {
	store     storage.Store
	layout    Layout
	threshold float64
	logger    *zap.Logger

	mu      sync.RWMutex
	ads     []AdRecord
	content []ContentRecord
}

// Open loads both indexes from store. An entry whose image is missing or
// undecodable stays in the index with a nil image, so later rewrites carry it
// forward and Reconcile reports it. Any other store failure aborts Open.
func Open(ctx context.Context, store storage.Store, opts Options) (*Catalog, error) {
	if store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if opts.Layout == (Layout{}) {
		opts.Layout = DefaultLayout()
	}
	if opts.Threshold <= 0 {
		opts.Threshold = imaging.DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Catalog{
		store:     store,
		layout:    opts.Layout,
		threshold: opts.Threshold,
		logger:    opts.Logger,
	}
	if err := c.loadAds(ctx); err != nil {
		return nil, err
	}
	if err := c.loadContent(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("catalog opened",
		zap.Int("ads", len(c.ads)),
		zap.Int("content", len(c.content)),
	)
	return c, nil
}

func (c *Catalog) loadAds(ctx context.Context) error {
	entries, err := readIndex[adEntry](ctx, c.store, c.layout.AdIndex)
	if err != nil {
		return err
	}
	c.ads = make([]AdRecord, 0, len(entries))
	for _, entry := range entries {
		img, err := c.loadImage(ctx, c.adPath(entry.Key))
		if err != nil {
			return err
		}
		if img == nil {
			c.logger.Warn("ad has no usable image", zap.String("ad_id", entry.Key))
		}
		c.ads = append(c.ads, fromAdEntry(entry.Key, entry.Value, img))
	}
	return nil
}

func (c *Catalog) loadContent(ctx context.Context) error {
	entries, err := readIndex[contentEntry](ctx, c.store, c.layout.ContentIndex)
	if err != nil {
		return err
	}
	c.content = make([]ContentRecord, 0, len(entries))
	for _, entry := range entries {
		id, err := strconv.ParseInt(entry.Key, 10, 64)
		if err != nil {
			return fmt.Errorf("decode %s: content id %q is not numeric", c.layout.ContentIndex, entry.Key)
		}
		cover, err := c.loadImage(ctx, c.coverPath(id))
		if err != nil {
			return err
		}
		if cover == nil {
			c.logger.Warn("content has no usable cover", zap.Int64("content_id", id))
		}
		c.content = append(c.content, fromContentEntry(id, entry.Value, cover))
	}
	return nil
}

// loadImage returns a nil image without error when the resource is absent or
// cannot be decoded.
func (c *Catalog) loadImage(ctx context.Context, name string) (image.Image, error) {
	data, err := c.store.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, name, err)
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		c.logger.Warn("undecodable image", zap.String("resource", name), zap.Error(err))
		return nil, nil
	}
	return img, nil
}

// Save accepts a new ad. Every active ad within the distance threshold of the
// new image is moved to quarantine and dropped from the index; the new ad goes
// to the front. The index is rewritten once, after the image is durable.
func (c *Catalog) Save(ctx context.Context, ad AdRecord) (SaveResult, error) {
	if strings.TrimSpace(ad.ID) == "" {
		return SaveResult{}, fmt.Errorf("%w: ad id is empty", ErrInvalidRecord)
	}
	if !imaging.HasSize(ad.Image, BannerSize.X, BannerSize.Y) {
		return SaveResult{}, fmt.Errorf("%w: ad %s is %s, want %dx%d",
			ErrInvalidImage, ad.ID, describeSize(ad.Image), BannerSize.X, BannerSize.Y)
	}
	data, err := imaging.EncodePNG(ad.Image)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: encode ad %s: %v", ErrInvalidImage, ad.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.Put(ctx, c.adPath(ad.ID), "image/png", data); err != nil {
		return SaveResult{}, fmt.Errorf("%w: write ad %s: %w", ErrPersistence, ad.ID, err)
	}
	// Compare against what was written, not the caller's copy.
	persisted, _, err := imaging.Decode(data)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: reread ad %s: %w", ErrPersistence, ad.ID, err)
	}
	ad.Image = persisted

	var result SaveResult
	kept := make([]AdRecord, 0, len(c.ads))
	for _, existing := range c.ads {
		if existing.ID == ad.ID {
			continue
		}
		distance := imaging.Distance(existing.Image, ad.Image)
		if !imaging.SameAd(distance, c.threshold) {
			kept = append(kept, existing)
			continue
		}
		err := c.store.Move(ctx, c.adPath(existing.ID), c.quarantinePath(existing.ID))
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return SaveResult{}, fmt.Errorf("%w: quarantine ad %s: %w", ErrPersistence, existing.ID, err)
		}
		c.logger.Info("ad superseded",
			zap.String("ad_id", existing.ID),
			zap.String("replaced_by", ad.ID),
			zap.Float64("distance", distance),
		)
		result.Superseded = append(result.Superseded, existing.ID)
	}

	next := make([]AdRecord, 0, len(kept)+1)
	next = append(next, ad)
	next = append(next, kept...)
	if err := c.writeAdIndex(ctx, next); err != nil {
		return SaveResult{}, err
	}
	c.ads = next
	return result, nil
}

// SaveMetadata stores a content record and its cover, normalizing the cover
// to the canonical cover size. A record with the same id is replaced and the
// new one moves to the front.
func (c *Catalog) SaveMetadata(ctx context.Context, rec ContentRecord) error {
	if rec.ID <= 0 {
		return fmt.Errorf("%w: content id %d", ErrInvalidRecord, rec.ID)
	}
	if rec.Cover == nil {
		return fmt.Errorf("%w: content %d has no cover", ErrInvalidImage, rec.ID)
	}
	rec.Cover = imaging.Resize(rec.Cover, CoverSize.X, CoverSize.Y)
	data, err := imaging.EncodePNG(rec.Cover)
	if err != nil {
		return fmt.Errorf("%w: encode cover %d: %v", ErrInvalidImage, rec.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.Put(ctx, c.coverPath(rec.ID), "image/png", data); err != nil {
		return fmt.Errorf("%w: write cover %d: %w", ErrPersistence, rec.ID, err)
	}
	next := make([]ContentRecord, 0, len(c.content)+1)
	next = append(next, rec)
	for _, existing := range c.content {
		if existing.ID != rec.ID {
			next = append(next, existing)
		}
	}
	if err := c.writeContentIndex(ctx, next); err != nil {
		return err
	}
	c.content = next
	return nil
}

// Ads returns the active ads, most recent first.
func (c *Catalog) Ads() []AdRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AdRecord, len(c.ads))
	copy(out, c.ads)
	return out
}

// Content returns the stored content records, most recent first.
func (c *Catalog) Content() []ContentRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ContentRecord, len(c.content))
	copy(out, c.content)
	return out
}

// Ad looks up an active ad by id.
func (c *Catalog) Ad(id string) (AdRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ad := range c.ads {
		if ad.ID == id {
			return ad, true
		}
	}
	return AdRecord{}, false
}

// ContentByID looks up a content record.
func (c *Catalog) ContentByID(id int64) (ContentRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rec := range c.content {
		if rec.ID == id {
			return rec, true
		}
	}
	return ContentRecord{}, false
}

// HasContent reports whether metadata for id is already stored.
func (c *Catalog) HasContent(id int64) bool {
	_, ok := c.ContentByID(id)
	return ok
}

// AdPath is the store name of an ad image.
func (c *Catalog) AdPath(id string) string { return c.adPath(id) }

// CoverPath is the store name of a content cover.
func (c *Catalog) CoverPath(id int64) string { return c.coverPath(id) }

func (c *Catalog) writeAdIndex(ctx context.Context, ads []AdRecord) error {
	entries := make([]indexEntry[adEntry], len(ads))
	for i, ad := range ads {
		entries[i] = indexEntry[adEntry]{Key: ad.ID, Value: toAdEntry(ad)}
	}
	return writeIndex(ctx, c.store, c.layout.AdIndex, entries)
}

func (c *Catalog) writeContentIndex(ctx context.Context, content []ContentRecord) error {
	entries := make([]indexEntry[contentEntry], len(content))
	for i, rec := range content {
		entries[i] = indexEntry[contentEntry]{Key: rec.Key(), Value: toContentEntry(rec)}
	}
	return writeIndex(ctx, c.store, c.layout.ContentIndex, entries)
}

func (c *Catalog) adPath(id string) string {
	return path.Join(c.layout.AdsDir, id+pngExt)
}

func (c *Catalog) coverPath(id int64) string {
	return path.Join(c.layout.CoversDir, strconv.FormatInt(id, 10)+pngExt)
}

func (c *Catalog) quarantinePath(id string) string {
	return path.Join(c.layout.QuarantineDir, id+pngExt)
}

func readIndex[T any](ctx context.Context, store storage.Store, name string) ([]indexEntry[T], error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, name, err)
	}
	entries, err := decodeIndex[T](data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return entries, nil
}

func writeIndex[T any](ctx context.Context, store storage.Store, name string, entries []indexEntry[T]) error {
	data, err := encodeIndex(entries)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, name, err)
	}
	if _, err := store.Put(ctx, name, "application/json", data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, name, err)
	}
	return nil
}

func describeSize(img image.Image) string {
	if img == nil {
		return "missing"
	}
	b := img.Bounds()
	return fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
}
