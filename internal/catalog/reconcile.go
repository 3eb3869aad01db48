package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/storage"
)

// ScopeReport compares one index document against the resources in its
// directory.
type ScopeReport struct {
	Entries   int      `json:"entries"`
	Resources int      `json:"resources"`
	Orphans   []string `json:"orphans"`
	Dangling  []string `json:"dangling"`
	Deleted   []string `json:"deleted,omitempty"`
}

// Consistent reports whether the scope has neither orphans nor dangling
// entries.
func (r ScopeReport) Consistent() bool {
	return len(r.Orphans) == 0 && len(r.Dangling) == 0
}

// ReconcileReport covers both the ad and the cover scopes.
type ReconcileReport struct {
	Ads    ScopeReport `json:"ads"`
	Covers ScopeReport `json:"covers"`
}

// Consistent reports whether both scopes are consistent.
func (r ReconcileReport) Consistent() bool {
	return r.Ads.Consistent() && r.Covers.Consistent()
}

// Reconcile compares the durable index documents with the stored images.
// Orphans are images no index entry references; dangling entries reference
// images that are gone. With deleteOrphans set, orphan images are removed.
func (c *Catalog) Reconcile(ctx context.Context, deleteOrphans bool) (ReconcileReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	adKeys, err := indexKeys[adEntry](ctx, c.store, c.layout.AdIndex)
	if err != nil {
		return ReconcileReport{}, err
	}
	ads, err := c.reconcileScope(ctx, c.layout.AdsDir, adKeys, deleteOrphans)
	if err != nil {
		return ReconcileReport{}, err
	}
	coverKeys, err := indexKeys[contentEntry](ctx, c.store, c.layout.ContentIndex)
	if err != nil {
		return ReconcileReport{}, err
	}
	covers, err := c.reconcileScope(ctx, c.layout.CoversDir, coverKeys, deleteOrphans)
	if err != nil {
		return ReconcileReport{}, err
	}
	return ReconcileReport{Ads: ads, Covers: covers}, nil
}

func (c *Catalog) reconcileScope(ctx context.Context, dir string, keys []string, deleteOrphans bool) (ScopeReport, error) {
	names, err := c.store.List(ctx, dir)
	if err != nil {
		return ScopeReport{}, fmt.Errorf("%w: list %s: %w", ErrPersistence, dir, err)
	}
	resources := make(map[string]string, len(names))
	for _, name := range names {
		base := path.Base(name)
		if !strings.HasSuffix(base, pngExt) {
			continue
		}
		resources[strings.TrimSuffix(base, pngExt)] = name
	}

	report := ScopeReport{
		Entries:   len(keys),
		Resources: len(resources),
		Orphans:   []string{},
		Dangling:  []string{},
	}
	indexed := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		indexed[key] = struct{}{}
		if _, ok := resources[key]; !ok {
			report.Dangling = append(report.Dangling, key)
		}
	}
	for _, name := range names {
		id := strings.TrimSuffix(path.Base(name), pngExt)
		if resources[id] != name {
			continue
		}
		if _, ok := indexed[id]; ok {
			continue
		}
		report.Orphans = append(report.Orphans, id)
		if !deleteOrphans {
			continue
		}
		if err := c.store.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return report, fmt.Errorf("%w: delete orphan %s: %w", ErrPersistence, name, err)
		}
		c.logger.Info("deleted orphan image", zap.String("resource", name))
		report.Deleted = append(report.Deleted, id)
	}
	return report, nil
}

func indexKeys[T any](ctx context.Context, store storage.Store, name string) ([]string, error) {
	entries, err := readIndex[T](ctx, store, name)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(entries))
	for i, entry := range entries {
		keys[i] = entry.Key
	}
	return keys, nil
}
