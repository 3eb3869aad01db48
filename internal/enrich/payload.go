package enrich

import (
	"encoding/json"
	"fmt"
	"image"
	"strings"

	"github.com/JakeFAU/adcatalog/internal/catalog"
)

// FictionPayload is the subset of the content API response the catalog uses.
// Pointer fields distinguish a missing value from a zero value.
type FictionPayload struct {
	ID            *int64         `json:"id"`
	Title         *string        `json:"title"`
	Slug          *string        `json:"slug"`
	Description   *string        `json:"description"`
	Cover         *string        `json:"cover"`
	Status        *string        `json:"status"`
	Tags          *[]TagPayload  `json:"tags"`
	AverageRating *float64       `json:"averageRating"`
	AuthorInfo    *AuthorPayload `json:"authorInfo"`
	AdvancedStats *StatsPayload  `json:"advancedStats"`
}

// TagPayload is one tag object. Tags without a slug are ignored.
type TagPayload struct {
	Slug *string `json:"slug"`
}

// AuthorPayload is the nested author block.
type AuthorPayload struct {
	UserID   *int64  `json:"userId"`
	Username *string `json:"username"`
}

// StatsPayload is the nested advanced statistics block.
type StatsPayload struct {
	Followers  *int64 `json:"followers"`
	Favorites  *int64 `json:"favorites"`
	Ratings    *int64 `json:"ratings"`
	TotalViews *int64 `json:"totalViews"`
	WordCount  *int64 `json:"wordCount"`
	PageCount  *int64 `json:"pageCount"`
}

// ParseFiction decodes a content API response body.
func ParseFiction(data []byte) (FictionPayload, error) {
	var payload FictionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return FictionPayload{}, fmt.Errorf("decode fiction: %w", err)
	}
	return payload, nil
}

// CoverURL returns the cover reference, or "" when there is none.
func (p FictionPayload) CoverURL() string {
	if p.Cover == nil {
		return ""
	}
	return strings.TrimSpace(*p.Cover)
}

// ToContentRecord maps payload into a catalog record. A missing required
// field yields an error wrapping ErrSkip; no partially populated record is
// ever returned. Description may be absent.
func ToContentRecord(p FictionPayload, cover image.Image, timestamp int64) (catalog.ContentRecord, error) {
	var missing []string
	need := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}
	need(p.ID != nil, "id")
	need(p.Title != nil, "title")
	need(p.Slug != nil, "slug")
	need(p.Status != nil, "status")
	need(p.Tags != nil, "tags")
	need(p.AverageRating != nil, "averageRating")
	need(cover != nil, "cover")
	need(p.AuthorInfo != nil, "authorInfo")
	if p.AuthorInfo != nil {
		need(p.AuthorInfo.UserID != nil, "authorInfo.userId")
		need(p.AuthorInfo.Username != nil, "authorInfo.username")
	}
	need(p.AdvancedStats != nil, "advancedStats")
	if s := p.AdvancedStats; s != nil {
		need(s.Followers != nil, "advancedStats.followers")
		need(s.Favorites != nil, "advancedStats.favorites")
		need(s.Ratings != nil, "advancedStats.ratings")
		need(s.TotalViews != nil, "advancedStats.totalViews")
		need(s.WordCount != nil, "advancedStats.wordCount")
		need(s.PageCount != nil, "advancedStats.pageCount")
	}
	if len(missing) > 0 {
		return catalog.ContentRecord{}, fmt.Errorf("%w: missing %s", ErrSkip, strings.Join(missing, ", "))
	}

	tags := make([]string, 0, len(*p.Tags))
	for _, tag := range *p.Tags {
		if tag.Slug == nil {
			continue
		}
		tags = append(tags, strings.TrimSpace(*tag.Slug))
	}

	var description string
	if p.Description != nil {
		description = *p.Description
	}

	stats := p.AdvancedStats
	return catalog.ContentRecord{
		ID:            *p.ID,
		Title:         *p.Title,
		Slug:          *p.Slug,
		Description:   description,
		Cover:         cover,
		Status:        *p.Status,
		Tags:          tags,
		AverageRating: *p.AverageRating,
		AuthorID:      *p.AuthorInfo.UserID,
		AuthorName:    *p.AuthorInfo.Username,
		Followers:     *stats.Followers,
		Favorites:     *stats.Favorites,
		Ratings:       *stats.Ratings,
		TotalViews:    *stats.TotalViews,
		WordCount:     *stats.WordCount,
		PageCount:     *stats.PageCount,
		Timestamp:     timestamp,
	}, nil
}
