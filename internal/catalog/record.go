// Package catalog owns the accepted banner ads and the content records they
// link to. It enforces that no two active ads are perceptually the same and
// keeps both index documents durable.
package catalog

import (
	"image"
	"strconv"
	"time"
)

// Canonical dimensions for captured banners and stored covers.
var (
	BannerSize = image.Point{X: 300, Y: 250}
	CoverSize  = image.Point{X: 200, Y: 300}
)

// AdRecord is one captured banner ad.
type AdRecord struct {
	ID        string
	Alt       string
	Link      string
	Timestamp int64
	Image     image.Image
}

// CapturedAt converts the record timestamp to a time.Time.
func (a AdRecord) CapturedAt() time.Time {
	return time.Unix(a.Timestamp, 0).UTC()
}

// ContentRecord describes the fiction an ad links to.
type ContentRecord struct {
	ID            int64
	Title         string
	Slug          string
	Description   string
	Cover         image.Image
	Status        string
	Tags          []string
	AverageRating float64
	AuthorID      int64
	AuthorName    string
	Followers     int64
	Favorites     int64
	Ratings       int64
	TotalViews    int64
	WordCount     int64
	PageCount     int64
	Timestamp     int64
}

// Key returns the index key for the record.
func (c ContentRecord) Key() string {
	return strconv.FormatInt(c.ID, 10)
}

type adEntry struct {
	Alt       string `json:"alt"`
	Link      string `json:"link"`
	Timestamp int64  `json:"timestamp"`
}

type contentEntry struct {
	Title         string   `json:"title"`
	Slug          string   `json:"slug"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	Tags          []string `json:"tags"`
	AverageRating float64  `json:"average_rating"`
	AuthorID      int64    `json:"author_id"`
	AuthorName    string   `json:"author_name"`
	Followers     int64    `json:"followers"`
	Favorites     int64    `json:"favorites"`
	Ratings       int64    `json:"ratings"`
	TotalViews    int64    `json:"total_views"`
	WordCount     int64    `json:"word_count"`
	PageCount     int64    `json:"page_count"`
	Timestamp     int64    `json:"timestamp"`
}

func toAdEntry(a AdRecord) adEntry {
	return adEntry{Alt: a.Alt, Link: a.Link, Timestamp: a.Timestamp}
}

func fromAdEntry(id string, e adEntry, img image.Image) AdRecord {
	return AdRecord{ID: id, Alt: e.Alt, Link: e.Link, Timestamp: e.Timestamp, Image: img}
}

func toContentEntry(c ContentRecord) contentEntry {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return contentEntry{
		Title:         c.Title,
		Slug:          c.Slug,
		Description:   c.Description,
		Status:        c.Status,
		Tags:          tags,
		AverageRating: c.AverageRating,
		AuthorID:      c.AuthorID,
		AuthorName:    c.AuthorName,
		Followers:     c.Followers,
		Favorites:     c.Favorites,
		Ratings:       c.Ratings,
		TotalViews:    c.TotalViews,
		WordCount:     c.WordCount,
		PageCount:     c.PageCount,
		Timestamp:     c.Timestamp,
	}
}

func fromContentEntry(id int64, e contentEntry, cover image.Image) ContentRecord {
	return ContentRecord{
		ID:            id,
		Title:         e.Title,
		Slug:          e.Slug,
		Description:   e.Description,
		Cover:         cover,
		Status:        e.Status,
		Tags:          e.Tags,
		AverageRating: e.AverageRating,
		AuthorID:      e.AuthorID,
		AuthorName:    e.AuthorName,
		Followers:     e.Followers,
		Favorites:     e.Favorites,
		Ratings:       e.Ratings,
		TotalViews:    e.TotalViews,
		WordCount:     e.WordCount,
		PageCount:     e.PageCount,
		Timestamp:     e.Timestamp,
	}
}
