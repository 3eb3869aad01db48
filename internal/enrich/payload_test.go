package enrich

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToContentRecordTags(t *testing.T) {
	t.Parallel()

	payload, err := ParseFiction([]byte(replaceCover(fictionJSON, "https://cdn/cover.jpg")))
	require.NoError(t, err)

	rec, err := ToContentRecord(payload, image.NewNRGBA(image.Rect(0, 0, 10, 10)), 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"fantasy", "adventure"}, rec.Tags)
	assert.Equal(t, int64(42), rec.Timestamp)
	assert.Equal(t, "https://cdn/cover.jpg", payload.CoverURL())
}

func TestToContentRecordEmptyTags(t *testing.T) {
	t.Parallel()

	payload, err := ParseFiction([]byte(`{
	  "id": 1, "title": "t", "slug": "s", "description": null, "status": "ONGOING",
	  "tags": [], "averageRating": 0,
	  "authorInfo": {"userId": 0, "username": ""},
	  "advancedStats": {"followers": 0, "favorites": 0, "ratings": 0, "totalViews": 0, "wordCount": 0, "pageCount": 0}
	}`))
	require.NoError(t, err)

	rec, err := ToContentRecord(payload, image.NewGray(image.Rect(0, 0, 1, 1)), 1)
	require.NoError(t, err)
	assert.Empty(t, rec.Tags)
	assert.NotNil(t, rec.Tags)
	assert.Empty(t, rec.Description)
}

func TestToContentRecordMissingFields(t *testing.T) {
	t.Parallel()

	cover := image.NewGray(image.Rect(0, 0, 1, 1))
	cases := map[string]string{
		"NoAuthor":    `{"id": 1, "title": "t", "slug": "s", "status": "x", "tags": [], "averageRating": 1, "advancedStats": {"followers": 0, "favorites": 0, "ratings": 0, "totalViews": 0, "wordCount": 0, "pageCount": 0}}`,
		"PartialStat": `{"id": 1, "title": "t", "slug": "s", "status": "x", "tags": [], "averageRating": 1, "authorInfo": {"userId": 1, "username": "u"}, "advancedStats": {"followers": 0}}`,
		"NoTitle":     `{"id": 1, "slug": "s", "status": "x", "tags": [], "averageRating": 1, "authorInfo": {"userId": 1, "username": "u"}, "advancedStats": {"followers": 0, "favorites": 0, "ratings": 0, "totalViews": 0, "wordCount": 0, "pageCount": 0}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			payload, err := ParseFiction([]byte(doc))
			require.NoError(t, err)
			_, err = ToContentRecord(payload, cover, 1)
			assert.ErrorIs(t, err, ErrSkip)
		})
	}

	payload, err := ParseFiction([]byte(replaceCover(fictionJSON, "x")))
	require.NoError(t, err)
	_, err = ToContentRecord(payload, nil, 1)
	assert.ErrorIs(t, err, ErrSkip)
}

func TestParseFictionRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ParseFiction([]byte("nope"))
	assert.Error(t, err)
}
