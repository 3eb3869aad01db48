package capture

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestResponseTableEvictsOldest(t *testing.T) {
	t.Parallel()
	table := newResponseTable(2)

	table.observe("1", responseMeta{url: "a"})
	table.observe("2", responseMeta{url: "b"})
	table.observe("3", responseMeta{url: "c"})
	assert.Equal(t, 2, table.len())
	assert.Equal(t, 1, table.evicted)

	_, ok := table.take("1")
	assert.False(t, ok)
	meta, ok := table.take("3")
	require.True(t, ok)
	assert.Equal(t, "c", meta.url)
	assert.Equal(t, 1, table.evicted)

	_, ok = table.take("3")
	assert.False(t, ok)
	assert.Equal(t, 1, table.len())
}

func TestCollectorFinishedRequiresObservedImage(t *testing.T) {
	t.Parallel()
	c := newCollector(8, image.Point{X: 300, Y: 250}, zap.NewNop())

	_, ok := c.finished("unknown")
	assert.False(t, ok)

	c.observe("1", "https://cdn/banner.webp", 200, "")
	meta, ok := c.finished("1")
	assert.True(t, ok)
	assert.Equal(t, "https://cdn/banner.webp", meta.url)

	c.observe("2", "https://cdn/script.js", 200, "application/javascript")
	_, ok = c.finished("2")
	assert.False(t, ok)
}

func TestCollectorAcceptsOnlyBannerSize(t *testing.T) {
	t.Parallel()
	c := newCollector(8, image.Point{X: 300, Y: 250}, zap.NewNop())

	assert.True(t, c.accept(responseMeta{url: "https://cdn/a.png"}, encodePNG(t, 300, 250)))
	assert.False(t, c.accept(responseMeta{url: "https://cdn/b.png"}, encodePNG(t, 728, 90)))
	assert.False(t, c.accept(responseMeta{url: "https://cdn/c.png"}, []byte("GIF89a broken")))

	images := c.snapshot()
	assert.Len(t, images, 1)
	assert.Contains(t, images, "https://cdn/a.png")
}

func TestIsImageResponse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		meta responseMeta
		want bool
	}{
		{responseMeta{url: "https://cdn/x.PNG", status: 200}, true},
		{responseMeta{url: "https://cdn/x.jpg?w=300", status: 200}, true},
		{responseMeta{url: "https://cdn/creative", status: 200, mime: "image/webp"}, true},
		{responseMeta{url: "https://cdn/x.png", status: 404}, false},
		{responseMeta{url: "https://cdn/x.png", status: 304}, false},
		{responseMeta{url: "https://cdn/page.html", status: 200, mime: "text/html"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isImageResponse(tc.meta), tc.meta.url)
	}
}
