package capture

import (
	"image"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/imaging"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

type responseMeta struct {
	url    string
	status int64
	mime   string
}

// responseTable maps request ids to the response seen for them. Entries are
// removed when their body is claimed; the oldest are evicted past capacity.
type responseTable struct {
	mu      sync.Mutex
	cache   *lru.Cache
	evicted int
}

func newResponseTable(capacity int) *responseTable {
	t := &responseTable{cache: lru.New(capacity)}
	t.cache.OnEvicted = func(lru.Key, interface{}) { t.evicted++ }
	return t
}

func (t *responseTable) observe(requestID string, meta responseMeta) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Add(requestID, meta)
}

// take removes and returns the response recorded for requestID.
func (t *responseTable) take(requestID string) (responseMeta, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.cache.Get(requestID)
	if !ok {
		return responseMeta{}, false
	}
	t.cache.Remove(requestID)
	// Remove fires OnEvicted as well.
	t.evicted--
	meta, ok := v.(responseMeta)
	return meta, ok
}

func (t *responseTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cache.Len()
}

// collector keeps the decoded banner-sized images seen on the network, keyed
// by resource URL.
type collector struct {
	table  *responseTable
	size   image.Point
	logger *zap.Logger

	mu     sync.Mutex
	images map[string]image.Image
}

func newCollector(tableSize int, size image.Point, logger *zap.Logger) *collector {
	return &collector{
		table:  newResponseTable(tableSize),
		size:   size,
		logger: logger,
		images: make(map[string]image.Image),
	}
}

func (c *collector) observe(requestID, rawURL string, status int64, mime string) {
	c.table.observe(requestID, responseMeta{url: rawURL, status: status, mime: mime})
}

// finished claims the response for requestID and reports whether its body is
// worth reading.
func (c *collector) finished(requestID string) (responseMeta, bool) {
	meta, ok := c.table.take(requestID)
	if !ok {
		c.logger.Debug("loading finished for unknown request", zap.String("request_id", requestID))
		return responseMeta{}, false
	}
	return meta, isImageResponse(meta)
}

// accept decodes body and keeps it when it has the banner size. Decode
// failures only drop the item.
func (c *collector) accept(meta responseMeta, body []byte) bool {
	img, _, err := imaging.Decode(body)
	if err != nil {
		c.logger.Debug("undecodable image response", zap.String("url", meta.url), zap.Error(err))
		return false
	}
	if !imaging.HasSize(img, c.size.X, c.size.Y) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[meta.url] = img
	return true
}

func (c *collector) snapshot() map[string]image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]image.Image, len(c.images))
	for k, v := range c.images {
		out[k] = v
	}
	return out
}

func isImageResponse(meta responseMeta) bool {
	if meta.status < 200 || meta.status > 299 {
		return false
	}
	if strings.HasPrefix(strings.ToLower(meta.mime), "image/") {
		return true
	}
	u, err := url.Parse(meta.url)
	if err != nil {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}
