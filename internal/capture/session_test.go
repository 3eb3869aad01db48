package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

type seqIDs struct{ n int }

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("ad-%d", g.n), nil
}

type fakePage struct {
	navigateErr error
	containers  int
	scrollErr   error
	extractErr  error
	banners     []domBanner
	images      map[string]image.Image
	panicOn     string

	scrolled []int
	closed   bool
}

func (p *fakePage) Navigate(context.Context, string) error {
	if p.panicOn == "navigate" {
		panic("tab crashed")
	}
	return p.navigateErr
}

func (p *fakePage) Containers(context.Context, string) (int, error) {
	return p.containers, nil
}

func (p *fakePage) ScrollIntoView(_ context.Context, i int) error {
	p.scrolled = append(p.scrolled, i)
	return p.scrollErr
}

func (p *fakePage) ExtractBanners(context.Context, string) ([]domBanner, error) {
	return p.banners, p.extractErr
}

func (p *fakePage) Images() map[string]image.Image { return p.images }

func newTestSession(pg *fakePage, clk *fakeClock) *Session {
	cfg := DefaultConfig()
	return NewSession(cfg, zap.NewNop(),
		WithClock(clk),
		WithIDGenerator(&seqIDs{}),
		withPageFactory(func(context.Context, Config, *zap.Logger) (page, context.CancelFunc, error) {
			return pg, func() { pg.closed = true }, nil
		}),
	)
}

func bannerImage() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 300, 250))
}

func click(dest string) string {
	return "https://ads.example/click?campaign=1&url=" + dest
}

func TestCaptureZeroContainersIsStructuralFailure(t *testing.T) {
	t.Parallel()
	pg := &fakePage{containers: 0}

	res, err := newTestSession(pg, &fakeClock{}).Capture(context.Background())
	require.ErrorIs(t, err, ErrStructuralFailure)
	assert.Empty(t, res.Ads)
	assert.NoError(t, res.Fault)
	assert.True(t, pg.closed)
}

func TestCaptureContainersWithoutAdsIsEmptyResult(t *testing.T) {
	t.Parallel()
	pg := &fakePage{containers: 3}

	res, err := newTestSession(pg, &fakeClock{}).Capture(context.Background())
	require.NoError(t, err)
	assert.NoError(t, res.Fault)
	assert.Equal(t, 3, res.Containers)
	assert.Empty(t, res.Ads)
}

func TestCaptureJoinsNetworkAndDOM(t *testing.T) {
	t.Parallel()
	img := bannerImage()
	pg := &fakePage{
		containers: 2,
		images: map[string]image.Image{
			"https://cdn/a.png":      img,
			"https://cdn/house.png":  img,
			"https://cdn/nolink.png": img,
			"https://cdn/unused.png": img,
		},
		banners: []domBanner{
			{Src: "https://cdn/a.png", Href: click("https://www.royalroad.com/fiction/5"), Alt: "Story A"},
			{Src: "https://cdn/a.png", Href: click("https://www.royalroad.com/fiction/5"), Alt: "Story A again"},
			{Src: "https://cdn/house.png", Href: click("/premium"), Alt: "Premium"},
			{Src: "https://cdn/nolink.png", Href: "https://ads.example/click?campaign=2", Alt: "No dest"},
			{Src: "https://cdn/missing.png", Href: click("https://www.royalroad.com/fiction/9"), Alt: "Not captured"},
		},
	}
	clk := &fakeClock{now: time.Unix(1700000000, 0)}

	res, err := newTestSession(pg, clk).Capture(context.Background())
	require.NoError(t, err)
	require.NoError(t, res.Fault)
	require.Len(t, res.Ads, 1)

	ad := res.Ads[0]
	assert.Equal(t, "ad-1", ad.ID)
	assert.Equal(t, "Story A", ad.Alt)
	assert.Equal(t, "https://www.royalroad.com/fiction/5", ad.Link)
	assert.Equal(t, int64(1700000000), ad.Timestamp)
	assert.Same(t, img, ad.Image)
	assert.Equal(t, 4, res.Images)
	assert.Equal(t, 5, res.Banners)
}

func TestCaptureSettlesEachContainer(t *testing.T) {
	t.Parallel()
	pg := &fakePage{containers: 3}
	clk := &fakeClock{}

	_, err := newTestSession(pg, clk).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, pg.scrolled)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}, clk.sleeps)
}

func TestCaptureFaultsAreContained(t *testing.T) {
	t.Parallel()

	cases := map[string]*fakePage{
		"Navigate": {navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
		"Scroll":   {containers: 2, scrollErr: errors.New("node detached")},
		"Extract":  {containers: 1, extractErr: errors.New("script threw")},
		"Panic":    {panicOn: "navigate"},
	}
	for name, pg := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			res, err := newTestSession(pg, &fakeClock{}).Capture(context.Background())
			require.NoError(t, err)
			assert.Error(t, res.Fault)
			assert.Empty(t, res.Ads)
			assert.True(t, pg.closed)
		})
	}
}

type panickyIDs struct{ n int }

func (g *panickyIDs) NewID() (string, error) {
	g.n++
	if g.n > 1 {
		panic("id source exhausted")
	}
	return fmt.Sprintf("ad-%d", g.n), nil
}

func TestCapturePanicKeepsJoinedAds(t *testing.T) {
	t.Parallel()
	img := bannerImage()
	pg := &fakePage{
		containers: 1,
		images: map[string]image.Image{
			"https://cdn/a.png": img,
			"https://cdn/b.png": img,
		},
		banners: []domBanner{
			{Src: "https://cdn/a.png", Href: click("https://www.royalroad.com/fiction/5"), Alt: "A"},
			{Src: "https://cdn/b.png", Href: click("https://www.royalroad.com/fiction/6"), Alt: "B"},
		},
	}
	s := NewSession(DefaultConfig(), zap.NewNop(),
		WithClock(&fakeClock{}),
		WithIDGenerator(&panickyIDs{}),
		withPageFactory(func(context.Context, Config, *zap.Logger) (page, context.CancelFunc, error) {
			return pg, func() { pg.closed = true }, nil
		}),
	)

	res, err := s.Capture(context.Background())
	require.NoError(t, err)
	require.Error(t, res.Fault)
	assert.Contains(t, res.Fault.Error(), "id source exhausted")
	require.Len(t, res.Ads, 1)
	assert.Equal(t, "ad-1", res.Ads[0].ID)
	assert.Equal(t, 1, res.Containers)
	assert.Equal(t, 2, res.Banners)
	assert.True(t, pg.closed)
}

func TestCaptureCanceledDuringSettle(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestSession(&fakePage{containers: 1}, &fakeClock{}).Capture(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Fault, context.Canceled)
}

func TestCaptureBrowserUnavailable(t *testing.T) {
	t.Parallel()
	s := NewSession(DefaultConfig(), nil,
		WithClock(&fakeClock{}),
		withPageFactory(func(context.Context, Config, *zap.Logger) (page, context.CancelFunc, error) {
			return nil, nil, errors.New("chrome not found")
		}),
	)

	res, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Error(t, res.Fault)
}

func TestNewSessionAppliesDefaults(t *testing.T) {
	t.Parallel()
	s := NewSession(Config{}, nil)

	assert.Equal(t, ".portlet", s.cfg.ContainerSelector)
	assert.Equal(t, 2, s.cfg.FrameDepth)
	assert.Equal(t, image.Point{X: 300, Y: 250}, s.cfg.BannerSize)
	assert.Equal(t, 4096, s.cfg.ResponseTableSize)
	assert.Equal(t, "url", s.cfg.RedirectParam)
	assert.Equal(t, []string{"/premium"}, s.cfg.HouseLinks)
	assert.Equal(t, 2*time.Second, s.cfg.SettleDelay)
	assert.Contains(t, s.script, "imagecreative")
}
