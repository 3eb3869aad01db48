package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// page is the slice of browser behavior a capture needs.
type page interface {
	Navigate(ctx context.Context, url string) error
	Containers(ctx context.Context, selector string) (int, error)
	ScrollIntoView(ctx context.Context, index int) error
	ExtractBanners(ctx context.Context, script string) ([]domBanner, error)
	// Images waits for outstanding body reads and returns the captured
	// banner images keyed by URL.
	Images() map[string]image.Image
}

type pageFactory func(ctx context.Context, cfg Config, logger *zap.Logger) (page, context.CancelFunc, error)

// chromePage is a single browser tab with network capture attached.
type chromePage struct {
	ctx        context.Context
	collector  *collector
	readSlots  *semaphore.Weighted
	containers []*cdp.Node
	logger     *zap.Logger

	mu      sync.Mutex
	drained bool
	reads   errgroup.Group
}

func openChrome(ctx context.Context, cfg Config, logger *zap.Logger) (page, context.CancelFunc, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	p := &chromePage{
		ctx:       tabCtx,
		collector: newCollector(cfg.ResponseTableSize, cfg.BannerSize, logger),
		readSlots: semaphore.NewWeighted(int64(cfg.MaxBodyReads)),
		logger:    logger,
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(cfg.WindowWidth), int64(cfg.WindowHeight), 1, false),
	}
	if err := chromedp.Run(tabCtx, tasks); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}
	return p, cancel, nil
}

// onEvent runs on the event loop and must not block.
func (p *chromePage) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil {
			return
		}
		p.collector.observe(string(e.RequestID), e.Response.URL, e.Response.Status, e.Response.MimeType)
	case *network.EventLoadingFinished:
		meta, ok := p.collector.finished(string(e.RequestID))
		if !ok {
			return
		}
		requestID := e.RequestID
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.drained {
			return
		}
		p.reads.Go(func() error {
			if err := p.readSlots.Acquire(p.ctx, 1); err != nil {
				return nil
			}
			defer p.readSlots.Release(1)
			p.readBody(requestID, meta)
			return nil
		})
	}
}

func (p *chromePage) readBody(requestID network.RequestID, meta responseMeta) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return
	}
	body, err := network.GetResponseBody(requestID).Do(cdp.WithExecutor(p.ctx, c.Target))
	if err != nil {
		p.logger.Debug("response body unavailable", zap.String("url", meta.url), zap.Error(err))
		return
	}
	if p.collector.accept(meta, body) {
		p.logger.Debug("captured banner image", zap.String("url", meta.url))
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) Containers(ctx context.Context, selector string) (int, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	p.containers = nodes
	return len(nodes), nil
}

func (p *chromePage) ScrollIntoView(ctx context.Context, index int) error {
	if index < 0 || index >= len(p.containers) {
		return fmt.Errorf("container %d out of range", index)
	}
	id := p.containers[index].NodeID
	return p.run(ctx, chromedp.ScrollIntoView([]cdp.NodeID{id}, chromedp.ByNodeID))
}

func (p *chromePage) ExtractBanners(ctx context.Context, script string) ([]domBanner, error) {
	var banners []domBanner
	if err := p.run(ctx, chromedp.Evaluate(script, &banners)); err != nil {
		return nil, err
	}
	return banners, nil
}

// Images stops scheduling new body reads, waits for the ones in flight and
// returns what was captured.
func (p *chromePage) Images() map[string]image.Image {
	p.mu.Lock()
	p.drained = true
	p.mu.Unlock()
	_ = p.reads.Wait()
	return p.collector.snapshot()
}

// run executes actions on the tab while honoring cancellation of ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return err
	}
	return ctx.Err()
}
