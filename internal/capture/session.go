package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/catalog"
	"github.com/JakeFAU/adcatalog/internal/clock/system"
	"github.com/JakeFAU/adcatalog/internal/id/uuid"
)

// ErrStructuralFailure means the page no longer has the layout the capture
// depends on. No candidates are returned with it.
var ErrStructuralFailure = errors.New("capture: no ad containers found")

// Clock supplies timestamps and the settle waits.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces ad identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Result is the outcome of one capture run.
type Result struct {
	Ads        []catalog.AdRecord
	Containers int
	Images     int
	Banners    int
	// Fault is a contained mid-capture failure. Ads holds what was joined
	// before it happened.
	Fault error
}

// Session captures banner ads from the target page. One session runs one
// capture at a time.
type Session struct {
	cfg    Config
	logger *zap.Logger
	clock  Clock
	ids    IDGenerator
	open   pageFactory
	script string
}

// Option customizes a Session.
type Option func(*Session)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) { s.ids = g }
}

func withPageFactory(f pageFactory) Option {
	return func(s *Session) { s.open = f }
}

// NewSession builds a session for cfg. Zero fields take DefaultConfig values.
func NewSession(cfg Config, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:    cfg,
		logger: logger.Named("capture"),
		clock:  system.New(),
		ids:    uuid.New(),
		open:   openChrome,
		script: bannerScript(cfg.FrameDepth, cfg.BannerClass),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture runs the page once. The returned error is nil or
// ErrStructuralFailure; every other failure lands in Result.Fault.
func (s *Session) Capture(ctx context.Context) (res Result, err error) {
	started := s.clock.Now()
	pg, closePage, openErr := s.open(ctx, s.cfg, s.logger)
	if openErr != nil {
		res.Fault = openErr
		s.logger.Error("browser unavailable", zap.Error(openErr))
		return res, nil
	}
	defer closePage()
	defer func() {
		if r := recover(); r != nil {
			res.Fault = fmt.Errorf("capture panic: %v", r)
			err = nil
			s.logger.Error("capture aborted", zap.Any("panic", r))
		}
	}()

	err = s.capture(ctx, pg, &res)
	switch {
	case err != nil:
		s.logger.Error("page layout changed",
			zap.String("selector", s.cfg.ContainerSelector),
			zap.String("url", s.cfg.TargetURL),
		)
	case res.Fault != nil:
		s.logger.Warn("capture degraded", zap.Int("ads", len(res.Ads)), zap.Error(res.Fault))
	default:
		s.logger.Info("capture finished",
			zap.Int("containers", res.Containers),
			zap.Int("images", res.Images),
			zap.Int("banners", res.Banners),
			zap.Int("ads", len(res.Ads)),
			zap.Duration("elapsed", s.clock.Now().Sub(started)),
		)
	}
	return res, err
}

// capture fills res as it goes so a panic still leaves what was collected.
func (s *Session) capture(ctx context.Context, pg page, res *Result) error {
	if err := pg.Navigate(ctx, s.cfg.TargetURL); err != nil {
		res.Fault = fmt.Errorf("navigate %s: %w", s.cfg.TargetURL, err)
		return nil
	}
	if err := s.clock.Sleep(ctx, s.cfg.SettleDelay); err != nil {
		res.Fault = err
		return nil
	}

	n, err := pg.Containers(ctx, s.cfg.ContainerSelector)
	if err != nil {
		res.Fault = fmt.Errorf("locate containers: %w", err)
		return nil
	}
	if n == 0 {
		*res = Result{}
		return ErrStructuralFailure
	}
	res.Containers = n
	s.logger.Debug("containers located", zap.Int("count", n))

	for i := 0; i < n; i++ {
		if err := pg.ScrollIntoView(ctx, i); err != nil {
			res.Fault = fmt.Errorf("scroll container %d: %w", i, err)
			return nil
		}
		if err := s.clock.Sleep(ctx, s.cfg.SettleDelay); err != nil {
			res.Fault = err
			return nil
		}
	}

	banners, err := pg.ExtractBanners(ctx, s.script)
	images := pg.Images()
	res.Images = len(images)
	res.Banners = len(banners)
	if err != nil {
		res.Fault = fmt.Errorf("extract banners: %w", err)
		return nil
	}
	res.Fault = s.join(images, banners, res)
	return nil
}

// join pairs network images with DOM banners by source URL, in DOM order,
// appending each ad to res.Ads.
func (s *Session) join(images map[string]image.Image, banners []domBanner, res *Result) error {
	seen := make(map[string]struct{}, len(banners))
	for _, b := range banners {
		if _, dup := seen[b.Src]; dup {
			continue
		}
		seen[b.Src] = struct{}{}
		img, ok := images[b.Src]
		if !ok {
			s.logger.Debug("banner without captured image", zap.String("src", b.Src))
			continue
		}
		link, ok := UnwrapLink(b.Href, s.cfg.RedirectParam)
		if !ok {
			s.logger.Debug("banner without destination", zap.String("href", b.Href))
			continue
		}
		if isHouseLink(link, s.cfg.HouseLinks) {
			s.logger.Debug("skipping house ad", zap.String("link", link))
			continue
		}
		id, err := s.ids.NewID()
		if err != nil {
			return fmt.Errorf("ad id: %w", err)
		}
		res.Ads = append(res.Ads, catalog.AdRecord{
			ID:        id,
			Alt:       b.Alt,
			Link:      link,
			Timestamp: s.clock.Now().Unix(),
			Image:     img,
		})
	}
	return nil
}
