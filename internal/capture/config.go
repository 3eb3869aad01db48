package capture

import (
	"image"
	"time"
)

// Config describes the target page and how to read it.
type Config struct {
	TargetURL         string
	WindowWidth       int
	WindowHeight      int
	Headless          bool
	UserAgent         string
	ContainerSelector string
	FrameDepth        int
	BannerClass       string
	RedirectParam     string
	HouseLinks        []string
	SettleDelay       time.Duration
	ResponseTableSize int
	MaxBodyReads      int
	BannerSize        image.Point
}

// DefaultConfig returns the values the current page layout needs.
func DefaultConfig() Config {
	return Config{
		TargetURL:         "https://www.royalroad.com/home",
		WindowWidth:       1920,
		WindowHeight:      960,
		ContainerSelector: ".portlet",
		FrameDepth:        2,
		BannerClass:       "imagecreative",
		RedirectParam:     "url",
		HouseLinks:        []string{"/premium"},
		SettleDelay:       2 * time.Second,
		ResponseTableSize: 4096,
		MaxBodyReads:      8,
		BannerSize:        image.Point{X: 300, Y: 250},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TargetURL == "" {
		c.TargetURL = def.TargetURL
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		c.WindowWidth, c.WindowHeight = def.WindowWidth, def.WindowHeight
	}
	if c.ContainerSelector == "" {
		c.ContainerSelector = def.ContainerSelector
	}
	if c.FrameDepth <= 0 {
		c.FrameDepth = def.FrameDepth
	}
	if c.BannerClass == "" {
		c.BannerClass = def.BannerClass
	}
	if c.RedirectParam == "" {
		c.RedirectParam = def.RedirectParam
	}
	if c.HouseLinks == nil {
		c.HouseLinks = def.HouseLinks
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = def.SettleDelay
	}
	if c.ResponseTableSize <= 0 {
		c.ResponseTableSize = def.ResponseTableSize
	}
	if c.MaxBodyReads <= 0 {
		c.MaxBodyReads = def.MaxBodyReads
	}
	if c.BannerSize == (image.Point{}) {
		c.BannerSize = def.BannerSize
	}
	return c
}
