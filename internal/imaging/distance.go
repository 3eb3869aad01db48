// Package imaging holds the perceptual comparison used to deduplicate banner
// ads plus the small codec helpers the catalog needs.
package imaging

import (
	"image"
	"image/color"
	"math"
)

// Channel layouts reported by Mode.
const (
	ModeGray = "L"
	ModeRGB  = "RGB"
	ModeRGBA = "RGBA"
	ModeCMYK = "CMYK"
)

// DefaultThreshold is the distance below which two banners are the same ad.
const DefaultThreshold = 10.0

// Mode reports the channel layout of img. Colour images are RGB when every
// pixel is opaque and RGBA otherwise, which keeps the mode stable across a
// PNG round trip.
func Mode(img image.Image) string {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return ModeGray
	case *image.CMYK:
		return ModeCMYK
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		if o.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return ModeRGBA
			}
		}
	}
	return ModeRGB
}

// Distance returns the root-mean-square difference between a and b. Images
// with different modes or dimensions are never comparable and yield +Inf.
// Mode follows pixel content rather than the declared channel layout, so a
// fully opaque RGBA banner is comparable with an RGB one.
func Distance(a, b image.Image) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}
	mode := Mode(a)
	if mode != Mode(b) {
		return math.Inf(1)
	}
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return math.Inf(1)
	}
	pixels := ba.Dx() * ba.Dy()
	if pixels == 0 {
		return 0
	}

	var sum float64
	for _, bins := range DifferenceHistogram(a, b) {
		for value, count := range bins {
			sum += float64(count) * float64(value*value)
		}
	}
	return math.Sqrt(sum / float64(pixels))
}

// SameAd reports whether a distance falls under the duplicate threshold.
func SameAd(distance, threshold float64) bool {
	return distance < threshold
}

// DifferenceHistogram builds one 256-bin histogram per channel of the
// absolute per-pixel difference between a and b. Both images must share a
// mode and dimensions.
func DifferenceHistogram(a, b image.Image) [][256]int {
	mode := Mode(a)
	hist := make([][256]int, channelCount(mode))
	ba, bb := a.Bounds(), b.Bounds()
	var sa, sb [4]uint8
	for dy := 0; dy < ba.Dy(); dy++ {
		for dx := 0; dx < ba.Dx(); dx++ {
			samples(a.At(ba.Min.X+dx, ba.Min.Y+dy), mode, &sa)
			samples(b.At(bb.Min.X+dx, bb.Min.Y+dy), mode, &sb)
			for ch := range hist {
				hist[ch][absDiff(sa[ch], sb[ch])]++
			}
		}
	}
	return hist
}

func channelCount(mode string) int {
	switch mode {
	case ModeGray:
		return 1
	case ModeRGB:
		return 3
	default:
		return 4
	}
}

func samples(c color.Color, mode string, dst *[4]uint8) {
	switch mode {
	case ModeGray:
		g, _ := color.GrayModel.Convert(c).(color.Gray)
		dst[0] = g.Y
	case ModeCMYK:
		k, _ := color.CMYKModel.Convert(c).(color.CMYK)
		dst[0], dst[1], dst[2], dst[3] = k.C, k.M, k.Y, k.K
	default:
		n, _ := color.NRGBAModel.Convert(c).(color.NRGBA)
		dst[0], dst[1], dst[2], dst[3] = n.R, n.G, n.B, n.A
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
