package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestModeClassification(t *testing.T) {
	t.Parallel()

	opaque := solid(4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	translucent := solid(4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	translucent.SetNRGBA(0, 0, color.NRGBA{A: 10})

	assert.Equal(t, ModeRGB, Mode(opaque))
	assert.Equal(t, ModeRGBA, Mode(translucent))
	assert.Equal(t, ModeGray, Mode(image.NewGray(image.Rect(0, 0, 2, 2))))
	assert.Equal(t, ModeCMYK, Mode(image.NewCMYK(image.Rect(0, 0, 2, 2))))
	assert.Equal(t, ModeRGB, Mode(image.NewYCbCr(image.Rect(0, 0, 2, 2), image.YCbCrSubsampleRatio420)))
}

func TestDistanceIdenticalImagesIsZero(t *testing.T) {
	t.Parallel()

	a := solid(300, 250, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	b := solid(300, 250, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	assert.Zero(t, Distance(a, b))
}

func TestDistanceRootMeanSquare(t *testing.T) {
	t.Parallel()

	base := solid(30, 25, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	near := solid(30, 25, color.NRGBA{R: 105, G: 105, B: 105, A: 255})
	far := solid(30, 25, color.NRGBA{R: 106, G: 106, B: 106, A: 255})

	// three channels differ by 5 on every pixel: sqrt(3*25)
	assert.InDelta(t, math.Sqrt(75), Distance(base, near), 1e-9)
	assert.True(t, SameAd(Distance(base, near), DefaultThreshold))

	assert.InDelta(t, math.Sqrt(108), Distance(base, far), 1e-9)
	assert.False(t, SameAd(Distance(base, far), DefaultThreshold))
}

func TestDistanceIsSymmetric(t *testing.T) {
	t.Parallel()

	a := solid(8, 8, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	b := solid(8, 8, color.NRGBA{R: 30, G: 2, B: 90, A: 255})
	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestDistanceAcrossModesIsInfinite(t *testing.T) {
	t.Parallel()

	opaque := solid(10, 10, color.NRGBA{R: 50, G: 50, B: 50, A: 255})
	almost := solid(10, 10, color.NRGBA{R: 50, G: 50, B: 50, A: 255})
	almost.SetNRGBA(9, 9, color.NRGBA{R: 50, G: 50, B: 50, A: 254})

	assert.True(t, math.IsInf(Distance(opaque, almost), 1))
	assert.False(t, SameAd(Distance(opaque, almost), DefaultThreshold))

	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	assert.True(t, math.IsInf(Distance(opaque, gray), 1))
}

func TestDistanceAcrossSizesIsInfinite(t *testing.T) {
	t.Parallel()

	a := solid(10, 10, color.NRGBA{A: 255})
	b := solid(10, 11, color.NRGBA{A: 255})
	assert.True(t, math.IsInf(Distance(a, b), 1))
	assert.True(t, math.IsInf(Distance(a, nil), 1))
}

func TestDifferenceHistogramCountsEveryPixel(t *testing.T) {
	t.Parallel()

	a := solid(4, 5, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	b := solid(4, 5, color.NRGBA{R: 12, G: 10, B: 7, A: 255})
	hist := DifferenceHistogram(a, b)
	require.Len(t, hist, 3)
	assert.Equal(t, 20, hist[0][2])
	assert.Equal(t, 20, hist[1][0])
	assert.Equal(t, 20, hist[2][3])
}

func TestDistanceGrayImages(t *testing.T) {
	t.Parallel()

	a := image.NewGray(image.Rect(0, 0, 2, 2))
	b := image.NewGray(image.Rect(0, 0, 2, 2))
	b.SetGray(0, 0, color.Gray{Y: 20})
	// one pixel of four differs by 20: sqrt(400/4)
	assert.InDelta(t, 10.0, Distance(a, b), 1e-9)
}
