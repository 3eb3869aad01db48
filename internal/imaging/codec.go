package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register gif decoder
	_ "image/jpeg" // register jpeg decoder
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp decoder
)

// Decode decodes any registered image format and returns the format name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("decode image: empty payload")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// EncodePNG serialises img losslessly so comparisons against the persisted
// copy match comparisons against the original.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// HasSize reports whether img is exactly width x height pixels.
func HasSize(img image.Image, width, height int) bool {
	if img == nil {
		return false
	}
	b := img.Bounds()
	return b.Dx() == width && b.Dy() == height
}

// Resize scales img to width x height with Catmull-Rom resampling.
func Resize(img image.Image, width, height int) image.Image {
	if HasSize(img, width, height) {
		return img
	}
	if Mode(img) == ModeGray {
		dst := image.NewGray(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		return dst
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
