// Package imaging holds the frame-level image helpers shared by the
// detector, the recognizer and the web shell: decoding, grayscale
// conversion, cropping and resizing.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Decode decodes raw image bytes (JPEG, PNG, GIF or BMP).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// ToGray converts an image to 8-bit grayscale using the ITU-R BT.601
// luma formula. A *image.Gray input is returned as-is.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray.SetGray(x-bounds.Min.X, y-bounds.Min.Y, pixelGray(luma))
		}
	}
	return gray
}

// Crop copies the region r out of g into a fresh zero-based image.
// The region is clamped to the source bounds.
func Crop(g *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(g.Bounds())
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			dst.SetGray(x, y, g.GrayAt(r.Min.X+x, r.Min.Y+y))
		}
	}
	return dst
}

// Resize scales a grayscale image to the given dimensions using
// bilinear interpolation.
func Resize(g *image.Gray, width, height int) *image.Gray {
	if b := g.Bounds(); b.Dx() == width && b.Dy() == height {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), g, g.Bounds(), draw.Over, nil)
	return dst
}

// Clone returns a deep copy of an image. Used for copy-on-read frame
// snapshots so camera readers never alias the writer's buffer.
func Clone(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.Gray:
		dst := image.NewGray(src.Bounds())
		copy(dst.Pix, src.Pix)
		return dst
	case *image.RGBA:
		dst := image.NewRGBA(src.Bounds())
		copy(dst.Pix, src.Pix)
		return dst
	default:
		bounds := img.Bounds()
		dst := image.NewRGBA(bounds)
		draw.Copy(dst, bounds.Min, img, bounds, draw.Src, nil)
		return dst
	}
}

func pixelGray(luma float64) color.Gray {
	if luma < 0 {
		luma = 0
	}
	if luma > 255 {
		luma = 255
	}
	return color.Gray{Y: uint8(luma)}
}
