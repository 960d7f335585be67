// Package detect wraps the pigo cascade classifier behind a small
// face-locating API. Detection is stateless and deterministic for a
// fixed parameter set; there is no tracking across frames.
package detect

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/facegate/facegate/internal/config"
)

// Detector locates axis-aligned face regions in grayscale frames.
type Detector struct {
	classifier *pigo.Pigo
	cfg        config.DetectorConfig
}

// New loads the binary cascade asset and prepares the classifier.
// A missing or unreadable cascade fails here, at construction time,
// so callers never run with a silently broken detector.
func New(cfg config.DetectorConfig) (*Detector, error) {
	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade %s: %w", cfg.CascadePath, err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}

	return &Detector{classifier: classifier, cfg: cfg}, nil
}

// Detect returns candidate face rectangles found in the frame,
// clipped to the frame bounds. Low-quality detections are dropped.
func (d *Detector) Detect(frame *image.Gray) []image.Rectangle {
	bounds := frame.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows == 0 || cols == 0 {
		return nil
	}

	params := pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     d.cfg.MaxSize,
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: grayPixels(frame),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	var rects []image.Rectangle
	for _, det := range dets {
		if float64(det.Q) < d.cfg.Quality {
			continue
		}
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half)
		r = r.Intersect(image.Rect(0, 0, cols, rows))
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects
}

// Largest returns the rectangle with the biggest area, assuming the
// enrollment subject stands closest to the camera. ok is false for an
// empty input.
func Largest(rects []image.Rectangle) (best image.Rectangle, ok bool) {
	for _, r := range rects {
		if !ok || area(r) > area(best) {
			best = r
			ok = true
		}
	}
	return best, ok
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// grayPixels flattens the frame into the row-major byte layout pigo
// expects, handling strides wider than the row length.
func grayPixels(frame *image.Gray) []uint8 {
	bounds := frame.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if bounds.Min.X == 0 && bounds.Min.Y == 0 && frame.Stride == cols {
		return frame.Pix
	}

	pixels := make([]uint8, rows*cols)
	for y := 0; y < rows; y++ {
		offset := (bounds.Min.Y+y-frame.Rect.Min.Y)*frame.Stride + (bounds.Min.X - frame.Rect.Min.X)
		copy(pixels[y*cols:(y+1)*cols], frame.Pix[offset:offset+cols])
	}
	return pixels
}
