package detect

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/facegate/facegate/internal/config"
)

func testDetectorConfig(cascadePath string) config.DetectorConfig {
	return config.DetectorConfig{
		CascadePath: cascadePath,
		MinSize:     50,
		MaxSize:     800,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		Quality:     5.0,
	}
}

func TestNew_MissingCascade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")

	_, err := New(testDetectorConfig(path))

	if err == nil {
		t.Fatal("expected construction error for missing cascade asset")
	}
}

func TestLargest(t *testing.T) {
	tests := []struct {
		name     string
		rects    []image.Rectangle
		expected image.Rectangle
		ok       bool
	}{
		{
			name: "single rect",
			rects: []image.Rectangle{
				image.Rect(0, 0, 10, 10),
			},
			expected: image.Rect(0, 0, 10, 10),
			ok:       true,
		},
		{
			name: "largest wins",
			rects: []image.Rectangle{
				image.Rect(0, 0, 10, 10),
				image.Rect(5, 5, 45, 45),
				image.Rect(0, 0, 20, 20),
			},
			expected: image.Rect(5, 5, 45, 45),
			ok:       true,
		},
		{
			name: "wide beats tall square tie-break by area",
			rects: []image.Rectangle{
				image.Rect(0, 0, 30, 10),
				image.Rect(0, 0, 15, 15),
			},
			expected: image.Rect(0, 0, 30, 10),
			ok:       true,
		},
		{
			name:  "empty input",
			rects: nil,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Largest(tt.rects)
			if ok != tt.ok {
				t.Fatalf("Largest() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.expected {
				t.Errorf("Largest() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGrayPixels_ContiguousFastPath(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 8, 6))

	pixels := grayPixels(frame)

	if len(pixels) != 48 {
		t.Fatalf("expected 48 pixels, got %d", len(pixels))
	}
	// Contiguous zero-based frames should reuse the backing buffer.
	frame.Pix[0] = 200
	if pixels[0] != 200 {
		t.Error("expected fast path to share the frame buffer")
	}
}

func TestGrayPixels_SubImage(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range frame.Pix {
		frame.Pix[i] = uint8(i % 251)
	}

	sub := frame.SubImage(image.Rect(2, 3, 8, 9)).(*image.Gray)
	pixels := grayPixels(sub)

	if len(pixels) != 36 {
		t.Fatalf("expected 36 pixels, got %d", len(pixels))
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			want := frame.GrayAt(2+x, 3+y).Y
			if pixels[y*6+x] != want {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, pixels[y*6+x], want)
			}
		}
	}
}
