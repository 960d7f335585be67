package recognize

import "image"

// Canonical descriptor geometry. Face crops are resized to a square
// canonical size, LBP codes are computed per pixel and histogrammed
// over a fixed grid of regions. Changing any of these invalidates
// previously saved model artifacts, so they are constants rather than
// configuration.
const (
	canonicalSize = 100
	gridRegions   = 8 // per axis, 8x8 = 64 regions
	histBins      = 256
)

// lbpCodes computes the 8-neighbor local binary pattern code for every
// interior pixel of a grayscale image. Border pixels carry code 0.
func lbpCodes(g *image.Gray) []uint8 {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	codes := make([]uint8, w*h)

	// Neighbor offsets, clockwise from top-left.
	offsets := [8][2]int{
		{-1, -1}, {0, -1}, {1, -1},
		{1, 0},
		{1, 1}, {0, 1}, {-1, 1},
		{-1, 0},
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := g.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			var code uint8
			for bit, off := range offsets {
				neighbor := g.GrayAt(bounds.Min.X+x+off[0], bounds.Min.Y+y+off[1]).Y
				if neighbor >= center {
					code |= 1 << uint(7-bit)
				}
			}
			codes[y*w+x] = code
		}
	}
	return codes
}

// histogram builds the concatenated per-region LBP histogram of a
// canonical-size face crop. Each region's histogram is normalized to
// sum to 1 so regions contribute equally regardless of pixel count.
func histogram(codes []uint8, width, height int) []float64 {
	hist := make([]float64, gridRegions*gridRegions*histBins)
	regionW := width / gridRegions
	regionH := height / gridRegions

	for y := 0; y < height; y++ {
		ry := y / regionH
		if ry >= gridRegions {
			ry = gridRegions - 1
		}
		for x := 0; x < width; x++ {
			rx := x / regionW
			if rx >= gridRegions {
				rx = gridRegions - 1
			}
			region := ry*gridRegions + rx
			hist[region*histBins+int(codes[y*width+x])]++
		}
	}

	// Normalize per region.
	for region := 0; region < gridRegions*gridRegions; region++ {
		var sum float64
		for b := 0; b < histBins; b++ {
			sum += hist[region*histBins+b]
		}
		if sum == 0 {
			continue
		}
		for b := 0; b < histBins; b++ {
			hist[region*histBins+b] /= sum
		}
	}
	return hist
}

// chiSquare computes the symmetric chi-square distance between two
// concatenated region histograms. With per-region normalization the
// result ranges from 0 (identical) to 2 per region, i.e. 0-128 for the
// 8x8 grid; lower means a closer match.
func chiSquare(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return maxDistance
	}
	var dist float64
	for i := range a {
		sum := a[i] + b[i]
		if sum == 0 {
			continue
		}
		diff := a[i] - b[i]
		dist += diff * diff / sum
	}
	return dist
}

// maxDistance is the theoretical upper bound of the distance scale.
const maxDistance = 2 * gridRegions * gridRegions
