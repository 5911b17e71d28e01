package tile

import (
	"math"

	"elevtiles/internal/image_decoder"
)

const (
	elevationOffset = -10000.0
	elevationStep   = 0.1
)

// Bitmap is one pyramid level of a tile: row-major elevation samples in meters.
type Bitmap struct {
	Width   int
	Height  int
	Samples []float32
	// Source is the decoded raster the samples came from. Only native levels keep it.
	Source *image_decoder.Raster
}

// Elevation unpacks a terrain-RGB pixel: the channels form a 24-bit big-endian
// integer in tenths of a meter, offset by -10000 m.
func Elevation(r, g, b uint8) float32 {
	packed := int(r)<<16 | int(g)<<8 | int(b)
	return float32(elevationOffset + float64(packed)*elevationStep)
}

// FromRaster converts every pixel of raster into an elevation sample.
func FromRaster(raster *image_decoder.Raster) *Bitmap {
	n := raster.Width * raster.Height
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		p := raster.Pix[i*3 : i*3+3]
		samples[i] = Elevation(p[0], p[1], p[2])
	}

	return &Bitmap{
		Width:   raster.Width,
		Height:  raster.Height,
		Samples: samples,
		Source:  raster,
	}
}

// At returns the sample at (x, y). ok is false outside the bitmap.
func (b *Bitmap) At(x, y int) (float32, bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return 0, false
	}
	return b.Samples[y*b.Width+x], true
}

// Range returns the lowest and highest sample.
func (b *Bitmap) Range() (float32, float32) {
	if len(b.Samples) == 0 {
		return 0, 0
	}
	lo, hi := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, s := range b.Samples {
		lo = min(lo, s)
		hi = max(hi, s)
	}
	return lo, hi
}

// Downsample box-averages 2×2 blocks into a half-resolution bitmap. Odd sizes
// round up and the edge blocks average only the samples that exist.
func (b *Bitmap) Downsample() *Bitmap {
	w := max(1, (b.Width+1)/2)
	h := max(1, (b.Height+1)/2)
	out := &Bitmap{
		Width:   w,
		Height:  h,
		Samples: make([]float32, w*h),
	}

	for oy := 0; oy < h; oy++ {
		for ox := 0; ox < w; ox++ {
			var sum float64
			var n int
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					if s, ok := b.At(ox*2+dx, oy*2+dy); ok {
						sum += float64(s)
						n++
					}
				}
			}
			if n > 0 {
				out.Samples[oy*w+ox] = float32(sum / float64(n))
			}
		}
	}

	return out
}
