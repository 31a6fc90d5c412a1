// Package visualization renders NetOD and dose maps to image files.
// It covers the non-interactive part of result inspection: a per-pixel
// analysis produces a matrix, and this package turns that matrix into
// a grayscale PNG that can be opened in any viewer.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"radscan/internal/models"
)

// Renderer converts value maps to grayscale images. The value range
// used for normalization can be fixed up front so that several maps
// (for example dose maps of different fractions) share one scale.
type Renderer struct {
	// min and max are the values mapped to black and white. When both
	// are zero the range is taken from the data of each map.
	min float64
	max float64
}

// NewRenderer creates a renderer that scales each map to its own
// value range.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// NewFixedRenderer creates a renderer with a fixed normalization
// range, mapping min to black and max to white in every rendered map.
func NewFixedRenderer(min, max float64) *Renderer {
	return &Renderer{min: min, max: max}
}

// Render converts a value map to a 16-bit grayscale image. Pixels
// holding NaN or infinite values (bad pixels propagated through the
// NetOD computation) are rendered black.
func (r *Renderer) Render(m *mat.Dense) image.Image {
	rows, cols := m.Dims()

	lo, hi := r.min, r.max
	if lo == 0 && hi == 0 {
		lo, hi = finiteRange(m)
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := m.At(y, x)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				img.SetGray16(x, y, color.Gray16{Y: 0})
				continue
			}
			scaled := (v - lo) / span
			value := uint16(math.Max(0, math.Min(65535, scaled*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img
}

// SaveMap renders the map and writes it to path as a PNG file.
func (r *Renderer) SaveMap(m *mat.Dense, path string) error {
	img := r.Render(m)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create map image %s: %w", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode map image %s: %v", path, err)
	}
	return nil
}

// CropMap extracts the part of a value map covered by one region,
// typically to inspect a single film strip from a full-image analysis.
func CropMap(m *mat.Dense, region models.Region) (*mat.Dense, error) {
	rows, cols := m.Dims()
	if !region.Within(cols, rows) {
		return nil, fmt.Errorf("region %s is out of map bounds (%dx%d)", region, cols, rows)
	}

	out := mat.NewDense(region.Height(), region.Width(), nil)
	for y := 0; y < region.Height(); y++ {
		for x := 0; x < region.Width(); x++ {
			out.Set(y, x, m.At(region.Top+y, region.Left+x))
		}
	}
	return out, nil
}

// finiteRange returns the smallest and largest finite values of the
// map, ignoring NaN and infinities.
func finiteRange(m *mat.Dense) (float64, float64) {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	rows, cols := m.Dims()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := m.At(y, x)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}
