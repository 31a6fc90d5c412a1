package models

import (
	"gonum.org/v1/gonum/mat"
)

// Raster is a height x width x channels block of pixel samples in
// row-major order with interleaved channels, the layout produced by
// the TIFF loader. Sample values are stored as float64 so that a
// raster may also hold the elementwise mean of several scans of the
// same film, which is no longer integral.
type Raster struct {
	// Data holds the samples; the sample for pixel (x, y) in channel c
	// lives at Data[(y*Width+x)*Channels+c].
	Data []float64

	// Width and Height are the image dimensions in pixels.
	Width  int
	Height int

	// Channels is the number of color channels per pixel (3 for the
	// RGB scans this package works with).
	Channels int
}

// At returns the sample of channel c at pixel (x, y). Bounds are not
// checked; callers validate regions before extraction.
func (r *Raster) At(x, y int, c Channel) float64 {
	return r.Data[(y*r.Width+x)*r.Channels+int(c)]
}

// ChannelMatrix extracts one channel of the raster as a dense matrix
// with Height rows and Width columns. The matrix is a copy; mutating
// it does not affect the raster.
func (r *Raster) ChannelMatrix(c Channel) *mat.Dense {
	m := mat.NewDense(r.Height, r.Width, nil)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			m.Set(y, x, r.At(x, y, c))
		}
	}
	return m
}

// SameShape reports whether two rasters have identical dimensions and
// channel counts, the precondition for averaging them.
func (r *Raster) SameShape(other *Raster) bool {
	return r.Width == other.Width && r.Height == other.Height && r.Channels == other.Channels
}
