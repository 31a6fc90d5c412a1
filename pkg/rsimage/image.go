// Package rsimage loads scanned radiochromic film images and computes
// per-region pixel statistics from them. It implements the pixel
// aggregation stage of the dosimetry pipeline: raw scans in, region
// statistics out. All computation is purely functional over the pixel
// data; nothing in this package mutates a loaded raster.
package rsimage

import (
	"fmt"
	"image"
	"os"
	"strconv"

	"golang.org/x/image/tiff"

	"radscan/internal/models"
)

// RSImage is a scanned film image: the pixel raster, metadata from the
// source file, and an optional attached list of regions of interest.
// The raster may be the elementwise average of several scans of the
// same film (see LoadMulti), which reduces scanner noise.
//
// Regions are a mutable attachment, not part of the image identity:
// the same region list may be attached to several images, and callers
// routinely swap lists to re-analyze the same scan.
type RSImage struct {
	// Filename is the path of the (first) source file.
	Filename string

	// Raster holds the pixel samples.
	Raster *models.Raster

	// Metadata holds descriptive key-value pairs taken from the first
	// source file only, even when the raster is a multi-scan average.
	Metadata map[string]string

	// Regions is the attached list of regions of interest. Order is
	// significant: index i must refer to the same physical film strip
	// as index i of any paired image's list.
	Regions []models.Region
}

// Load reads a single TIFF scan from disk.
func Load(path string) (*RSImage, error) {
	raster, meta, err := loadRaster(path)
	if err != nil {
		return nil, err
	}
	return &RSImage{
		Filename: path,
		Raster:   raster,
		Metadata: meta,
	}, nil
}

// LoadMulti reads several TIFF scans of the same film and averages
// them elementwise into one composite raster. All scans must share
// identical dimensions. Metadata is taken from the first file only.
func LoadMulti(paths []string) (*RSImage, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files given")
	}

	rasters := make([]*models.Raster, 0, len(paths))
	var meta map[string]string
	for i, path := range paths {
		raster, m, err := loadRaster(path)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			meta = m
		}
		rasters = append(rasters, raster)
	}

	avg, err := AverageRasters(rasters)
	if err != nil {
		return nil, err
	}
	return &RSImage{
		Filename: paths[0],
		Raster:   avg,
		Metadata: meta,
	}, nil
}

// loadRaster decodes one TIFF file into a raster plus its metadata map.
func loadRaster(path string) (*models.Raster, map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode TIFF %s: %v", path, err)
	}

	raster := rasterFromImage(img)
	meta := map[string]string{
		"SourceFile":  path,
		"ImageWidth":  strconv.Itoa(raster.Width),
		"ImageLength": strconv.Itoa(raster.Height),
		"Channels":    strconv.Itoa(raster.Channels),
	}
	return raster, meta, nil
}

// rasterFromImage converts a decoded image to a 3-channel raster.
// Samples are taken at 16-bit depth, which matches the native depth of
// film scanner output; 8-bit sources are scaled up by the Go image
// model accordingly.
func rasterFromImage(img image.Image) *models.Raster {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	const channels = 3

	data := make([]float64, width*height*channels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			base := (y*width + x) * channels
			data[base+0] = float64(r)
			data[base+1] = float64(g)
			data[base+2] = float64(b)
		}
	}
	return &models.Raster{
		Data:     data,
		Width:    width,
		Height:   height,
		Channels: channels,
	}
}

// AverageRasters returns the elementwise arithmetic mean of the given
// rasters. All inputs must share the same shape; the output is a
// freshly allocated raster and the inputs are left untouched.
func AverageRasters(rasters []*models.Raster) (*models.Raster, error) {
	if len(rasters) == 0 {
		return nil, fmt.Errorf("no rasters to average")
	}

	first := rasters[0]
	for i, r := range rasters[1:] {
		if !first.SameShape(r) {
			return nil, fmt.Errorf("raster %d has shape %dx%dx%d, expected %dx%dx%d",
				i+1, r.Width, r.Height, r.Channels, first.Width, first.Height, first.Channels)
		}
	}

	data := make([]float64, len(first.Data))
	for _, r := range rasters {
		for i, v := range r.Data {
			data[i] += v
		}
	}
	n := float64(len(rasters))
	for i := range data {
		data[i] /= n
	}

	return &models.Raster{
		Data:     data,
		Width:    first.Width,
		Height:   first.Height,
		Channels: first.Channels,
	}, nil
}
