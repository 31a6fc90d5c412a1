package rsimage

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"radscan/internal/models"
)

// Analyze computes pixel statistics for one channel of each region.
// When regions is nil the list attached to the image is used. Every
// region must lie fully within the image bounds; a violation aborts
// the whole call with an error naming the offending region, before any
// statistics are returned.
//
// Results are returned in region-list order. Regions are independent,
// so they are processed by a small worker pool; the slot-indexed
// result slice keeps the output order deterministic.
func (im *RSImage) Analyze(regions []models.Region, channel models.Channel) ([]models.RegionStats, error) {
	if regions == nil {
		regions = im.Regions
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("no regions provided or attached to image %s", im.Filename)
	}
	if int(channel) < 0 || int(channel) >= im.Raster.Channels {
		return nil, fmt.Errorf("channel %d out of range for %d-channel image", channel, im.Raster.Channels)
	}

	// Validate all regions up front so that a bounds violation aborts
	// before any pixel work starts.
	for _, region := range regions {
		if !region.Within(im.Raster.Width, im.Raster.Height) {
			return nil, fmt.Errorf("region %s is out of image bounds (%dx%d)",
				region, im.Raster.Width, im.Raster.Height)
		}
	}

	results := make([]models.RegionStats, len(regions))

	numWorkers := runtime.NumCPU()
	if numWorkers > len(regions) {
		numWorkers = len(regions)
	}

	var wg sync.WaitGroup
	jobs := make(chan int, len(regions))
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = im.regionStats(regions[idx], channel)
			}
		}()
	}
	for idx := range regions {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// AnalyzePooled collapses the statistics of all regions into a single
// value: the arithmetic mean of the per-region means and standard
// errors, the minimum of the per-region minima and the maximum of the
// per-region maxima.
//
// Note that averaging per-region means and errors is an approximation,
// not a true pooled-sample statistic; weighting by region size is
// deliberately not applied, so that repeated scans of the same strips
// pool identically regardless of how the regions were drawn.
func (im *RSImage) AnalyzePooled(regions []models.Region, channel models.Channel) (models.RegionStats, error) {
	results, err := im.Analyze(regions, channel)
	if err != nil {
		return models.RegionStats{}, err
	}

	pooled := models.RegionStats{
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}
	for _, rs := range results {
		pooled.Mean += rs.Mean
		pooled.Stderr += rs.Stderr
		pooled.Min = math.Min(pooled.Min, rs.Min)
		pooled.Max = math.Max(pooled.Max, rs.Max)
	}
	n := float64(len(results))
	pooled.Mean /= n
	pooled.Stderr /= n

	return pooled, nil
}

// regionStats computes mean, standard error, min and max over one
// channel of one region. The caller has already validated bounds.
func (im *RSImage) regionStats(region models.Region, channel models.Channel) models.RegionStats {
	pixels := make([]float64, 0, region.Width()*region.Height())
	for y := region.Top; y < region.Bottom; y++ {
		for x := region.Left; x < region.Right; x++ {
			pixels = append(pixels, im.Raster.At(x, y, channel))
		}
	}

	mean, stddev := stat.MeanStdDev(pixels, nil)
	stderr := stddev / math.Sqrt(float64(len(pixels)))
	if len(pixels) == 1 {
		// A single pixel has no sample deviation.
		stderr = 0
	}

	return models.RegionStats{
		Mean:   mean,
		Stderr: stderr,
		Min:    floats.Min(pixels),
		Max:    floats.Max(pixels),
	}
}
