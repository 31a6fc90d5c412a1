// Package workflow composes image analysis, NetOD conversion and
// calibration into the four end-to-end film dosimetry procedures:
// per-region and per-pixel analysis, each in a simple variant and a
// full variant with background and control-film correction.
//
// Every procedure is a single-pass, stateless transformation. When a
// calibration is supplied the result is dose in Gy; otherwise it is
// net optical density.
package workflow

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"radscan/internal/models"
	"radscan/pkg/calibration"
	"radscan/pkg/netod"
	"radscan/pkg/rsimage"
)

// ErrRegionCountMismatch is returned when paired images do not carry
// the same number of regions. Region lists are matched index for
// index, so differing counts make the pairing meaningless; the check
// runs before any pixel statistics are computed.
var ErrRegionCountMismatch = errors.New("mismatched region counts between paired images")

// SimpleByROI analyzes matched regions of the pre- and
// post-irradiation images and returns one value per region pair,
// without background or control correction. Region i of the pre-image
// must cover the same film strip as region i of the post-image; sizes
// and positions may differ between the two scans.
func SimpleByROI(pre, post *rsimage.RSImage, channel models.Channel, calib *calibration.Calibration) ([]float64, error) {
	if len(pre.Regions) != len(post.Regions) {
		return nil, fmt.Errorf("%w: pre has %d, post has %d",
			ErrRegionCountMismatch, len(pre.Regions), len(post.Regions))
	}

	preStats, err := pre.Analyze(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("pre-image analysis failed: %w", err)
	}
	postStats, err := post.Analyze(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("post-image analysis failed: %w", err)
	}

	values := make([]float64, len(preStats))
	for i := range preStats {
		dn, _, err := netod.Simple(preStats[i].Mean, postStats[i].Mean, preStats[i].Stderr, postStats[i].Stderr)
		if err != nil {
			return nil, fmt.Errorf("NetOD for region %d: %v", i, err)
		}
		values[i] = dn
	}

	return applyCalibration(values, calib), nil
}

// SimpleByImage pools the pre-image region statistics into a single
// reference level and converts the entire post-image channel to a
// per-pixel NetOD (or dose) map. Pixels with invalid values come back
// as NaN or infinities and are left for the caller to filter.
func SimpleByImage(pre, post *rsimage.RSImage, channel models.Channel, calib *calibration.Calibration) (*mat.Dense, error) {
	preStat, err := pre.AnalyzePooled(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("pre-image analysis failed: %w", err)
	}

	postMat := post.Raster.ChannelMatrix(channel)
	dn, _ := netod.SimpleMap(preStat.Mean, postMat, 0, 0)

	return applyCalibrationMap(dn, calib), nil
}

// FullByROI analyzes matched regions of the pre- and post-irradiation
// images with background and control-film correction. The control
// images are pooled to scalars, as is the background image; a nil
// background substitutes zero for both its mean and its uncertainty.
func FullByROI(pre, post, ctrlPre, ctrlPost, background *rsimage.RSImage, channel models.Channel, calib *calibration.Calibration) ([]float64, error) {
	if len(pre.Regions) != len(post.Regions) {
		return nil, fmt.Errorf("%w: pre has %d, post has %d",
			ErrRegionCountMismatch, len(pre.Regions), len(post.Regions))
	}
	if len(ctrlPre.Regions) != len(ctrlPost.Regions) {
		return nil, fmt.Errorf("%w: control pre has %d, control post has %d",
			ErrRegionCountMismatch, len(ctrlPre.Regions), len(ctrlPost.Regions))
	}

	preStats, err := pre.Analyze(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("pre-image analysis failed: %w", err)
	}
	postStats, err := post.Analyze(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("post-image analysis failed: %w", err)
	}

	ctrlPreStat, err := ctrlPre.AnalyzePooled(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("control pre-image analysis failed: %w", err)
	}
	ctrlPostStat, err := ctrlPost.AnalyzePooled(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("control post-image analysis failed: %w", err)
	}

	bkStat, err := backgroundStat(background, channel)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(preStats))
	for i := range preStats {
		dn, _, err := netod.Calc(preStats[i].Mean, postStats[i].Mean,
			ctrlPreStat.Mean, ctrlPostStat.Mean, bkStat.Mean,
			preStats[i].Stderr, postStats[i].Stderr,
			ctrlPreStat.Stderr, ctrlPostStat.Stderr, bkStat.Stderr)
		if err != nil {
			return nil, fmt.Errorf("NetOD for region %d: %v", i, err)
		}
		values[i] = dn
	}

	return applyCalibration(values, calib), nil
}

// FullByImage pools the pre-image, control images and background to
// scalars and converts the entire post-image channel to a per-pixel
// NetOD (or dose) map with background and control correction.
//
// The per-pixel standard error of the post-image is taken as zero
// here, unlike the per-region path which propagates a real standard
// error. Only the value map is returned, so the result is unaffected.
func FullByImage(pre, post, ctrlPre, ctrlPost, background *rsimage.RSImage, channel models.Channel, calib *calibration.Calibration) (*mat.Dense, error) {
	preStat, err := pre.AnalyzePooled(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("pre-image analysis failed: %w", err)
	}
	ctrlPreStat, err := ctrlPre.AnalyzePooled(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("control pre-image analysis failed: %w", err)
	}
	ctrlPostStat, err := ctrlPost.AnalyzePooled(nil, channel)
	if err != nil {
		return nil, fmt.Errorf("control post-image analysis failed: %w", err)
	}

	bkStat, err := backgroundStat(background, channel)
	if err != nil {
		return nil, err
	}

	postMat := post.Raster.ChannelMatrix(channel)
	dn, _ := netod.CalcMap(preStat.Mean, postMat,
		ctrlPreStat.Mean, ctrlPostStat.Mean, bkStat.Mean,
		preStat.Stderr, 0,
		ctrlPreStat.Stderr, ctrlPostStat.Stderr, bkStat.Stderr)

	return applyCalibrationMap(dn, calib), nil
}

// backgroundStat pools the background image, or substitutes a zero
// statistic when no background scan was taken.
func backgroundStat(background *rsimage.RSImage, channel models.Channel) (models.RegionStats, error) {
	if background == nil {
		return models.RegionStats{}, nil
	}
	stat, err := background.AnalyzePooled(nil, channel)
	if err != nil {
		return models.RegionStats{}, fmt.Errorf("background image analysis failed: %w", err)
	}
	return stat, nil
}

// applyCalibration converts NetOD values to dose when a calibration is
// present; otherwise the NetOD values pass through unchanged.
func applyCalibration(netODs []float64, calib *calibration.Calibration) []float64 {
	if calib == nil {
		return netODs
	}
	doses := make([]float64, len(netODs))
	for i, dn := range netODs {
		doses[i] = calib.Dose(dn)
	}
	return doses
}

// applyCalibrationMap is the per-pixel counterpart of applyCalibration.
func applyCalibrationMap(netOD *mat.Dense, calib *calibration.Calibration) *mat.Dense {
	if calib == nil {
		return netOD
	}
	return calib.DoseMap(netOD)
}
