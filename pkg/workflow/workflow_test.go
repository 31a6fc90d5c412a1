package workflow

import (
	"errors"
	"math"
	"testing"

	"radscan/internal/models"
	"radscan/pkg/calibration"
	"radscan/pkg/rsimage"
)

const tolerance = 1e-9

// constantImage builds an in-memory image with one constant pixel
// value everywhere and the given regions attached.
func constantImage(width, height int, v float64, regions []models.Region) *rsimage.RSImage {
	const channels = 3
	data := make([]float64, width*height*channels)
	for i := range data {
		data[i] = v
	}
	return &rsimage.RSImage{
		Filename: "test",
		Raster: &models.Raster{
			Data:     data,
			Width:    width,
			Height:   height,
			Channels: channels,
		},
		Regions: regions,
	}
}

// threeRegions returns a list of three disjoint regions inside a
// 30x10 image.
func threeRegions() []models.Region {
	return []models.Region{
		{Left: 0, Right: 10, Top: 0, Bottom: 10},
		{Left: 10, Right: 20, Top: 0, Bottom: 10},
		{Left: 20, Right: 30, Top: 0, Bottom: 10},
	}
}

// TestSimpleByROI verifies one NetOD per matched region pair, with the
// expected log ratio for constant images.
func TestSimpleByROI(t *testing.T) {
	pre := constantImage(30, 10, 30000, threeRegions())
	post := constantImage(30, 10, 15000, threeRegions())

	values, err := SimpleByROI(pre, post, models.Red, nil)
	if err != nil {
		t.Fatalf("SimpleByROI failed: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("Expected 3 values for 3 region pairs, got %d", len(values))
	}

	expected := math.Log10(2)
	for i, v := range values {
		if math.Abs(v-expected) > tolerance {
			t.Errorf("Region %d: expected NetOD %g, got %g", i, expected, v)
		}
	}
}

// TestSimpleByROIMismatch verifies a region-count mismatch fails
// before any pixel math executes.
func TestSimpleByROIMismatch(t *testing.T) {
	pre := constantImage(30, 10, 30000, threeRegions())
	post := constantImage(30, 10, 15000, threeRegions()[:2])

	_, err := SimpleByROI(pre, post, models.Red, nil)
	if !errors.Is(err, ErrRegionCountMismatch) {
		t.Errorf("Expected ErrRegionCountMismatch, got %v", err)
	}
}

// TestSimpleByROIWithCalibration verifies NetOD values are converted
// to dose when a calibration is supplied.
func TestSimpleByROIWithCalibration(t *testing.T) {
	calib, err := calibration.New(
		[]float64{0, 1, 2, 3, 4, 5},
		[]float64{0, 0.2, 0.4, 0.6, 0.8, 1.0},
		calibration.Options{Lot: "test", Channel: models.Red},
	)
	if err != nil {
		t.Fatalf("Calibration fit failed: %v", err)
	}

	pre := constantImage(30, 10, 30000, threeRegions())
	post := constantImage(30, 10, 15000, threeRegions())

	values, err := SimpleByROI(pre, post, models.Red, calib)
	if err != nil {
		t.Fatalf("SimpleByROI failed: %v", err)
	}

	expected := calib.Dose(math.Log10(2))
	for i, v := range values {
		if math.Abs(v-expected) > tolerance {
			t.Errorf("Region %d: expected dose %g, got %g", i, expected, v)
		}
	}
}

// TestSimpleByImage verifies the per-pixel map has the post-image
// dimensions and the expected values for constant input.
func TestSimpleByImage(t *testing.T) {
	pre := constantImage(30, 10, 30000, threeRegions())
	post := constantImage(20, 8, 15000, nil)

	result, err := SimpleByImage(pre, post, models.Red, nil)
	if err != nil {
		t.Fatalf("SimpleByImage failed: %v", err)
	}

	rows, cols := result.Dims()
	if rows != 8 || cols != 20 {
		t.Fatalf("Expected 8x20 map, got %dx%d", rows, cols)
	}

	expected := math.Log10(2)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if math.Abs(result.At(i, j)-expected) > tolerance {
				t.Fatalf("Pixel (%d,%d): expected NetOD %g, got %g", i, j, expected, result.At(i, j))
			}
		}
	}
}

// TestFullByROIReducesToSimple verifies that with an unchanged control
// film and no background the full analysis matches the simple one.
func TestFullByROIReducesToSimple(t *testing.T) {
	pre := constantImage(30, 10, 30000, threeRegions())
	post := constantImage(30, 10, 18000, threeRegions())
	ctrl := constantImage(30, 10, 25000, threeRegions()[:1])

	full, err := FullByROI(pre, post, ctrl, ctrl, nil, models.Red, nil)
	if err != nil {
		t.Fatalf("FullByROI failed: %v", err)
	}
	simple, err := SimpleByROI(pre, post, models.Red, nil)
	if err != nil {
		t.Fatalf("SimpleByROI failed: %v", err)
	}

	if len(full) != len(simple) {
		t.Fatalf("Value counts differ: %d vs %d", len(full), len(simple))
	}
	for i := range full {
		if math.Abs(full[i]-simple[i]) > tolerance {
			t.Errorf("Region %d: full %g differs from simple %g", i, full[i], simple[i])
		}
	}
}

// TestFullByROIControlMismatch verifies the control pair counts are
// checked independently of the main pair.
func TestFullByROIControlMismatch(t *testing.T) {
	pre := constantImage(30, 10, 30000, threeRegions())
	post := constantImage(30, 10, 18000, threeRegions())
	ctrlPre := constantImage(30, 10, 25000, threeRegions()[:2])
	ctrlPost := constantImage(30, 10, 25000, threeRegions()[:1])

	_, err := FullByROI(pre, post, ctrlPre, ctrlPost, nil, models.Red, nil)
	if !errors.Is(err, ErrRegionCountMismatch) {
		t.Errorf("Expected ErrRegionCountMismatch for control pair, got %v", err)
	}
}

// TestFullByROIBackgroundSubtraction verifies the background shifts
// the result according to the full NetOD formula.
func TestFullByROIBackgroundSubtraction(t *testing.T) {
	pre := constantImage(30, 10, 30000, threeRegions())
	post := constantImage(30, 10, 18000, threeRegions())
	ctrl := constantImage(30, 10, 25000, threeRegions()[:1])
	background := constantImage(30, 10, 2000, threeRegions()[:1])

	values, err := FullByROI(pre, post, ctrl, ctrl, background, models.Red, nil)
	if err != nil {
		t.Fatalf("FullByROI failed: %v", err)
	}

	expected := math.Log10((30000.0 - 2000.0) / (18000.0 - 2000.0))
	for i, v := range values {
		if math.Abs(v-expected) > tolerance {
			t.Errorf("Region %d: expected NetOD %g, got %g", i, expected, v)
		}
	}
}

// TestFullByImage verifies the per-pixel full analysis produces a map
// with the post-image dimensions and the expected constant value.
func TestFullByImage(t *testing.T) {
	pre := constantImage(30, 10, 30000, threeRegions())
	post := constantImage(12, 6, 18000, nil)
	ctrl := constantImage(30, 10, 25000, threeRegions()[:1])

	result, err := FullByImage(pre, post, ctrl, ctrl, nil, models.Red, nil)
	if err != nil {
		t.Fatalf("FullByImage failed: %v", err)
	}

	rows, cols := result.Dims()
	if rows != 6 || cols != 12 {
		t.Fatalf("Expected 6x12 map, got %dx%d", rows, cols)
	}

	expected := math.Log10(30000.0 / 18000.0)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if math.Abs(result.At(i, j)-expected) > tolerance {
				t.Fatalf("Pixel (%d,%d): expected NetOD %g, got %g", i, j, expected, result.At(i, j))
			}
		}
	}
}
