package visualization

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"radscan/internal/models"
)

// TestRenderNormalization verifies the value range maps to the full
// grayscale range.
func TestRenderNormalization(t *testing.T) {
	m := mat.NewDense(1, 3, []float64{0, 5, 10})

	img := NewRenderer().Render(m)

	low := color.Gray16Model.Convert(img.At(0, 0)).(color.Gray16)
	mid := color.Gray16Model.Convert(img.At(1, 0)).(color.Gray16)
	high := color.Gray16Model.Convert(img.At(2, 0)).(color.Gray16)

	if low.Y != 0 {
		t.Errorf("Minimum value should render black, got %d", low.Y)
	}
	if high.Y != 65535 {
		t.Errorf("Maximum value should render white, got %d", high.Y)
	}
	if mid.Y < 30000 || mid.Y > 35000 {
		t.Errorf("Middle value should render mid-gray, got %d", mid.Y)
	}
}

// TestRenderBadPixelsBlack verifies NaN and infinite pixels render
// black instead of disturbing the normalization.
func TestRenderBadPixelsBlack(t *testing.T) {
	m := mat.NewDense(1, 4, []float64{1, 2, math.NaN(), math.Inf(1)})

	img := NewRenderer().Render(m)

	for _, x := range []int{2, 3} {
		px := color.Gray16Model.Convert(img.At(x, 0)).(color.Gray16)
		if px.Y != 0 {
			t.Errorf("Bad pixel at %d should render black, got %d", x, px.Y)
		}
	}
	// The finite pixels still span the full range.
	if px := color.Gray16Model.Convert(img.At(1, 0)).(color.Gray16); px.Y != 65535 {
		t.Errorf("Finite maximum should render white, got %d", px.Y)
	}
}

// TestFixedRenderer verifies a fixed normalization range is honored
// across maps.
func TestFixedRenderer(t *testing.T) {
	r := NewFixedRenderer(0, 10)
	m := mat.NewDense(1, 1, []float64{5})

	img := r.Render(m)
	px := color.Gray16Model.Convert(img.At(0, 0)).(color.Gray16)
	if px.Y < 30000 || px.Y > 35000 {
		t.Errorf("Value 5 in fixed range [0,10] should render mid-gray, got %d", px.Y)
	}
}

// TestSaveMap verifies the PNG file is written.
func TestSaveMap(t *testing.T) {
	m := mat.NewDense(4, 4, nil)
	path := filepath.Join(t.TempDir(), "map.png")

	if err := NewRenderer().SaveMap(m, path); err != nil {
		t.Fatalf("SaveMap failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Map file not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Map file is empty")
	}
}

// TestCropMap verifies region extraction from a value map.
func TestCropMap(t *testing.T) {
	m := mat.NewDense(4, 6, nil)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			m.Set(y, x, float64(y*10+x))
		}
	}

	crop, err := CropMap(m, models.Region{Left: 2, Right: 5, Top: 1, Bottom: 3})
	if err != nil {
		t.Fatalf("CropMap failed: %v", err)
	}

	rows, cols := crop.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("Expected 2x3 crop, got %dx%d", rows, cols)
	}
	if crop.At(0, 0) != 12 || crop.At(1, 2) != 24 {
		t.Errorf("Crop content wrong: got %g and %g", crop.At(0, 0), crop.At(1, 2))
	}

	if _, err := CropMap(m, models.Region{Left: 0, Right: 7, Top: 0, Bottom: 2}); err == nil {
		t.Error("Expected error for out-of-bounds crop region, got none")
	}
}
