package roi

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"radscan/internal/models"
)

// makeROIRecord builds a minimal ImageJ ROI record with the given
// bounding box.
func makeROIRecord(left, right, top, bottom int) []byte {
	data := make([]byte, roiHeaderSize)
	copy(data, roiMagic)
	binary.BigEndian.PutUint16(data[offsetTop:], uint16(int16(top)))
	binary.BigEndian.PutUint16(data[offsetLeft:], uint16(int16(left)))
	binary.BigEndian.PutUint16(data[offsetBottom:], uint16(int16(bottom)))
	binary.BigEndian.PutUint16(data[offsetRight:], uint16(int16(right)))
	return data
}

// TestLoadSingleROI verifies a single .roi file decodes to one region
// with the stored bounding box.
func TestLoadSingleROI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strip.roi")
	if err := os.WriteFile(path, makeROIRecord(50, 100, 20, 80), 0644); err != nil {
		t.Fatalf("Failed to write ROI file: %v", err)
	}

	regions, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("Expected 1 region, got %d", len(regions))
	}

	expected := models.Region{Left: 50, Right: 100, Top: 20, Bottom: 80}
	if regions[0] != expected {
		t.Errorf("Expected region %s, got %s", expected, regions[0])
	}
}

// TestLoadArchivePreservesOrder verifies a .zip archive decodes all
// entries in archive order, which pairs regions across images.
func TestLoadArchivePreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "RoiSet.zip")

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	boxes := []models.Region{
		{Left: 10, Right: 60, Top: 10, Bottom: 40},
		{Left: 70, Right: 120, Top: 10, Bottom: 40},
		{Left: 130, Right: 180, Top: 10, Bottom: 40},
	}
	for i, b := range boxes {
		f, err := w.Create(filepath.Join("rois", string(rune('a'+i))+".roi"))
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		f.Write(makeROIRecord(b.Left, b.Right, b.Top, b.Bottom))
	}
	// A non-ROI entry must be skipped, not decoded.
	readme, err := w.Create("README.txt")
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	readme.Write([]byte("not a roi"))
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write archive: %v", err)
	}

	regions, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(regions) != len(boxes) {
		t.Fatalf("Expected %d regions, got %d", len(boxes), len(regions))
	}
	for i, b := range boxes {
		if regions[i] != b {
			t.Errorf("Region %d: expected %s, got %s", i, b, regions[i])
		}
	}
}

// TestLoadRejectsBadMagic verifies non-ROI data is rejected.
func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.roi")
	record := makeROIRecord(0, 10, 0, 10)
	copy(record, "Xout")
	if err := os.WriteFile(path, record, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for bad magic, got none")
	}
}

// TestLoadRejectsShortRecord verifies truncated records are rejected.
func TestLoadRejectsShortRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.roi")
	if err := os.WriteFile(path, []byte("Iout"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for short record, got none")
	}
}

// TestLoadRejectsDegenerateBounds verifies an empty bounding box is
// rejected.
func TestLoadRejectsDegenerateBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.roi")
	if err := os.WriteFile(path, makeROIRecord(50, 50, 20, 80), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for degenerate bounds, got none")
	}
}
