// Package roi reads regions of interest from ImageJ ROI files. Both a
// single .roi file and a .zip archive of .roi entries (as written by
// the ImageJ ROI manager) are supported. Only the rectangular bounding
// box of each ROI is used; the dosimetry pipeline works on rectangles.
package roi

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"radscan/internal/models"
)

// The ImageJ ROI format starts with the magic bytes "Iout" followed by
// a version number. The bounding box is stored as four big-endian
// 16-bit integers at fixed offsets.
const (
	roiMagic      = "Iout"
	roiHeaderSize = 64

	offsetTop    = 8
	offsetLeft   = 10
	offsetBottom = 12
	offsetRight  = 14
)

// Load reads regions from an ImageJ ROI file. A path ending in .zip is
// treated as an archive of ROI entries; anything else is read as a
// single ROI. The order of regions follows the order of entries in the
// source file, which callers rely on for pairing regions across
// images.
func Load(path string) ([]models.Region, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return loadArchive(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROI file %s: %w", path, err)
	}
	region, err := decodeROI(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ROI file %s: %v", path, err)
	}
	return []models.Region{region}, nil
}

// loadArchive reads all .roi entries of a zip archive in archive order.
func loadArchive(path string) ([]models.Region, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ROI archive %s: %w", path, err)
	}
	defer r.Close()

	var regions []models.Region
	for _, entry := range r.File {
		if !strings.EqualFold(filepath.Ext(entry.Name), ".roi") {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open entry %s in %s: %v", entry.Name, path, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read entry %s in %s: %v", entry.Name, path, err)
		}

		region, err := decodeROI(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode entry %s in %s: %v", entry.Name, path, err)
		}
		regions = append(regions, region)
	}

	if len(regions) == 0 {
		return nil, fmt.Errorf("no ROI entries found in archive %s", path)
	}
	return regions, nil
}

// decodeROI extracts the bounding box from one ImageJ ROI record.
func decodeROI(data []byte) (models.Region, error) {
	if len(data) < roiHeaderSize {
		return models.Region{}, fmt.Errorf("ROI record too short: %d bytes", len(data))
	}
	if string(data[:4]) != roiMagic {
		return models.Region{}, fmt.Errorf("not an ImageJ ROI record (bad magic %q)", data[:4])
	}

	top := int(int16(binary.BigEndian.Uint16(data[offsetTop:])))
	left := int(int16(binary.BigEndian.Uint16(data[offsetLeft:])))
	bottom := int(int16(binary.BigEndian.Uint16(data[offsetBottom:])))
	right := int(int16(binary.BigEndian.Uint16(data[offsetRight:])))

	region := models.Region{Left: left, Right: right, Top: top, Bottom: bottom}
	if region.Width() <= 0 || region.Height() <= 0 {
		return models.Region{}, fmt.Errorf("ROI record has degenerate bounds %s", region)
	}
	return region, nil
}
