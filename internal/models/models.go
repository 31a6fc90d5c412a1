package models

import (
	"fmt"
)

// Channel identifies one color channel of a scanned film image.
// Flatbed scanners used for radiochromic film produce RGB images, and
// the dose response of the film differs per channel; the red channel
// carries most of the signal for typical clinical dose ranges.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// ChannelNames is the fixed mapping from channel index to the symbolic
// name used in calibration metadata and file names. It is consulted by
// the calibration package and by any caller selecting a channel; the
// table itself is never modified at runtime.
var ChannelNames = map[Channel]string{
	Red:   "RED",
	Green: "GREEN",
	Blue:  "BLUE",
}

// String returns the symbolic name for the channel, or a numeric
// fallback for values outside the table.
func (c Channel) String() string {
	if name, ok := ChannelNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CHANNEL_%d", int(c))
}

// ParseChannel converts a symbolic channel name (RED, GREEN, BLUE) to
// its Channel value.
func ParseChannel(name string) (Channel, error) {
	for ch, n := range ChannelNames {
		if n == name {
			return ch, nil
		}
	}
	return 0, fmt.Errorf("unknown channel name %q", name)
}

// Region is a rectangular region of interest in pixel coordinates.
// The bounds are half-open on the right and bottom: a pixel (x, y)
// belongs to the region when Left <= x < Right and Top <= y < Bottom.
//
// Regions are treated as immutable once created. Region lists are
// ordered and the order is semantically significant: index i in one
// list must refer to the same physical film strip as index i in a
// paired list, even when sizes and positions differ between scans.
type Region struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// Width returns the horizontal extent of the region in pixels.
func (r Region) Width() int { return r.Right - r.Left }

// Height returns the vertical extent of the region in pixels.
func (r Region) Height() int { return r.Bottom - r.Top }

// Within reports whether the region lies fully inside an image of the
// given dimensions.
func (r Region) Within(width, height int) bool {
	return r.Left >= 0 && r.Left < r.Right && r.Right <= width &&
		r.Top >= 0 && r.Top < r.Bottom && r.Bottom <= height
}

// String formats the region as (left, right, top, bottom), matching
// the order used in ROI files and error messages.
func (r Region) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", r.Left, r.Right, r.Top, r.Bottom)
}

// RegionStats holds the pixel statistics of one channel of one region.
// Stderr is the standard error of the mean: the sample standard
// deviation (Bessel-corrected) divided by the square root of the pixel
// count. RegionStats are derived values and are recomputed whenever the
// source pixels or the region change; they are never stored.
type RegionStats struct {
	Mean   float64
	Stderr float64
	Min    float64
	Max    float64
}
