// Package visualization renders channel maps and position-velocity slices of
// cubes and masks as grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"contsub/internal/models"
)

// Display range percentiles used by NewViewer.
const (
	lowPercentile  = 0.01
	highPercentile = 0.99
)

// Viewer extracts 2D slices from a cube and maps values linearly onto 16-bit
// gray levels. NaN samples render black.
type Viewer struct {
	cube *models.Cube

	// display range
	lo, hi float64
}

// NewViewer creates a viewer whose display range spans the 1st to 99th
// percentile of the finite samples.
func NewViewer(c *models.Cube) *Viewer {
	finite := make([]float64, 0, len(c.Data))
	for _, v := range c.Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	v := &Viewer{cube: c}
	if len(finite) == 0 {
		v.hi = 1
		return v
	}
	sort.Float64s(finite)
	v.lo = stat.Quantile(lowPercentile, stat.Empirical, finite, nil)
	v.hi = stat.Quantile(highPercentile, stat.Empirical, finite, nil)
	return v
}

// NewViewerRange creates a viewer with a fixed display range.
func NewViewerRange(c *models.Cube, lo, hi float64) *Viewer {
	return &Viewer{cube: c, lo: lo, hi: hi}
}

// NewMaskViewer renders usable samples white and flagged samples black.
func NewMaskViewer(m *models.Mask) *Viewer {
	c := models.NewCube(m.Channels, m.Height, m.Width)
	for i, ok := range m.Data {
		if ok {
			c.Data[i] = 1
		}
	}
	return NewViewerRange(c, 0, 1)
}

// Range returns the display range.
func (v *Viewer) Range() (lo, hi float64) { return v.lo, v.hi }

func (v *Viewer) gray(x float64) color.Gray16 {
	if math.IsNaN(x) || !(v.hi > v.lo) {
		return color.Gray16{}
	}
	t := (x - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// ExtractSlice extracts a 2D slice along the specified axis. "z" (or "c")
// gives the channel map at a channel; "y" gives the x-velocity slice at a row
// and "x" the y-velocity slice at a column, with channels running downwards.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	c := v.cube

	var img *image.Gray16
	switch axis {
	case "x", "X":
		if position >= c.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, c.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, c.Height, c.Channels))
		for ch := 0; ch < c.Channels; ch++ {
			for y := 0; y < c.Height; y++ {
				img.SetGray16(y, ch, v.gray(c.At(ch, y, position)))
			}
		}

	case "y", "Y":
		if position >= c.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, c.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, c.Width, c.Channels))
		for ch := 0; ch < c.Channels; ch++ {
			for x := 0; x < c.Width; x++ {
				img.SetGray16(x, ch, v.gray(c.At(ch, position, x)))
			}
		}

	case "z", "Z", "c", "C":
		if position >= c.Channels {
			return nil, fmt.Errorf("position %d exceeds channel count %d", position, c.Channels)
		}
		img = image.NewGray16(image.Rect(0, 0, c.Width, c.Height))
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				img.SetGray16(x, y, v.gray(c.At(position, y, x)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion copies a sub-cube starting at (channel, y, x).
func (v *Viewer) ExtractRegion(startC, startY, startX, sizeC, sizeY, sizeX int) (*models.Cube, error) {
	if startC < 0 || startY < 0 || startX < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeC <= 0 || sizeY <= 0 || sizeX <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	c := v.cube
	if startC+sizeC > c.Channels || startY+sizeY > c.Height || startX+sizeX > c.Width {
		return nil, fmt.Errorf("region extends beyond cube boundaries")
	}

	region := models.NewCube(sizeC, sizeY, sizeX)
	for ch := 0; ch < sizeC; ch++ {
		for y := 0; y < sizeY; y++ {
			src := c.Shape.Index(startC+ch, startY+y, startX)
			copy(region.Data[region.Index(ch, y, 0):region.Index(ch, y, 0)+sizeX], c.Data[src:src+sizeX])
		}
	}
	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis,
// naming files <prefix>_<axis>_NNN.jpg.
func (v *Viewer) SaveSliceSequence(axis, prefix, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.cube.Width
	case "y", "Y":
		maxPos = v.cube.Height
	case "z", "Z", "c", "C":
		maxPos = v.cube.Channels
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%03d.jpg", prefix, axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
