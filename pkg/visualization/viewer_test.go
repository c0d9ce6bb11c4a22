package visualization

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"contsub/internal/models"
)

// rampCube fills every channel with the channel index.
func rampCube(channels, height, width int) *models.Cube {
	c := models.NewCube(channels, height, width)
	for ch := 0; ch < channels; ch++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c.Set(ch, y, x, float64(ch))
			}
		}
	}
	return c
}

// TestNewViewer verifies the percentile display range
func TestNewViewer(t *testing.T) {
	c := models.NewCube(1, 1, 101)
	for i := range c.Data {
		c.Data[i] = float64(i)
	}
	c.Data[50] = math.NaN()

	lo, hi := NewViewer(c).Range()
	if lo > 2 || lo < 0 {
		t.Errorf("Expected low end near 1, got %f", lo)
	}
	if hi < 98 || hi > 100 {
		t.Errorf("Expected high end near 99, got %f", hi)
	}

	empty := models.NewCube(1, 1, 2)
	empty.Data[0], empty.Data[1] = math.NaN(), math.Inf(1)
	lo, hi = NewViewer(empty).Range()
	if lo != 0 || hi != 1 {
		t.Errorf("Expected default range [0, 1] without finite samples, got [%f, %f]", lo, hi)
	}
}

// TestExtractSlice verifies slice dimensions and gray levels along each axis
func TestExtractSlice(t *testing.T) {
	channels, height, width := 5, 4, 6
	viewer := NewViewerRange(rampCube(channels, height, width), 0, float64(channels-1))

	for ch := 0; ch < channels; ch++ {
		img, err := viewer.ExtractSlice("z", ch)
		if err != nil {
			t.Fatalf("Failed to extract channel map %d: %v", ch, err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected channel map dimensions %dx%d, got %dx%d", width, height, bounds.Dx(), bounds.Dy())
		}
		gray, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}
		want := uint16(float64(ch) / float64(channels-1) * 65535)
		if got := gray.Gray16At(width/2, height/2).Y; math.Abs(float64(got)-float64(want)) > 1 {
			t.Errorf("Expected gray level ~%d in channel %d, got %d", want, ch, got)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != height || b.Dy() != channels {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", height, channels, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != channels {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, channels, b.Dx(), b.Dy())
	}
	// Channels run downwards in velocity slices.
	if top, bottom := imgY.(*image.Gray16).Gray16At(0, 0).Y, imgY.(*image.Gray16).Gray16At(0, channels-1).Y; top != 0 || bottom != 65535 {
		t.Errorf("Expected gray levels 0 and 65535 at the first and last channel, got %d and %d", top, bottom)
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", channels); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestNewMaskViewer verifies that flagged samples render black
func TestNewMaskViewer(t *testing.T) {
	m := models.NewMask(2, 3, 3, true)
	m.Set(1, 1, 2, false)

	img, err := NewMaskViewer(m).ExtractSlice("c", 1)
	if err != nil {
		t.Fatalf("Failed to extract mask slice: %v", err)
	}
	gray := img.(*image.Gray16)
	if got := gray.Gray16At(2, 1).Y; got != 0 {
		t.Errorf("Expected flagged sample to be black, got %d", got)
	}
	if got := gray.Gray16At(0, 0).Y; got != 65535 {
		t.Errorf("Expected usable sample to be white, got %d", got)
	}
}

// TestNaNRendersBlack verifies that blank samples map to zero
func TestNaNRendersBlack(t *testing.T) {
	c := rampCube(2, 2, 2)
	c.Set(1, 0, 1, math.NaN())
	img, err := NewViewerRange(c, 0, 1).ExtractSlice("z", 1)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if got := img.(*image.Gray16).Gray16At(1, 0).Y; got != 0 {
		t.Errorf("Expected NaN to render black, got %d", got)
	}
}

// TestExtractRegion verifies that sub-cubes are copied
func TestExtractRegion(t *testing.T) {
	channels, height, width := 5, 10, 10
	c := models.NewCube(channels, height, width)
	for i := range c.Data {
		c.Data[i] = float64(i)
	}
	viewer := NewViewer(c)

	startC, startY, startX := 1, 3, 2
	sizeC, sizeY, sizeX := 2, 3, 4
	region, err := viewer.ExtractRegion(startC, startY, startX, sizeC, sizeY, sizeX)
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}
	if region.Size() != sizeC*sizeY*sizeX {
		t.Errorf("Expected region size %d, got %d", sizeC*sizeY*sizeX, region.Size())
	}
	for ch := 0; ch < sizeC; ch++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				want := c.At(startC+ch, startY+y, startX+x)
				if got := region.At(ch, y, x); got != want {
					t.Errorf("Region value mismatch at (%d,%d,%d): expected %f, got %f", ch, y, x, want, got)
				}
			}
		}
	}

	if _, err := viewer.ExtractRegion(-1, 0, 0, 1, 1, 1); err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}
	if _, err := viewer.ExtractRegion(0, 0, 0, 0, 1, 1); err == nil {
		t.Error("Expected error for zero size, got nil")
	}
	if _, err := viewer.ExtractRegion(0, 0, width-1, 1, 1, 2); err == nil {
		t.Error("Expected error for region extending beyond cube, got nil")
	}
}

// TestSaveSliceSequence verifies that a sequence of previews can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	outputDir := filepath.Join(t.TempDir(), "previews")
	viewer := NewViewer(rampCube(3, 5, 5))
	if err := viewer.SaveSliceSequence("z", "line", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for ch := 0; ch < 3; ch++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("line_z_%03d.jpg", ch))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected preview file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("invalid", "line", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
