package clipping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"contsub/internal/models"
)

func block(size, lo, hi int) *models.Mask {
	m := models.NewMask(size, size, size, false)
	for c := lo; c <= hi; c++ {
		for y := lo; y <= hi; y++ {
			for x := lo; x <= hi; x++ {
				m.Set(c, y, x, true)
			}
		}
	}
	return m
}

func TestGenerateStructure(t *testing.T) {
	assert.Len(t, GenerateStructure(0), 1)
	assert.Len(t, GenerateStructure(1), 7)
	assert.Len(t, GenerateStructure(2), 19)
	assert.Len(t, GenerateStructure(3), 27)
}

func TestErode_IsolatedVoxelVanishes(t *testing.T) {
	m := block(5, 2, 2)
	out := Erode(m, GenerateStructure(3), 2)
	assert.Equal(t, 0, out.Count())
	assert.Equal(t, 1, m.Count(), "input must not be modified")
}

func TestErode_BlockKeepsCore(t *testing.T) {
	full := GenerateStructure(3)

	// A 3×3×3 block loses its last voxel on the second pass.
	small := block(5, 1, 3)
	assert.Equal(t, 1, Erode(small, full, 1).Count())
	assert.Equal(t, 0, Erode(small, full, 2).Count())

	// A 5×5×5 block keeps a single-voxel core.
	big := block(9, 2, 6)
	out := Erode(big, full, 2)
	assert.Equal(t, 1, out.Count())
	assert.True(t, out.At(4, 4, 4))
}

func TestErode_BorderCountsAsForeground(t *testing.T) {
	m := models.NewMask(4, 4, 4, true)
	assert.Equal(t, 64, Erode(m, GenerateStructure(3), 3).Count())
}

func TestDilate_FaceConnectivity(t *testing.T) {
	m := block(5, 2, 2)
	out := Dilate(m, GenerateStructure(1), 1)

	// The 7-voxel cross around the centre plus the 98 voxels of the outer shell.
	assert.Equal(t, 7+98, out.Count())
	assert.True(t, out.At(1, 2, 2))
	assert.False(t, out.At(1, 1, 2))
	assert.True(t, out.At(0, 2, 2))
	assert.Equal(t, 1, m.Count(), "input must not be modified")
}

func TestDilate_BorderCountsAsForeground(t *testing.T) {
	m := models.NewMask(3, 3, 3, false)

	once := Dilate(m, GenerateStructure(1), 1)
	assert.Equal(t, 26, once.Count())
	assert.False(t, once.At(1, 1, 1), "centre does not touch the border")
	assert.True(t, once.At(0, 0, 0))

	assert.Equal(t, 27, Dilate(m, GenerateStructure(1), 2).Count())
}

func TestDilate_InteriorUntouchedByBorder(t *testing.T) {
	m := models.NewMask(5, 5, 5, false)
	out := Dilate(m, GenerateStructure(1), 1)
	assert.Equal(t, 125-27, out.Count())
	for c := 1; c <= 3; c++ {
		for y := 1; y <= 3; y++ {
			for x := 1; x <= 3; x++ {
				assert.False(t, out.At(c, y, x))
			}
		}
	}
}

func TestDilateThenErode_FillsHole(t *testing.T) {
	// Dilation fills the hole from its six true neighbours. The result is all
	// true, which erosion keeps because the border counts as foreground.
	m := models.NewMask(5, 5, 5, true)
	m.Set(2, 2, 2, false)
	dilated := Dilate(m, GenerateStructure(1), 1)
	assert.Equal(t, 125, dilated.Count())
	assert.Equal(t, 125, Erode(dilated, GenerateStructure(3), 3).Count())
}

func TestDilateThenErode_FlaggedFace(t *testing.T) {
	// Channel 0 is flagged everywhere. Its only true face neighbours are in
	// channel 1 and beyond the border, so one dilation restores it.
	m := models.NewMask(4, 3, 3, true)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			m.Set(0, y, x, false)
			m.Set(1, y, x, false)
		}
	}
	dilated := Dilate(m, GenerateStructure(1), 1)
	assert.Equal(t, 36, dilated.Count())

	// Without dilation the two flagged channels spread into their neighbour.
	eroded := Erode(m, GenerateStructure(3), 1)
	assert.Equal(t, 9, eroded.Count())
	assert.False(t, eroded.At(2, 1, 1))
	assert.True(t, eroded.At(3, 1, 1))
}
