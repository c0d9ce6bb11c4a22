package clipping

import "contsub/internal/models"

// Structure is a 3-D structuring element stored as offsets (dc, dy, dx) from
// the centre, the centre included.
type Structure [][3]int

// GenerateStructure returns the 3×3×3 element whose members lie within a
// squared distance of connectivity from the centre: 1 gives the 6 face
// neighbours, 2 adds the 12 edge neighbours, 3 adds the 8 corners.
func GenerateStructure(connectivity int) Structure {
	var s Structure
	for dc := -1; dc <= 1; dc++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dc*dc+dy*dy+dx*dx <= connectivity {
					s = append(s, [3]int{dc, dy, dx})
				}
			}
		}
	}
	return s
}

// inBounds reports whether (c, y, x) lies inside shape s.
func inBounds(s models.Shape, c, y, x int) bool {
	return c >= 0 && c < s.Channels && y >= 0 && y < s.Height && x >= 0 && x < s.Width
}

// Dilate grows the true regions of m by the structuring element, iterations
// times. Positions outside the mask count as foreground, so every voxel that
// reaches the border through the element becomes true.
func Dilate(m *models.Mask, st Structure, iterations int) *models.Mask {
	cur := cloneMask(m)
	for i := 0; i < iterations; i++ {
		next := models.NewMask(m.Channels, m.Height, m.Width, false)
		for c := 0; c < m.Channels; c++ {
			for y := 0; y < m.Height; y++ {
				for x := 0; x < m.Width; x++ {
					next.Set(c, y, x, hitAny(cur, st, c, y, x))
				}
			}
		}
		cur = next
	}
	return cur
}

// Erode shrinks the true regions of m by the structuring element, iterations
// times. Positions outside the mask count as foreground, so regions touching
// the border are not eaten from that side.
func Erode(m *models.Mask, st Structure, iterations int) *models.Mask {
	cur := cloneMask(m)
	for i := 0; i < iterations; i++ {
		next := models.NewMask(m.Channels, m.Height, m.Width, false)
		for c := 0; c < m.Channels; c++ {
			for y := 0; y < m.Height; y++ {
				for x := 0; x < m.Width; x++ {
					next.Set(c, y, x, fitsAll(cur, st, c, y, x))
				}
			}
		}
		cur = next
	}
	return cur
}

func hitAny(m *models.Mask, st Structure, c, y, x int) bool {
	for _, o := range st {
		cc, yy, xx := c+o[0], y+o[1], x+o[2]
		if !inBounds(m.Shape, cc, yy, xx) || m.At(cc, yy, xx) {
			return true
		}
	}
	return false
}

func fitsAll(m *models.Mask, st Structure, c, y, x int) bool {
	for _, o := range st {
		cc, yy, xx := c+o[0], y+o[1], x+o[2]
		if inBounds(m.Shape, cc, yy, xx) && !m.At(cc, yy, xx) {
			return false
		}
	}
	return true
}

func cloneMask(m *models.Mask) *models.Mask {
	data := make([]bool, len(m.Data))
	copy(data, m.Data)
	return &models.Mask{Data: data, Shape: m.Shape}
}
