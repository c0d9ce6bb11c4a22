package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when two arrays that must share a shape do not.
	ErrDimensionMismatch = errors.New("models: dimension mismatch")

	// ErrEmptyCube is returned when a cube has a zero-length axis.
	ErrEmptyCube = errors.New("models: cube must have at least one channel and one pixel")

	// ErrNotMonotonic is returned when a spectral axis is not strictly monotonic.
	ErrNotMonotonic = errors.New("models: spectral axis is not strictly monotonic")
)

// Shape is the (channels, height, width) extent of a cube or mask.
type Shape struct {
	Channels int
	Height   int
	Width    int
}

// Size returns the total number of elements.
func (s Shape) Size() int {
	return s.Channels * s.Height * s.Width
}

// Pixels returns the number of spatial pixels (height × width).
func (s Shape) Pixels() int {
	return s.Height * s.Width
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.Channels, s.Height, s.Width)
}

// Index returns the flat row-major offset of (channel, y, x).
func (s Shape) Index(c, y, x int) int {
	return c*s.Height*s.Width + y*s.Width + x
}

// Cube represents a spectral cube with two spatial axes and one spectral axis.
type Cube struct {
	// Data is the cube data as a 1D array in row-major (channel, y, x) order
	Data []float64

	Shape
}

// NewCube allocates a zero-filled cube.
func NewCube(channels, height, width int) *Cube {
	return &Cube{
		Data:  make([]float64, channels*height*width),
		Shape: Shape{Channels: channels, Height: height, Width: width},
	}
}

// NewCubeFromData wraps data in a cube after checking its length.
func NewCubeFromData(data []float64, channels, height, width int) (*Cube, error) {
	s := Shape{Channels: channels, Height: height, Width: width}
	if s.Size() == 0 {
		return nil, ErrEmptyCube
	}
	if len(data) != s.Size() {
		return nil, fmt.Errorf("%w: %d values for shape %s", ErrDimensionMismatch, len(data), s)
	}
	return &Cube{Data: data, Shape: s}, nil
}

// At returns the value at (channel, y, x).
func (c *Cube) At(ch, y, x int) float64 {
	return c.Data[c.Index(ch, y, x)]
}

// Set stores v at (channel, y, x).
func (c *Cube) Set(ch, y, x int, v float64) {
	c.Data[c.Index(ch, y, x)] = v
}

// Trace copies the spectrum of pixel (y, x) into dst, allocating when dst is too short.
func (c *Cube) Trace(y, x int, dst []float64) []float64 {
	if cap(dst) < c.Channels {
		dst = make([]float64, c.Channels)
	}
	dst = dst[:c.Channels]
	stride := c.Pixels()
	off := y*c.Width + x
	for ch := range dst {
		dst[ch] = c.Data[off+ch*stride]
	}
	return dst
}

// SetTrace writes the spectrum of pixel (y, x).
func (c *Cube) SetTrace(y, x int, trace []float64) {
	stride := c.Pixels()
	off := y*c.Width + x
	for ch, v := range trace {
		c.Data[off+ch*stride] = v
	}
}

// Plane returns the (height × width) channel map for channel ch without copying.
func (c *Cube) Plane(ch int) []float64 {
	n := c.Pixels()
	return c.Data[ch*n : (ch+1)*n]
}

// Mask is a boolean cube. True marks a usable (normal) sample.
type Mask struct {
	Data []bool

	Shape
}

// NewMask allocates a mask with every entry set to fill.
func NewMask(channels, height, width int, fill bool) *Mask {
	m := &Mask{
		Data:  make([]bool, channels*height*width),
		Shape: Shape{Channels: channels, Height: height, Width: width},
	}
	if fill {
		for i := range m.Data {
			m.Data[i] = true
		}
	}
	return m
}

// At returns the mask value at (channel, y, x).
func (m *Mask) At(ch, y, x int) bool {
	return m.Data[m.Index(ch, y, x)]
}

// Set stores v at (channel, y, x).
func (m *Mask) Set(ch, y, x int, v bool) {
	m.Data[m.Index(ch, y, x)] = v
}

// Trace copies the mask spectrum of pixel (y, x) into dst.
func (m *Mask) Trace(y, x int, dst []bool) []bool {
	if cap(dst) < m.Channels {
		dst = make([]bool, m.Channels)
	}
	dst = dst[:m.Channels]
	stride := m.Pixels()
	off := y*m.Width + x
	for ch := range dst {
		dst[ch] = m.Data[off+ch*stride]
	}
	return dst
}

// Count returns the number of true entries.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// CheckShape reports ErrDimensionMismatch when got differs from want.
func CheckShape(want, got Shape) error {
	if want != got {
		return fmt.Errorf("%w: expected %s, got %s", ErrDimensionMismatch, want, got)
	}
	return nil
}
