package clipping

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"gonum.org/v1/gonum/dsp/fourier"

	"contsub/internal/models"
)

// Kernel is a smoothing kernel in (channel, y, x) order. A 1-D kernel acts on
// the spectral axis only, a 2-D kernel on each channel map, and a 3-D kernel
// on the whole cube.
type Kernel struct {
	Values []float64
	Rank   int
	models.Shape
}

// NewKernel1D builds a spectral kernel.
func NewKernel1D(values []float64) (*Kernel, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty 1-D kernel", ErrKernelShape)
	}
	return &Kernel{
		Values: append([]float64(nil), values...),
		Rank:   1,
		Shape:  models.Shape{Channels: len(values), Height: 1, Width: 1},
	}, nil
}

// NewKernel2D builds a spatial kernel from rows of equal length.
func NewKernel2D(rows [][]float64) (*Kernel, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty 2-D kernel", ErrKernelShape)
	}
	w := len(rows[0])
	values := make([]float64, 0, len(rows)*w)
	for i, r := range rows {
		if len(r) != w {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrKernelShape, i, len(r), w)
		}
		values = append(values, r...)
	}
	return &Kernel{
		Values: values,
		Rank:   2,
		Shape:  models.Shape{Channels: 1, Height: len(rows), Width: w},
	}, nil
}

// NewKernel3D builds a full cube kernel from planes of equal shape.
func NewKernel3D(planes [][][]float64) (*Kernel, error) {
	if len(planes) == 0 || len(planes[0]) == 0 || len(planes[0][0]) == 0 {
		return nil, fmt.Errorf("%w: empty 3-D kernel", ErrKernelShape)
	}
	h, w := len(planes[0]), len(planes[0][0])
	values := make([]float64, 0, len(planes)*h*w)
	for c, p := range planes {
		if len(p) != h {
			return nil, fmt.Errorf("%w: plane %d has %d rows, want %d", ErrKernelShape, c, len(p), h)
		}
		for i, r := range p {
			if len(r) != w {
				return nil, fmt.Errorf("%w: plane %d row %d has %d values, want %d", ErrKernelShape, c, i, len(r), w)
			}
			values = append(values, r...)
		}
	}
	return &Kernel{
		Values: values,
		Rank:   3,
		Shape:  models.Shape{Channels: len(planes), Height: h, Width: w},
	}, nil
}

// Smooth convolves the cube with k in "same" mode: zero padding, output of
// the input shape, centred like scipy.signal.convolve.
func Smooth(c *models.Cube, k *Kernel) (*models.Cube, error) {
	if k == nil {
		return c, nil
	}
	switch k.Rank {
	case 1:
		return smoothSpectral(c, k.Values)
	case 2:
		return smoothSpatial(c, k)
	case 3:
		return smoothDirect(c, k), nil
	default:
		return nil, fmt.Errorf("%w: rank %d", ErrKernelShape, k.Rank)
	}
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// smoothSpectral convolves every pixel trace with a 1-D kernel via FFT.
func smoothSpectral(c *models.Cube, kernel []float64) (*models.Cube, error) {
	n, m := c.Channels, len(kernel)
	size := nextPowerOf2(n + m - 1)
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("clipping: failed to create FFT plan: %w", err)
	}

	kernelFFT := make([]complex128, size)
	for i, v := range kernel {
		kernelFFT[i] = complex(v, 0)
	}
	if err := plan.Forward(kernelFFT, kernelFFT); err != nil {
		return nil, fmt.Errorf("clipping: kernel FFT failed: %w", err)
	}

	out := models.NewCube(c.Channels, c.Height, c.Width)
	buf := make([]complex128, size)
	trace := make([]float64, n)
	start := (m - 1) / 2
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			trace = c.Trace(y, x, trace)
			for i := range buf {
				buf[i] = 0
			}
			for i, v := range trace {
				buf[i] = complex(v, 0)
			}
			if err := plan.Forward(buf, buf); err != nil {
				return nil, fmt.Errorf("clipping: forward FFT failed: %w", err)
			}
			for i := range buf {
				buf[i] *= kernelFFT[i]
			}
			if err := plan.Inverse(buf, buf); err != nil {
				return nil, fmt.Errorf("clipping: inverse FFT failed: %w", err)
			}
			for i := range trace {
				trace[i] = real(buf[start+i])
			}
			out.SetTrace(y, x, trace)
		}
	}
	return out, nil
}

// fft2 is a row-column 2-D transform over a p×q complex grid.
type fft2 struct {
	p, q   int
	rows   *fourier.CmplxFFT
	cols   *fourier.CmplxFFT
	column []complex128
}

func newFFT2(p, q int) *fft2 {
	return &fft2{
		p:      p,
		q:      q,
		rows:   fourier.NewCmplxFFT(q),
		cols:   fourier.NewCmplxFFT(p),
		column: make([]complex128, p),
	}
}

// transform applies the forward (or unnormalised inverse) transform in place.
func (f *fft2) transform(data []complex128, inverse bool) {
	for i := 0; i < f.p; i++ {
		row := data[i*f.q : (i+1)*f.q]
		if inverse {
			f.rows.Sequence(row, row)
		} else {
			f.rows.Coefficients(row, row)
		}
	}
	for j := 0; j < f.q; j++ {
		for i := 0; i < f.p; i++ {
			f.column[i] = data[i*f.q+j]
		}
		if inverse {
			f.cols.Sequence(f.column, f.column)
		} else {
			f.cols.Coefficients(f.column, f.column)
		}
		for i := 0; i < f.p; i++ {
			data[i*f.q+j] = f.column[i]
		}
	}
}

// smoothSpatial convolves every channel map with a 2-D kernel via FFT.
func smoothSpatial(c *models.Cube, k *Kernel) (*models.Cube, error) {
	p, q := c.Height+k.Height-1, c.Width+k.Width-1
	f := newFFT2(p, q)

	kernelFFT := make([]complex128, p*q)
	for i := 0; i < k.Height; i++ {
		for j := 0; j < k.Width; j++ {
			kernelFFT[i*q+j] = complex(k.Values[i*k.Width+j], 0)
		}
	}
	f.transform(kernelFFT, false)

	out := models.NewCube(c.Channels, c.Height, c.Width)
	buf := make([]complex128, p*q)
	oy, ox := (k.Height-1)/2, (k.Width-1)/2
	scale := 1 / float64(p*q)
	for ch := 0; ch < c.Channels; ch++ {
		plane := c.Plane(ch)
		for i := range buf {
			buf[i] = 0
		}
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				buf[y*q+x] = complex(plane[y*c.Width+x], 0)
			}
		}
		f.transform(buf, false)
		for i := range buf {
			buf[i] *= kernelFFT[i]
		}
		f.transform(buf, true)

		dst := out.Plane(ch)
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				dst[y*c.Width+x] = real(buf[(y+oy)*q+x+ox]) * scale
			}
		}
	}
	return out, nil
}

// smoothDirect convolves the cube with a 3-D kernel in the spatial domain.
func smoothDirect(c *models.Cube, k *Kernel) *models.Cube {
	out := models.NewCube(c.Channels, c.Height, c.Width)
	oc, oy, ox := (k.Channels-1)/2, (k.Height-1)/2, (k.Width-1)/2
	for ch := 0; ch < c.Channels; ch++ {
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				sum := 0.0
				for a := 0; a < k.Channels; a++ {
					sc := ch + oc - a
					if sc < 0 || sc >= c.Channels {
						continue
					}
					for b := 0; b < k.Height; b++ {
						sy := y + oy - b
						if sy < 0 || sy >= c.Height {
							continue
						}
						for d := 0; d < k.Width; d++ {
							sx := x + ox - d
							if sx < 0 || sx >= c.Width {
								continue
							}
							sum += c.At(sc, sy, sx) * k.Values[k.Index(a, b, d)]
						}
					}
				}
				out.Set(ch, y, x, sum)
			}
		}
	}
	return out
}
