package clipping

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-vecmath"

	"contsub/internal/models"
	"contsub/pkg/robust"
)

// SpreadMethod selects the robust spread statistic used as sigma.
type SpreadMethod int

const (
	// SpreadRMS is the root mean square of the samples.
	SpreadRMS SpreadMethod = iota
	// SpreadMAD is the median absolute deviation from the mean of the whole cube.
	SpreadMAD
)

func (m SpreadMethod) String() string {
	switch m {
	case SpreadRMS:
		return "rms"
	case SpreadMAD:
		return "mad"
	default:
		return fmt.Sprintf("SpreadMethod(%d)", int(m))
	}
}

// Valid reports whether m is one of the defined methods.
func (m SpreadMethod) Valid() bool {
	return m == SpreadRMS || m == SpreadMAD
}

// ParseSpreadMethod converts "rms" or "mad" (case-insensitive) into a SpreadMethod.
func ParseSpreadMethod(s string) (SpreadMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rms":
		return SpreadRMS, nil
	case "mad":
		return SpreadMAD, nil
	default:
		return 0, fmt.Errorf("%w: %q (want rms or mad)", ErrUnknownMethod, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m SpreadMethod) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *SpreadMethod) UnmarshalText(b []byte) error {
	v, err := ParseSpreadMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// spreadFunc reduces one group of samples. center is only used by MAD.
type spreadFunc func(values, scratch []float64, center float64) float64

func (m SpreadMethod) reducer() spreadFunc {
	if m == SpreadMAD {
		return madSpread
	}
	return rmsSpread
}

// rmsSpread returns sqrt(nanmean(v²)).
func rmsSpread(values, scratch []float64, _ float64) float64 {
	sq := scratch[:len(values)]
	vecmath.MulBlock(sq, values, values)
	return math.Sqrt(robust.NanMean(sq))
}

// madSpread returns nanmedian(|center - v|).
func madSpread(values, scratch []float64, center float64) float64 {
	dev := scratch[:len(values)]
	for i, v := range values {
		dev[i] = math.Abs(center - v)
	}
	return robust.NanMedian(dev)
}

// center returns the reference value for MAD: the NaN-ignoring mean of the
// whole cube.
func (m SpreadMethod) center(data []float64) float64 {
	if m != SpreadMAD {
		return 0
	}
	return robust.NanMean(data)
}

// spreadPerPixel collapses the spectral axis, giving one value per (y, x).
func spreadPerPixel(m SpreadMethod, c *models.Cube) []float64 {
	reduce := m.reducer()
	mid := m.center(c.Data)
	out := make([]float64, c.Pixels())
	trace := make([]float64, c.Channels)
	scratch := make([]float64, c.Channels)
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			trace = c.Trace(y, x, trace)
			out[y*c.Width+x] = reduce(trace, scratch, mid)
		}
	}
	return out
}

// spreadPerChannel collapses both spatial axes, giving one value per channel.
func spreadPerChannel(m SpreadMethod, c *models.Cube) []float64 {
	reduce := m.reducer()
	mid := m.center(c.Data)
	out := make([]float64, c.Channels)
	scratch := make([]float64, c.Pixels())
	for ch := range out {
		out[ch] = reduce(c.Plane(ch), scratch, mid)
	}
	return out
}
