package fitting

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"contsub/internal/models"
	"contsub/pkg/robust"
)

// MedianFilterFit takes the continuum to be the moving median of the
// spectrum over a window of about velWidth km/s. Fit keeps no mutable state
// and is safe for concurrent use once Prepare has returned.
type MedianFilterFit struct {
	velWidth float64
	logger   zerolog.Logger

	prepared bool
	window   int
}

var _ Strategy = (*MedianFilterFit)(nil)

// NewMedianFilterFit creates a median filter strategy.
func NewMedianFilterFit(velWidth float64, opts ...Option) (*MedianFilterFit, error) {
	if !(velWidth > 0) || math.IsInf(velWidth, 0) {
		return nil, fmt.Errorf("%w: median width %g must be positive", ErrInvalidParameter, velWidth)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MedianFilterFit{velWidth: velWidth, logger: o.logger}, nil
}

func (m *MedianFilterFit) Name() string { return "MedianFilterFit" }

// Window returns the window width in channels derived by Prepare. It is always odd.
func (m *MedianFilterFit) Window() int { return m.window }

// Prepare converts the configured width into an odd number of channels.
func (m *MedianFilterFit) Prepare(axis models.SpectralAxis) error {
	dv, err := localResolution(axis)
	if err != nil {
		m.logger.Error().Err(err).Str("strategy", m.Name()).Msg("cannot derive channel resolution")
		return fmt.Errorf("%s: %w", m.Name(), err)
	}
	m.window = oddWindow(m.velWidth, dv, len(axis))
	m.prepared = true

	m.logger.Debug().
		Int("channels", len(axis)).
		Float64("dv", dv).
		Float64("width", m.velWidth).
		Int("window", m.window).
		Msg("median filter prepared")
	return nil
}

// oddWindow converts width into an odd channel count. Windows are capped at
// 2n-1 channels, which already covers the whole spectrum from every channel.
func oddWindow(width, dv float64, n int) int {
	limit := 2*n - 1
	ratio := math.Floor(width / dv)
	if ratio >= float64(limit) {
		return limit
	}
	w := int(ratio)
	if w%2 == 0 {
		w++
	}
	return w
}

// Fit returns the moving median as the continuum. Channels with a false mask
// entry are treated as missing; windows without any valid channel give NaN.
// weight is ignored. signal is never modified.
func (m *MedianFilterFit) Fit(axis models.SpectralAxis, signal []float64, mask []bool, weight []float64) ([]float64, []float64, error) {
	if !m.prepared {
		return nil, nil, ErrNotPrepared
	}
	if err := checkInputs(axis, signal, mask, weight); err != nil {
		return nil, nil, err
	}

	work := signal
	if mask != nil {
		work = make([]float64, len(signal))
		copy(work, signal)
		for i, ok := range mask {
			if !ok {
				work[i] = math.NaN()
			}
		}
	}

	continuum := robust.SlidingNanMedian(work, m.window)
	residual := make([]float64, len(signal))
	floats.SubTo(residual, signal, continuum)
	return continuum, residual, nil
}
