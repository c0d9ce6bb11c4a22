// Package fitting implements the continuum fitting strategies applied to each
// spectrum of a cube: a least-squares B-spline with randomised knots and a
// NaN-aware moving median.
package fitting

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"contsub/internal/models"
)

var (
	// ErrNonMonotonicAxis is returned by Prepare when the spectral axis does not
	// change monotonically at its extremes. The run must not continue.
	ErrNonMonotonicAxis = errors.New("fitting: spectral axis is not monotonic")

	// ErrAxisTooShort is returned when the axis has too few channels to derive a resolution.
	ErrAxisTooShort = errors.New("fitting: spectral axis needs at least 3 channels")

	// ErrDegenerateResolution is returned when the derived channel width is not a positive finite number.
	ErrDegenerateResolution = errors.New("fitting: derived channel resolution is not positive")

	// ErrWidthTooSmall is returned when the configured width is narrower than one channel.
	ErrWidthTooSmall = errors.New("fitting: width is narrower than one channel")

	// ErrNotPrepared is returned when Fit is called before Prepare.
	ErrNotPrepared = errors.New("fitting: Fit called before Prepare")

	// ErrLengthMismatch is returned when signal, mask or weight do not match the axis length.
	ErrLengthMismatch = errors.New("fitting: length mismatch")

	// ErrInvalidParameter is returned by constructors for out-of-range settings.
	ErrInvalidParameter = errors.New("fitting: invalid parameter")
)

// Strategy estimates the continuum of a single spectrum.
//
// Prepare is called exactly once per run with the spectral axis, before any
// call to Fit. Fit must not depend on the order in which pixels are visited.
type Strategy interface {
	// Name identifies the strategy in diagnostics.
	Name() string

	// Prepare derives the strategy parameters from the spectral axis.
	Prepare(axis models.SpectralAxis) error

	// Fit returns the continuum and the residual (signal - continuum).
	// mask and weight may be nil; a false mask entry excludes that channel.
	Fit(axis models.SpectralAxis, signal []float64, mask []bool, weight []float64) (continuum, residual []float64, err error)
}

// Spawner is implemented by strategies whose Fit mutates internal state.
// Spawn returns a prepared copy with its own independent state for one block
// of pixels. Equal block indices give equal state.
type Spawner interface {
	Spawn(block int) Strategy
}

// Option configures a strategy.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

func defaultOptions() options {
	return options{logger: zerolog.Nop()}
}

// WithLogger sets the diagnostics sink.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func checkInputs(axis models.SpectralAxis, signal []float64, mask []bool, weight []float64) error {
	if len(signal) != len(axis) {
		return fmt.Errorf("%w: signal has %d samples, axis has %d", ErrLengthMismatch, len(signal), len(axis))
	}
	if mask != nil && len(mask) != len(axis) {
		return fmt.Errorf("%w: mask has %d samples, axis has %d", ErrLengthMismatch, len(mask), len(axis))
	}
	if weight != nil && len(weight) != len(axis) {
		return fmt.Errorf("%w: weight has %d samples, axis has %d", ErrLengthMismatch, len(weight), len(axis))
	}
	return nil
}
