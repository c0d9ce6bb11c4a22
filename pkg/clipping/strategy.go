// Package clipping builds validity masks for spectral cubes by sigma
// clipping against a robust spread estimate, optionally refined with binary
// morphology.
package clipping

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"contsub/internal/models"
)

var (
	// ErrUnknownMethod is returned for a spread method other than rms or mad.
	ErrUnknownMethod = errors.New("clipping: unknown spread method")

	// ErrInvalidClip is returned when the clip multiple is not a positive number.
	ErrInvalidClip = errors.New("clipping: clip multiple must be positive")

	// ErrNegativeDilation is returned for a negative dilation count.
	ErrNegativeDilation = errors.New("clipping: dilation count must not be negative")

	// ErrKernelShape is returned for an empty or malformed smoothing kernel.
	ErrKernelShape = errors.New("clipping: invalid smoothing kernel")

	// ErrUnsupportedOption is returned when an option does not apply to a strategy.
	ErrUnsupportedOption = errors.New("clipping: option not supported by this strategy")
)

// Strategy computes a mask of the same shape as the cube. True marks samples
// within n robust sigma of zero; false marks outliers.
type Strategy interface {
	Name() string
	CreateMask(data *models.Cube) (*models.Mask, error)
}

// Option configures a clipping strategy.
type Option func(*settings)

type settings struct {
	method   SpreadMethod
	kernel   *Kernel
	dilation int
	logger   zerolog.Logger
}

func defaultSettings() settings {
	return settings{method: SpreadRMS, logger: zerolog.Nop()}
}

// WithMethod selects the spread statistic. The default is SpreadRMS.
func WithMethod(m SpreadMethod) Option {
	return func(s *settings) { s.method = m }
}

// WithKernel smooths the cube before clipping (PixelwiseClip only).
func WithKernel(k *Kernel) Option {
	return func(s *settings) { s.kernel = k }
}

// WithDilation sets the number of dilation passes (PixelwiseClip only).
func WithDilation(n int) Option {
	return func(s *settings) { s.dilation = n }
}

// WithLogger sets the diagnostics sink.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func validateClip(n float64, method SpreadMethod) error {
	if !(n > 0) || math.IsInf(n, 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidClip, n)
	}
	if !method.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMethod, int(method))
	}
	return nil
}

// within reports |v| < limit; NaN samples are never within.
func within(v, limit float64) bool {
	return math.Abs(v) < limit
}
