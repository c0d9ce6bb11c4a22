package fitting

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"contsub/internal/models"
)

// MaxSplineOrder is the highest supported polynomial order.
const MaxSplineOrder = 5

// SplineFit fits a least-squares B-spline through knots placed uniformly in
// channel space and jittered on every call, so that line features do not
// lock onto a fixed knot grid.
//
// The knot jitter comes from a stream owned by the instance and seeded from
// (entropy, sequence). A SplineFit is not safe for concurrent use; use Spawn
// to obtain one instance per block of pixels.
type SplineFit struct {
	order    int
	velWidth float64
	entropy  uint64
	key      []uint64
	logger   zerolog.Logger

	rng      *rand.Rand
	prepared bool
	segments int
	knotIdx  []int
	spread   int
	scratch  []int
}

var (
	_ Strategy = (*SplineFit)(nil)
	_ Spawner  = (*SplineFit)(nil)
)

// NewSplineFit creates a spline strategy of the given polynomial order whose
// segments each span about velWidth (in the velocity units of the axis
// resolution, km/s). entropy and sequence seed the knot jitter stream.
func NewSplineFit(order int, velWidth float64, entropy, sequence uint64, opts ...Option) (*SplineFit, error) {
	if order < 1 || order > MaxSplineOrder {
		return nil, fmt.Errorf("%w: spline order %d outside [1, %d]", ErrInvalidParameter, order, MaxSplineOrder)
	}
	if !(velWidth > 0) || math.IsInf(velWidth, 0) {
		return nil, fmt.Errorf("%w: spline width %g must be positive", ErrInvalidParameter, velWidth)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	key := []uint64{sequence}
	return &SplineFit{
		order:    order,
		velWidth: velWidth,
		entropy:  entropy,
		key:      key,
		logger:   o.logger,
		rng:      newStream(entropy, key...),
	}, nil
}

func (s *SplineFit) Name() string { return "SplineFit" }

// Segments returns the number of spline segments derived by Prepare.
func (s *SplineFit) Segments() int { return s.segments }

// Prepare derives the number of spline segments from the channel resolution
// and lays out the base knot grid.
func (s *SplineFit) Prepare(axis models.SpectralAxis) error {
	dv, err := localResolution(axis)
	if err != nil {
		s.logger.Error().Err(err).Str("strategy", s.Name()).Msg("cannot derive channel resolution")
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	n := len(axis)
	chans := math.Floor(s.velWidth / dv)
	if chans < 1 {
		return fmt.Errorf("%s: %w: width %g km/s, channel %g km/s", s.Name(), ErrWidthTooSmall, s.velWidth, dv)
	}

	s.segments = int(float64(n)/chans) + 1
	s.knotIdx = knotGrid(n, s.segments)
	s.spread = (n / s.segments) / 8
	s.scratch = make([]int, 0, len(s.knotIdx))
	s.prepared = true

	s.logger.Debug().
		Int("channels", n).
		Float64("dv", dv).
		Float64("width", s.velWidth).
		Float64("widthChannels", chans).
		Int("segments", s.segments).
		Int("knots", len(s.knotIdx)).
		Int("jitter", s.spread).
		Msg("spline fit prepared")
	return nil
}

// Spawn returns a prepared copy whose knot jitter stream is keyed by
// (entropy, sequence, block).
func (s *SplineFit) Spawn(block int) Strategy {
	key := append(append([]uint64(nil), s.key...), uint64(block))
	c := *s
	c.key = key
	c.rng = newStream(s.entropy, key...)
	c.scratch = make([]int, 0, len(s.knotIdx))
	return &c
}

// drawKnots returns the jittered knot channel indices for the next fit.
func (s *SplineFit) drawKnots(n int) []int {
	s.scratch = perturb(s.rng, s.knotIdx, s.spread, n, s.scratch)
	return s.scratch
}

// Fit returns the spline evaluated on the axis and the residual. A false mask
// entry gives the channel zero weight; weight, when given, scales the
// per-channel weight further. Pixels without enough weighted channels to
// constrain the spline yield a NaN continuum.
func (s *SplineFit) Fit(axis models.SpectralAxis, signal []float64, mask []bool, weight []float64) ([]float64, []float64, error) {
	if !s.prepared {
		return nil, nil, ErrNotPrepared
	}
	if err := checkInputs(axis, signal, mask, weight); err != nil {
		return nil, nil, err
	}
	n := len(axis)

	w := make([]float64, n)
	for i := range w {
		w[i] = 1
		if mask != nil && !mask[i] {
			w[i] = 0
		}
		if weight != nil {
			w[i] *= weight[i]
		}
	}

	inds := s.drawKnots(n)

	// The spline basis needs an increasing abscissa; decreasing axes are
	// fitted back to front.
	x, y := []float64(axis), signal
	rev := !axis.Increasing()
	if rev {
		x, y, w = reversed(x), reversed(y), reversed(w)
	}
	interior := make([]float64, len(inds))
	for i, k := range inds {
		interior[i] = x[k]
	}
	t := clampedKnots(x[0], x[n-1], interior, s.order)

	continuum := fitSpline(x, y, w, t, s.order)
	if rev {
		continuum = reversed(continuum)
	}
	residual := make([]float64, n)
	floats.SubTo(residual, signal, continuum)
	return continuum, residual, nil
}

func reversed(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[len(v)-1-i] = x
	}
	return out
}
