// Package contsub separates a spectral cube into continuum and line cubes by
// running a fitting strategy over every spatial pixel.
package contsub

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"contsub/internal/models"
	"contsub/pkg/fitting"
)

// ErrNilInput is returned when the cube or the fitting strategy is missing.
var ErrNilInput = errors.New("contsub: cube and fitting strategy are required")

// progressBlock is the number of pixels in one unit of work. Progress is
// reported per block.
const progressBlock = 64

// ProgressCallback reports the number of fitted pixels out of total.
type ProgressCallback func(completed, total int)

// Option configures a ContinuumSubtractor.
type Option func(*ContinuumSubtractor)

// WithWorkers sets the number of goroutines fitting pixels. Values below one
// select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *ContinuumSubtractor) { s.numWorkers = n }
}

// WithLogger sets the diagnostics sink.
func WithLogger(l zerolog.Logger) Option {
	return func(s *ContinuumSubtractor) { s.logger = l }
}

// WithProgress registers a progress callback. It is called from a single
// goroutine.
func WithProgress(cb ProgressCallback) Option {
	return func(s *ContinuumSubtractor) { s.progress = cb }
}

// ContinuumSubtractor fits the continuum of every pixel of a cube.
//
// Pixels are cut into fixed blocks of progressBlock pixels that workers pull
// from a queue. A strategy that implements fitting.Spawner is spawned once per
// block, keyed by the block index, so the result does not depend on the number
// of workers. Strategies without Spawner are shared and must have a
// concurrency-safe Fit.
type ContinuumSubtractor struct {
	axis       models.SpectralAxis
	cube       *models.Cube
	fitter     fitting.Strategy
	mask       *models.Mask
	numWorkers int
	logger     zerolog.Logger
	progress   ProgressCallback
}

// New checks that the axis and the optional mask match the cube. A nil mask
// means every channel is usable.
func New(axis models.SpectralAxis, cube *models.Cube, fitter fitting.Strategy, mask *models.Mask, opts ...Option) (*ContinuumSubtractor, error) {
	if cube == nil || fitter == nil {
		return nil, ErrNilInput
	}
	if cube.Size() == 0 {
		return nil, models.ErrEmptyCube
	}
	if len(cube.Data) != cube.Size() {
		return nil, fmt.Errorf("%w: cube holds %d values for shape %s", models.ErrDimensionMismatch, len(cube.Data), cube.Shape)
	}
	if len(axis) != cube.Channels {
		return nil, fmt.Errorf("%w: axis has %d channels, cube has %d", models.ErrDimensionMismatch, len(axis), cube.Channels)
	}
	if mask != nil {
		if err := models.CheckShape(cube.Shape, mask.Shape); err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		if len(mask.Data) != mask.Size() {
			return nil, fmt.Errorf("mask: %w: %d values for shape %s", models.ErrDimensionMismatch, len(mask.Data), mask.Shape)
		}
	}

	s := &ContinuumSubtractor{
		axis:       axis,
		cube:       cube,
		fitter:     fitter,
		mask:       mask,
		numWorkers: 1,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.numWorkers < 1 {
		s.numWorkers = runtime.NumCPU()
	}
	return s, nil
}

// FitContinuum prepares the strategy once and fits every pixel. It returns
// the continuum and line cubes, with line = data - continuum. Pixels the
// strategy cannot constrain hold NaN.
func (s *ContinuumSubtractor) FitContinuum() (continuum, line *models.Cube, err error) {
	start := time.Now()
	if err := s.fitter.Prepare(s.axis); err != nil {
		s.logger.Error().Err(err).Str("strategy", s.fitter.Name()).Msg("prepare failed, aborting")
		return nil, nil, fmt.Errorf("prepare: %w", err)
	}

	total := s.cube.Pixels()
	blocks := (total + progressBlock - 1) / progressBlock
	workers := min(s.numWorkers, blocks)
	s.logger.Info().
		Str("strategy", s.fitter.Name()).
		Str("shape", s.cube.Shape.String()).
		Bool("masked", s.mask != nil).
		Int("workers", workers).
		Int("blocks", blocks).
		Msg("fitting continuum")

	continuum = models.NewCube(s.cube.Channels, s.cube.Height, s.cube.Width)
	line = models.NewCube(s.cube.Channels, s.cube.Height, s.cube.Width)

	type processingResult struct {
		worker int
		done   int
		err    error
	}
	resultChan := make(chan processingResult, workers)

	jobs := make(chan int, blocks)
	for b := range blocks {
		jobs <- b
	}
	close(jobs)

	spawner, _ := s.fitter.(fitting.Spawner)
	var failed atomic.Bool
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			trace := make([]float64, s.cube.Channels)
			var maskTrace []bool
			fitted := 0
			for b := range jobs {
				if failed.Load() {
					return
				}
				fitter := s.fitter
				if spawner != nil {
					fitter = spawner.Spawn(b)
				}
				lo := b * progressBlock
				hi := min(lo+progressBlock, total)
				for i := lo; i < hi; i++ {
					y, x := i/s.cube.Width, i%s.cube.Width
					trace = s.cube.Trace(y, x, trace)
					var m []bool
					if s.mask != nil {
						maskTrace = s.mask.Trace(y, x, maskTrace)
						m = maskTrace
					}
					cont, res, err := fitter.Fit(s.axis, trace, m, nil)
					if err != nil {
						failed.Store(true)
						resultChan <- processingResult{worker: worker, err: fmt.Errorf("pixel (%d, %d): %w", y, x, err)}
						return
					}
					continuum.SetTrace(y, x, cont)
					line.SetTrace(y, x, res)
				}
				fitted += hi - lo
				resultChan <- processingResult{worker: worker, done: hi - lo}
			}
			s.logger.Debug().Int("worker", worker).Int("pixels", fitted).Msg("worker finished")
		}(w)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	var firstErr error
	for res := range resultChan {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		completed += res.done
		if s.progress != nil {
			s.progress(completed, total)
		}
	}
	if firstErr != nil {
		s.logger.Error().Err(firstErr).Str("strategy", s.fitter.Name()).Msg("continuum fit failed")
		return nil, nil, firstErr
	}

	s.logger.Info().
		Int("pixels", total).
		Dur("elapsed", time.Since(start)).
		Msg("continuum fit complete")
	return continuum, line, nil
}
