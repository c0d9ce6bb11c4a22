package models

import (
	"fmt"
	"math"
)

// SpectralAxis holds the frequency or velocity coordinate of every channel.
// It is expected to be strictly increasing or strictly decreasing.
type SpectralAxis []float64

// Increasing reports whether the last sample is greater than the first.
func (a SpectralAxis) Increasing() bool {
	return len(a) > 1 && a[len(a)-1] > a[0]
}

// Validate checks that every adjacent pair moves in the same direction.
func (a SpectralAxis) Validate() error {
	if len(a) < 2 {
		return nil
	}
	inc := a.Increasing()
	for i := 1; i < len(a); i++ {
		d := a[i] - a[i-1]
		if d == 0 || math.IsNaN(d) || (d > 0) != inc {
			return fmt.Errorf("%w: samples %d and %d (%g, %g)", ErrNotMonotonic, i-1, i, a[i-1], a[i])
		}
	}
	return nil
}
