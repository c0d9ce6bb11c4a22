// Package robust provides NaN-aware statistics used by the fitting and
// clipping strategies. NaN entries are treated as missing samples; a
// statistic over no valid samples is NaN.
package robust

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// compact appends the non-NaN values of src to dst[:0].
func compact(dst, src []float64) []float64 {
	dst = dst[:0]
	for _, v := range src {
		if !math.IsNaN(v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// NanMean returns the mean of the non-NaN values.
func NanMean(values []float64) float64 {
	valid := compact(make([]float64, 0, len(values)), values)
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

// NanMedian returns the median of the non-NaN values. For an even number of
// valid values the two central values are averaged. values is not modified.
func NanMedian(values []float64) float64 {
	return nanMedianScratch(values, make([]float64, 0, len(values)))
}

func nanMedianScratch(values, scratch []float64) float64 {
	valid := compact(scratch, values)
	n := len(valid)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(valid)
	if n%2 == 0 {
		return (valid[n/2-1] + valid[n/2]) / 2
	}
	return valid[n/2]
}

// PadNaN returns src with pad NaN samples prepended and appended.
func PadNaN(src []float64, pad int) []float64 {
	out := make([]float64, len(src)+2*pad)
	for i := 0; i < pad; i++ {
		out[i] = math.NaN()
		out[len(out)-1-i] = math.NaN()
	}
	copy(out[pad:], src)
	return out
}

// SlidingNanMedian computes the moving median of src with an odd window
// width. The signal is padded with width/2 NaN samples on both sides so the
// result has the length of src and edge windows use fewer samples. A window
// with no valid samples yields NaN.
func SlidingNanMedian(src []float64, width int) []float64 {
	if width < 1 {
		width = 1
	}
	half := width / 2
	padded := PadNaN(src, half)
	out := make([]float64, len(src))
	scratch := make([]float64, 0, width)
	for i := range out {
		// window [i, i+width) in padded coordinates is centred on src[i]
		end := i + width
		if end > len(padded) {
			end = len(padded)
		}
		out[i] = nanMedianScratch(padded[i:end], scratch)
	}
	return out
}
