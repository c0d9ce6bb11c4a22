package fitting

import (
	"fmt"
	"math"
	"sort"

	"contsub/internal/models"
)

// speedOfLight in km/s, used to turn a relative frequency step into a velocity width.
const speedOfLight = 3e5

// localResolution estimates the velocity width of one channel from the two
// largest and the two smallest samples of the axis. Each pair must sit on
// adjacent channels, otherwise the axis is not monotonic. The result is the
// mean of the two relative gaps expressed in km/s.
func localResolution(axis models.SpectralAxis) (float64, error) {
	n := len(axis)
	if n < 3 {
		return 0, fmt.Errorf("%w: got %d", ErrAxisTooShort, n)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return axis[order[i]] < axis[order[j]] })

	lo1, lo2 := order[0], order[1]
	hi1, hi2 := order[n-1], order[n-2]
	if abs(lo1-lo2) != 1 || abs(hi1-hi2) != 1 {
		return 0, fmt.Errorf("%w: extreme samples at channels (%d, %d) and (%d, %d) are not adjacent",
			ErrNonMonotonicAxis, lo1, lo2, hi1, hi2)
	}

	dvl := relativeGap(axis[hi1], axis[hi2])
	dvh := relativeGap(axis[lo1], axis[lo2])
	dv := (dvl + dvh) / 2
	if !(dv > 0) || math.IsInf(dv, 0) {
		return 0, fmt.Errorf("%w: dv = %g", ErrDegenerateResolution, dv)
	}
	return dv, nil
}

func relativeGap(a, b float64) float64 {
	return math.Abs(a-b) / math.Abs((a+b)/2) * speedOfLight
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
