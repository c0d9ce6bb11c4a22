package fitting

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// clampedKnots builds the full knot vector of a degree-k spline on [lo, hi]
// with the given interior knots: both boundaries are repeated k+1 times.
func clampedKnots(lo, hi float64, interior []float64, k int) []float64 {
	t := make([]float64, 0, len(interior)+2*(k+1))
	for i := 0; i <= k; i++ {
		t = append(t, lo)
	}
	t = append(t, interior...)
	for i := 0; i <= k; i++ {
		t = append(t, hi)
	}
	return t
}

// findSpan returns mu with t[mu] <= x < t[mu+1], restricted to the m basis
// functions of the spline. x at the right boundary maps to the last span.
func findSpan(t []float64, k, m int, x float64) int {
	if x >= t[m] {
		return m - 1
	}
	if x <= t[k] {
		return k
	}
	lo, hi := k, m
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if x < t[mid] {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// basisFuncs evaluates the k+1 non-zero B-spline basis functions at x on
// span mu (Cox-de Boor recursion). out[r] is the value of basis mu-k+r.
func basisFuncs(t []float64, k, mu int, x float64, out, left, right []float64) {
	out[0] = 1
	for j := 1; j <= k; j++ {
		left[j] = x - t[mu+1-j]
		right[j] = t[mu+j] - x
		saved := 0.0
		for r := 0; r < j; r++ {
			tmp := out[r] / (right[r+1] + left[j-r])
			out[r] = saved + right[r+1]*tmp
			saved = left[j-r] * tmp
		}
		out[j] = saved
	}
}

// designMatrix returns the n×m collocation matrix of the spline basis at x.
func designMatrix(x, t []float64, k int) *mat.Dense {
	m := len(t) - k - 1
	a := mat.NewDense(len(x), m, nil)
	vals := make([]float64, k+1)
	left := make([]float64, k+1)
	right := make([]float64, k+1)
	for i, xi := range x {
		mu := findSpan(t, k, m, xi)
		basisFuncs(t, k, mu, xi, vals, left, right)
		for r, v := range vals {
			a.Set(i, mu-k+r, v)
		}
	}
	return a
}

// fitSpline computes the weighted least-squares spline of degree k with knot
// vector t through (x, y) and returns it evaluated at every x. Samples with a
// zero weight or a NaN value do not contribute. When the system is
// underdetermined or singular the result is all NaN.
func fitSpline(x, y, w, t []float64, k int) []float64 {
	n := len(x)
	a := designMatrix(x, t, k)
	_, m := a.Dims()

	out := make([]float64, n)
	active := 0
	wa := mat.NewDense(n, m, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		wi := w[i]
		if math.IsNaN(y[i]) || math.IsNaN(wi) {
			wi = 0
		}
		if wi != 0 {
			active++
			b.SetVec(i, wi*y[i])
		}
		for j := 0; j < m; j++ {
			wa.Set(i, j, wi*a.At(i, j))
		}
	}
	if active < m || n < m {
		fillNaN(out)
		return out
	}

	var qr mat.QR
	qr.Factorize(wa)
	coef := mat.NewDense(m, 1, nil)
	if err := qr.SolveTo(coef, false, b); err != nil {
		fillNaN(out)
		return out
	}

	var s mat.VecDense
	s.MulVec(a, coef.ColView(0))
	for i := range out {
		out[i] = s.AtVec(i)
	}
	return out
}

func fillNaN(v []float64) {
	for i := range v {
		v[i] = math.NaN()
	}
}
