package fitting

import "math/rand/v2"

// splitmix64 finaliser, used to spread seed material across all 64 bits.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// newStream returns a PCG generator derived from an entropy value and a spawn
// key. Equal (entropy, key) pairs give identical streams; any difference in
// the key gives an independent stream.
func newStream(entropy uint64, key ...uint64) *rand.Rand {
	h := mix64(uint64(len(key)))
	for _, k := range key {
		h = mix64(h ^ k)
	}
	return rand.New(rand.NewPCG(mix64(entropy), h))
}

// knotGrid returns the interior knot channel indices for a spline with the
// given number of segments over n channels: n*i/(segments-1) truncated, with
// both endpoints dropped.
func knotGrid(n, segments int) []int {
	if segments < 3 {
		return nil
	}
	idx := make([]int, 0, segments-2)
	step := float64(n) / float64(segments-1)
	for i := 1; i < segments-1; i++ {
		idx = append(idx, int(float64(i)*step))
	}
	return idx
}

// perturb offsets every knot by an integer drawn uniformly from
// [-spread, spread) and keeps the result strictly increasing inside [1, n-2].
func perturb(rng *rand.Rand, base []int, spread, n int, dst []int) []int {
	dst = dst[:0]
	last := 0
	for _, k := range base {
		if spread > 0 {
			k += rng.IntN(2*spread) - spread
		}
		if k < 1 {
			k = 1
		}
		if k > n-2 {
			k = n - 2
		}
		if k <= last {
			continue
		}
		dst = append(dst, k)
		last = k
	}
	return dst
}
