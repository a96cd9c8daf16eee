package strategy

import (
	"math"
	"sort"

	"statarb-go/internal/risk"
)

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// trailing returns the n values strictly before index i. ok is false until n
// prior values exist or when any of them is non-finite.
func trailing(xs []float64, i, n int) ([]float64, bool) {
	if n <= 0 || i < n {
		return nil, false
	}
	w := xs[i-n : i]
	for _, x := range w {
		if !finite(x) {
			return nil, false
		}
	}
	return w, true
}

// percentile uses linear interpolation between closest ranks, q in [0, 100].
func percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	rank := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ewmMean is the bias-adjusted exponentially weighted mean of xs evaluated at the
// last element, with decay set by halflife periods.
func ewmMean(xs []float64, halflife float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	if !(halflife > 0) {
		return risk.Mean(xs)
	}
	decay := math.Exp(math.Log(0.5) / halflife) // 1 - alpha
	var num, den float64
	w := 1.0
	for i := len(xs) - 1; i >= 0; i-- {
		num += w * xs[i]
		den += w
		w *= decay
	}
	return num / den
}
