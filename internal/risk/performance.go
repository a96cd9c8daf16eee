package risk

import (
	"fmt"
	"math"
)

// Summary holds the annualized statistics of one backtest run.
// Undefined ratios are NaN rather than errors.
type Summary struct {
	AnnualReturn float64
	AnnualStd    float64
	AnnualSharpe float64
	WinRatio     float64
	MaxDrawdown  float64
	Periods      int
}

// Summarize annualizes the fee-adjusted return series. periodsPerYear scales the
// per-bar mean linearly and the per-bar standard deviation by its square root.
func Summarize(returns []float64, periodsPerYear float64, episodes []Episode) (Summary, error) {
	if len(returns) == 0 {
		return Summary{}, fmt.Errorf("%w: empty return series", ErrPrecondition)
	}
	if !(periodsPerYear > 0) || math.IsInf(periodsPerYear, 0) {
		return Summary{}, fmt.Errorf("%w: periods per year must be positive, got %v", ErrPrecondition, periodsPerYear)
	}

	mean := Mean(returns)
	std := SampleStd(returns)
	s := Summary{
		AnnualReturn: mean * periodsPerYear,
		AnnualStd:    std * math.Sqrt(periodsPerYear),
		AnnualSharpe: math.NaN(),
		WinRatio:     WinRatio(returns),
		MaxDrawdown:  math.NaN(),
		Periods:      len(returns),
	}
	if s.AnnualStd > 0 && !math.IsInf(s.AnnualStd, 0) {
		s.AnnualSharpe = s.AnnualReturn / s.AnnualStd
	}
	if len(episodes) > 0 {
		s.MaxDrawdown = episodes[0].MaxDD
	}
	return s, nil
}

// Mean is the arithmetic mean; NaN propagates.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStd is the ddof=1 standard deviation, NaN for fewer than two points.
func SampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// WinRatio is the share of nonzero periods that were positive, NaN when none moved.
func WinRatio(returns []float64) float64 {
	var wins, active int
	for _, r := range returns {
		if r == 0 || math.IsNaN(r) {
			continue
		}
		active++
		if r > 0 {
			wins++
		}
	}
	if active == 0 {
		return math.NaN()
	}
	return float64(wins) / float64(active)
}
