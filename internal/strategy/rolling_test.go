package strategy

import (
	"math"
	"testing"
)

func TestPercentileLinear(t *testing.T) {
	xs := []float64{4, 1, 3, 2}
	cases := map[float64]float64{0: 1, 100: 4, 50: 2.5, 90: 3.7, 25: 1.75}
	for q, want := range cases {
		if got := percentile(xs, q); math.Abs(got-want) > 1e-12 {
			t.Fatalf("percentile(%v) = %v, want %v", q, got, want)
		}
	}
	if !math.IsNaN(percentile(nil, 50)) {
		t.Fatalf("expected NaN for empty input")
	}
}

func TestTrailingExcludesCurrent(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	if _, ok := trailing(xs, 1, 2); ok {
		t.Fatalf("expected insufficient history at index 1")
	}
	w, ok := trailing(xs, 3, 2)
	if !ok || len(w) != 2 || w[0] != 2 || w[1] != 3 {
		t.Fatalf("unexpected window %v", w)
	}
	if _, ok := trailing([]float64{1, math.NaN(), 3}, 2, 2); ok {
		t.Fatalf("expected non-finite window to be rejected")
	}
}

func TestEWMMean(t *testing.T) {
	// halflife 1: weights 1, 0.5, 0.25 from the newest value back
	got := ewmMean([]float64{4, 2, 1}, 1)
	want := (1*1 + 0.5*2 + 0.25*4) / 1.75
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("ewmMean = %v, want %v", got, want)
	}
	if ewmMean([]float64{3, 3, 3}, 5) != 3 {
		t.Fatalf("constant series should have its own value as mean")
	}
}
