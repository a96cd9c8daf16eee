package strategy

import (
	"math"

	"statarb-go/internal/signal"
)

// AdaptiveThreshold trades when the open-price ratio gap exceeds a floor or the
// trailing percentile of recent gaps, whichever is higher.
type AdaptiveThreshold struct {
	floor      float64
	window     int
	percentile float64
}

// NewAdaptiveThreshold builds the ratio-gap strategy; window counts prior periods only.
func NewAdaptiveThreshold(floor float64, window int, pct float64) *AdaptiveThreshold {
	if floor < 0 {
		floor = 0
	}
	if window <= 0 {
		window = 30
	}
	if pct <= 0 || pct > 100 {
		pct = 90
	}
	return &AdaptiveThreshold{floor: floor, window: window, percentile: pct}
}

// Name returns the identifier for the strategy implementation.
func (s *AdaptiveThreshold) Name() string { return "AdaptiveThreshold" }

func (s *AdaptiveThreshold) Generate(p *signal.Panel) (*signal.Panel, error) {
	if p == nil || len(p.Rows) == 0 {
		return nil, signal.ErrEmptyPanel
	}
	out := p.Clone()
	gaps := make([]float64, len(out.Rows))
	for i, row := range out.Rows {
		pq, sq := tradedQuotes(row)
		gaps[i] = math.NaN()
		if pq.Open > 0 && sq.Open > 0 {
			gaps[i] = math.Abs(pq.Open/sq.Open - 1)
		}
	}

	for i := range out.Rows {
		row := &out.Rows[i]
		row.Signal = gaps[i]
		row.Threshold = s.threshold(gaps, i)
		row.Trade = finite(row.Signal) && row.Signal > row.Threshold
		pq, sq := tradedQuotes(*row)
		assignSides(row, pq.Open-sq.Open)
	}
	return out, nil
}

func (s *AdaptiveThreshold) threshold(gaps []float64, i int) float64 {
	w, ok := trailing(gaps, i, s.window)
	if !ok {
		return s.floor
	}
	return math.Max(s.floor, percentile(w, s.percentile))
}
