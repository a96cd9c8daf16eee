package strategy

import (
	"math"

	"statarb-go/internal/risk"
	"statarb-go/internal/signal"
)

// ZScore standardizes the summed mid-price distance against its own trailing history:
// an EWM mean and a plain sample std over the previous lookback periods.
type ZScore struct {
	lookback int
	halflife float64
	lower    float64
}

// NewZScore builds the z-score strategy; lower is the z level a straddle must exceed.
func NewZScore(lookback int, halflife, lower float64) *ZScore {
	if lookback < 2 {
		lookback = 30
	}
	if halflife <= 0 {
		halflife = 10
	}
	return &ZScore{lookback: lookback, halflife: halflife, lower: lower}
}

// Name returns the identifier for the strategy implementation.
func (s *ZScore) Name() string { return "ZScore" }

func (s *ZScore) Generate(p *signal.Panel) (*signal.Panel, error) {
	if p == nil || len(p.Rows) == 0 {
		return nil, signal.ErrEmptyPanel
	}
	out := p.Clone()
	n := len(out.Rows)
	score := make([]float64, n)
	dps := make([]float64, n)
	dss := make([]float64, n)
	for i, row := range out.Rows {
		dps[i], dss[i] = distances(row)
		score[i] = math.Abs(dps[i]) + math.Abs(dss[i])
	}

	for i := range out.Rows {
		row := &out.Rows[i]
		row.Signal = s.zscore(score, i)
		row.Threshold = s.lower
		row.Trade = finite(row.Signal) && finite(dps[i]) && dps[i]*dss[i] < 0 && row.Signal > s.lower
		assignSides(row, dps[i])
	}
	return out, nil
}

func (s *ZScore) zscore(score []float64, i int) float64 {
	w, ok := trailing(score, i, s.lookback)
	if !ok || !finite(score[i]) {
		return math.NaN()
	}
	std := risk.SampleStd(w)
	if !(std > 0) {
		return math.NaN()
	}
	return (score[i] - ewmMean(w, s.halflife)) / std
}
