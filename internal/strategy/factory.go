// Package strategy contains the cross-venue signal generators that annotate a price panel with trades and sides.
package strategy

import (
	"fmt"
	"strings"

	"statarb-go/internal/signal"
)

// Strategy annotates a panel copy with signal, threshold, trade and per-venue sides.
type Strategy interface {
	Generate(p *signal.Panel) (*signal.Panel, error)
	Name() string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	Threshold            float64
	Window               int
	Percentile           float64
	PrimaryMinDistance   float64
	SecondaryMinDistance float64
	Lookback             int
	Halflife             float64
	ZLowerBound          float64
}

const (
	ModeAdaptive = "adaptive"
	ModeMidPrice = "midprice"
	ModeZScore   = "zscore"
)

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeAdaptive, "threshold":
		return NewAdaptiveThreshold(params.Threshold, params.Window, params.Percentile), nil
	case ModeMidPrice, "mid", "three_venue":
		return NewMidPrice(params.PrimaryMinDistance, params.SecondaryMinDistance), nil
	case ModeZScore, "z":
		return NewZScore(params.Lookback, params.Halflife, params.ZLowerBound), nil
	default:
		return nil, fmt.Errorf("unknown strategy mode %q", mode)
	}
}

// assignSides marks the expensive traded venue short and the cheap one long.
// expensive > 0 means the primary leg is rich relative to the secondary.
func assignSides(row *signal.Row, expensive float64) {
	for v := range row.Sides {
		row.Sides[v] = 0
	}
	if !row.Trade || !tradable(*row) {
		row.Trade = false
		return
	}
	switch {
	case expensive > 0:
		row.Sides[signal.Primary] = -1
	case expensive < 0:
		row.Sides[signal.Primary] = 1
	default:
		row.Trade = false
		return
	}
	row.Sides[signal.Secondary] = -row.Sides[signal.Primary]
}

// tradable requires both legs to open above zero with a defined period return.
func tradable(row signal.Row) bool {
	pq, sq := tradedQuotes(row)
	return pq.Open > 0 && sq.Open > 0 && finite(pq.Open) && finite(sq.Open) &&
		finite(pq.Ret) && finite(sq.Ret)
}

func tradedQuotes(row signal.Row) (signal.Quote, signal.Quote) {
	return row.Quotes[signal.Primary], row.Quotes[signal.Secondary]
}
