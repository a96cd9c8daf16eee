package strategy

import (
	"math"

	"statarb-go/internal/signal"
)

// MidPrice measures each traded venue against the mean open of every joined venue and
// trades when the two legs straddle the mid by their configured minimum distances.
type MidPrice struct {
	primaryMin   float64
	secondaryMin float64
}

// NewMidPrice builds the straddle strategy with independent per-leg distance floors.
func NewMidPrice(primaryMin, secondaryMin float64) *MidPrice {
	return &MidPrice{primaryMin: math.Abs(primaryMin), secondaryMin: math.Abs(secondaryMin)}
}

// Name returns the identifier for the strategy implementation.
func (s *MidPrice) Name() string { return "MidPrice" }

func (s *MidPrice) Generate(p *signal.Panel) (*signal.Panel, error) {
	if p == nil || len(p.Rows) == 0 {
		return nil, signal.ErrEmptyPanel
	}
	out := p.Clone()
	for i := range out.Rows {
		row := &out.Rows[i]
		dp, ds := distances(*row)
		row.Signal = math.Abs(dp) + math.Abs(ds)
		row.Threshold = math.NaN()
		row.Trade = finite(dp) && finite(ds) && dp*ds < 0 &&
			math.Abs(dp) > s.primaryMin && math.Abs(ds) > s.secondaryMin
		assignSides(row, dp)
	}
	return out, nil
}

// distances returns (open - mid) / mid for the primary and secondary venues.
// Any missing venue or a zero mid yields NaN.
func distances(row signal.Row) (float64, float64) {
	nan := math.NaN()
	var sum float64
	for _, q := range row.Quotes {
		if !q.Valid || !finite(q.Open) {
			return nan, nan
		}
		sum += q.Open
	}
	mid := sum / float64(len(row.Quotes))
	if mid == 0 || !finite(mid) {
		return nan, nan
	}
	pq, sq := tradedQuotes(row)
	return (pq.Open - mid) / mid, (sq.Open - mid) / mid
}
