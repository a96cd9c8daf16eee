package exchange

import (
	"hash/fnv"
	"math"
	"math/rand/v2"

	"statarb-go/internal/signal"
)

const (
	stubVol      = 0.002 // per-bar log volatility of the shared price
	stubBasisVol = 0.0004
	stubRevert   = 0.2 // pull of each venue basis back to zero per bar
	stubGapRate  = 0.01
)

// synthesize builds a deterministic series for the request. All venues quoting the
// same symbol over the same range share one random walk and differ by a
// mean-reverting basis, so cross-venue spreads open and close like real ones.
func synthesize(req Request) []signal.Bar {
	grid := Grid(req)
	if len(grid) == 0 {
		return nil
	}
	common := rand.New(rand.NewPCG(seed(req.Symbol), uint64(req.Start.UnixMilli())))
	venue := rand.New(rand.NewPCG(seed(req.Symbol+"@"+req.Venue), uint64(req.Start.UnixMilli())))

	mids := make([]float64, len(grid)+1)
	mids[0] = 50 + float64(seed(req.Symbol)%950)
	for i := 1; i < len(mids); i++ {
		mids[i] = mids[i-1] * math.Exp(common.NormFloat64()*stubVol)
	}
	basis := make([]float64, len(mids))
	basis[0] = venue.NormFloat64() * stubBasisVol
	for i := 1; i < len(basis); i++ {
		basis[i] = basis[i-1]*(1-stubRevert) + venue.NormFloat64()*stubBasisVol
	}

	out := make([]signal.Bar, 0, len(grid))
	for i, ts := range grid {
		if venue.Float64() < stubGapRate {
			continue
		}
		open := mids[i] * (1 + basis[i])
		closePx := mids[i+1] * (1 + basis[i+1])
		wick := math.Abs(venue.NormFloat64()) * stubVol * 0.5
		out = append(out, signal.Bar{
			Symbol: req.Symbol,
			Venue:  req.Venue,
			Ts:     ts,
			Open:   open,
			High:   math.Max(open, closePx) * (1 + wick),
			Low:    math.Min(open, closePx) * (1 - wick),
			Close:  closePx,
			Volume: 10 + venue.Float64()*90,
		})
	}
	return out
}

func seed(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
