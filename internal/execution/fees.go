package execution

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"statarb-go/internal/signal"
)

// ErrInvalidSide reports a side outside {-1, 0, 1}.
var ErrInvalidSide = errors.New("invalid side")

// FeeTier is a named per-side fee rate used for comparative cost columns.
type FeeTier struct {
	Name string
	Rate float64
}

// DefaultTiersBps are the comparison tiers charged alongside the configured fee.
var DefaultTiersBps = []float64{1, 2, 3}

// TiersFromBps names each tier after its basis-point rate, e.g. "2bps".
func TiersFromBps(bps []float64) []FeeTier {
	out := make([]FeeTier, len(bps))
	for i, b := range bps {
		out[i] = FeeTier{Name: strconv.FormatFloat(b, 'f', -1, 64) + "bps", Rate: b / 10000}
	}
	return out
}

// Period is the accounting result for one panel row.
type Period struct {
	Ts        time.Time
	Sides     []int
	PrevSide  int
	Action    Action
	Ret       float64
	AdjRet    float64
	TierFees  []float64
	RetDiff   float64
	IdealSide int
}

// Apply walks the primary side series and charges fee per side traded.
// Ret is the sum of the signed legs; AdjRet deducts FeeMultiplier*fee.
func Apply(panel *signal.Panel, fee float64, tiers []FeeTier) ([]Period, error) {
	if panel == nil || len(panel.Rows) == 0 {
		return nil, signal.ErrEmptyPanel
	}
	out := make([]Period, len(panel.Rows))
	prev := 0
	for i, row := range panel.Rows {
		for v, side := range row.Sides {
			if side < -1 || side > 1 {
				return nil, fmt.Errorf("%w: %d for %s at %s", ErrInvalidSide, side, panel.Venues[v], row.Ts.Format(time.RFC3339))
			}
		}
		cur := row.Sides[signal.Primary]
		action := Classify(prev, cur)
		mult := action.FeeMultiplier()

		ret := legReturn(row)
		fees := make([]float64, len(tiers))
		for k, tier := range tiers {
			fees[k] = mult * tier.Rate
		}
		diff, ideal := idealSide(row, fee)
		out[i] = Period{
			Ts:        row.Ts,
			Sides:     append([]int(nil), row.Sides...),
			PrevSide:  prev,
			Action:    action,
			Ret:       ret,
			AdjRet:    ret - mult*fee,
			TierFees:  fees,
			RetDiff:   diff,
			IdealSide: ideal,
		}
		prev = cur
	}
	return out, nil
}

// legReturn sums side*return over venues holding a position; flat legs contribute nothing
// even when their return is undefined.
func legReturn(row signal.Row) float64 {
	var ret float64
	for v, side := range row.Sides {
		if side == 0 {
			continue
		}
		ret += float64(side) * row.Quotes[v].Ret
	}
	return ret
}

// idealSide is the hindsight primary side: long the leg that outperformed by more than fee.
func idealSide(row signal.Row, fee float64) (float64, int) {
	diff := row.Quotes[signal.Primary].Ret - row.Quotes[signal.Secondary].Ret
	if math.IsNaN(diff) || math.Abs(diff) <= fee {
		return 0, 0
	}
	if diff > 0 {
		return diff, 1
	}
	return diff, -1
}

// AdjustedReturns extracts the fee-adjusted series.
func AdjustedReturns(periods []Period) []float64 {
	out := make([]float64, len(periods))
	for i, p := range periods {
		out[i] = p.AdjRet
	}
	return out
}

// CountActions tallies how often each action occurred.
func CountActions(periods []Period) map[Action]int {
	out := map[Action]int{Keep: 0, Open: 0, Close: 0, Reverse: 0}
	for _, p := range periods {
		out[p.Action]++
	}
	return out
}
