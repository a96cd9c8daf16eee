// Package risk derives equity curves, drawdown episodes and annualized performance from a return series.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrPrecondition marks malformed analyzer input; it is never retried.
var ErrPrecondition = errors.New("risk precondition violated")

// Episode is one peak-to-trough-to-recovery excursion of an equity curve.
type Episode struct {
	PeakTime     time.Time
	TroughTime   time.Time
	RecoveryTime *time.Time // nil while the curve has not regained the peak
	MaxDD        float64    // trough/peak - 1, <= 0
}

// Recovered reports whether the curve regained the episode's peak.
func (e Episode) Recovered() bool { return e.RecoveryTime != nil }

// Equity compounds periodic returns into a NAV curve starting from 1.
func Equity(returns []float64) []float64 {
	nav := make([]float64, len(returns))
	level := 1.0
	for i, r := range returns {
		level *= 1 + r
		nav[i] = level
	}
	return nav
}

type epoch struct {
	start  int     // index of the new high-water mark
	end    int     // last index tagged with this epoch (inclusive)
	peak   float64 // high-water mark value
	trough int
	maxDD  float64
}

// TopDrawdowns returns at most topN episodes of nav ordered worst first.
//
// A new epoch starts whenever the running maximum strictly increases. Within an
// epoch the trough is the first point of minimum drawdown, and recovery is the
// first later point whose value is at least the epoch peak: either a point inside
// the epoch that touches the peak again, or the first point of the next epoch.
// An epoch that never regains its peak before the series ends stays open.
func TopDrawdowns(nav []float64, ts []time.Time, topN int) ([]Episode, error) {
	if len(nav) != len(ts) {
		return nil, fmt.Errorf("%w: %d values but %d timestamps", ErrPrecondition, len(nav), len(ts))
	}
	if topN < 1 {
		return nil, fmt.Errorf("%w: topN must be positive, got %d", ErrPrecondition, topN)
	}
	for i, v := range nav {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite equity at index %d", ErrPrecondition, i)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%w: non-positive equity %v at index %d", ErrPrecondition, v, i)
		}
	}
	if len(nav) == 0 {
		return nil, nil
	}

	// pass 1: tag every point with its epoch
	epochs := make([]epoch, 0, 8)
	for i, v := range nav {
		if len(epochs) == 0 || v > epochs[len(epochs)-1].peak {
			epochs = append(epochs, epoch{start: i, end: i, peak: v, trough: i})
			continue
		}
		epochs[len(epochs)-1].end = i
	}

	// pass 2: aggregate per epoch
	episodes := make([]Episode, 0, len(epochs))
	for k := range epochs {
		e := &epochs[k]
		for i := e.start; i <= e.end; i++ {
			if dd := nav[i]/e.peak - 1; dd < e.maxDD {
				e.maxDD = dd
				e.trough = i
			}
		}
		ep := Episode{PeakTime: ts[e.start], TroughTime: ts[e.trough], MaxDD: e.maxDD}
		if e.maxDD == 0 {
			peak := ts[e.start]
			ep.RecoveryTime = &peak
		} else if rec, ok := recovery(nav, e, k+1 < len(epochs)); ok {
			at := ts[rec]
			ep.RecoveryTime = &at
		}
		episodes = append(episodes, ep)
	}

	sort.SliceStable(episodes, func(i, j int) bool { return episodes[i].MaxDD < episodes[j].MaxDD })
	if len(episodes) > topN {
		episodes = episodes[:topN]
	}
	return episodes, nil
}

func recovery(nav []float64, e *epoch, hasNext bool) (int, bool) {
	for i := e.trough + 1; i <= e.end; i++ {
		if nav[i] >= e.peak {
			return i, true
		}
	}
	if hasNext {
		return e.end + 1, true
	}
	return 0, false
}
