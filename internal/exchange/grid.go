package exchange

import (
	"time"

	"statarb-go/internal/signal"
)

// Grid lists every bucket start in [Start, End] for the request interval.
func Grid(req Request) []time.Time {
	d := req.Timeframe.Duration()
	if d <= 0 || req.End.Before(req.Start) {
		return nil
	}
	start := req.Start.UTC().Truncate(d)
	if start.Before(req.Start) {
		start = start.Add(d)
	}
	end := req.End.UTC()
	out := make([]time.Time, 0, int(end.Sub(start)/d)+1)
	for ts := start; !ts.After(end); ts = ts.Add(d) {
		out = append(out, ts)
	}
	return out
}

// PadGrid buckets raw bars onto the request grid, keeping the first bar per bucket and
// inserting gap bars where the venue had none. It also returns the gap timestamps.
func PadGrid(raw []signal.Bar, req Request) ([]signal.Bar, []time.Time) {
	d := req.Timeframe.Duration()
	byTs := make(map[int64]signal.Bar, len(raw))
	for _, b := range raw {
		if b.Missing {
			continue
		}
		key := b.Ts.UTC().Truncate(d).UnixMilli()
		if _, dup := byTs[key]; !dup {
			byTs[key] = b
		}
	}

	grid := Grid(req)
	out := make([]signal.Bar, 0, len(grid))
	var missing []time.Time
	for _, ts := range grid {
		b, ok := byTs[ts.UnixMilli()]
		if !ok {
			out = append(out, signal.GapBar(req.Symbol, req.Venue, ts))
			missing = append(missing, ts)
			continue
		}
		b.Ts = ts
		b.Symbol = req.Symbol
		b.Venue = req.Venue
		out = append(out, b)
	}
	return out, missing
}
