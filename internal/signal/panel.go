package signal

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrEmptyPanel reports a join that produced no usable rows.
var ErrEmptyPanel = errors.New("empty price panel")

// Quote is one venue's contribution to a panel row.
type Quote struct {
	Open   float64
	Ret    float64
	Volume float64
	Valid  bool // false for auxiliary gaps retained by the left join
}

// Row is a panel timestamp plus the annotations written by a strategy.
type Row struct {
	Ts        time.Time
	Quotes    []Quote
	Signal    float64
	Threshold float64
	Trade     bool
	Sides     []int
}

// Panel joins bars from two or three venues on a shared timestamp key.
// Venues[0] is the primary leg, Venues[1] the secondary, Venues[2] an optional auxiliary.
type Panel struct {
	Symbol string
	Venues []string
	Rows   []Row
}

const (
	Primary   = 0
	Secondary = 1
	Auxiliary = 2
)

// Join inner-joins primary and secondary bars and left-joins the optional auxiliary bars.
// Rows where either traded leg is a gap are dropped; auxiliary gaps are kept as invalid quotes.
func Join(symbol string, primary, secondary, auxiliary []Bar) (*Panel, error) {
	if len(primary) == 0 || len(secondary) == 0 {
		return nil, ErrEmptyPanel
	}
	venues := []string{venueOf(primary), venueOf(secondary)}
	var aux map[int64]Bar
	if auxiliary != nil {
		venues = append(venues, venueOf(auxiliary))
		aux = index(auxiliary)
	}
	if venues[Primary] == venues[Secondary] {
		return nil, fmt.Errorf("join: primary and secondary are both %q", venues[Primary])
	}

	second := index(secondary)
	panel := &Panel{Symbol: symbol, Venues: venues, Rows: make([]Row, 0, len(primary))}
	var last time.Time
	for _, p := range primary {
		if p.Missing {
			continue
		}
		s, ok := second[p.Ts.UnixMilli()]
		if !ok || s.Missing {
			continue
		}
		if !last.IsZero() && !p.Ts.After(last) {
			return nil, fmt.Errorf("join: primary bars not strictly ordered at %s", p.Ts.Format(time.RFC3339))
		}
		last = p.Ts

		quotes := []Quote{quoteOf(p), quoteOf(s)}
		if aux != nil {
			a, ok := aux[p.Ts.UnixMilli()]
			if ok && !a.Missing {
				quotes = append(quotes, quoteOf(a))
			} else {
				quotes = append(quotes, Quote{Open: math.NaN(), Ret: math.NaN(), Volume: math.NaN()})
			}
		}
		panel.Rows = append(panel.Rows, Row{
			Ts:        p.Ts,
			Quotes:    quotes,
			Signal:    math.NaN(),
			Threshold: math.NaN(),
			Sides:     make([]int, len(venues)),
		})
	}
	if len(panel.Rows) == 0 {
		return nil, ErrEmptyPanel
	}
	return panel, nil
}

// Clone returns a deep copy so strategies can annotate without mutating their input.
func (p *Panel) Clone() *Panel {
	out := &Panel{Symbol: p.Symbol, Venues: append([]string(nil), p.Venues...), Rows: make([]Row, len(p.Rows))}
	for i, r := range p.Rows {
		r.Quotes = append([]Quote(nil), r.Quotes...)
		r.Sides = append([]int(nil), r.Sides...)
		out.Rows[i] = r
	}
	return out
}

// Times returns the row timestamps in order.
func (p *Panel) Times() []time.Time {
	out := make([]time.Time, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.Ts
	}
	return out
}

// HasAuxiliary reports whether a third venue was joined.
func (p *Panel) HasAuxiliary() bool { return len(p.Venues) > Auxiliary }

func quoteOf(b Bar) Quote {
	return Quote{Open: b.Open, Ret: b.Return(), Volume: b.Volume, Valid: true}
}

func venueOf(bars []Bar) string {
	if len(bars) == 0 {
		return ""
	}
	return bars[0].Venue
}

func index(bars []Bar) map[int64]Bar {
	out := make(map[int64]Bar, len(bars))
	for _, b := range bars {
		out[b.Ts.UnixMilli()] = b
	}
	return out
}
