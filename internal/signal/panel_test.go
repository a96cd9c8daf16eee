package signal

import (
	"errors"
	"math"
	"testing"
	"time"
)

func bars(venue string, start time.Time, opens ...float64) []Bar {
	out := make([]Bar, len(opens))
	for i, o := range opens {
		ts := start.Add(time.Duration(i) * time.Minute)
		if math.IsNaN(o) {
			out[i] = GapBar("BTC/USDT:USDT", venue, ts)
			continue
		}
		out[i] = Bar{Symbol: "BTC/USDT:USDT", Venue: venue, Ts: ts, Open: o, High: o, Low: o, Close: o * 1.01, Volume: 1}
	}
	return out
}

func TestJoinInnerOnTradedLegsLeftOnAuxiliary(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	nan := math.NaN()
	p := bars("binance", start, 100, 101, nan, 103)
	s := bars("okx", start, 100, nan, 102, 103)
	a := bars("bybit", start, nan, 101, 102, 103)

	panel, err := Join("BTC/USDT:USDT", p, s, a)
	if err != nil {
		t.Fatalf("Join returned error: %v", err)
	}
	if len(panel.Rows) != 2 {
		t.Fatalf("expected 2 rows after inner join, got %d", len(panel.Rows))
	}
	if !panel.HasAuxiliary() || panel.Venues[Auxiliary] != "bybit" {
		t.Fatalf("unexpected venues %v", panel.Venues)
	}
	first := panel.Rows[0]
	if first.Quotes[Auxiliary].Valid {
		t.Fatalf("expected auxiliary gap to be retained as invalid quote")
	}
	if math.Abs(first.Quotes[Primary].Ret-0.01) > 1e-12 {
		t.Fatalf("expected intraperiod return 0.01, got %v", first.Quotes[Primary].Ret)
	}
	if len(first.Sides) != 3 {
		t.Fatalf("expected one side per venue, got %d", len(first.Sides))
	}
}

func TestJoinEmpty(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	nan := math.NaN()
	_, err := Join("X", bars("binance", start, nan, nan), bars("okx", start, 1, 1), nil)
	if !errors.Is(err, ErrEmptyPanel) {
		t.Fatalf("expected ErrEmptyPanel, got %v", err)
	}
}

func TestJoinRejectsSameVenue(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := Join("X", bars("okx", start, 1), bars("okx", start, 1), nil); err == nil {
		t.Fatalf("expected error joining a venue with itself")
	}
}

func TestCloneIsDeep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	panel, err := Join("X", bars("binance", start, 1, 2), bars("okx", start, 1, 2), nil)
	if err != nil {
		t.Fatalf("Join returned error: %v", err)
	}
	clone := panel.Clone()
	clone.Rows[0].Sides[0] = 1
	clone.Rows[0].Quotes[0].Open = 99
	if panel.Rows[0].Sides[0] != 0 || panel.Rows[0].Quotes[0].Open != 1 {
		t.Fatalf("clone shares storage with original")
	}
}

func TestTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("15M")
	if err != nil {
		t.Fatalf("ParseTimeframe returned error: %v", err)
	}
	if tf.Duration() != 15*time.Minute {
		t.Fatalf("unexpected duration %s", tf.Duration())
	}
	if got := tf.PeriodsPerYear(); got != 35040 {
		t.Fatalf("expected 35040 periods per year, got %v", got)
	}
	if _, err := ParseTimeframe("7m"); err == nil {
		t.Fatalf("expected error for unsupported timeframe")
	}
}
