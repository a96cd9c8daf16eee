// Package signal standardizes payloads shared between data ingestion, strategy and accounting layers.
package signal

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Bar models one OHLCV bucket for a single venue and instrument.
type Bar struct {
	Symbol  string    `json:"sym"`
	Venue   string    `json:"venue"`
	Ts      time.Time `json:"ts"`
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	Volume  float64   `json:"volume"`
	Missing bool      `json:"missing,omitempty"` // grid slot with no data from the venue
}

// Return is the intraperiod simple return close/open - 1.
func (b Bar) Return() float64 {
	if b.Missing || b.Open == 0 {
		return math.NaN()
	}
	return b.Close/b.Open - 1
}

// GapBar builds the placeholder emitted for a grid slot the venue did not report.
func GapBar(symbol, venue string, ts time.Time) Bar {
	nan := math.NaN()
	return Bar{Symbol: symbol, Venue: venue, Ts: ts, Open: nan, High: nan, Low: nan, Close: nan, Volume: nan, Missing: true}
}

// Timeframe is a supported bar interval such as "15m" or "1h".
type Timeframe string

var timeframes = map[Timeframe]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// Year is the annualization horizon used to scale per-period statistics.
const Year = 365 * 24 * time.Hour

// ParseTimeframe validates s against the supported interval table.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeframes[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the bar length, or zero for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration { return timeframes[tf] }

// PeriodsPerYear is the number of bars in a 365-day year.
func (tf Timeframe) PeriodsPerYear() float64 {
	d := tf.Duration()
	if d <= 0 {
		return math.NaN()
	}
	return float64(Year) / float64(d)
}

func (tf Timeframe) String() string { return string(tf) }
