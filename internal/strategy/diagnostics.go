package strategy

import (
	"errors"
	"math"

	"github.com/rs/zerolog"

	"statarb-go/internal/signal"
)

// ErrNoSignal aborts a run whose strategy never triggered.
var ErrNoSignal = errors.New("no signal was triggered")

// LowTriggerRatio is the trigger share below which a run is flagged for review.
const LowTriggerRatio = 0.2

// Diagnostics summarizes how often and how strongly a strategy fired.
type Diagnostics struct {
	Strategy      string
	Opportunities int
	Triggered     int
	Min           float64
	P25           float64
	P50           float64
	P75           float64
	P90           float64
	Max           float64
}

// Describe computes trigger counts and the distribution of finite signal values.
func Describe(name string, p *signal.Panel) Diagnostics {
	d := Diagnostics{Strategy: name}
	nan := math.NaN()
	d.Min, d.P25, d.P50, d.P75, d.P90, d.Max = nan, nan, nan, nan, nan, nan
	if p == nil {
		return d
	}
	values := make([]float64, 0, len(p.Rows))
	for _, row := range p.Rows {
		d.Opportunities++
		if row.Trade {
			d.Triggered++
		}
		if finite(row.Signal) {
			values = append(values, row.Signal)
		}
	}
	if len(values) > 0 {
		d.Min = percentile(values, 0)
		d.P25 = percentile(values, 25)
		d.P50 = percentile(values, 50)
		d.P75 = percentile(values, 75)
		d.P90 = percentile(values, 90)
		d.Max = percentile(values, 100)
	}
	return d
}

// Ratio is the triggered share of opportunities.
func (d Diagnostics) Ratio() float64 {
	if d.Opportunities == 0 {
		return 0
	}
	return float64(d.Triggered) / float64(d.Opportunities)
}

// Evaluate logs the distribution and returns ErrNoSignal when nothing triggered.
func (d Diagnostics) Evaluate(log zerolog.Logger) error {
	log.Info().
		Str("strategy", d.Strategy).
		Float64("min", d.Min).
		Float64("p25", d.P25).
		Float64("p50", d.P50).
		Float64("p75", d.P75).
		Float64("p90", d.P90).
		Float64("max", d.Max).
		Msg("signal distribution")
	log.Info().Int("opportunities", d.Opportunities).Int("triggered", d.Triggered).Msg("signal counts")

	ratio := d.Ratio()
	if d.Triggered == 0 {
		log.Error().Str("strategy", d.Strategy).Msg("no signal was triggered, please check the threshold")
		return ErrNoSignal
	}
	if ratio < LowTriggerRatio {
		log.Warn().Float64("pct", 100*ratio).Msg("signal was triggered less than 20% of total count, please check the threshold")
	}
	return nil
}
