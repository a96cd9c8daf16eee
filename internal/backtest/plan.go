// Package backtest wires loaders, strategies, accounting and risk analytics into one batch run.
package backtest

import (
	"fmt"
	"strings"
	"time"

	"statarb-go/internal/config"
	"statarb-go/internal/execution"
	"statarb-go/internal/signal"
	"statarb-go/internal/strategy"
)

// Plan is a validated, fully typed description of one run.
type Plan struct {
	Symbol    string
	Timeframe signal.Timeframe
	Start     time.Time
	End       time.Time
	Venues    []string // primary, secondary, optional auxiliary
	Mode      string
	Params    strategy.Params
	Fee       float64
	Tiers     []execution.FeeTier
	TopN      int
}

// PlanFromConfig validates cfg and converts it into a Plan.
func PlanFromConfig(cfg *config.Config) (Plan, error) {
	if cfg == nil {
		return Plan{}, fmt.Errorf("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return Plan{}, fmt.Errorf("invalid config: %w", err)
	}
	tf, err := signal.ParseTimeframe(cfg.Backtest.Timeframe)
	if err != nil {
		return Plan{}, err
	}
	start, end, err := cfg.Range()
	if err != nil {
		return Plan{}, err
	}
	venues := cfg.Venues.List()
	for i, v := range venues {
		venues[i] = strings.ToLower(v)
	}
	p := cfg.Strategy.Params
	return Plan{
		Symbol:    cfg.Backtest.Symbol,
		Timeframe: tf,
		Start:     start,
		End:       end,
		Venues:    venues,
		Mode:      cfg.Strategy.Mode,
		Params: strategy.Params{
			Threshold:            p.Threshold,
			Window:               p.Window,
			Percentile:           p.Percentile,
			PrimaryMinDistance:   p.PrimaryMinDistance,
			SecondaryMinDistance: p.SecondaryMinDistance,
			Lookback:             p.Lookback,
			Halflife:             p.Halflife,
			ZLowerBound:          p.ZLowerBound,
		},
		Fee:   cfg.Backtest.Fee,
		Tiers: execution.TiersFromBps(cfg.Backtest.FeeTiersBps),
		TopN:  cfg.Backtest.TopDrawdowns,
	}, nil
}

func (p Plan) validate() error {
	if len(p.Venues) < 2 || len(p.Venues) > 3 {
		return fmt.Errorf("plan needs two or three venues, got %d", len(p.Venues))
	}
	if p.Timeframe.Duration() <= 0 {
		return fmt.Errorf("unsupported timeframe %q", p.Timeframe)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("plan end is before start")
	}
	if p.TopN < 1 {
		return fmt.Errorf("plan top drawdowns must be >= 1")
	}
	return nil
}
