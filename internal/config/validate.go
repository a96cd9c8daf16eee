package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"statarb-go/internal/signal"
)

const dateLayout = "2006-01-02"

// Validate reports every problem found rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Backtest.Symbol) == "" {
		errs = append(errs, errors.New("backtest.symbol is required"))
	}
	if _, err := signal.ParseTimeframe(c.Backtest.Timeframe); err != nil {
		errs = append(errs, fmt.Errorf("backtest.timeframe: %w", err))
	}
	if _, _, err := c.Range(); err != nil {
		errs = append(errs, err)
	}
	if c.Backtest.Fee < 0 {
		errs = append(errs, fmt.Errorf("backtest.fee must be >= 0, got %v", c.Backtest.Fee))
	}
	for _, bps := range c.Backtest.FeeTiersBps {
		if bps < 0 {
			errs = append(errs, fmt.Errorf("backtest.fee_tiers_bps must be >= 0, got %v", bps))
		}
	}
	if c.Backtest.TopDrawdowns < 1 {
		errs = append(errs, fmt.Errorf("backtest.top_drawdowns must be >= 1, got %d", c.Backtest.TopDrawdowns))
	}
	if err := c.Venues.validate(); err != nil {
		errs = append(errs, err)
	}
	if lvl, err := zerolog.ParseLevel(strings.ToLower(c.App.LogLevel)); err != nil || lvl == zerolog.NoLevel {
		errs = append(errs, fmt.Errorf("app.log_level %q is not a valid level", c.App.LogLevel))
	}
	if p := c.Strategy.Params.Percentile; p < 0 || p > 100 {
		errs = append(errs, fmt.Errorf("strategy.params.percentile must be within [0,100], got %v", p))
	}
	return errors.Join(errs...)
}

func (v Venues) validate() error {
	if v.Primary == "" || v.Secondary == "" {
		return errors.New("venues.primary and venues.secondary are required")
	}
	seen := map[string]bool{}
	for _, name := range v.List() {
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("venue %q listed twice", name)
		}
		seen[key] = true
	}
	switch strings.ToLower(v.Provider) {
	case "stub", "rest":
	case "csv":
		if v.CSVDir == "" {
			return errors.New("venues.csv_dir is required for the csv provider")
		}
	default:
		return fmt.Errorf("venues.provider %q is not one of stub, rest, csv", v.Provider)
	}
	return nil
}

// Range parses the backtest window. A date-only End covers that whole day.
func (c *Config) Range() (time.Time, time.Time, error) {
	start, _, err := parseBound(c.Backtest.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start: %w", err)
	}
	end, dateOnly, err := parseBound(c.Backtest.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end: %w", err)
	}
	if dateOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end %s is before backtest.start %s", c.Backtest.End, c.Backtest.Start)
	}
	return start, end, nil
}

func parseBound(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, errors.New("required")
	}
	if ts, err := time.Parse(dateLayout, s); err == nil {
		return ts.UTC(), true, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither %s nor RFC3339", s, dateLayout)
	}
	return ts.UTC(), false, nil
}

// Param is one row of the config echo table.
type Param struct {
	Name  string
	Value string
}

// Echo lists the parameters that determine a run's result in a stable order.
func (c *Config) Echo() []Param {
	p := c.Strategy.Params
	out := []Param{
		{"symbol", c.Backtest.Symbol},
		{"timeframe", c.Backtest.Timeframe},
		{"start", c.Backtest.Start},
		{"end", c.Backtest.End},
		{"provider", c.Venues.Provider},
		{"venues", strings.Join(c.Venues.List(), ",")},
		{"strategy", c.Strategy.Mode},
		{"fee", formatFloat(c.Backtest.Fee)},
		{"fee_tiers_bps", joinFloats(c.Backtest.FeeTiersBps)},
		{"top_drawdowns", strconv.Itoa(c.Backtest.TopDrawdowns)},
	}
	switch strings.ToLower(c.Strategy.Mode) {
	case "midprice", "mid", "three_venue":
		out = append(out,
			Param{"primary_min_distance", formatFloat(p.PrimaryMinDistance)},
			Param{"secondary_min_distance", formatFloat(p.SecondaryMinDistance)},
		)
	case "zscore", "z":
		out = append(out,
			Param{"lookback", strconv.Itoa(p.Lookback)},
			Param{"halflife", formatFloat(p.Halflife)},
			Param{"z_lower_bound", formatFloat(p.ZLowerBound)},
		)
	default:
		out = append(out,
			Param{"threshold", formatFloat(p.Threshold)},
			Param{"window", strconv.Itoa(p.Window)},
			Param{"percentile", formatFloat(p.Percentile)},
		)
	}
	return out
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

func joinFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = formatFloat(f)
	}
	return strings.Join(parts, ",")
}
