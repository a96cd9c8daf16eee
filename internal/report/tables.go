// Package report turns a finished backtest into the tables written to disk.
package report

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"statarb-go/internal/backtest"
	"statarb-go/internal/config"
	"statarb-go/internal/risk"
)

// NotAvailable renders metrics that are undefined for the run (zero volatility, no drawdown).
const NotAvailable = "n/a"

// Table is a named header plus string rows, ready for CSV.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Tables holds every table of a report in write order.
type Tables struct {
	Config      Table
	Performance Table
	Drawdown    Table
	Returns     Table
	Signals     Table
	Fees        Table
	Debug       Table
}

// All lists the tables in write order.
func (t Tables) All() []Table {
	return []Table{t.Config, t.Performance, t.Drawdown, t.Returns, t.Signals, t.Fees, t.Debug}
}

// Build renders the result and the config echo into report tables.
func Build(res *backtest.Result, echo []config.Param) Tables {
	return Tables{
		Config:      configTable(echo),
		Performance: performanceTable(res.Summary),
		Drawdown:    drawdownTable(res.Drawdowns),
		Returns:     returnsTable(res),
		Signals:     signalsTable(res),
		Fees:        feesTable(res),
		Debug:       debugTable(res),
	}
}

func configTable(echo []config.Param) Table {
	t := Table{Name: "config", Header: []string{"param", "value"}}
	for _, p := range echo {
		t.Rows = append(t.Rows, []string{p.Name, p.Value})
	}
	return t
}

func performanceTable(s risk.Summary) Table {
	return Table{
		Name:   "performance",
		Header: []string{"metrics", "value"},
		Rows: [][]string{
			{"Annual Return", Percent(s.AnnualReturn)},
			{"Annual Std", Percent(s.AnnualStd)},
			{"Annual Sharpe", Fixed(s.AnnualSharpe, 2)},
			{"Win Ratio", Percent(s.WinRatio)},
			{"Max Drawdown", Percent(s.MaxDrawdown)},
			{"Periods", strconv.Itoa(s.Periods)},
		},
	}
}

func drawdownTable(episodes []risk.Episode) Table {
	t := Table{Name: "drawdown", Header: []string{"peak_time", "trough_time", "recovery_time", "max_dd"}}
	for _, ep := range episodes {
		recovery := ""
		if ep.RecoveryTime != nil {
			recovery = stamp(*ep.RecoveryTime)
		}
		t.Rows = append(t.Rows, []string{stamp(ep.PeakTime), stamp(ep.TroughTime), recovery, Percent(ep.MaxDD)})
	}
	return t
}

func returnsTable(res *backtest.Result) Table {
	t := Table{Name: "ret", Header: []string{"ts", "ret", "adj_ret"}}
	for _, p := range res.Periods {
		t.Rows = append(t.Rows, []string{stamp(p.Ts), Number(p.Ret), Number(p.AdjRet)})
	}
	return t
}

func signalsTable(res *backtest.Result) Table {
	t := Table{Name: "signal", Header: []string{"ts", "signal", "threshold", "trade"}}
	if res.Panel == nil {
		return t
	}
	for _, row := range res.Panel.Rows {
		t.Rows = append(t.Rows, []string{stamp(row.Ts), Number(row.Signal), Number(row.Threshold), strconv.FormatBool(row.Trade)})
	}
	return t
}

func feesTable(res *backtest.Result) Table {
	t := Table{Name: "fee", Header: []string{"ts"}}
	for _, tier := range res.Plan.Tiers {
		t.Header = append(t.Header, tier.Name)
	}
	for _, p := range res.Periods {
		row := []string{stamp(p.Ts)}
		for _, fee := range p.TierFees {
			row = append(row, Number(fee))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func debugTable(res *backtest.Result) Table {
	t := Table{Name: "debug", Header: []string{"ts", "action", "ret_diff", "ideal_primary_side"}}
	for _, p := range res.Periods {
		t.Rows = append(t.Rows, []string{stamp(p.Ts), p.Action.String(), Number(p.RetDiff), strconv.Itoa(p.IdealSide)})
	}
	return t
}

// Percent formats a fraction as a two-decimal percentage, n/a when undefined.
func Percent(f float64) string {
	if !finite(f) {
		return NotAvailable
	}
	return decimal.NewFromFloat(f).Shift(2).StringFixed(2) + "%"
}

// Fixed rounds to places decimals, n/a when undefined.
func Fixed(f float64, places int32) string {
	if !finite(f) {
		return NotAvailable
	}
	return decimal.NewFromFloat(f).StringFixed(places)
}

// Number renders a series value exactly; undefined values are left blank.
func Number(f float64) string {
	if !finite(f) {
		return ""
	}
	return decimal.NewFromFloat(f).String()
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func stamp(ts time.Time) string { return ts.UTC().Format(time.RFC3339) }
