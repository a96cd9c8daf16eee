package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "statarb-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.Backtest.Symbol != "BTC/USDT:USDT" {
		t.Fatalf("unexpected symbol: %s", cfg.Backtest.Symbol)
	}
	if cfg.Backtest.Fee != 0.0002 {
		t.Fatalf("unexpected fee: %v", cfg.Backtest.Fee)
	}
	if len(cfg.Backtest.FeeTiersBps) != 3 || cfg.Backtest.FeeTiersBps[2] != 3 {
		t.Fatalf("unexpected fee tiers: %+v", cfg.Backtest.FeeTiersBps)
	}
	if cfg.Backtest.TopDrawdowns != 5 {
		t.Fatalf("unexpected top drawdowns: %d", cfg.Backtest.TopDrawdowns)
	}
	if got := cfg.Venues.List(); len(got) != 3 || got[2] != "bybit" {
		t.Fatalf("unexpected venues: %+v", got)
	}
	if cfg.Strategy.Mode != "zscore" || cfg.Strategy.Params.Lookback != 48 {
		t.Fatalf("unexpected strategy: %+v", cfg.Strategy)
	}
	if cfg.Strategy.Params.ZLowerBound != 2.5 {
		t.Fatalf("unexpected z lower bound: %v", cfg.Strategy.Params.ZLowerBound)
	}
	if !cfg.Report.WriteJSONL || cfg.Report.Dir != "out" {
		t.Fatalf("unexpected report section: %+v", cfg.Report)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected testdata config to validate, got %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Strategy.Params.Window != 30 || cfg.Strategy.Params.Percentile != 90 {
		t.Fatalf("expected adaptive defaults, got %+v", cfg.Strategy.Params)
	}
	if cfg.Venues.Retries != 3 || cfg.Venues.TimeoutSec != 10 {
		t.Fatalf("expected venue defaults, got %+v", cfg.Venues)
	}
	if cfg.Cache.TTLSec != 86400 {
		t.Fatalf("expected cache ttl default, got %d", cfg.Cache.TTLSec)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STATARB_BACKTEST_FEE", "0.0005")
	t.Setenv("STATARB_STRATEGY_MODE", "midprice")
	t.Setenv("STATARB_STRATEGY_PARAMS_PRIMARY_MIN_DISTANCE", "0.001")
	t.Setenv("STATARB_VENUES_PRIMARY", "bybit")
	t.Setenv("STATARB_VENUES_AUXILIARY", "binance")

	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backtest.Fee != 0.0005 {
		t.Fatalf("expected fee override, got %v", cfg.Backtest.Fee)
	}
	if cfg.Strategy.Mode != "midprice" || cfg.Strategy.Params.PrimaryMinDistance != 0.001 {
		t.Fatalf("expected strategy overrides, got %+v", cfg.Strategy)
	}
	if cfg.Venues.Primary != "bybit" {
		t.Fatalf("expected venue override, got %s", cfg.Venues.Primary)
	}
	if cfg.Backtest.Symbol != "BTC/USDT:USDT" {
		t.Fatalf("unset variables must keep yaml values, got %s", cfg.Backtest.Symbol)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg.Backtest.Timeframe = "1h"
	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load of saved config returned error: %v", err)
	}
	if again.Backtest.Timeframe != "1h" || again.Strategy.Params.Halflife != 12 {
		t.Fatalf("round trip lost fields: %+v", again.Backtest)
	}
	if err := Save(path, nil); err == nil {
		t.Fatalf("expected error saving nil config")
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Backtest.Timeframe = "7m"
	cfg.Backtest.Start = "2024-02-01"
	cfg.Backtest.End = "2024-01-01"
	cfg.Backtest.Fee = -1
	cfg.Venues.Secondary = "BINANCE"
	cfg.App.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"symbol", "timeframe", "before", "fee", "twice", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestRange(t *testing.T) {
	cfg := &Config{Backtest: Backtest{Start: "2024-01-01", End: "2024-01-01"}}
	start, end, err := cfg.Range()
	if err != nil {
		t.Fatalf("Range returned error: %v", err)
	}
	if !start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", start)
	}
	if end.Sub(start) != 24*time.Hour-time.Nanosecond {
		t.Fatalf("expected date-only end to cover the day, got %s", end)
	}

	cfg.Backtest.End = "2024-01-01T06:00:00Z"
	if _, end, _ = cfg.Range(); !end.Equal(start.Add(6 * time.Hour)) {
		t.Fatalf("unexpected RFC3339 end %s", end)
	}
}

func TestEchoFollowsMode(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	echo := cfg.Echo()
	if echo[0].Name != "symbol" || echo[0].Value != "BTC/USDT:USDT" {
		t.Fatalf("unexpected first echo row %+v", echo[0])
	}
	last := echo[len(echo)-1]
	if last.Name != "z_lower_bound" || last.Value != "2.5" {
		t.Fatalf("expected zscore params in echo, got %+v", last)
	}
}
