package integration

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"statarb-go/internal/backtest"
	"statarb-go/internal/config"
	"statarb-go/internal/exchange"
	"statarb-go/internal/report"
)

func stubConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join("..", "config", "testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg.Backtest.Start = "2024-01-01"
	cfg.Backtest.End = "2024-01-03"
	cfg.Strategy.Mode = mode
	cfg.Strategy.Params.Threshold = 0.0005
	cfg.Strategy.Params.PrimaryMinDistance = 0.0002
	cfg.Strategy.Params.SecondaryMinDistance = 0.0002
	cfg.Strategy.Params.ZLowerBound = 1
	cfg.Report.Dir = t.TempDir()
	return cfg
}

func TestBacktestFlowWritesReport(t *testing.T) {
	for _, mode := range []string{"adaptive", "midprice", "zscore"} {
		t.Run(mode, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			cfg := stubConfig(t, mode)
			plan, err := backtest.PlanFromConfig(cfg)
			if err != nil {
				t.Fatalf("PlanFromConfig returned error: %v", err)
			}

			var buf bytes.Buffer
			logger := zerolog.New(&buf)
			source := exchange.NewLoader(cfg.Venues.Provider, logger)
			res, err := backtest.NewRunner(source, logger).Run(ctx, plan)
			if err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			if res.Diagnostics.Triggered == 0 {
				t.Fatalf("expected the stub spread to trigger trades")
			}

			dir, err := report.Write(cfg.Report.Dir, res, report.Build(res, cfg.Echo()), cfg.Report.WriteJSONL)
			if err != nil {
				t.Fatalf("Write returned error: %v", err)
			}
			if !strings.HasPrefix(filepath.Base(dir), "R") || !strings.HasSuffix(dir, ".S20240101.E20240103") {
				t.Fatalf("unexpected report dir %s", dir)
			}

			f, err := os.Open(filepath.Join(dir, "ret.csv"))
			if err != nil {
				t.Fatalf("open ret.csv: %v", err)
			}
			defer f.Close()
			rows, err := csv.NewReader(f).ReadAll()
			if err != nil {
				t.Fatalf("read ret.csv: %v", err)
			}
			if len(rows)-1 != len(res.Periods) {
				t.Fatalf("expected one ret row per period, got %d for %d", len(rows)-1, len(res.Periods))
			}
			if _, err := os.Stat(filepath.Join(dir, "periods.jsonl")); err != nil {
				t.Fatalf("expected jsonl period log: %v", err)
			}
			if !strings.Contains(buf.String(), "backtest finished") {
				t.Fatalf("expected completion log, got %s", buf.String())
			}
		})
	}
}

func TestBacktestFlowIsDeterministic(t *testing.T) {
	cfg := stubConfig(t, "adaptive")
	plan, err := backtest.PlanFromConfig(cfg)
	if err != nil {
		t.Fatalf("PlanFromConfig returned error: %v", err)
	}
	run := func() *backtest.Result {
		res, err := backtest.NewRunner(exchange.NewLoader(exchange.ProviderStub, zerolog.Nop()), zerolog.Nop()).Run(context.Background(), plan)
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		return res
	}
	a, b := run(), run()
	if a.ID == b.ID {
		t.Fatalf("expected distinct run ids")
	}
	if len(a.NAV) != len(b.NAV) || a.NAV[len(a.NAV)-1] != b.NAV[len(b.NAV)-1] {
		t.Fatalf("stub runs diverged")
	}
}
