package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"statarb-go/internal/backtest"
	"statarb-go/internal/config"
	"statarb-go/internal/metrics"
	"statarb-go/internal/report"
	"statarb-go/internal/store"
	"statarb-go/internal/strategy"
	"statarb-go/internal/util"
)

func main() {
	var (
		configPath string
		mode       string
		console    bool
		history    int
	)
	flag.StringVar(&configPath, "config", "internal/config/config.yaml", "path to the YAML config")
	flag.StringVar(&mode, "strategy", "", "override strategy.mode (adaptive | midprice | zscore)")
	flag.BoolVar(&console, "console", false, "human-readable logs")
	flag.IntVar(&history, "history", 0, "after saving, log the last N stored runs for the symbol")
	flag.Parse()

	_ = godotenv.Load() // best-effort

	cfg, err := config.Load(configPath)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	if mode != "" {
		cfg.Strategy.Mode = mode
	}
	log := util.NewLogger(cfg.App.LogLevel)
	if console {
		log = util.NewConsoleLogger(cfg.App.LogLevel)
	}

	plan, err := backtest.PlanFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	source, closeSource, err := backtest.SourceFromConfig(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("price source")
	}
	defer closeSource()

	res, err := backtest.NewRunner(source, log).Run(ctx, plan)
	if errors.Is(err, strategy.ErrNoSignal) {
		log.Error().Msg("no trades to report")
		cancel()
		closeSource()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("backtest")
	}

	dir, err := report.Write(cfg.Report.Dir, res, report.Build(res, cfg.Echo()), cfg.Report.WriteJSONL)
	if err != nil {
		log.Fatal().Err(err).Msg("write report")
	}
	log.Info().Str("dir", dir).Msg("report written")

	if cfg.Store.DSN != "" {
		db, err := store.Open(cfg.Store.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open store")
		}
		defer db.Close()
		if err := db.SaveRun(ctx, res); err != nil {
			log.Fatal().Err(err).Msg("save run")
		}
		log.Info().Str("run_id", res.ID.String()).Msg("run saved")

		runs, err := db.Recent(ctx, plan.Symbol, history)
		if err != nil {
			log.Fatal().Err(err).Msg("list runs")
		}
		for _, run := range runs {
			log.Info().Object("run", run).Msg("history")
		}
	}
}
