// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. STATARB_BACKTEST_FEE.
const EnvPrefix = "STATARB_"

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name" env:"NAME"`
	Env         string `yaml:"env" env:"ENV"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`
}

// Backtest selects the instrument, history window and cost model of a run.
// Start and End accept a date (2024-01-02) or an RFC3339 timestamp; both bounds are inclusive.
type Backtest struct {
	Symbol       string    `yaml:"symbol" env:"SYMBOL"`
	Timeframe    string    `yaml:"timeframe" env:"TIMEFRAME"`
	Start        string    `yaml:"start" env:"START"`
	End          string    `yaml:"end" env:"END"`
	Fee          float64   `yaml:"fee" env:"FEE"`
	FeeTiersBps  []float64 `yaml:"fee_tiers_bps" env:"FEE_TIERS_BPS"`
	TopDrawdowns int       `yaml:"top_drawdowns" env:"TOP_DRAWDOWNS"`
}

// StrategyParams groups tunable knobs for every strategy implementation; each mode reads its own subset.
type StrategyParams struct {
	Threshold            float64 `yaml:"threshold" env:"THRESHOLD"`
	Window               int     `yaml:"window" env:"WINDOW"`
	Percentile           float64 `yaml:"percentile" env:"PERCENTILE"`
	PrimaryMinDistance   float64 `yaml:"primary_min_distance" env:"PRIMARY_MIN_DISTANCE"`
	SecondaryMinDistance float64 `yaml:"secondary_min_distance" env:"SECONDARY_MIN_DISTANCE"`
	Lookback             int     `yaml:"lookback" env:"LOOKBACK"`
	Halflife             float64 `yaml:"halflife" env:"HALFLIFE"`
	ZLowerBound          float64 `yaml:"z_lower_bound" env:"Z_LOWER_BOUND"`
}

// Strategy specifies which strategy is active along with the parameter bundle.
type Strategy struct {
	Mode   string         `yaml:"mode" env:"MODE"`
	Params StrategyParams `yaml:"params" envPrefix:"PARAMS_"`
}

// Report controls where result tables land.
type Report struct {
	Dir        string `yaml:"dir" env:"DIR"`
	WriteJSONL bool   `yaml:"write_jsonl" env:"WRITE_JSONL"`
}

// Cache enables the redis bar cache when RedisURL is set.
type Cache struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	TTLSec   int    `yaml:"ttl_sec" env:"TTL_SEC"`
}

// Store enables run persistence to Postgres when DSN is set.
type Store struct {
	DSN string `yaml:"dsn" env:"DSN"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app" envPrefix:"APP_"`
	Backtest Backtest `yaml:"backtest" envPrefix:"BACKTEST_"`
	Venues   Venues   `yaml:"venues" envPrefix:"VENUES_"`
	Strategy Strategy `yaml:"strategy" envPrefix:"STRATEGY_"`
	Report   Report   `yaml:"report" envPrefix:"REPORT_"`
	Cache    Cache    `yaml:"cache" envPrefix:"CACHE_"`
	Store    Store    `yaml:"store" envPrefix:"STORE_"`
}

// Load reads a YAML file from disk, fills defaults and applies STATARB_ environment overrides.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment overrides: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "statarb"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Backtest.Timeframe == "" {
		c.Backtest.Timeframe = "15m"
	}
	if len(c.Backtest.FeeTiersBps) == 0 {
		c.Backtest.FeeTiersBps = []float64{1, 2, 3}
	}
	if c.Backtest.TopDrawdowns == 0 {
		c.Backtest.TopDrawdowns = 3
	}
	c.Venues.applyDefaults()
	if c.Strategy.Params.Window == 0 {
		c.Strategy.Params.Window = 30
	}
	if c.Strategy.Params.Percentile == 0 {
		c.Strategy.Params.Percentile = 90
	}
	if c.Strategy.Params.Lookback == 0 {
		c.Strategy.Params.Lookback = 30
	}
	if c.Strategy.Params.Halflife == 0 {
		c.Strategy.Params.Halflife = 10
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "reports"
	}
	if c.Cache.TTLSec == 0 {
		c.Cache.TTLSec = 86400
	}
}
