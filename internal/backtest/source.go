package backtest

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"statarb-go/internal/config"
	"statarb-go/internal/exchange"
)

// SourceFromConfig builds the configured price loader, wrapped in the redis cache when one is set.
// The returned close func releases the cache connection and is always safe to call.
func SourceFromConfig(ctx context.Context, cfg *config.Config, log zerolog.Logger) (exchange.Source, func(), error) {
	v := cfg.Venues
	loader := exchange.NewLoader(v.Provider, log,
		exchange.WithHTTPClient(&http.Client{Timeout: time.Duration(v.TimeoutSec) * time.Second}),
		exchange.WithBaseURL(exchange.VenueBinance, v.BinanceURL),
		exchange.WithBaseURL(exchange.VenueOKX, v.OKXURL),
		exchange.WithBaseURL(exchange.VenueBybit, v.BybitURL),
		exchange.WithCSVDir(v.CSVDir),
		exchange.WithPageLimit(v.PageLimit),
		exchange.WithRetries(v.Retries),
	)
	noop := func() {}
	if cfg.Cache.RedisURL == "" {
		return loader, noop, nil
	}
	kv, err := exchange.NewRedisKV(ctx, cfg.Cache.RedisURL, cfg.Cache.Password)
	if err != nil {
		return nil, noop, err
	}
	ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
	log.Info().Str("redis", cfg.Cache.RedisURL).Dur("ttl", ttl).Msg("price cache enabled")
	return exchange.NewCachedSource(loader, kv, ttl, log), func() { _ = kv.Close() }, nil
}
