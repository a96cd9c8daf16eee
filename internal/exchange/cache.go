package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"statarb-go/internal/signal"
)

// ErrCacheMiss is returned by a KV when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// KV is the byte store behind CachedSource.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisKV stores bar pages in redis.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to redisURL (redis://host:port/db) and verifies the connection.
func NewRedisKV(ctx context.Context, redisURL, password string) (*RedisKV, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opt.Password = password
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisKV{client: client}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the redis connection pool.
func (r *RedisKV) Close() error { return r.client.Close() }

// CachedSource serves repeated requests from a KV before falling back to the wrapped source.
// Only reported bars are stored; gaps are restored by padding on the way out.
type CachedSource struct {
	next Source
	kv   KV
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCachedSource wraps next; a zero ttl keeps entries until evicted.
func NewCachedSource(next Source, kv KV, ttl time.Duration, log zerolog.Logger) *CachedSource {
	return &CachedSource{next: next, kv: kv, ttl: ttl, log: log}
}

// CacheKey identifies one request's bars.
func CacheKey(req Request) string {
	return strings.Join([]string{
		"bars",
		strings.ToLower(req.Venue),
		req.Symbol,
		string(req.Timeframe),
		fmt.Sprint(req.Start.UnixMilli()),
		fmt.Sprint(req.End.UnixMilli()),
	}, ":")
}

func (c *CachedSource) Load(ctx context.Context, req Request) ([]signal.Bar, error) {
	key := CacheKey(req)
	raw, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var bars []signal.Bar
		if err := json.Unmarshal(raw, &bars); err == nil {
			padded, _ := PadGrid(bars, req)
			c.log.Debug().Str("key", key).Int("bars", len(bars)).Msg("price cache hit")
			return padded, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, ErrCacheMiss):
		c.log.Warn().Err(err).Str("key", key).Msg("price cache unavailable")
	}

	bars, err := c.next.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	reported := make([]signal.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Missing {
			reported = append(reported, b)
		}
	}
	payload, err := json.Marshal(reported)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.kv.Set(ctx, key, payload, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("price cache write failed")
	}
	return bars, nil
}
