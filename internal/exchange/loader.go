// Package exchange hosts historical price loaders for centralized venues.
package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"statarb-go/internal/metrics"
	"statarb-go/internal/signal"
)

const (
	// ProviderStub synthesizes deterministic bars (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderREST pages public kline endpoints of each venue.
	ProviderREST = "rest"
	// ProviderCSV reads previously exported bars from disk.
	ProviderCSV = "csv"
)

const (
	VenueBinance = "binance"
	VenueOKX     = "okx"
	VenueBybit   = "bybit"
)

// Request selects one venue's bars over the inclusive range [Start, End].
type Request struct {
	Venue     string
	Symbol    string
	Timeframe signal.Timeframe
	Start     time.Time
	End       time.Time
}

// Source returns bars padded to the complete grid of the request, ordered by time.
type Source interface {
	Load(ctx context.Context, req Request) ([]signal.Bar, error)
}

// Loader dispatches requests to the configured provider.
type Loader struct {
	provider  string
	log       zerolog.Logger
	client    *http.Client
	baseURLs  map[string]string
	csvDir    string
	pageLimit int
	retries   int
	backoff   time.Duration
}

// Option configures Loader construction parameters.
type Option func(*Loader)

const (
	defaultTimeout   = 10 * time.Second
	defaultPageLimit = 1000
	defaultRetries   = 3
	defaultBackoff   = 500 * time.Millisecond
)

// WithHTTPClient overrides the client used by REST providers.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithBaseURL points a venue at a different REST host (testnets, proxies, fixtures).
func WithBaseURL(venue, baseURL string) Option {
	return func(l *Loader) {
		if baseURL != "" {
			l.baseURLs[strings.ToLower(venue)] = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithCSVDir sets the directory read by the CSV provider.
func WithCSVDir(dir string) Option {
	return func(l *Loader) { l.csvDir = dir }
}

// WithPageLimit caps bars per request; venues clamp it to their own maximum.
func WithPageLimit(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.pageLimit = n
		}
	}
}

// WithRetries sets how many attempts a throttled or failing request gets.
func WithRetries(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.retries = n
		}
	}
}

// WithBackoff sets the initial delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.backoff = d
		}
	}
}

// NewLoader constructs a loader backed by the requested provider.
func NewLoader(provider string, log zerolog.Logger, opts ...Option) *Loader {
	if provider == "" {
		provider = ProviderStub
	}
	l := &Loader{
		provider:  strings.ToLower(provider),
		log:       log,
		client:    &http.Client{Timeout: defaultTimeout},
		baseURLs:  make(map[string]string),
		pageLimit: defaultPageLimit,
		retries:   defaultRetries,
		backoff:   defaultBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches raw bars from the provider and pads them to the request grid.
func (l *Loader) Load(ctx context.Context, req Request) ([]signal.Bar, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.Venue = strings.ToLower(req.Venue)

	var (
		raw []signal.Bar
		err error
	)
	switch l.provider {
	case ProviderREST:
		raw, err = l.fetch(ctx, req)
	case ProviderCSV:
		raw, err = l.readCSV(req)
	case ProviderStub:
		raw = synthesize(req)
	default:
		return nil, fmt.Errorf("unknown price provider %q", l.provider)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", req.Venue, req.Symbol, err)
	}

	bars, missing := PadGrid(raw, req)
	metrics.BarsLoaded.WithLabelValues(req.Venue).Add(float64(len(bars) - len(missing)))
	if len(missing) > 0 {
		metrics.BarsMissing.WithLabelValues(req.Venue).Add(float64(len(missing)))
		l.log.Warn().
			Str("venue", req.Venue).
			Str("symbol", req.Symbol).
			Int("missing", len(missing)).
			Time("first_missing", missing[0]).
			Msg("missing price data detected")
	}
	l.log.Info().Str("provider", l.provider).Str("venue", req.Venue).Str("symbol", req.Symbol).Int("bars", len(bars)).Msg("loaded price")
	return bars, nil
}

func (l *Loader) fetch(ctx context.Context, req Request) ([]signal.Bar, error) {
	switch req.Venue {
	case VenueBinance:
		return l.fetchBinance(ctx, req)
	case VenueOKX:
		return l.fetchOKX(ctx, req)
	case VenueBybit:
		return l.fetchBybit(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported venue %q", req.Venue)
	}
}

func (l *Loader) baseURL(venue, fallback string) string {
	if u, ok := l.baseURLs[venue]; ok {
		return u
	}
	return fallback
}

func (l *Loader) limit(venueMax int) int {
	if l.pageLimit > venueMax {
		return venueMax
	}
	return l.pageLimit
}

func (r Request) validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	if r.Venue == "" {
		return fmt.Errorf("venue required")
	}
	if r.Timeframe.Duration() <= 0 {
		return fmt.Errorf("unsupported timeframe %q", r.Timeframe)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("end %s is before start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}
