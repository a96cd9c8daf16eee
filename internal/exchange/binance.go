package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"statarb-go/internal/signal"
)

const (
	binanceSpotURL    = "https://api.binance.com"
	binanceLinearURL  = "https://fapi.binance.com"
	binanceInverseURL = "https://dapi.binance.com"
	binanceMaxLimit   = 1500
)

// binanceEndpoint resolves the kline path and venue symbol for a unified market.
func binanceEndpoint(m Market) (host, path, symbol string) {
	switch {
	case m.Inverse():
		return binanceInverseURL, "/dapi/v1/klines", m.Base + "USD_PERP"
	case m.Perpetual():
		return binanceLinearURL, "/fapi/v1/klines", m.Concat()
	default:
		return binanceSpotURL, "/api/v3/klines", m.Concat()
	}
}

// fetchBinance pages forward from Start; klines come back oldest first.
func (l *Loader) fetchBinance(ctx context.Context, req Request) ([]signal.Bar, error) {
	m, err := ParseMarket(req.Symbol)
	if err != nil {
		return nil, err
	}
	host, path, symbol := binanceEndpoint(m)
	endpoint := l.baseURL(VenueBinance, host) + path
	limit := l.limit(binanceMaxLimit)
	if !m.Perpetual() && limit > 1000 {
		limit = 1000
	}
	step := req.Timeframe.Duration()

	var out []signal.Bar
	cursor := req.Start.UTC()
	for !cursor.After(req.End) {
		q := url.Values{}
		q.Set("symbol", symbol)
		q.Set("interval", string(req.Timeframe))
		q.Set("startTime", strconv.FormatInt(cursor.UnixMilli(), 10))
		q.Set("endTime", strconv.FormatInt(req.End.UnixMilli(), 10))
		q.Set("limit", strconv.Itoa(limit))

		var rows [][]json.RawMessage
		if err := l.getJSON(ctx, endpoint, q, &rows); err != nil {
			return nil, fmt.Errorf("binance klines: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		prev := cursor
		for _, row := range rows {
			ts, v, err := parseRow(row)
			if err != nil {
				return nil, fmt.Errorf("binance klines: %w", err)
			}
			if ts.Before(req.Start) || ts.After(req.End) {
				continue
			}
			out = append(out, barOf(req, ts, v))
			if next := ts.Add(step); next.After(cursor) {
				cursor = next
			}
		}
		if len(rows) < limit || !cursor.After(prev) {
			break
		}
	}
	return out, nil
}

func barOf(req Request, ts time.Time, v [5]float64) signal.Bar {
	return signal.Bar{
		Symbol: req.Symbol,
		Venue:  req.Venue,
		Ts:     ts,
		Open:   v[0],
		High:   v[1],
		Low:    v[2],
		Close:  v[3],
		Volume: v[4],
	}
}
