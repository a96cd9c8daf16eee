package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"statarb-go/internal/signal"
)

const (
	bybitBaseURL  = "https://api.bybit.com"
	bybitMaxLimit = 1000
)

var bybitIntervals = map[signal.Timeframe]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
}

type bybitResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string              `json:"category"`
		List     [][]json.RawMessage `json:"list"`
	} `json:"result"`
}

func bybitInstrument(m Market) (category, symbol string) {
	switch {
	case m.Inverse():
		return "inverse", m.Base + "USD"
	case m.Perpetual():
		return "linear", m.Concat()
	default:
		return "spot", m.Concat()
	}
}

// fetchBybit pages backward by moving the end bound below the oldest candle seen.
func (l *Loader) fetchBybit(ctx context.Context, req Request) ([]signal.Bar, error) {
	m, err := ParseMarket(req.Symbol)
	if err != nil {
		return nil, err
	}
	interval, ok := bybitIntervals[req.Timeframe]
	if !ok {
		return nil, fmt.Errorf("bybit does not offer %s bars", req.Timeframe)
	}
	category, symbol := bybitInstrument(m)
	endpoint := l.baseURL(VenueBybit, bybitBaseURL) + "/v5/market/kline"
	limit := l.limit(bybitMaxLimit)

	var out []signal.Bar
	end := req.End.UnixMilli()
	for end >= req.Start.UnixMilli() {
		q := url.Values{}
		q.Set("category", category)
		q.Set("symbol", symbol)
		q.Set("interval", interval)
		q.Set("start", strconv.FormatInt(req.Start.UnixMilli(), 10))
		q.Set("end", strconv.FormatInt(end, 10))
		q.Set("limit", strconv.Itoa(limit))

		var resp bybitResponse
		if err := l.getJSON(ctx, endpoint, q, &resp); err != nil {
			return nil, fmt.Errorf("bybit kline: %w", err)
		}
		if resp.RetCode != 0 {
			return nil, fmt.Errorf("bybit kline: code %d: %s", resp.RetCode, resp.RetMsg)
		}
		if len(resp.Result.List) == 0 {
			break
		}
		oldest := end + 1
		for _, row := range resp.Result.List {
			ts, v, err := parseRow(row)
			if err != nil {
				return nil, fmt.Errorf("bybit kline: %w", err)
			}
			if ms := ts.UnixMilli(); ms < oldest {
				oldest = ms
			}
			if ts.Before(req.Start) || ts.After(req.End) {
				continue
			}
			out = append(out, barOf(req, ts, v))
		}
		if oldest > end || len(resp.Result.List) < limit {
			break
		}
		end = oldest - 1
	}
	reverse(out)
	return out, nil
}
