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
	okxBaseURL  = "https://www.okx.com"
	okxMaxLimit = 100
)

// okx aligns daily and multi-hour bars to Hong Kong time unless the utc variant is used.
var okxBars = map[signal.Timeframe]string{
	"1m":  "1m",
	"3m":  "3m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1H",
	"2h":  "2H",
	"4h":  "4H",
	"6h":  "6Hutc",
	"12h": "12Hutc",
	"1d":  "1Dutc",
}

type okxResponse struct {
	Code string              `json:"code"`
	Msg  string              `json:"msg"`
	Data [][]json.RawMessage `json:"data"`
}

func okxInstrument(m Market) string {
	switch {
	case m.Inverse():
		return m.Base + "-USD-SWAP"
	case m.Perpetual():
		return m.Base + "-" + m.Quote + "-SWAP"
	default:
		return m.Base + "-" + m.Quote
	}
}

// fetchOKX pages backward from End; history-candles returns newest first and
// "after" selects candles strictly older than the given timestamp.
func (l *Loader) fetchOKX(ctx context.Context, req Request) ([]signal.Bar, error) {
	m, err := ParseMarket(req.Symbol)
	if err != nil {
		return nil, err
	}
	bar, ok := okxBars[req.Timeframe]
	if !ok {
		return nil, fmt.Errorf("okx does not offer %s bars", req.Timeframe)
	}
	endpoint := l.baseURL(VenueOKX, okxBaseURL) + "/api/v5/market/history-candles"
	limit := l.limit(okxMaxLimit)

	var out []signal.Bar
	after := req.End.UnixMilli() + 1
	for {
		q := url.Values{}
		q.Set("instId", okxInstrument(m))
		q.Set("bar", bar)
		q.Set("after", strconv.FormatInt(after, 10))
		q.Set("limit", strconv.Itoa(limit))

		var resp okxResponse
		if err := l.getJSON(ctx, endpoint, q, &resp); err != nil {
			return nil, fmt.Errorf("okx candles: %w", err)
		}
		if resp.Code != "0" {
			return nil, fmt.Errorf("okx candles: code %s: %s", resp.Code, resp.Msg)
		}
		if len(resp.Data) == 0 {
			break
		}
		oldest := after
		for _, row := range resp.Data {
			ts, v, err := parseRow(row)
			if err != nil {
				return nil, fmt.Errorf("okx candles: %w", err)
			}
			if ms := ts.UnixMilli(); ms < oldest {
				oldest = ms
			}
			if ts.Before(req.Start) || ts.After(req.End) {
				continue
			}
			out = append(out, barOf(req, ts, v))
		}
		if oldest >= after || oldest <= req.Start.UnixMilli() || len(resp.Data) < limit {
			break
		}
		after = oldest
	}
	reverse(out)
	return out, nil
}

func reverse(bars []signal.Bar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
