package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const maxBackoff = 30 * time.Second

// statusError marks responses worth retrying.
type statusError struct {
	code int
}

func (e statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

func (e statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

// getJSON decodes a GET response into out, retrying throttled and server errors with backoff.
func (l *Loader) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	full := endpoint
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	backoff := l.backoff
	var err error
	for attempt := 1; attempt <= l.retries; attempt++ {
		err = l.getOnce(ctx, full, out)
		if err == nil {
			return nil
		}
		se, ok := err.(statusError)
		if !ok || !se.retryable() || attempt == l.retries {
			return err
		}
		l.log.Warn().Err(err).Str("url", endpoint).Int("attempt", attempt).Msg("price request failed, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
	return err
}

func (l *Loader) getOnce(ctx context.Context, full string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError{code: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseRow decodes a kline row of [ts, open, high, low, close, volume, ...].
// Venues encode the timestamp as a number or a string and prices as strings.
func parseRow(row []json.RawMessage) (ts time.Time, ohlcv [5]float64, err error) {
	if len(row) < 6 {
		return ts, ohlcv, fmt.Errorf("kline row has %d fields", len(row))
	}
	ms, err := rawFloat(row[0])
	if err != nil {
		return ts, ohlcv, fmt.Errorf("kline time: %w", err)
	}
	ts = time.UnixMilli(int64(ms)).UTC()
	for i := 0; i < 5; i++ {
		if ohlcv[i], err = rawFloat(row[i+1]); err != nil {
			return ts, ohlcv, fmt.Errorf("kline field %d: %w", i+1, err)
		}
	}
	return ts, ohlcv, nil
}

func rawFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}
