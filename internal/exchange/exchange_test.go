package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"statarb-go/internal/signal"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func minuteReq(venue string, bars int) Request {
	return Request{
		Venue:     venue,
		Symbol:    "BTC/USDT:USDT",
		Timeframe: "1m",
		Start:     t0,
		End:       t0.Add(time.Duration(bars-1) * time.Minute),
	}
}

func TestGridIsInclusiveAndAligned(t *testing.T) {
	req := Request{Timeframe: "15m", Start: t0.Add(time.Minute), End: t0.Add(time.Hour)}
	grid := Grid(req)
	if len(grid) != 4 {
		t.Fatalf("expected 4 grid points, got %d", len(grid))
	}
	if !grid[0].Equal(t0.Add(15*time.Minute)) || !grid[3].Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected grid bounds %s..%s", grid[0], grid[3])
	}
}

func TestPadGridFillsAndDedupes(t *testing.T) {
	req := minuteReq("okx", 4)
	raw := []signal.Bar{
		{Ts: t0.Add(3 * time.Minute), Open: 4, Close: 4},
		{Ts: t0, Open: 1, Close: 1},
		{Ts: t0, Open: 9, Close: 9},
		{Ts: t0.Add(2 * time.Minute), Open: 3, Close: 3},
	}
	bars, missing := PadGrid(raw, req)
	if len(bars) != 4 {
		t.Fatalf("expected 4 bars, got %d", len(bars))
	}
	if len(missing) != 1 || !missing[0].Equal(t0.Add(time.Minute)) {
		t.Fatalf("unexpected missing %v", missing)
	}
	if bars[0].Open != 1 {
		t.Fatalf("expected first duplicate to win, got %v", bars[0].Open)
	}
	if !bars[1].Missing || bars[1].Venue != "okx" {
		t.Fatalf("expected gap bar at index 1, got %+v", bars[1])
	}
	if bars[3].Symbol != req.Symbol {
		t.Fatalf("expected symbol stamped on reported bars")
	}
}

func TestParseMarket(t *testing.T) {
	m, err := ParseMarket("btc/usdt:usdt")
	if err != nil {
		t.Fatalf("ParseMarket returned error: %v", err)
	}
	if !m.Perpetual() || m.Inverse() || m.Concat() != "BTCUSDT" {
		t.Fatalf("unexpected market %+v", m)
	}
	if okxInstrument(m) != "BTC-USDT-SWAP" {
		t.Fatalf("unexpected okx instrument %s", okxInstrument(m))
	}
	inv, _ := ParseMarket("BTC/USD:BTC")
	if cat, sym := bybitInstrument(inv); cat != "inverse" || sym != "BTCUSD" {
		t.Fatalf("unexpected bybit inverse mapping %s %s", cat, sym)
	}
	if _, err := ParseMarket("BTCUSDT"); err == nil {
		t.Fatalf("expected error for symbol without quote")
	}
}

func TestLoadRejectsInvertedRange(t *testing.T) {
	l := NewLoader(ProviderStub, zerolog.Nop())
	req := minuteReq("binance", 2)
	req.Start, req.End = req.End, req.Start
	if _, err := l.Load(context.Background(), req); err == nil {
		t.Fatalf("expected error for end before start")
	}
}

func TestBinancePagesForward(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/fapi/v1/klines" || r.URL.Query().Get("symbol") != "BTCUSDT" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		end, _ := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var rows [][]any
		for ms := start; ms <= end && len(rows) < limit; ms += time.Minute.Milliseconds() {
			if ms == t0.Add(2*time.Minute).UnixMilli() {
				continue
			}
			px := fmt.Sprint(100 + (ms-t0.UnixMilli())/60000)
			rows = append(rows, []any{ms, px, px, px, px, "1", ms + 59999, "0", 1, "0", "0", "0"})
		}
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	l := NewLoader(ProviderREST, zerolog.Nop(), WithBaseURL(VenueBinance, srv.URL), WithPageLimit(2))
	bars, err := l.Load(context.Background(), minuteReq(VenueBinance, 5))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(bars) != 5 {
		t.Fatalf("expected 5 padded bars, got %d", len(bars))
	}
	if !bars[2].Missing || bars[4].Open != 104 {
		t.Fatalf("unexpected bars %+v", bars)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected multiple pages, got %d calls", atomic.LoadInt32(&calls))
	}
}

func TestOKXPagesBackward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("instId") != "BTC-USDT-SWAP" || r.URL.Query().Get("bar") != "1m" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows := [][]string{}
		step := time.Minute.Milliseconds()
		for ms := ((after - 1) / step) * step; ms >= t0.Add(-time.Hour).UnixMilli() && len(rows) < limit; ms -= step {
			px := fmt.Sprint(100 + (ms-t0.UnixMilli())/60000)
			rows = append(rows, []string{fmt.Sprint(ms), px, px, px, px, "1", "1", "1", "1"})
		}
		json.NewEncoder(w).Encode(map[string]any{"code": "0", "msg": "", "data": rows})
	}))
	defer srv.Close()

	l := NewLoader(ProviderREST, zerolog.Nop(), WithBaseURL(VenueOKX, srv.URL), WithPageLimit(3))
	bars, err := l.Load(context.Background(), minuteReq(VenueOKX, 7))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(bars) != 7 {
		t.Fatalf("expected 7 bars, got %d", len(bars))
	}
	for i, b := range bars {
		if b.Missing || b.Open != float64(100+i) {
			t.Fatalf("bar %d unexpected %+v", i, b)
		}
	}
}

func TestBybitPagesBackward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("category") != "linear" || q.Get("interval") != "1" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		start, _ := strconv.ParseInt(q.Get("start"), 10, 64)
		end, _ := strconv.ParseInt(q.Get("end"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		step := time.Minute.Milliseconds()
		rows := [][]string{}
		for ms := (end / step) * step; ms >= start && len(rows) < limit; ms -= step {
			px := fmt.Sprint(100 + (ms-t0.UnixMilli())/60000)
			rows = append(rows, []string{fmt.Sprint(ms), px, px, px, px, "1", "1"})
		}
		body := map[string]any{"retCode": 0, "retMsg": "OK", "result": map[string]any{"category": "linear", "list": rows}}
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	l := NewLoader(ProviderREST, zerolog.Nop(), WithBaseURL(VenueBybit, srv.URL), WithPageLimit(4))
	bars, err := l.Load(context.Background(), minuteReq(VenueBybit, 10))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(bars) != 10 || bars[0].Open != 100 || bars[9].Open != 109 {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

func TestRESTRetriesThrottled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[[1709251200000,"1","1","1","1","1"]]`))
	}))
	defer srv.Close()

	l := NewLoader(ProviderREST, zerolog.Nop(), WithBaseURL(VenueBinance, srv.URL), WithBackoff(time.Millisecond))
	bars, err := l.Load(context.Background(), minuteReq(VenueBinance, 1))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(bars) != 1 || bars[0].Missing {
		t.Fatalf("unexpected bars %+v", bars)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected one retry, got %d calls", n)
	}
}

func TestRESTDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	l := NewLoader(ProviderREST, zerolog.Nop(), WithBaseURL(VenueBinance, srv.URL), WithBackoff(time.Millisecond))
	if _, err := l.Load(context.Background(), minuteReq(VenueBinance, 1)); err == nil {
		t.Fatalf("expected error for 400 response")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestStubIsDeterministicAndShared(t *testing.T) {
	l := NewLoader(ProviderStub, zerolog.Nop())
	ctx := context.Background()
	a, err := l.Load(ctx, minuteReq(VenueBinance, 200))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	b, _ := l.Load(ctx, minuteReq(VenueBinance, 200))
	o, _ := l.Load(ctx, minuteReq(VenueOKX, 200))
	if len(a) != 200 || len(o) != 200 {
		t.Fatalf("expected full grids, got %d and %d", len(a), len(o))
	}
	for i := range a {
		if a[i].Missing != b[i].Missing || (!a[i].Missing && a[i].Open != b[i].Open) {
			t.Fatalf("stub not deterministic at %d", i)
		}
	}
	for i := range a {
		if a[i].Missing || o[i].Missing {
			continue
		}
		if a[i].Open == o[i].Open {
			t.Fatalf("expected venue basis to separate prices at %d", i)
		}
		if rel := a[i].Open/o[i].Open - 1; rel > 0.01 || rel < -0.01 {
			t.Fatalf("venues drifted apart at %d: %v", i, rel)
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	req := minuteReq(VenueOKX, 3)
	src := []signal.Bar{
		{Ts: t0, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		signal.GapBar(req.Symbol, req.Venue, t0.Add(time.Minute)),
		{Ts: t0.Add(2 * time.Minute), Open: 1.5, High: 1.5, Low: 1.5, Close: 1.5, Volume: 1},
	}
	var buf bytes.Buffer
	if err := WriteBars(&buf, src); err != nil {
		t.Fatalf("WriteBars returned error: %v", err)
	}
	path := CSVPath(dir, req)
	if filepath.Base(path) != "okx_BTC-USDT-USDT_1m.csv" {
		t.Fatalf("unexpected csv name %s", path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	l := NewLoader(ProviderCSV, zerolog.Nop(), WithCSVDir(dir))
	bars, err := l.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(bars) != 3 || !bars[1].Missing || bars[0].Close != 1.5 || bars[2].Volume != 1 {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

type memKV struct {
	data map[string][]byte
	sets int
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.sets++
	m.data[key] = value
	return nil
}

type countingSource struct {
	inner Source
	calls int
}

func (c *countingSource) Load(ctx context.Context, req Request) ([]signal.Bar, error) {
	c.calls++
	return c.inner.Load(ctx, req)
}

func TestCachedSourceServesRepeats(t *testing.T) {
	kv := &memKV{data: map[string][]byte{}}
	inner := &countingSource{inner: NewLoader(ProviderStub, zerolog.Nop())}
	cached := NewCachedSource(inner, kv, time.Hour, zerolog.Nop())
	req := minuteReq(VenueBybit, 300)

	first, err := cached.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	second, err := cached.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("cached Load returned error: %v", err)
	}
	if inner.calls != 1 || kv.sets != 1 {
		t.Fatalf("expected one upstream load and one write, got %d and %d", inner.calls, kv.sets)
	}
	if len(first) != len(second) {
		t.Fatalf("cache changed grid length %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Missing != second[i].Missing || (!first[i].Missing && first[i].Close != second[i].Close) {
			t.Fatalf("cached bar %d differs", i)
		}
	}
}
