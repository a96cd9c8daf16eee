package exchange

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"statarb-go/internal/signal"
)

var csvHeader = []string{"ts", "open", "high", "low", "close", "volume"}

// CSVPath is where the csv provider looks for one venue's bars.
func CSVPath(dir string, req Request) string {
	name := fmt.Sprintf("%s_%s_%s.csv", strings.ToLower(req.Venue), sanitize(req.Symbol), req.Timeframe)
	return filepath.Join(dir, name)
}

func sanitize(symbol string) string {
	return strings.NewReplacer("/", "-", ":", "-", " ", "").Replace(symbol)
}

func (l *Loader) readCSV(req Request) ([]signal.Bar, error) {
	if l.csvDir == "" {
		return nil, errors.New("csv provider requires a directory")
	}
	f, err := os.Open(CSVPath(l.csvDir, req))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBars(f, req)
}

// ReadBars parses rows of ts,open,high,low,close,volume. The ts column accepts
// RFC3339 or unix milliseconds; a header row is skipped.
func ReadBars(r io.Reader, req Request) ([]signal.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true
	var out []signal.Bar
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(rec[0], csvHeader[0]) {
			continue
		}
		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var v [5]float64
		for i := range v {
			if v[i], err = strconv.ParseFloat(rec[i+1], 64); err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, csvHeader[i+1], err)
			}
		}
		out = append(out, barOf(req, ts, v))
	}
}

// WriteBars exports non-gap bars in the layout ReadBars accepts.
func WriteBars(w io.Writer, bars []signal.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if b.Missing {
			continue
		}
		rec := []string{
			b.Ts.UTC().Format(time.RFC3339),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
