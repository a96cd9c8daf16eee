package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"statarb-go/internal/backtest"
)

// DirName follows R<runtime>.S<first period>.E<last period>.
func DirName(runtime, start, end time.Time) string {
	return strings.Join([]string{
		"R" + runtime.Format("20060102.150405"),
		"S" + start.UTC().Format("20060102"),
		"E" + end.UTC().Format("20060102"),
	}, ".")
}

// Write creates the run directory under root and writes every table as CSV,
// plus periods.jsonl when withJSONL is set. It returns the run directory.
func Write(root string, res *backtest.Result, tables Tables, withJSONL bool) (string, error) {
	if len(res.Periods) == 0 {
		return "", fmt.Errorf("report: result has no periods")
	}
	first, last := res.Periods[0].Ts, res.Periods[len(res.Periods)-1].Ts
	dir := filepath.Join(root, DirName(res.StartedAt, first, last))
	if err := WriteCSV(dir, tables); err != nil {
		return "", err
	}
	if withJSONL {
		names := make([]string, len(res.Plan.Tiers))
		for i, tier := range res.Plan.Tiers {
			names[i] = tier.Name
		}
		rec, err := NewPeriodRecorder(filepath.Join(dir, "periods.jsonl"), names...)
		if err != nil {
			return "", fmt.Errorf("report: %w", err)
		}
		for _, p := range res.Periods {
			if err := rec.Record(res.ID.String(), p); err != nil {
				rec.Close()
				return "", fmt.Errorf("report: record period: %w", err)
			}
		}
		if err := rec.Close(); err != nil {
			return "", fmt.Errorf("report: %w", err)
		}
	}
	return dir, nil
}

// WriteCSV writes each table to <dir>/<name>.csv.
func WriteCSV(dir string, tables Tables) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create dir: %w", err)
	}
	for _, t := range tables.All() {
		if err := writeTable(filepath.Join(dir, t.Name+".csv"), t); err != nil {
			return fmt.Errorf("report: write %s: %w", t.Name, err)
		}
	}
	return nil
}

func writeTable(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
