package report

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"statarb-go/internal/execution"
)

// PeriodLine is the JSONL shape of one accounting period. Undefined values encode as null.
type PeriodLine struct {
	RunID     string             `json:"run_id"`
	Ts        time.Time          `json:"ts"`
	Sides     []int              `json:"sides"`
	Action    string             `json:"action"`
	Ret       *float64           `json:"ret"`
	AdjRet    *float64           `json:"adj_ret"`
	RetDiff   *float64           `json:"ret_diff"`
	IdealSide int                `json:"ideal_primary_side"`
	TierFees  map[string]float64 `json:"tier_fees,omitempty"`
}

// PeriodRecorder appends periods as JSON lines for later analysis.
type PeriodRecorder struct {
	mu    sync.Mutex
	file  *os.File
	enc   *json.Encoder
	tiers []string
}

// NewPeriodRecorder creates/opens the target file; tier names label TierFees in order.
func NewPeriodRecorder(path string, tiers ...string) (*PeriodRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &PeriodRecorder{
		file:  file,
		enc:   json.NewEncoder(file),
		tiers: tiers,
	}, nil
}

// Record writes a single period to the underlying JSONL file.
func (r *PeriodRecorder) Record(runID string, p execution.Period) error {
	line := PeriodLine{
		RunID:     runID,
		Ts:        p.Ts.UTC(),
		Sides:     p.Sides,
		Action:    p.Action.String(),
		Ret:       nullable(p.Ret),
		AdjRet:    nullable(p.AdjRet),
		RetDiff:   nullable(p.RetDiff),
		IdealSide: p.IdealSide,
	}
	if len(r.tiers) > 0 {
		line.TierFees = make(map[string]float64, len(r.tiers))
		for i, name := range r.tiers {
			if i < len(p.TierFees) && finite(p.TierFees[i]) {
				line.TierFees[name] = p.TierFees[i]
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(line)
}

// Close flushes and closes the file handle.
func (r *PeriodRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
