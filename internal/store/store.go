// Package store persists finished backtests to Postgres so runs can be compared over time.
package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"statarb-go/internal/backtest"
)

// RunRecord is one backtest row. Undefined metrics are stored as NULL.
type RunRecord struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	StartedAt    time.Time `gorm:"index;not null"`
	ElapsedMs    int64     `gorm:"not null"`
	Symbol       string    `gorm:"size:32;index;not null"`
	Timeframe    string    `gorm:"size:8;not null"`
	Venues       string    `gorm:"size:64;not null"`
	Strategy     string    `gorm:"size:32;index;not null"`
	RangeStart   time.Time `gorm:"not null"`
	RangeEnd     time.Time `gorm:"not null"`
	Fee          float64   `gorm:"not null"`
	Periods      int       `gorm:"not null"`
	Triggered    int       `gorm:"not null"`
	AnnualReturn *float64
	AnnualStd    *float64
	AnnualSharpe *float64
	WinRatio     *float64
	MaxDrawdown  *float64
	Drawdowns    []DrawdownRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// DrawdownRecord is one ranked episode of a run.
type DrawdownRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	RunID        string    `gorm:"type:uuid;index;not null"`
	Rank         int       `gorm:"not null"`
	PeakTime     time.Time `gorm:"not null"`
	TroughTime   time.Time `gorm:"not null"`
	RecoveryTime *time.Time
	MaxDD        float64 `gorm:"not null"`
}

func (RunRecord) TableName() string      { return "backtest_runs" }
func (DrawdownRecord) TableName() string { return "backtest_drawdowns" }

// Store wraps the gorm connection.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the run tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&RunRecord{}, &DrawdownRecord{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveRun writes the run and its drawdowns in one transaction.
func (s *Store) SaveRun(ctx context.Context, res *backtest.Result) error {
	run := Records(res)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("save run %s: %w", run.ID, err)
		}
		return nil
	})
}

// Recent returns the latest runs for symbol, newest first, with their drawdowns.
func (s *Store) Recent(ctx context.Context, symbol string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	var runs []RunRecord
	err := s.db.WithContext(ctx).
		Preload("Drawdowns", func(db *gorm.DB) *gorm.DB { return db.Order("rank") }).
		Where("symbol = ?", symbol).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// MarshalZerologObject logs the run headline; NULL metrics are omitted.
func (r RunRecord) MarshalZerologObject(e *zerolog.Event) {
	e.Str("run_id", r.ID).
		Time("started_at", r.StartedAt).
		Str("strategy", r.Strategy).
		Str("venues", r.Venues).
		Int("periods", r.Periods).
		Int("triggered", r.Triggered).
		Int("drawdowns", len(r.Drawdowns))
	for name, v := range map[string]*float64{
		"annual_return": r.AnnualReturn,
		"annual_sharpe": r.AnnualSharpe,
		"max_drawdown":  r.MaxDrawdown,
	} {
		if v != nil {
			e.Float64(name, *v)
		}
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Records maps a result onto its rows; gorm creates the drawdown associations with the run.
func Records(res *backtest.Result) RunRecord {
	run := RunRecord{
		ID:           res.ID.String(),
		StartedAt:    res.StartedAt.UTC(),
		ElapsedMs:    res.Elapsed.Milliseconds(),
		Symbol:       res.Plan.Symbol,
		Timeframe:    res.Plan.Timeframe.String(),
		Venues:       strings.Join(res.Plan.Venues, ","),
		Strategy:     res.Strategy,
		RangeStart:   res.Plan.Start.UTC(),
		RangeEnd:     res.Plan.End.UTC(),
		Fee:          res.Plan.Fee,
		Periods:      res.Summary.Periods,
		Triggered:    res.Diagnostics.Triggered,
		AnnualReturn: nullable(res.Summary.AnnualReturn),
		AnnualStd:    nullable(res.Summary.AnnualStd),
		AnnualSharpe: nullable(res.Summary.AnnualSharpe),
		WinRatio:     nullable(res.Summary.WinRatio),
		MaxDrawdown:  nullable(res.Summary.MaxDrawdown),
	}
	for i, ep := range res.Drawdowns {
		dd := DrawdownRecord{
			RunID:      run.ID,
			Rank:       i + 1,
			PeakTime:   ep.PeakTime.UTC(),
			TroughTime: ep.TroughTime.UTC(),
			MaxDD:      ep.MaxDD,
		}
		if ep.RecoveryTime != nil {
			rt := ep.RecoveryTime.UTC()
			dd.RecoveryTime = &rt
		}
		run.Drawdowns = append(run.Drawdowns, dd)
	}
	return run
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
