package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"statarb-go/internal/exchange"
	"statarb-go/internal/execution"
	"statarb-go/internal/metrics"
	"statarb-go/internal/risk"
	"statarb-go/internal/signal"
	"statarb-go/internal/strategy"
)

// Result carries every intermediate series a report needs.
type Result struct {
	ID          uuid.UUID
	Plan        Plan
	StartedAt   time.Time
	Elapsed     time.Duration
	Strategy    string
	Panel       *signal.Panel // annotated by the strategy
	Diagnostics strategy.Diagnostics
	Periods     []execution.Period
	NAV         []float64
	Drawdowns   []risk.Episode
	Summary     risk.Summary
	Actions     map[execution.Action]int
}

// Runner executes plans against a price source.
type Runner struct {
	source exchange.Source
	log    zerolog.Logger
	now    func() time.Time
}

// NewRunner builds a runner that loads prices from source.
func NewRunner(source exchange.Source, log zerolog.Logger) *Runner {
	return &Runner{source: source, log: log, now: time.Now}
}

// Run loads every venue, generates signals, books fees and summarizes the equity curve.
// A strategy that never triggers stops the run with strategy.ErrNoSignal.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Result, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}
	strat, err := strategy.Build(plan.Mode, plan.Params)
	if err != nil {
		return nil, err
	}
	res := &Result{ID: uuid.New(), Plan: plan, StartedAt: r.now(), Strategy: strat.Name()}
	log := r.log.With().Str("run_id", res.ID.String()).Str("symbol", plan.Symbol).Str("strategy", strat.Name()).Logger()
	log.Info().Strs("venues", plan.Venues).Str("timeframe", plan.Timeframe.String()).
		Time("start", plan.Start).Time("end", plan.End).Msg("backtest started")

	err = r.run(ctx, plan, strat, res, log)
	res.Elapsed = r.now().Sub(res.StartedAt)
	metrics.RunSeconds.Observe(res.Elapsed.Seconds())
	metrics.RunsTotal.WithLabelValues(strat.Name(), outcome(err)).Inc()
	if err != nil {
		log.Error().Err(err).Msg("backtest failed")
		return nil, err
	}
	log.Info().
		Float64("annual_return", res.Summary.AnnualReturn).
		Float64("annual_sharpe", res.Summary.AnnualSharpe).
		Float64("max_drawdown", res.Summary.MaxDrawdown).
		Dur("elapsed", res.Elapsed).
		Msg("backtest finished")
	return res, nil
}

func (r *Runner) run(ctx context.Context, plan Plan, strat strategy.Strategy, res *Result, log zerolog.Logger) error {
	legs, err := r.loadVenues(ctx, plan)
	if err != nil {
		return err
	}
	var aux []signal.Bar
	if len(legs) > signal.Auxiliary {
		aux = legs[signal.Auxiliary]
	}
	panel, err := signal.Join(plan.Symbol, legs[signal.Primary], legs[signal.Secondary], aux)
	if err != nil {
		return fmt.Errorf("join venues: %w", err)
	}
	log.Debug().Int("rows", len(panel.Rows)).Msg("joined price panel")

	annotated, err := strat.Generate(panel)
	if err != nil {
		return fmt.Errorf("generate signal: %w", err)
	}
	res.Panel = annotated
	res.Diagnostics = strategy.Describe(strat.Name(), annotated)
	metrics.TriggerRatio.WithLabelValues(strat.Name()).Set(res.Diagnostics.Ratio())
	if err := res.Diagnostics.Evaluate(log); err != nil {
		return err
	}

	periods, err := execution.Apply(annotated, plan.Fee, plan.Tiers)
	if err != nil {
		return fmt.Errorf("apply fees: %w", err)
	}
	res.Periods = periods
	res.Actions = execution.CountActions(periods)
	for action, n := range res.Actions {
		metrics.ActionsTotal.WithLabelValues(strat.Name(), action.String()).Add(float64(n))
	}

	adj := execution.AdjustedReturns(periods)
	res.NAV = risk.Equity(adj)
	res.Drawdowns, err = risk.TopDrawdowns(res.NAV, annotated.Times(), plan.TopN)
	if err != nil {
		return fmt.Errorf("drawdowns: %w", err)
	}
	res.Summary, err = risk.Summarize(adj, plan.Timeframe.PeriodsPerYear(), res.Drawdowns)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	return nil
}

// loadVenues fetches each leg on its own goroutine; results keep plan venue order.
func (r *Runner) loadVenues(ctx context.Context, plan Plan) ([][]signal.Bar, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]signal.Bar, len(plan.Venues))
	errs := make([]error, len(plan.Venues))
	var wg sync.WaitGroup
	for i, venue := range plan.Venues {
		wg.Add(1)
		go func(i int, venue string) {
			defer wg.Done()
			bars, err := r.source.Load(ctx, exchange.Request{
				Venue:     venue,
				Symbol:    plan.Symbol,
				Timeframe: plan.Timeframe,
				Start:     plan.Start,
				End:       plan.End,
			})
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			out[i] = bars
		}(i, venue)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, strategy.ErrNoSignal):
		return "no_signal"
	default:
		return "error"
	}
}
