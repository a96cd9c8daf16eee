package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_loaded_total", Help: "Bars returned by venue loaders"},
		[]string{"venue"},
	)
	BarsMissing = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_missing_total", Help: "Grid slots padded because the venue had no bar"},
		[]string{"venue"},
	)
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "position_actions_total", Help: "Position transitions by action"},
		[]string{"strategy", "action"},
	)
	TriggerRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "signal_trigger_ratio", Help: "Share of panel rows on which the strategy traded"},
		[]string{"strategy"},
	)
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_runs_total", Help: "Backtest runs by outcome"},
		[]string{"strategy", "outcome"},
	)
	RunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "backtest_run_seconds", Help: "Wall time of a backtest run", Buckets: prometheus.ExponentialBuckets(0.05, 2, 12)},
	)
)

func init() {
	prometheus.MustRegister(BarsLoaded, BarsMissing, ActionsTotal, TriggerRatio, RunsTotal, RunSeconds)
}

// Router exposes /metrics and a liveness probe.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: Router()}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
