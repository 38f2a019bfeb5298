// Package metrics exports simulation outcome counters.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jitscope/internal/model"
)

const (
	OutcomeProfitable   = "profitable"
	OutcomeUnprofitable = "unprofitable"
	OutcomeFailed       = "failed"
)

// Recorder counts estimate and preflight outcomes on its own registry.
type Recorder struct {
	registry   *prometheus.Registry
	estimates  *prometheus.CounterVec
	preflights *prometheus.CounterVec
	netProfit  prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jitscope_estimates_total",
			Help: "Fast estimates by outcome",
		}, []string{"outcome"}),
		preflights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jitscope_preflights_total",
			Help: "Preflight runs by outcome",
		}, []string{"outcome"}),
		netProfit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jitscope_net_profit_usd",
			Help:    "Net USD profit of successful preflights",
			Buckets: []float64{-100, -10, -1, 0, 1, 10, 100, 1000},
		}),
	}
	r.registry.MustRegister(r.estimates, r.preflights, r.netProfit)
	return r
}

// Registry exposes the recorder's registry for serving.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveFast(res model.FastResult) {
	r.estimates.WithLabelValues(outcome(res.Success, res.Profitable)).Inc()
}

func (r *Recorder) ObservePreflight(res model.PreflightResult) {
	r.preflights.WithLabelValues(outcome(res.Success, res.Profitable)).Inc()
	if res.Success {
		v, _ := res.NetProfitUSD.Float64()
		r.netProfit.Observe(v)
	}
}

func outcome(success, profitable bool) string {
	switch {
	case !success:
		return OutcomeFailed
	case profitable:
		return OutcomeProfitable
	default:
		return OutcomeUnprofitable
	}
}

// Serve runs /metrics and /healthz on addr until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	if addr == "" {
		log.Info("metrics disabled: empty addr")
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var h http.Handler
	if reg != nil {
		h = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		})
	} else {
		h = promhttp.Handler()
	}
	mux.Handle("/metrics", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("metrics server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown error", zap.Error(err))
		}
	}()
}
