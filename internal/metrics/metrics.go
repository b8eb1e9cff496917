// Package metrics provides Prometheus instrumentation for the keeper.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts keeper ticks by outcome (skipped_gas, in_range, created, removed, failed, idle).
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binkeeper_ticks_total",
		Help: "Keeper ticks by outcome",
	}, []string{"outcome"})

	// TransitionsTotal counts state changes.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binkeeper_transitions_total",
		Help: "Managed state transitions",
	}, []string{"from", "to"})

	// AttemptFailures counts failed attempts inside the retry executor.
	AttemptFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binkeeper_retry_attempt_failures_total",
		Help: "Failed attempts of retried operations",
	}, []string{"op"})

	// Exhaustions counts operations that ran out of attempts.
	Exhaustions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binkeeper_retry_exhausted_total",
		Help: "Retried operations that exhausted their attempts",
	}, []string{"op"})

	// TxSubmitted counts confirmed transactions by label.
	TxSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binkeeper_tx_confirmed_total",
		Help: "Transactions confirmed on chain",
	}, []string{"label"})

	NativeBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "binkeeper_native_balance",
		Help: "Native gas asset balance of the wallet",
	})

	ActiveBin = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "binkeeper_active_bin",
		Help: "Last observed active bin id",
	})

	// Phase is 0 discovering, 1 no position, 2 has position.
	Phase = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "binkeeper_phase",
		Help: "Current managed state phase",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "binkeeper_tick_duration_seconds",
		Help:    "Keeper tick duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
