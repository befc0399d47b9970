// Package metrics exposes the Prometheus collectors of the round engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine's collectors.
	Registry = prometheus.NewRegistry()

	roundTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wingo",
			Subsystem: "rounds",
			Name:      "transitions_total",
			Help:      "Round lifecycle transitions by mode and transition.",
		},
		[]string{"mode", "transition"},
	)

	advanceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wingo",
			Subsystem: "rounds",
			Name:      "advance_errors_total",
			Help:      "Failed advance calls by mode.",
		},
		[]string{"mode"},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wingo",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of scheduler ticks.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
	)

	wagersSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wingo",
			Subsystem: "settlement",
			Name:      "wagers_total",
			Help:      "Settled wagers by mode and result.",
		},
		[]string{"mode", "won"},
	)

	payouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wingo",
			Subsystem: "settlement",
			Name:      "payout_units_total",
			Help:      "Credited payouts in minor currency units.",
		},
		[]string{"mode"},
	)

	betsPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wingo",
			Subsystem: "bets",
			Name:      "placed_total",
			Help:      "Accepted bets by mode.",
		},
		[]string{"mode"},
	)
)

func init() {
	Registry.MustRegister(
		roundTransitions,
		advanceErrors,
		tickDuration,
		wagersSettled,
		payouts,
		betsPlaced,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordTransition(mode, transition string) {
	roundTransitions.WithLabelValues(mode, transition).Inc()
}

func RecordAdvanceError(mode string) {
	advanceErrors.WithLabelValues(mode).Inc()
}

func ObserveTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

func RecordWagerSettled(mode string, won bool, payout int64) {
	wagersSettled.WithLabelValues(mode, strconv.FormatBool(won)).Inc()
	if payout > 0 {
		payouts.WithLabelValues(mode).Add(float64(payout))
	}
}

func RecordBetPlaced(mode string) {
	betsPlaced.WithLabelValues(mode).Inc()
}
