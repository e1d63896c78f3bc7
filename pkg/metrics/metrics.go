// Package metrics exposes the Prometheus instrumentation shared across the
// bridge, relay and coordinator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpTotal counts completed bridge operations by kind and outcome.
	OpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_bridge_operation_total",
			Help: "Total number of bridge operations",
		},
		[]string{"participant", "kind", "outcome"},
	)

	OpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flotilla_bridge_operation_duration_seconds",
			Help:    "Bridge operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68m
		},
		[]string{"participant", "kind"},
	)

	OpInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flotilla_bridge_operation_in_flight",
			Help: "Number of bridge operations currently awaiting a result",
		},
		[]string{"participant", "kind"},
	)

	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_bridge_poll_cycles_total",
			Help: "Total number of empty mailbox polls",
		},
		[]string{"participant", "kind"},
	)

	// RelayDeposits counts result messages relayed into the mailbox.
	RelayDeposits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_relay_deposits_total",
			Help: "Total number of result entries deposited by the relay",
		},
		[]string{"kind", "status"},
	)

	// RoundTotal counts coordinator training rounds by phase outcome.
	RoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_round_total",
			Help: "Total number of training rounds",
		},
		[]string{"outcome"},
	)

	RoundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flotilla_round_duration_seconds",
			Help:    "Training round duration in seconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10s to ~11h
		},
		[]string{"phase"},
	)
)
