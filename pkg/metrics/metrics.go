// Copyright 2025 Certen Protocol
//
// Process-wide Prometheus metrics for the pre-processor's RPC and
// prover boundaries. Grounded on the p2pool metrics package's pattern
// (a package-level var block of collectors registered once in init,
// plus a Handler() for the /metrics endpoint), generalized from pool
// telemetry to the provider/prover concerns this batch compiler has
// instead of a server's request path.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RPCRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hdp",
		Name:      "rpc_requests_total",
		Help:      "RPC calls issued by the trie-value provider, by chain and method.",
	}, []string{"chain", "method"})

	RPCRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hdp",
		Name:      "rpc_retries_total",
		Help:      "RPC call retries, by chain and method.",
	}, []string{"chain", "method"})

	RPCFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hdp",
		Name:      "rpc_failures_total",
		Help:      "RPC calls that failed after exhausting retries, by chain and method.",
	}, []string{"chain", "method"})

	ProverInvocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hdp",
		Name:      "prover_invocations_total",
		Help:      "External prover subprocess invocations, by mode and outcome.",
	}, []string{"mode", "outcome"})

	ProverStepsLast = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hdp",
		Name:      "prover_steps_last",
		Help:      "Number of steps reported by the most recent prover invocation.",
	})

	InFlightRequests = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hdp",
		Name:      "rpc_in_flight_requests",
		Help:      "Provider RPC requests currently holding a concurrency slot, by chain.",
	}, []string{"chain"})
)

func init() {
	prometheus.MustRegister(
		RPCRequestsTotal,
		RPCRetriesTotal,
		RPCFailuresTotal,
		ProverInvocationsTotal,
		ProverStepsLast,
		InFlightRequests,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
