package rpc

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "licenced_rpc_requests_total", Help: "processed RPC requests by outcome"},
		[]string{"outcome"},
	)

	syncFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "licenced_rpc_sync_fallback_total", Help: "requests executed synchronously after a rejected submission"},
	)

	sweepReclaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "licenced_rpc_sweep_reclaimed_total", Help: "registry entries reclaimed by periodic sweeps"},
	)

	liveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "licenced_rpc_live_workers", Help: "workers currently executing"},
	)
)

const (
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomeRejected    = "rejected"
	outcomeShutdown    = "shutdown"
	outcomeRateLimited = "rate_limited"
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		syncFallbackTotal,
		sweepReclaimedTotal,
		liveWorkers,
	)
}
