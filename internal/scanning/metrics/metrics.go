package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanCyclesTotal tracks completed scan cycles per source and outcome
	ScanCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescan_scan_cycles_total",
			Help: "Total number of scan cycles",
		},
		[]string{"source", "result"},
	)

	// EventsStoredTotal tracks newly stored fee events per source
	EventsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescan_events_stored_total",
			Help: "Total number of newly stored fee events",
		},
		[]string{"source"},
	)

	// RateLimitHitsTotal tracks classified rate-limit failures per source
	RateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescan_rate_limit_hits_total",
			Help: "Total number of rate-limited cycles",
		},
		[]string{"source"},
	)

	// LastScannedHeight tracks the watermark per source
	LastScannedHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feescan_last_scanned_height",
			Help: "Last fully stored height per source",
		},
		[]string{"source"},
	)

	// HeadHeight tracks the last observed upstream head per source
	HeadHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feescan_head_height",
			Help: "Last known upstream head height per source",
		},
		[]string{"source"},
	)

	// RPCCallsTotal tracks RPC calls per provider and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescan_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescan_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feescan_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// DBConnectionPoolUsage tracks database pool saturation
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feescan_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)

	// FailedRangesQueued tracks ranges pushed to the failed-range queue
	FailedRangesQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescan_failed_ranges_queued_total",
			Help: "Total number of failed ranges queued for rescan",
		},
		[]string{"source"},
	)
)
