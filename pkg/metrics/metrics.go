package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts executed backend queries by dialect and outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbautorest_queries_total",
			Help: "Total number of backend queries executed by the engine",
		},
		[]string{"dialect", "status"},
	)
	// QueryDuration is the latency of backend executions.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbautorest_query_duration_seconds",
			Help:    "Backend query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dialect"},
	)
	// CacheResults counts response cache lookups (hit/miss).
	CacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbautorest_response_cache_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"},
	)
	// DedupShared counts requests served by joining an in-flight execution.
	DedupShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dbautorest_dedup_shared_total",
			Help: "Requests that joined an identical in-flight execution",
		},
	)
	// RowPolicyRenderFailures counts row policies that failed to render.
	// Any non-zero value means row-level enforcement is degraded.
	RowPolicyRenderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbautorest_row_policy_render_failures_total",
			Help: "Row policy templates that failed to render or parse",
		},
		[]string{"entity", "mode"},
	)
	// Retries counts stale-connection retries.
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbautorest_stale_connection_retries_total",
			Help: "Executions retried after a stale connection error",
		},
		[]string{"dialect"},
	)
	// Subscriptions is the number of active realtime subscriptions.
	Subscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dbautorest_realtime_subscriptions",
			Help: "Active realtime subscriptions by mode",
		},
		[]string{"mode"},
	)
	// RealtimeEvents counts broadcast and dropped change events.
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbautorest_realtime_events_total",
			Help: "Realtime change events by outcome",
		},
		[]string{"outcome"},
	)
)
