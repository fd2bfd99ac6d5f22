package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	CommandsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_commands_parsed_total",
		Help: "The total number of parsed commands by operation",
	}, []string{"operation"})

	ParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_parse_failures_total",
		Help: "The total number of parse failures by reason",
	}, []string{"reason"})

	AdapterCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_adapter_calls_total",
		Help: "Outbound adapter calls by adapter, method and outcome",
	}, []string{"adapter", "method", "outcome"})

	QuoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "router_quote_latency_seconds",
		Help:    "Time taken to fetch quotes from adapters",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // Start at 50ms with 10 buckets doubling in size
	}, []string{"adapter"})

	QuoteCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_quote_cache_hits_total",
		Help: "Quote cache hits by adapter",
	}, []string{"adapter"})

	CircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "router_circuit_state",
		Help: "Circuit breaker state per key (0=closed, 1=half-open, 2=open)",
	}, []string{"key"})

	CircuitTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_circuit_trips_total",
		Help: "The total number of circuit breaker trips by key",
	}, []string{"key"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_rate_limited_total",
		Help: "Calls rejected by the rate limiter by key",
	}, []string{"key"})

	Failovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_failovers_total",
		Help: "Adapter failovers by operation and failed adapter",
	}, []string{"operation", "adapter"})

	RecordsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "router_records_by_status",
		Help: "Transaction records currently in each status",
	}, []string{"status"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_settlements_total",
		Help: "The total number of settled transactions by chain",
	}, []string{"chain_id"})

	SettlementTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "router_settlement_seconds",
		Help:    "Time from record creation to settlement",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // Start at 1s with 12 buckets doubling in size
	}, []string{"chain_id"})

	FailedCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_failed_commands_total",
		Help: "The total number of terminally failed commands by reason",
	}, []string{"reason"})

	RetryCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_retry_count_total",
		Help: "The total number of adapter retries by operation",
	}, []string{"operation"})

	ExpiredQuotes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_expired_quotes_total",
		Help: "Authorizations rejected because the quote had expired",
	})
)
