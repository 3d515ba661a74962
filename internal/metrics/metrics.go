// Package metrics exposes Prometheus instrumentation and a liveness endpoint
// shared by all three process images (cmd/marketdata, cmd/gateway,
// cmd/projector).
//
// Grounded on the teacher's internal/metrics/metrics.go: same
// registered-struct-of-metrics shape, same HealthStatus/Server split between
// business metrics and a dependency-probe health JSON body, relabeled from
// tick/candle/indicator-engine concerns to ingestion, fan-out, and
// on-chain-projection concerns.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric this codebase registers, spanning
// all three process images. Each binary only touches the fields relevant to
// the components it runs.
type Metrics struct {
	// Ingestion Workers (C6)
	KlinesFetchedTotal     *prometheus.CounterVec // labels: symbol
	OrderbookFetchedTotal  *prometheus.CounterVec // labels: symbol
	IngestionRetriesTotal  *prometheus.CounterVec // labels: symbol, kind
	IngestionFetchDur      prometheus.Histogram
	StoreWriteDur          prometheus.Histogram

	// Pub/Sub Bus (C7)
	BusPublishTotal  *prometheus.CounterVec // labels: channel
	BusPublishErrors prometheus.Counter

	// Candle Aggregation (C3/C4)
	AggregatorBucketsClosedTotal *prometheus.CounterVec // labels: timeframe
	AggregatorActiveBuckets      prometheus.Gauge

	// Fan-out Hub (C10)
	WSConnectionsActive   prometheus.Gauge
	WSBroadcastSentTotal  *prometheus.CounterVec // labels: kind
	WSBroadcastDropsTotal *prometheus.CounterVec // labels: kind
	WSHeartbeatFailures   prometheus.Counter
	ReplayBackfillTotal   prometheus.Counter

	// Blockchain Event Projector (C8)
	ChainBlocksBehind       prometheus.Gauge
	ChainEventsAppliedTotal *prometheus.CounterVec // labels: event_type
	ChainPoisonPillsTotal   prometheus.Counter
	ChainBatchApplyDur      prometheus.Histogram
	ChainFetchErrorsTotal   prometheus.Counter

	// Expiry Sweeper (C8)
	OrdersExpiredTotal prometheus.Counter

	// Circuit breakers (ingestion klines and orderbook clients)
	CircuitBreakerState *prometheus.GaugeVec   // labels: breaker; 0=closed,1=open,2=half-open
	CircuitBreakerTrips *prometheus.CounterVec // labels: breaker

	// Query API (C10)
	QueryAPIRequestsTotal *prometheus.CounterVec // labels: route, status
	QueryAPIRequestDur    *prometheus.HistogramVec
}

// NewMetrics builds and registers every metric. Call once per process.
func NewMetrics() *Metrics {
	m := &Metrics{
		KlinesFetchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_klines_fetched_total",
			Help: "Total klines fetched per symbol",
		}, []string{"symbol"}),
		OrderbookFetchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_orderbook_fetched_total",
			Help: "Total order book snapshots fetched per symbol",
		}, []string{"symbol"}),
		IngestionRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_ingestion_retries_total",
			Help: "Total retry attempts by ingestion workers",
		}, []string{"symbol", "kind"}),
		IngestionFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkora_ingestion_fetch_duration_seconds",
			Help:    "REST fetch latency for ingestion workers",
			Buckets: prometheus.DefBuckets,
		}),
		StoreWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkora_store_write_duration_seconds",
			Help:    "Order State Store write latency",
			Buckets: prometheus.DefBuckets,
		}),

		BusPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_bus_publish_total",
			Help: "Total messages published to the Redis bus",
		}, []string{"channel"}),
		BusPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkora_bus_publish_errors_total",
			Help: "Publish calls that returned an error",
		}),

		AggregatorBucketsClosedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_aggregator_buckets_closed_total",
			Help: "Candle buckets closed, by timeframe",
		}, []string{"timeframe"}),
		AggregatorActiveBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkora_aggregator_active_buckets",
			Help: "Number of in-progress aggregator buckets held in the registry",
		}),

		WSConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkora_ws_connections_active",
			Help: "Currently connected WebSocket subscribers",
		}),
		WSBroadcastSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_ws_broadcast_sent_total",
			Help: "Broadcast messages delivered to subscribers, by kind",
		}, []string{"kind"}),
		WSBroadcastDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_ws_broadcast_drops_total",
			Help: "Broadcast messages dropped due to a full send buffer, by kind",
		}, []string{"kind"}),
		WSHeartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkora_ws_heartbeat_failures_total",
			Help: "Heartbeat sends that failed, marking a subscription dead",
		}),
		ReplayBackfillTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkora_ws_replay_backfill_total",
			Help: "Reconnect backfill requests served from the replay buffer",
		}),

		ChainBlocksBehind: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkora_chain_blocks_behind",
			Help: "Chain head block number minus the projector's last applied block",
		}),
		ChainEventsAppliedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_chain_events_applied_total",
			Help: "On-chain order events applied, by event type",
		}, []string{"event_type"}),
		ChainPoisonPillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkora_chain_poison_pills_total",
			Help: "Events marked processed despite a decode failure",
		}),
		ChainBatchApplyDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkora_chain_batch_apply_duration_seconds",
			Help:    "Time to apply one fetched batch of logs inside a transaction",
			Buckets: prometheus.DefBuckets,
		}),
		ChainFetchErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkora_chain_fetch_errors_total",
			Help: "FilterLogs calls that returned an error",
		}),

		OrdersExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkora_orders_expired_total",
			Help: "Pending orders transitioned to EXPIRED by the sweeper",
		}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "linkora_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open), by breaker name",
		}, []string{"breaker"}),
		CircuitBreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_circuit_breaker_trips_total",
			Help: "Times a circuit breaker tripped open, by breaker name",
		}, []string{"breaker"}),

		QueryAPIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkora_queryapi_requests_total",
			Help: "Query API requests, by route and status class",
		}, []string{"route", "status"}),
		QueryAPIRequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkora_queryapi_request_duration_seconds",
			Help:    "Query API handler latency, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	prometheus.MustRegister(
		m.KlinesFetchedTotal,
		m.OrderbookFetchedTotal,
		m.IngestionRetriesTotal,
		m.IngestionFetchDur,
		m.StoreWriteDur,
		m.BusPublishTotal,
		m.BusPublishErrors,
		m.AggregatorBucketsClosedTotal,
		m.AggregatorActiveBuckets,
		m.WSConnectionsActive,
		m.WSBroadcastSentTotal,
		m.WSBroadcastDropsTotal,
		m.WSHeartbeatFailures,
		m.ReplayBackfillTotal,
		m.ChainBlocksBehind,
		m.ChainEventsAppliedTotal,
		m.ChainPoisonPillsTotal,
		m.ChainBatchApplyDur,
		m.ChainFetchErrorsTotal,
		m.OrdersExpiredTotal,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
		m.QueryAPIRequestsTotal,
		m.QueryAPIRequestDur,
	)

	return m
}

// HealthStatus tracks the dependency-liveness signals each process probes
// periodically, independent of the Metrics counters above.
type HealthStatus struct {
	mu sync.RWMutex

	BusConnected bool      `json:"bus_connected"`
	DBConnected  bool      `json:"db_connected"`
	ChainOK      bool      `json:"chain_ok"`
	LastEventAt  time.Time `json:"-"`

	BusLatencyMs float64   `json:"bus_latency_ms"`
	DBLatencyMs  float64   `json:"db_latency_ms"`
	LastCheckAt  time.Time `json:"last_check_at"`
	StartedAt    time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetChainOK(v bool) {
	h.mu.Lock()
	h.ChainOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastEventAt(t time.Time) {
	h.mu.Lock()
	h.LastEventAt = t
	h.mu.Unlock()
}

// CheckBus pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckBus(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.BusConnected = err == nil
	h.BusLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckDB runs a trivial query against the Order State Store and records
// latency + health.
func (h *HealthStatus) CheckDB(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.DBConnected = err == nil
	h.DBLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks on interval until ctx
// is cancelled.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckBus(probeCtx, rdb)
				}
				if db != nil {
					h.CheckDB(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. Overall status is "healthy" when
// every probed dependency is up, "degraded" when one is down, "unhealthy"
// when both the bus and the store are unreachable.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.BusConnected || !h.DBConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.BusConnected && !h.DBConnected {
		overallStatus = "unhealthy"
	}

	eventAge := ""
	if !h.LastEventAt.IsZero() {
		eventAge = time.Since(h.LastEventAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status       string  `json:"status"`
		Uptime       string  `json:"uptime"`
		BusConnected bool    `json:"bus_connected"`
		DBConnected  bool    `json:"db_connected"`
		ChainOK      bool    `json:"chain_ok"`
		LastEventAge string  `json:"last_event_age"`
		BusLatencyMs float64 `json:"bus_latency_ms"`
		DBLatencyMs  float64 `json:"db_latency_ms"`
		LastCheckAt  string  `json:"last_check_at"`
	}{
		Status:       overallStatus,
		Uptime:       time.Since(h.StartedAt).Round(time.Second).String(),
		BusConnected: h.BusConnected,
		DBConnected:  h.DBConnected,
		ChainOK:      h.ChainOK,
		LastEventAge: eventAge,
		BusLatencyMs: h.BusLatencyMs,
		DBLatencyMs:  h.DBLatencyMs,
		LastCheckAt:  h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server bound to addr.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
