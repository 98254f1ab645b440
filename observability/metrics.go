package observability

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ledgerMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	supply     prometheus.Gauge
	locked     prometheus.Gauge
	treasury   prometheus.Gauge
	price      prometheus.Gauge
	counter    prometheus.Gauge
}

type gatewayMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics

	gatewayMetricsOnce sync.Once
	gatewayRegistry    *gatewayMetrics
)

// Ledger returns the lazily-initialised registry recording vault ledger
// operations and protocol totals.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "satvault",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome code.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "satvault",
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			supply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "satvault",
				Subsystem: "ledger",
				Name:      "total_supply",
				Help:      "Outstanding minted supply.",
			}),
			locked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "satvault",
				Subsystem: "ledger",
				Name:      "collateral_locked_sats",
				Help:      "Satoshis locked in live vaults.",
			}),
			treasury: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "satvault",
				Subsystem: "ledger",
				Name:      "treasury_collateral_sats",
				Help:      "Satoshis seized by liquidations and held by the protocol.",
			}),
			price: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "satvault",
				Subsystem: "ledger",
				Name:      "oracle_price",
				Help:      "Latest accepted oracle price.",
			}),
			counter: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "satvault",
				Subsystem: "ledger",
				Name:      "vault_counter",
				Help:      "Highest allocated vault id.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.latency,
			ledgerRegistry.supply,
			ledgerRegistry.locked,
			ledgerRegistry.treasury,
			ledgerRegistry.price,
			ledgerRegistry.counter,
		)
	})
	return ledgerRegistry
}

// Observe records one ledger operation. Outcome should be "ok" or the error
// code returned to the caller.
func (m *ledgerMetrics) Observe(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// LedgerTotals is the snapshot published after every commit.
type LedgerTotals struct {
	Supply           *big.Int
	CollateralLocked uint64
	Treasury         uint64
	VaultCounter     uint64
}

// SetTotals updates the protocol total gauges.
func (m *ledgerMetrics) SetTotals(totals LedgerTotals) {
	if m == nil {
		return
	}
	if totals.Supply != nil {
		supply, _ := new(big.Float).SetInt(totals.Supply).Float64()
		m.supply.Set(supply)
	}
	m.locked.Set(float64(totals.CollateralLocked))
	m.treasury.Set(float64(totals.Treasury))
	m.counter.Set(float64(totals.VaultCounter))
}

// SetPrice records the latest accepted oracle price.
func (m *ledgerMetrics) SetPrice(price uint64) {
	if m == nil {
		return
	}
	if price > math.MaxInt64 {
		m.price.Set(math.MaxInt64)
		return
	}
	m.price.Set(float64(price))
}

// Gateway returns the registry tracking HTTP API traffic.
func Gateway() *gatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &gatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "satvault",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "HTTP requests segmented by route, method and status.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "satvault",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "satvault",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Requests rejected by rate limiting.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.latency,
			gatewayRegistry.throttles,
		)
	})
	return gatewayRegistry
}

// Observe records an HTTP request using the status ultimately written.
func (m *gatewayMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *gatewayMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
