package metrics

import (
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics tracks protocol operations and the latest vault totals.
type VaultMetrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	supplied    *prometheus.GaugeVec
	borrowed    *prometheus.GaugeVec
	available   *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	badDebt     *prometheus.GaugeVec
	staked      *prometheus.GaugeVec
	events      *prometheus.CounterVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the process-wide metrics registered with the default
// Prometheus registerer.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = NewVaultMetrics(prometheus.DefaultRegisterer)
	})
	return vaultRegistry
}

// NewVaultMetrics builds and registers the collectors on reg.
func NewVaultMetrics(reg prometheus.Registerer) *VaultMetrics {
	m := &VaultMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cantor",
			Subsystem: "protocol",
			Name:      "operations_total",
			Help:      "Protocol operations segmented by name and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cantor",
			Subsystem: "protocol",
			Name:      "operation_duration_seconds",
			Help:      "Latency of protocol operations including the state commit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		supplied: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cantor",
			Subsystem: "vault",
			Name:      "total_supplied",
			Help:      "Underlying supplied to the vault, in base units.",
		}, []string{"vault"}),
		borrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cantor",
			Subsystem: "vault",
			Name:      "total_borrowed",
			Help:      "Outstanding user and protocol principal, in base units.",
		}, []string{"vault"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cantor",
			Subsystem: "vault",
			Name:      "available_liquidity",
			Help:      "Liquidity held by the vault, in base units.",
		}, []string{"vault"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cantor",
			Subsystem: "vault",
			Name:      "utilization_bps",
			Help:      "Borrowed over supplied in basis points.",
		}, []string{"vault"}),
		badDebt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cantor",
			Subsystem: "vault",
			Name:      "bad_debt",
			Help:      "Principal written off by liquidations, in base units.",
		}, []string{"vault"}),
		staked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cantor",
			Subsystem: "staking",
			Name:      "total_staked",
			Help:      "CVT staked in the pool paired with the vault.",
		}, []string{"vault"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cantor",
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Committed events segmented by type.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.latency, m.supplied, m.borrowed, m.available, m.utilization, m.badDebt, m.staked, m.events)
	}
	return m
}

// ObserveOperation records the outcome and latency of a protocol call.
func (m *VaultMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// VaultSnapshot is the subset of vault totals exported as gauges.
type VaultSnapshot struct {
	Vault          string
	Supplied       *big.Int
	Borrowed       *big.Int
	Available      *big.Int
	BadDebt        *big.Int
	Staked         *big.Int
	UtilizationBps uint64
}

// RecordVault refreshes the gauges of a single vault.
func (m *VaultMetrics) RecordVault(s VaultSnapshot) {
	if m == nil {
		return
	}
	label := strings.ToLower(strings.TrimSpace(s.Vault))
	if label == "" {
		label = "unknown"
	}
	m.supplied.WithLabelValues(label).Set(bigToFloat(s.Supplied))
	m.borrowed.WithLabelValues(label).Set(bigToFloat(s.Borrowed))
	m.available.WithLabelValues(label).Set(bigToFloat(s.Available))
	m.badDebt.WithLabelValues(label).Set(bigToFloat(s.BadDebt))
	m.staked.WithLabelValues(label).Set(bigToFloat(s.Staked))
	m.utilization.WithLabelValues(label).Set(float64(s.UtilizationBps))
}

// RecordEvent counts a committed event.
func (m *VaultMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
