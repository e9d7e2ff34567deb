package metrics

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperation(t *testing.T) {
	m := NewVaultMetrics(prometheus.NewRegistry())
	m.ObserveOperation("supply", time.Millisecond, nil)
	m.ObserveOperation("supply", time.Millisecond, nil)
	m.ObserveOperation("borrow", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.operations.WithLabelValues("supply", "ok")); got != 2 {
		t.Fatalf("expected 2 successful supplies, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("borrow", "error")); got != 1 {
		t.Fatalf("expected 1 failed borrow, got %v", got)
	}
}

func TestRecordVault(t *testing.T) {
	m := NewVaultMetrics(prometheus.NewRegistry())
	m.RecordVault(VaultSnapshot{
		Vault:          "0xABC",
		Supplied:       big.NewInt(10_000),
		Borrowed:       big.NewInt(7_000),
		Available:      big.NewInt(3_000),
		UtilizationBps: 7_000,
	})
	if got := testutil.ToFloat64(m.utilization.WithLabelValues("0xabc")); got != 7_000 {
		t.Fatalf("unexpected utilization %v", got)
	}
	if got := testutil.ToFloat64(m.available.WithLabelValues("0xabc")); got != 3_000 {
		t.Fatalf("unexpected available %v", got)
	}
	if got := testutil.ToFloat64(m.badDebt.WithLabelValues("0xabc")); got != 0 {
		t.Fatalf("nil bad debt must export zero, got %v", got)
	}
	m.RecordEvent("vault.supplied")
	if got := testutil.ToFloat64(m.events.WithLabelValues("vault.supplied")); got != 1 {
		t.Fatalf("unexpected event count %v", got)
	}
}
