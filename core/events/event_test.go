package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type recorder struct {
	seen []Event
}

func (r *recorder) Emit(e Event) { r.seen = append(r.seen, e) }

type bare struct{}

func (bare) EventType() string { return "bare" }

func TestBufferFlushAndReset(t *testing.T) {
	buf := &Buffer{}
	buf.Emit(VaultInterestClaimed{Amount: big.NewInt(1)})
	buf.Emit(nil)
	buf.Emit(StakeWithdrawn{Amount: big.NewInt(2)})
	if got := len(buf.Events()); got != 2 {
		t.Fatalf("expected 2 buffered events, got %d", got)
	}

	dropped := &recorder{}
	buf.Reset()
	buf.Flush(dropped)
	if len(dropped.seen) != 0 {
		t.Fatalf("reset buffer must not publish, got %d", len(dropped.seen))
	}

	buf.Emit(VaultSupplied{Amount: big.NewInt(3)})
	first, second := &recorder{}, &recorder{}
	buf.Flush(Fanout{first, nil, second})
	if len(first.seen) != 1 || len(second.seen) != 1 {
		t.Fatalf("fanout delivered %d/%d", len(first.seen), len(second.seen))
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("flush must clear the buffer")
	}
}

func TestRenderVaultEvents(t *testing.T) {
	vault := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	user := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	supplied := Render(VaultSupplied{Vault: vault, User: user, Amount: big.NewInt(10_000_000_000), CVTMinted: big.NewInt(7)})
	if supplied.Type != TypeVaultSupplied {
		t.Fatalf("unexpected type %s", supplied.Type)
	}
	if supplied.Attribute("amount") != "10000000000" || supplied.Attribute("vault") != vault.Hex() {
		t.Fatalf("unexpected attributes %+v", supplied.Attributes)
	}
	if _, ok := supplied.Attributes["lockEnd"]; ok {
		t.Fatalf("unlocked supply must not carry lockEnd")
	}

	borrowed := Render(VaultBorrowed{Vault: vault, Borrower: user, Amount: big.NewInt(5), Protocol: true})
	if borrowed.Type != TypeVaultProtocolBorrowed {
		t.Fatalf("protocol borrow rendered as %s", borrowed.Type)
	}
	repaid := Render(VaultRepaid{Principal: big.NewInt(5), Interest: big.NewInt(0), Fee: big.NewInt(0)})
	if repaid.Type != TypeVaultRepaid {
		t.Fatalf("user repay rendered as %s", repaid.Type)
	}
	if _, ok := repaid.Attributes["fee"]; ok {
		t.Fatalf("zero fee must be omitted")
	}

	created := Render(VaultCreated{VaultID: 2, Vault: vault})
	if created.Attribute("vaultId") != "2" {
		t.Fatalf("unexpected vault id %q", created.Attribute("vaultId"))
	}
}

func TestRenderFallback(t *testing.T) {
	if Render(nil) != nil {
		t.Fatalf("nil event must render to nil")
	}
	out := Render(bare{})
	if out.Type != "bare" || len(out.Attributes) != 0 {
		t.Fatalf("unexpected fallback %+v", out)
	}
	if out.Attribute("missing") != "" {
		t.Fatalf("missing attribute must be empty")
	}
}
