package state

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "cantorfi/native/common"
	"cantorfi/native/token"
	"cantorfi/native/vault"
	"cantorfi/storage"
)

var (
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	dai   = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	vlt   = common.HexToAddress("0x00000000000000000000000000000000000000f3")
)

func TestUpdateCommitsAndViewDiscards(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	err := mgr.Update(func(tx *Tx) error {
		if err := tx.PutBalance(usdc, alice, big.NewInt(500)); err != nil {
			return err
		}
		bal, err := tx.GetBalance(usdc, alice)
		if err != nil {
			return err
		}
		if bal.Int64() != 500 {
			t.Fatalf("overlay read returned %s", bal)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	boom := errors.New("boom")
	err = mgr.Update(func(tx *Tx) error {
		if err := tx.PutBalance(usdc, alice, big.NewInt(1)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_ = mgr.View(func(tx *Tx) error {
		return tx.PutBalance(usdc, alice, big.NewInt(2))
	})

	err = mgr.View(func(tx *Tx) error {
		bal, err := tx.GetBalance(usdc, alice)
		if err != nil {
			return err
		}
		if bal.Int64() != 500 {
			t.Fatalf("expected committed balance 500, got %s", bal)
		}
		missing, err := tx.GetBalance(dai, alice)
		if err != nil {
			return err
		}
		if missing != nil {
			t.Fatalf("expected nil for unknown balance, got %s", missing)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestClosedTransactionRejectsUse(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	tx := mgr.Begin()
	if err := tx.SetRole(vlt, nativecommon.RoleAdmin, alice, true); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if tx.Pending() != 1 {
		t.Fatalf("expected 1 pending write, got %d", tx.Pending())
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := tx.Commit(); !errors.Is(err, ErrTxClosed) {
		t.Fatalf("expected ErrTxClosed, got %v", err)
	}
	if _, err := tx.HasRole(vlt, nativecommon.RoleAdmin, alice); !errors.Is(err, ErrTxClosed) {
		t.Fatalf("expected ErrTxClosed on read, got %v", err)
	}
}

func TestRolesAndTokenIndex(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	err := mgr.Update(func(tx *Tx) error {
		ledger := token.NewLedger(tx)
		if err := ledger.Register(token.Metadata{Address: dai, Name: "Dai", Symbol: "dai", Decimals: 18}); err != nil {
			return err
		}
		if err := ledger.Register(token.Metadata{Address: usdc, Name: "USD Coin", Symbol: "usdc", Decimals: 6}); err != nil {
			return err
		}
		if err := ledger.Mint(usdc, alice, big.NewInt(10)); err != nil {
			return err
		}
		if err := tx.SetRole(vlt, nativecommon.RoleMinter, alice, true); err != nil {
			return err
		}
		return tx.SetRole(vlt, nativecommon.RoleMinter, alice, false)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	_ = mgr.View(func(tx *Tx) error {
		list, err := tx.Tokens()
		if err != nil {
			t.Fatalf("tokens: %v", err)
		}
		if len(list) != 2 || list[0] != dai || list[1] != usdc {
			t.Fatalf("unexpected token index %v", list)
		}
		meta, _ := tx.GetToken(usdc)
		if meta == nil || meta.Symbol != "USDC" || meta.TotalSupply.Int64() != 10 {
			t.Fatalf("unexpected metadata %+v", meta)
		}
		if ok, _ := tx.HasRole(vlt, nativecommon.RoleMinter, alice); ok {
			t.Fatalf("revoked role still present")
		}
		return nil
	})
}

func TestLevelDBPersistsVaultRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	db, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mgr := NewManager(db)
	err = mgr.Update(func(tx *Tx) error {
		if err := tx.PutVaultInfo(&vault.Info{Address: vlt, ID: 7, Token: usdc, MaxLiquidity: big.NewInt(1_000), IsActive: true}); err != nil {
			return err
		}
		return tx.PutVaultByID(vlt, 7, vlt)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	db.Close()

	db, err = storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	mgr = NewManager(db)
	_ = mgr.View(func(tx *Tx) error {
		info, err := tx.GetVaultInfo(vlt)
		if err != nil || info == nil {
			t.Fatalf("vault info missing: %v", err)
		}
		if info.ID != 7 || !info.IsActive || info.MaxLiquidity.Int64() != 1_000 {
			t.Fatalf("unexpected info %+v", info)
		}
		addr, ok, err := tx.GetVaultByID(vlt, 7)
		if err != nil || !ok || addr != vlt {
			t.Fatalf("vault index lookup failed: %v", err)
		}
		if _, ok, _ := tx.GetVaultByID(vlt, 8); ok {
			t.Fatalf("unexpected vault 8")
		}
		return nil
	})
}
