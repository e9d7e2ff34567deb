package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type mockLedgerState struct {
	tokens     map[common.Address]*Metadata
	balances   map[string]*big.Int
	allowances map[string]*big.Int
}

func newMockLedgerState() *mockLedgerState {
	return &mockLedgerState{
		tokens:     make(map[common.Address]*Metadata),
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
	}
}

func (m *mockLedgerState) GetToken(addr common.Address) (*Metadata, error) {
	return m.tokens[addr].Clone(), nil
}

func (m *mockLedgerState) PutToken(meta *Metadata) error {
	m.tokens[meta.Address] = meta.Clone()
	return nil
}

func (m *mockLedgerState) GetBalance(token, holder common.Address) (*big.Int, error) {
	if v, ok := m.balances[token.Hex()+holder.Hex()]; ok {
		return new(big.Int).Set(v), nil
	}
	return nil, nil
}

func (m *mockLedgerState) PutBalance(token, holder common.Address, amount *big.Int) error {
	m.balances[token.Hex()+holder.Hex()] = new(big.Int).Set(amount)
	return nil
}

func (m *mockLedgerState) GetAllowance(token, owner, spender common.Address) (*big.Int, error) {
	if v, ok := m.allowances[token.Hex()+owner.Hex()+spender.Hex()]; ok {
		return new(big.Int).Set(v), nil
	}
	return nil, nil
}

func (m *mockLedgerState) PutAllowance(token, owner, spender common.Address, amount *big.Int) error {
	m.allowances[token.Hex()+owner.Hex()+spender.Hex()] = new(big.Int).Set(amount)
	return nil
}

var (
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	vault = common.HexToAddress("0x00000000000000000000000000000000000000f3")
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger := NewLedger(newMockLedgerState())
	if err := ledger.Register(Metadata{Address: usdc, Name: "USD Coin", Symbol: "usdc", Decimals: 6}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return ledger
}

func TestRegisterValidates(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.Register(Metadata{Address: usdc, Decimals: 6}); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
	if err := ledger.Register(Metadata{Address: bob, Decimals: 19}); !errors.Is(err, ErrInvalidDecimals) {
		t.Fatalf("expected ErrInvalidDecimals, got %v", err)
	}
	meta, err := ledger.Metadata(usdc)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Symbol != "USDC" || meta.Decimals != 6 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestMintTransferBurn(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.Mint(usdc, alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(usdc, alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := ledger.Transfer(usdc, alice, bob, big.NewInt(601)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.Burn(usdc, bob, big.NewInt(100)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	aliceBal, _ := ledger.BalanceOf(usdc, alice)
	bobBal, _ := ledger.BalanceOf(usdc, bob)
	supply, _ := ledger.TotalSupply(usdc)
	if aliceBal.Int64() != 600 || bobBal.Int64() != 300 || supply.Int64() != 900 {
		t.Fatalf("unexpected balances alice=%s bob=%s supply=%s", aliceBal, bobBal, supply)
	}
	if err := ledger.Transfer(usdc, alice, common.Address{}, big.NewInt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := ledger.Transfer(usdc, alice, bob, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.Mint(usdc, alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Approve(usdc, alice, vault, big.NewInt(500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(usdc, vault, alice, vault, big.NewInt(300)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	remaining, _ := ledger.Allowance(usdc, alice, vault)
	if remaining.Int64() != 200 {
		t.Fatalf("expected 200 allowance left, got %s", remaining)
	}
	if err := ledger.TransferFrom(usdc, vault, alice, vault, big.NewInt(201)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestMaxAllowanceIsNotConsumed(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.Mint(usdc, alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Approve(usdc, alice, vault, MaxAllowance()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(usdc, vault, alice, bob, big.NewInt(1_000)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	allowance, _ := ledger.Allowance(usdc, alice, vault)
	if allowance.Cmp(MaxAllowance()) != 0 {
		t.Fatalf("max allowance was decremented to %s", allowance)
	}
}

func TestMintOverflow(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.Mint(usdc, alice, MaxAllowance()); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	if err := ledger.Mint(usdc, bob, big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	tooLarge := new(big.Int).Lsh(big.NewInt(1), 256)
	if err := ledger.Transfer(usdc, alice, bob, tooLarge); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow for 2^256, got %v", err)
	}
}
