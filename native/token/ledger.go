package token

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrNilState              = errors.New("token ledger: state not configured")
	ErrUnknownToken          = errors.New("token ledger: unknown token")
	ErrTokenExists           = errors.New("token ledger: token already registered")
	ErrInvalidDecimals       = errors.New("token ledger: decimals exceed 18")
	ErrInvalidAmount         = errors.New("token ledger: amount must be positive")
	ErrInsufficientBalance   = errors.New("token ledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("token ledger: insufficient allowance")
	ErrZeroAddress           = errors.New("token ledger: zero address")
	ErrOverflow              = errors.New("token ledger: uint256 overflow")
)

var maxUint256 = new(uint256.Int).SetAllOne()

// MaxAllowance is the sentinel approval that is never decremented.
func MaxAllowance() *big.Int { return maxUint256.ToBig() }

type ledgerState interface {
	GetToken(addr common.Address) (*Metadata, error)
	PutToken(meta *Metadata) error
	GetBalance(token, holder common.Address) (*big.Int, error)
	PutBalance(token, holder common.Address, amount *big.Int) error
	GetAllowance(token, owner, spender common.Address) (*big.Int, error)
	PutAllowance(token, owner, spender common.Address, amount *big.Int) error
}

// Ledger implements ERC-20 style balances for every registered token. Amounts
// cross the API as big integers and are checked against the uint256 domain
// before any write.
type Ledger struct {
	state ledgerState
}

// NewLedger constructs a ledger over the supplied state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

// Register records a new token with zero supply.
func (l *Ledger) Register(meta Metadata) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if meta.Address == (common.Address{}) {
		return ErrZeroAddress
	}
	if meta.Decimals > MaxDecimals {
		return ErrInvalidDecimals
	}
	existing, err := l.state.GetToken(meta.Address)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrTokenExists
	}
	meta.Name = strings.TrimSpace(meta.Name)
	meta.Symbol = strings.ToUpper(strings.TrimSpace(meta.Symbol))
	meta.TotalSupply = big.NewInt(0)
	return l.state.PutToken(&meta)
}

// Metadata returns the token description.
func (l *Ledger) Metadata(token common.Address) (*Metadata, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	meta, err := l.state.GetToken(token)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrUnknownToken
	}
	if meta.TotalSupply == nil {
		meta.TotalSupply = big.NewInt(0)
	}
	return meta, nil
}

// Decimals returns the token precision.
func (l *Ledger) Decimals(token common.Address) (uint8, error) {
	meta, err := l.Metadata(token)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// TotalSupply returns the outstanding supply.
func (l *Ledger) TotalSupply(token common.Address) (*big.Int, error) {
	meta, err := l.Metadata(token)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(meta.TotalSupply), nil
}

// BalanceOf returns the holder balance, zero when absent.
func (l *Ledger) BalanceOf(token, holder common.Address) (*big.Int, error) {
	if _, err := l.Metadata(token); err != nil {
		return nil, err
	}
	return l.balance(token, holder)
}

// Allowance returns the amount spender may move on behalf of owner.
func (l *Ledger) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	if _, err := l.Metadata(token); err != nil {
		return nil, err
	}
	value, err := l.state.GetAllowance(token, owner, spender)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return big.NewInt(0), nil
	}
	return value, nil
}

// Mint credits new supply to the recipient.
func (l *Ledger) Mint(token, to common.Address, amount *big.Int) error {
	meta, err := l.Metadata(token)
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	supply, err := fromBig(meta.TotalSupply)
	if err != nil {
		return err
	}
	if _, overflow := supply.AddOverflow(supply, delta); overflow {
		return ErrOverflow
	}
	if err := l.credit(token, to, delta); err != nil {
		return err
	}
	meta.TotalSupply = supply.ToBig()
	return l.state.PutToken(meta)
}

// Burn destroys supply held by from.
func (l *Ledger) Burn(token, from common.Address, amount *big.Int) error {
	meta, err := l.Metadata(token)
	if err != nil {
		return err
	}
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	if err := l.debit(token, from, delta); err != nil {
		return err
	}
	supply, err := fromBig(meta.TotalSupply)
	if err != nil {
		return err
	}
	if _, underflow := supply.SubOverflow(supply, delta); underflow {
		return ErrInsufficientBalance
	}
	meta.TotalSupply = supply.ToBig()
	return l.state.PutToken(meta)
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if _, err := l.Metadata(token); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	if err := l.debit(token, from, delta); err != nil {
		return err
	}
	return l.credit(token, to, delta)
}

// Approve sets the allowance granted by owner to spender.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if _, err := l.Metadata(token); err != nil {
		return err
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	value, err := fromBig(amount)
	if err != nil {
		return err
	}
	return l.state.PutAllowance(token, owner, spender, value.ToBig())
}

// TransferFrom moves tokens on behalf of from, consuming the spender
// allowance unless it is the max sentinel.
func (l *Ledger) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	allowanceBig, err := l.Allowance(token, from, spender)
	if err != nil {
		return err
	}
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	allowance, err := fromBig(allowanceBig)
	if err != nil {
		return err
	}
	if !allowance.Eq(maxUint256) {
		if allowance.Lt(delta) {
			return ErrInsufficientAllowance
		}
		allowance.Sub(allowance, delta)
		if err := l.state.PutAllowance(token, from, spender, allowance.ToBig()); err != nil {
			return err
		}
	}
	return l.Transfer(token, from, to, amount)
}

func (l *Ledger) balance(token, holder common.Address) (*big.Int, error) {
	value, err := l.state.GetBalance(token, holder)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (l *Ledger) credit(token, holder common.Address, delta *uint256.Int) error {
	current, err := l.balance(token, holder)
	if err != nil {
		return err
	}
	bal, err := fromBig(current)
	if err != nil {
		return err
	}
	if _, overflow := bal.AddOverflow(bal, delta); overflow {
		return ErrOverflow
	}
	return l.state.PutBalance(token, holder, bal.ToBig())
}

func (l *Ledger) debit(token, holder common.Address, delta *uint256.Int) error {
	current, err := l.balance(token, holder)
	if err != nil {
		return err
	}
	bal, err := fromBig(current)
	if err != nil {
		return err
	}
	if bal.Lt(delta) {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, delta)
	return l.state.PutBalance(token, holder, bal.ToBig())
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return fromBig(amount)
}

func fromBig(value *big.Int) (*uint256.Int, error) {
	if value == nil {
		return new(uint256.Int), nil
	}
	if value.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}
