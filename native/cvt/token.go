package cvt

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "cantorfi/native/common"
	"cantorfi/native/token"
)

const (
	// Decimals is the fixed precision of every CVT token.
	Decimals = 18
	Name     = "Cantor Vault Token"
	Symbol   = "CVT"
)

var errInvalidDecimals = errors.New("cvt: underlying decimals exceed 18")

type roleState interface {
	nativecommon.RoleView
	SetRole(scope common.Address, role nativecommon.Role, account common.Address, granted bool) error
}

// Token wraps the shared ledger with the role checks of a receipt token. The
// admin role administers minters; minters mint and burn.
type Token struct {
	address common.Address
	ledger  *token.Ledger
	roles   roleState
}

// New binds a CVT handle to an existing token address.
func New(address common.Address, ledger *token.Ledger, roles roleState) *Token {
	return &Token{address: address, ledger: ledger, roles: roles}
}

// Deploy registers a fresh CVT token and grants the admin role to admin.
func Deploy(address, admin common.Address, ledger *token.Ledger, roles roleState) (*Token, error) {
	if err := ledger.Register(token.Metadata{
		Address:  address,
		Name:     Name,
		Symbol:   Symbol,
		Decimals: Decimals,
	}); err != nil {
		return nil, err
	}
	if err := roles.SetRole(address, nativecommon.RoleAdmin, admin, true); err != nil {
		return nil, err
	}
	return New(address, ledger, roles), nil
}

// Address returns the token contract address.
func (t *Token) Address() common.Address { return t.address }

// GrantRole assigns role to account. Only admins may grant.
func (t *Token) GrantRole(caller common.Address, role nativecommon.Role, account common.Address) error {
	if err := nativecommon.RequireRole(t.roles, t.address, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	return t.roles.SetRole(t.address, role, account, true)
}

// RevokeRole removes role from account. Only admins may revoke.
func (t *Token) RevokeRole(caller common.Address, role nativecommon.Role, account common.Address) error {
	if err := nativecommon.RequireRole(t.roles, t.address, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	return t.roles.SetRole(t.address, role, account, false)
}

// HasRole reports role membership on this token.
func (t *Token) HasRole(role nativecommon.Role, account common.Address) (bool, error) {
	return t.roles.HasRole(t.address, role, account)
}

func (t *Token) Mint(caller, to common.Address, amount *big.Int) error {
	if err := nativecommon.RequireRole(t.roles, t.address, nativecommon.RoleMinter, caller); err != nil {
		return err
	}
	return t.ledger.Mint(t.address, to, amount)
}

func (t *Token) Burn(caller, from common.Address, amount *big.Int) error {
	if err := nativecommon.RequireRole(t.roles, t.address, nativecommon.RoleMinter, caller); err != nil {
		return err
	}
	return t.ledger.Burn(t.address, from, amount)
}

func (t *Token) BalanceOf(holder common.Address) (*big.Int, error) {
	return t.ledger.BalanceOf(t.address, holder)
}

func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	return t.ledger.Transfer(t.address, from, to, amount)
}

func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	return t.ledger.TransferFrom(t.address, spender, from, to, amount)
}

func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	return t.ledger.Approve(t.address, owner, spender, amount)
}

// ScaleFactor returns 10^(18-decimals).
func ScaleFactor(decimals uint8) (*big.Int, error) {
	if decimals > Decimals {
		return nil, errInvalidDecimals
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Decimals-decimals)), nil), nil
}

// ToCVT converts an underlying amount into CVT units.
func ToCVT(amount *big.Int, decimals uint8) (*big.Int, error) {
	factor, err := ScaleFactor(decimals)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Mul(amount, factor), nil
}

// FromCVT converts CVT units into the underlying precision, truncating.
func FromCVT(amount *big.Int, decimals uint8) (*big.Int, error) {
	factor, err := ScaleFactor(decimals)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Quo(amount, factor), nil
}
