package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "cantorfi/native/common"
	"cantorfi/native/token"
)

func (tx *Tx) GetToken(addr common.Address) (*token.Metadata, error) {
	meta := new(token.Metadata)
	ok, err := tx.decode(hashKey(tokenPrefix, addr.Bytes()), meta)
	if err != nil || !ok {
		return nil, err
	}
	return meta, nil
}

// PutToken stores metadata and records new tokens in the token index.
func (tx *Tx) PutToken(meta *token.Metadata) error {
	key := hashKey(tokenPrefix, meta.Address.Bytes())
	known, err := tx.decode(key, nil)
	if err != nil {
		return err
	}
	if !known {
		list, err := tx.Tokens()
		if err != nil {
			return err
		}
		list = append(list, meta.Address)
		if err := tx.encode(hashKey(tokenListKey), list); err != nil {
			return err
		}
	}
	stored := meta.Clone()
	if stored.TotalSupply == nil {
		stored.TotalSupply = big.NewInt(0)
	}
	return tx.encode(key, stored)
}

// Tokens lists registered token addresses in registration order.
func (tx *Tx) Tokens() ([]common.Address, error) {
	var list []common.Address
	if _, err := tx.decode(hashKey(tokenListKey), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (tx *Tx) GetBalance(tok, holder common.Address) (*big.Int, error) {
	return tx.getAmount(hashKey(balancePrefix, tok.Bytes(), holder.Bytes()))
}

func (tx *Tx) PutBalance(tok, holder common.Address, amount *big.Int) error {
	return tx.encode(hashKey(balancePrefix, tok.Bytes(), holder.Bytes()), amount)
}

func (tx *Tx) GetAllowance(tok, owner, spender common.Address) (*big.Int, error) {
	return tx.getAmount(hashKey(allowancePrefix, tok.Bytes(), owner.Bytes(), spender.Bytes()))
}

func (tx *Tx) PutAllowance(tok, owner, spender common.Address, amount *big.Int) error {
	return tx.encode(hashKey(allowancePrefix, tok.Bytes(), owner.Bytes(), spender.Bytes()), amount)
}

// HasRole reports whether account holds role within scope.
func (tx *Tx) HasRole(scope common.Address, role nativecommon.Role, account common.Address) (bool, error) {
	var granted bool
	if _, err := tx.decode(hashKey(rolePrefix, scope.Bytes(), []byte(role), account.Bytes()), &granted); err != nil {
		return false, err
	}
	return granted, nil
}

// SetRole grants or revokes role for account within scope.
func (tx *Tx) SetRole(scope common.Address, role nativecommon.Role, account common.Address, granted bool) error {
	return tx.encode(hashKey(rolePrefix, scope.Bytes(), []byte(role), account.Bytes()), granted)
}

func (tx *Tx) getAmount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := tx.decode(key, value)
	if err != nil || !ok {
		return nil, err
	}
	return value, nil
}
