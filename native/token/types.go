package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxDecimals bounds the precision of registered tokens. CVT scaling relies on
// 10^(18-decimals) being an integer.
const MaxDecimals = 18

// Metadata describes a fungible token tracked by the ledger.
type Metadata struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// Clone returns a deep copy of the metadata.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	if m.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(m.TotalSupply)
	}
	return &clone
}
