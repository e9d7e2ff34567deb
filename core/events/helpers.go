package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatAddress(addr common.Address) string {
	return addr.Hex()
}

func setAmount(attrs map[string]string, key string, v *big.Int) {
	if v != nil && v.Sign() != 0 {
		attrs[key] = v.String()
	}
}
