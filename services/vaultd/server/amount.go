package server

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"cantorfi/config"
)

// Amount is an on-ledger quantity rendered both in base units and in whole
// tokens.
type Amount struct {
	Raw     string `json:"raw"`
	Display string `json:"display"`
}

func newAmount(v *big.Int, decimals uint8) Amount {
	if v == nil {
		v = new(big.Int)
	}
	return Amount{
		Raw:     v.String(),
		Display: decimal.NewFromBigInt(v, -int32(decimals)).String(),
	}
}

// amountInput accepts either a base-unit integer or a decimal number of
// whole tokens, never both.
type amountInput struct {
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

func (in amountInput) resolve(decimals uint8) (*big.Int, error) {
	raw := strings.TrimSpace(in.Amount)
	display := strings.TrimSpace(in.Display)
	switch {
	case raw != "" && display != "":
		return nil, badRequest("amount and display are mutually exclusive")
	case raw != "":
		v, err := config.ParseAmount(raw)
		if err != nil {
			return nil, badRequest("%v", err)
		}
		return v, nil
	case display != "":
		return parseDisplay(display, decimals)
	default:
		return nil, badRequest("amount required")
	}
}

func parseDisplay(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, badRequest("invalid display amount %q", s)
	}
	if d.IsNegative() {
		return nil, badRequest("negative amount %q", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, badRequest("amount %q has more than %d decimals", s, decimals)
	}
	return scaled.BigInt(), nil
}
