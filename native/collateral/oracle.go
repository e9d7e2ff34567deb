package collateral

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Oracle reports USD prices with PriceDecimals decimals.
type Oracle interface {
	Price(token common.Address) (*big.Int, error)
}

type feedState interface {
	GetPriceFeed(manager, token common.Address) (*PriceFeed, error)
}

// FeedOracle serves the prices pushed to a manager through SetPrice and
// rejects prices older than the configured maximum age.
type FeedOracle struct {
	manager common.Address
	state   feedState
	maxAge  uint64
	now     func() uint64
}

// NewFeedOracle returns an oracle reading the feeds stored for manager.
func NewFeedOracle(manager common.Address, state feedState, maxAge uint64, now func() uint64) *FeedOracle {
	return &FeedOracle{manager: manager, state: state, maxAge: maxAge, now: now}
}

// Price returns the latest fresh price of token.
func (o *FeedOracle) Price(token common.Address) (*big.Int, error) {
	if o == nil || o.state == nil {
		return nil, ErrNilState
	}
	feed, err := o.state.GetPriceFeed(o.manager, token)
	if err != nil {
		return nil, err
	}
	if feed == nil || feed.Price == nil || feed.Price.Sign() <= 0 {
		return nil, ErrNoPrice
	}
	if o.maxAge > 0 && o.now != nil {
		if now := o.now(); now > feed.UpdatedAt && now-feed.UpdatedAt > o.maxAge {
			return nil, ErrStalePrice
		}
	}
	return new(big.Int).Set(feed.Price), nil
}

// StaticOracle is a fixed price table.
type StaticOracle map[common.Address]*big.Int

// Price implements Oracle.
func (s StaticOracle) Price(token common.Address) (*big.Int, error) {
	price, ok := s[token]
	if !ok || price == nil || price.Sign() <= 0 {
		return nil, ErrNoPrice
	}
	return new(big.Int).Set(price), nil
}

// USDValue converts amount of a token with the given decimals into USD at
// price: amount*price/10^decimals.
func USDValue(amount, price *big.Int, decimals uint8) *big.Int {
	if amount == nil || amount.Sign() <= 0 || price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, price)
	return out.Quo(out, pow10(decimals))
}

// FromUSD converts a USD value back into token units, rounding down.
func FromUSD(value, price *big.Int, decimals uint8) *big.Int {
	if value == nil || value.Sign() <= 0 || price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(value, pow10(decimals))
	return out.Quo(out, price)
}

// withinDeviation reports |next-prev| <= prev*bps/10000.
func withinDeviation(prev, next *big.Int, bps uint64) bool {
	if bps == 0 || prev == nil || prev.Sign() <= 0 {
		return true
	}
	diff := new(big.Int).Sub(next, prev)
	diff.Abs(diff).Mul(diff, big.NewInt(maxBps))
	bound := new(big.Int).Mul(prev, new(big.Int).SetUint64(bps))
	return diff.Cmp(bound) <= 0
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
