package state

import (
	"github.com/ethereum/go-ethereum/common"

	"cantorfi/native/collateral"
)

func (tx *Tx) GetCollateralConfig(addr common.Address) (*collateral.Config, error) {
	cfg := new(collateral.Config)
	ok, err := tx.decode(hashKey(collateralPrefix, addr.Bytes()), cfg)
	if err != nil || !ok {
		return nil, err
	}
	return cfg, nil
}

func (tx *Tx) PutCollateralConfig(cfg *collateral.Config) error {
	return tx.encode(hashKey(collateralPrefix, cfg.Address.Bytes()), cfg)
}

// GetPriceFeed returns the last price pushed to manager for token.
func (tx *Tx) GetPriceFeed(manager, token common.Address) (*collateral.PriceFeed, error) {
	feed := new(collateral.PriceFeed)
	ok, err := tx.decode(hashKey(pricePrefix, manager.Bytes(), token.Bytes()), feed)
	if err != nil || !ok {
		return nil, err
	}
	return feed, nil
}

func (tx *Tx) PutPriceFeed(manager common.Address, feed *collateral.PriceFeed) error {
	return tx.encode(hashKey(pricePrefix, manager.Bytes(), feed.Token.Bytes()), feed)
}
