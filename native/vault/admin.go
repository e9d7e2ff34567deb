package vault

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
)

// Pause halts supply, borrow, protocol borrow and staking on this vault.
// Exits (withdraw, repay, claim, liquidate, unstake) remain available.
func (e *Engine) Pause(caller common.Address) error {
	return e.updateInfo(caller, "paused", func(info *Info) (string, error) {
		info.Paused = true
		return "true", nil
	})
}

// Unpause lifts a vault-level pause.
func (e *Engine) Unpause(caller common.Address) error {
	return e.updateInfo(caller, "paused", func(info *Info) (string, error) {
		info.Paused = false
		return "false", nil
	})
}

// SetActive toggles whether the vault accepts new exposure.
func (e *Engine) SetActive(caller common.Address, active bool) error {
	return e.updateInfo(caller, "active", func(info *Info) (string, error) {
		info.IsActive = active
		return strconv.FormatBool(active), nil
	})
}

// SetMaxLiquidity updates the supply cap. Zero removes the cap.
func (e *Engine) SetMaxLiquidity(caller common.Address, limit *big.Int) error {
	return e.updateInfo(caller, "maxLiquidity", func(info *Info) (string, error) {
		if limit == nil || limit.Sign() < 0 {
			return "", ErrInvalidAmount
		}
		info.MaxLiquidity = new(big.Int).Set(limit)
		return limit.String(), nil
	})
}

// SetBorrowRates updates the rate curve: the base rate, the slope below the
// kink and the slope above it. A zero slope2 selects DefaultSlope2.
func (e *Engine) SetBorrowRates(caller common.Address, base, slope, slope2 uint64) error {
	return e.updateInfo(caller, "borrowRates", func(info *Info) (string, error) {
		if base > maxBps || slope > maxBps || slope2 > 10*maxBps {
			return "", fmt.Errorf("%w: borrow rate out of range", ErrInvalidParams)
		}
		if slope2 == 0 {
			slope2 = DefaultSlope2
		}
		info.BorrowBaseRate = base
		info.BorrowSlope = slope
		info.BorrowSlope2 = slope2
		return fmt.Sprintf("%d/%d/%d", base, slope, slope2), nil
	})
}

// SetCrossCollateral names the collateral manager and toggles whether the
// vault lends against collateral priced across vaults. Disabling stops new
// cross-collateral borrows; existing loans keep accruing and can be repaid.
func (e *Engine) SetCrossCollateral(caller, manager common.Address, enabled bool) error {
	return e.updateInfo(caller, "crossCollateral", func(info *Info) (string, error) {
		if manager == (common.Address{}) {
			return "", fmt.Errorf("%w: collateral manager required", ErrInvalidParams)
		}
		info.CollateralManager = manager
		info.CrossCollateral = enabled
		return fmt.Sprintf("%s/%t", manager.Hex(), enabled), nil
	})
}

// SetTreasury updates the fallback fee recipient.
func (e *Engine) SetTreasury(caller, treasury common.Address) error {
	return e.updateInfo(caller, "treasury", func(info *Info) (string, error) {
		if treasury == (common.Address{}) {
			return "", fmt.Errorf("%w: treasury required", ErrInvalidParams)
		}
		info.Treasury = treasury
		return treasury.Hex(), nil
	})
}

func (e *Engine) updateInfo(caller common.Address, field string, apply func(*Info) (string, error)) error {
	info, _, err := e.load()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	value, err := apply(info)
	if err != nil {
		return err
	}
	if err := e.state.PutVaultInfo(info); err != nil {
		return err
	}
	e.emitConfigured(caller, field, value)
	return nil
}

func (e *Engine) emitConfigured(caller common.Address, field, value string) {
	e.emitter.Emit(events.VaultConfigured{Vault: e.address, Caller: caller, Field: field, Value: value})
}
