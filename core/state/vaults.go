package state

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/native/factory"
	"cantorfi/native/fees"
	"cantorfi/native/staking"
	"cantorfi/native/vault"
)

func (tx *Tx) GetVaultInfo(addr common.Address) (*vault.Info, error) {
	info := new(vault.Info)
	ok, err := tx.decode(hashKey(vaultInfoPrefix, addr.Bytes()), info)
	if err != nil || !ok {
		return nil, err
	}
	return info, nil
}

func (tx *Tx) PutVaultInfo(info *vault.Info) error {
	return tx.encode(hashKey(vaultInfoPrefix, info.Address.Bytes()), info)
}

func (tx *Tx) GetVaultState(addr common.Address) (*vault.State, error) {
	st := new(vault.State)
	ok, err := tx.decode(hashKey(vaultStatePrefix, addr.Bytes()), st)
	if err != nil || !ok {
		return nil, err
	}
	return st, nil
}

func (tx *Tx) PutVaultState(addr common.Address, st *vault.State) error {
	return tx.encode(hashKey(vaultStatePrefix, addr.Bytes()), st)
}

func (tx *Tx) GetPosition(vaultAddr, user common.Address) (*vault.Position, error) {
	pos := new(vault.Position)
	ok, err := tx.decode(hashKey(positionPrefix, vaultAddr.Bytes(), user.Bytes()), pos)
	if err != nil || !ok {
		return nil, err
	}
	return pos, nil
}

func (tx *Tx) PutPosition(vaultAddr, user common.Address, pos *vault.Position) error {
	return tx.encode(hashKey(positionPrefix, vaultAddr.Bytes(), user.Bytes()), pos)
}

// GetStakedAmount returns the CVT the vault believes user has staked.
func (tx *Tx) GetStakedAmount(vaultAddr, user common.Address) (*big.Int, error) {
	return tx.getAmount(hashKey(stakedPrefix, vaultAddr.Bytes(), user.Bytes()))
}

func (tx *Tx) PutStakedAmount(vaultAddr, user common.Address, amount *big.Int) error {
	return tx.encode(hashKey(stakedPrefix, vaultAddr.Bytes(), user.Bytes()), amount)
}

func (tx *Tx) GetPool(addr common.Address) (*staking.Pool, error) {
	pool := new(staking.Pool)
	ok, err := tx.decode(hashKey(poolPrefix, addr.Bytes()), pool)
	if err != nil || !ok {
		return nil, err
	}
	return pool, nil
}

func (tx *Tx) PutPool(pool *staking.Pool) error {
	return tx.encode(hashKey(poolPrefix, pool.Address.Bytes()), pool)
}

func (tx *Tx) GetStakePosition(pool, user common.Address) (*staking.StakePosition, error) {
	pos := new(staking.StakePosition)
	ok, err := tx.decode(hashKey(stakePrefix, pool.Bytes(), user.Bytes()), pos)
	if err != nil || !ok {
		return nil, err
	}
	return pos, nil
}

func (tx *Tx) PutStakePosition(pool, user common.Address, pos *staking.StakePosition) error {
	return tx.encode(hashKey(stakePrefix, pool.Bytes(), user.Bytes()), pos)
}

func (tx *Tx) GetCollector(addr common.Address) (*fees.Collector, error) {
	collector := new(fees.Collector)
	ok, err := tx.decode(hashKey(collectorPrefix, addr.Bytes()), collector)
	if err != nil || !ok {
		return nil, err
	}
	return collector, nil
}

func (tx *Tx) PutCollector(collector *fees.Collector) error {
	return tx.encode(hashKey(collectorPrefix, collector.Address.Bytes()), collector)
}

func (tx *Tx) GetFeeStats(collector, tok common.Address) (*fees.Stats, error) {
	stats := new(fees.Stats)
	ok, err := tx.decode(hashKey(feeStatsPrefix, collector.Bytes(), tok.Bytes()), stats)
	if err != nil || !ok {
		return nil, err
	}
	return stats, nil
}

func (tx *Tx) PutFeeStats(collector, tok common.Address, stats *fees.Stats) error {
	return tx.encode(hashKey(feeStatsPrefix, collector.Bytes(), tok.Bytes()), stats)
}

func (tx *Tx) GetProtocol(addr common.Address) (*factory.Protocol, error) {
	protocol := new(factory.Protocol)
	ok, err := tx.decode(hashKey(protocolPrefix, addr.Bytes()), protocol)
	if err != nil || !ok {
		return nil, err
	}
	return protocol, nil
}

func (tx *Tx) PutProtocol(addr common.Address, protocol *factory.Protocol) error {
	return tx.encode(hashKey(protocolPrefix, addr.Bytes()), protocol)
}

func (tx *Tx) GetVaultByID(registry common.Address, id uint64) (common.Address, bool, error) {
	var addr common.Address
	ok, err := tx.decode(hashKey(vaultIndexPrefix, registry.Bytes(), idBytes(id)), &addr)
	return addr, ok, err
}

func (tx *Tx) PutVaultByID(registry common.Address, id uint64, vaultAddr common.Address) error {
	return tx.encode(hashKey(vaultIndexPrefix, registry.Bytes(), idBytes(id)), vaultAddr)
}

func idBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}
