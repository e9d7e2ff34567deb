package state

var (
	tokenPrefix      = []byte("token/meta/")
	tokenListKey     = []byte("token/list")
	balancePrefix    = []byte("token/balance/")
	allowancePrefix  = []byte("token/allowance/")
	rolePrefix       = []byte("role/")
	vaultInfoPrefix  = []byte("vault/info/")
	vaultStatePrefix = []byte("vault/state/")
	positionPrefix   = []byte("vault/position/")
	stakedPrefix     = []byte("vault/staked/")
	poolPrefix       = []byte("staking/pool/")
	stakePrefix      = []byte("staking/position/")
	collectorPrefix  = []byte("fees/collector/")
	feeStatsPrefix   = []byte("fees/stats/")
	protocolPrefix   = []byte("protocol/record/")
	vaultIndexPrefix = []byte("protocol/vault/")
	collateralPrefix = []byte("collateral/config/")
	pricePrefix      = []byte("collateral/price/")
)
