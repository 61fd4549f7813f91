package state

var (
	donationLedgerKey      = []byte("donation/ledger")
	donationAssetClassKey  = []byte("donation/asset-class")
	donationRewardBatchKey = []byte("donation/reward-batch")

	bankBalancePrefix   = []byte("bank/balance/")
	registryTokenPrefix = []byte("registry/token/")
	registryRolesPrefix = []byte("registry/roles/")
	registryBatchPrefix = []byte("registry/batch/")
)
