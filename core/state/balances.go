package state

import (
	"math/big"

	"rewardvault/core/types"
)

func balanceKey(owner [20]byte, asset types.AssetRef) []byte {
	return joinKey(bankBalancePrefix, owner[:], []byte(asset.TokenID), uint64Bytes(asset.Nonce))
}

// BankBalanceGet returns the stored balance, or zero when none is recorded.
func (m *Manager) BankBalanceGet(owner [20]byte, asset types.AssetRef) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(balanceKey(owner, asset), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// BankBalancesPut writes every entry in one atomic batch.
func (m *Manager) BankBalancesPut(entries []types.BalanceEntry) error {
	keys := make([][]byte, 0, len(entries))
	values := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		amount := entry.Amount
		if amount == nil {
			amount = big.NewInt(0)
		}
		keys = append(keys, balanceKey(entry.Owner, entry.Asset))
		values = append(values, amount)
	}
	return m.kvBatch(keys, values)
}
