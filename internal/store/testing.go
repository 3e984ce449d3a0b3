package store

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SeedBalance is a test helper that writes a balance directly into an
// in-memory store, bypassing the unit of work and the event log.
func SeedBalance(m *Memory, account, asset common.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey{account, asset}] = amount.Clone()
}

// TotalBalance sums every recorded balance of asset in an in-memory store.
func TotalBalance(m *Memory, asset common.Address) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := new(uint256.Int)
	for key, bal := range m.balances {
		if key.asset == asset {
			total.Add(total, bal)
		}
	}
	return total
}
