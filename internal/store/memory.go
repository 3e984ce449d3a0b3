package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/congo-pay/custody_vault/internal/events"
)

type balanceKey struct {
	account common.Address
	asset   common.Address
}

// Memory is a concurrency-safe in-memory store. Mutating calls are serialized
// on a single lock and stage their writes in an overlay that is merged only
// when the call succeeds.
type Memory struct {
	mu          sync.RWMutex
	initialized bool
	owner       common.Address
	paused      bool
	whitelist   map[common.Address]bool
	balances    map[balanceKey]*uint256.Int
	log         []events.Event
}

// NewMemory creates an empty in-memory store. Call Init before use.
func NewMemory() *Memory {
	return &Memory{
		whitelist: make(map[common.Address]bool),
		balances:  make(map[balanceKey]*uint256.Int),
	}
}

func (m *Memory) Init(_ context.Context, owner common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		m.owner = owner
		m.initialized = true
	}
	return nil
}

func (m *Memory) Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrNotInitialized
	}

	tx := &memoryTx{
		base:      m,
		whitelist: make(map[common.Address]bool),
		balances:  make(map[balanceKey]*uint256.Int),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.merge()
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(ctx context.Context, r Reader) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	return fn(ctx, memoryView{m: m})
}

func (m *Memory) Events(_ context.Context, after uint64, limit int) ([]events.Event, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Seq n lives at index n-1.
	if after >= uint64(len(m.log)) {
		return []events.Event{}, nil
	}
	end := int(after) + limit
	if end > len(m.log) {
		end = len(m.log)
	}
	out := make([]events.Event, end-int(after))
	copy(out, m.log[after:end])
	return out, nil
}

func (m *Memory) balance(account, asset common.Address) *uint256.Int {
	if bal, ok := m.balances[balanceKey{account, asset}]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

type memoryView struct {
	m *Memory
}

func (v memoryView) Owner(context.Context) (common.Address, error) { return v.m.owner, nil }

func (v memoryView) Paused(context.Context) (bool, error) { return v.m.paused, nil }

func (v memoryView) IsWhitelisted(_ context.Context, asset common.Address) (bool, error) {
	return v.m.whitelist[asset], nil
}

func (v memoryView) Balance(_ context.Context, account, asset common.Address) (*uint256.Int, error) {
	return v.m.balance(account, asset), nil
}

type memoryTx struct {
	base      *Memory
	owner     *common.Address
	paused    *bool
	whitelist map[common.Address]bool
	balances  map[balanceKey]*uint256.Int
	log       []events.Event
}

func (t *memoryTx) Owner(context.Context) (common.Address, error) {
	if t.owner != nil {
		return *t.owner, nil
	}
	return t.base.owner, nil
}

func (t *memoryTx) Paused(context.Context) (bool, error) {
	if t.paused != nil {
		return *t.paused, nil
	}
	return t.base.paused, nil
}

func (t *memoryTx) IsWhitelisted(_ context.Context, asset common.Address) (bool, error) {
	if accepted, ok := t.whitelist[asset]; ok {
		return accepted, nil
	}
	return t.base.whitelist[asset], nil
}

func (t *memoryTx) Balance(_ context.Context, account, asset common.Address) (*uint256.Int, error) {
	if bal, ok := t.balances[balanceKey{account, asset}]; ok {
		return bal.Clone(), nil
	}
	return t.base.balance(account, asset), nil
}

func (t *memoryTx) SetOwner(_ context.Context, owner common.Address) error {
	t.owner = &owner
	return nil
}

func (t *memoryTx) SetPaused(_ context.Context, paused bool) error {
	t.paused = &paused
	return nil
}

func (t *memoryTx) SetWhitelisted(_ context.Context, asset common.Address, accepted bool) error {
	t.whitelist[asset] = accepted
	return nil
}

func (t *memoryTx) SetBalance(_ context.Context, account, asset common.Address, amount *uint256.Int) error {
	t.balances[balanceKey{account, asset}] = amount.Clone()
	return nil
}

func (t *memoryTx) AppendEvent(_ context.Context, e events.Event) (events.Event, error) {
	e.Seq = uint64(len(t.base.log) + len(t.log) + 1)
	t.log = append(t.log, e)
	return e, nil
}

// merge applies the staged overlay. The caller holds the write lock.
func (t *memoryTx) merge() {
	m := t.base
	if t.owner != nil {
		m.owner = *t.owner
	}
	if t.paused != nil {
		m.paused = *t.paused
	}
	for asset, accepted := range t.whitelist {
		m.whitelist[asset] = accepted
	}
	for key, bal := range t.balances {
		m.balances[key] = bal
	}
	m.log = append(m.log, t.log...)
}
