package custody

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type holding struct {
	asset  common.Address
	holder common.Address
}

type approval struct {
	asset   common.Address
	holder  common.Address
	spender common.Address
}

// Book simulates fungible token contracts in memory. Pulls out of any account
// other than the custodian behave like an ERC-20 transferFrom by the
// custodian: they need both balance and allowance.
type Book struct {
	mu         sync.Mutex
	custodian  common.Address
	balances   map[holding]*uint256.Int
	allowances map[approval]*uint256.Int
}

// NewBook creates an empty token book whose pulls are made by custodian.
func NewBook(custodian common.Address) *Book {
	return &Book{
		custodian:  custodian,
		balances:   make(map[holding]*uint256.Int),
		allowances: make(map[approval]*uint256.Int),
	}
}

// Custodian returns the address that holds vault funds.
func (b *Book) Custodian() common.Address {
	return b.custodian
}

// Mint creates amount units of asset for holder.
func (b *Book) Mint(asset, holder common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := holding{asset, holder}
	next, overflow := new(uint256.Int).AddOverflow(b.balanceLocked(key), amount)
	if overflow {
		return ErrSupplyOverflow
	}
	b.balances[key] = next
	return nil
}

// Approve sets the amount spender may pull from holder.
func (b *Book) Approve(asset, holder, spender common.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[approval{asset, holder, spender}] = amount.Clone()
}

// BalanceOf returns how many units of asset holder owns.
func (b *Book) BalanceOf(asset, holder common.Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceLocked(holding{asset, holder}).Clone()
}

// Allowance returns what spender may still pull from holder.
func (b *Book) Allowance(asset, holder, spender common.Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.allowances[approval{asset, holder, spender}]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Move implements Mover.
func (b *Book) Move(_ context.Context, m Movement) error {
	if m.From == m.To {
		return ErrSelfMove
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	from := holding{m.Asset, m.From}
	to := holding{m.Asset, m.To}

	fromBal := b.balanceLocked(from)
	if fromBal.Lt(m.Amount) {
		return ErrInsufficientFunds
	}

	var allowKey approval
	pull := m.From != b.custodian
	if pull {
		allowKey = approval{m.Asset, m.From, b.custodian}
		allowed, ok := b.allowances[allowKey]
		if !ok || allowed.Lt(m.Amount) {
			return ErrInsufficientAllowance
		}
	}

	toNext, overflow := new(uint256.Int).AddOverflow(b.balanceLocked(to), m.Amount)
	if overflow {
		return ErrSupplyOverflow
	}

	b.balances[from] = new(uint256.Int).Sub(fromBal, m.Amount)
	b.balances[to] = toNext
	if pull {
		b.allowances[allowKey] = new(uint256.Int).Sub(b.allowances[allowKey], m.Amount)
	}
	return nil
}

// MintTo implements Faucet.
func (b *Book) MintTo(_ context.Context, asset, holder common.Address, amount *uint256.Int) error {
	return b.Mint(asset, holder, amount)
}

// ApproveCustodian implements Faucet.
func (b *Book) ApproveCustodian(_ context.Context, asset, holder common.Address, amount *uint256.Int) error {
	b.Approve(asset, holder, b.custodian, amount)
	return nil
}

// HoldingOf implements Faucet.
func (b *Book) HoldingOf(_ context.Context, asset, holder common.Address) (Holding, error) {
	return Holding{Balance: b.BalanceOf(asset, holder), Allowance: b.Allowance(asset, holder, b.custodian)}, nil
}

func (b *Book) balanceLocked(key holding) *uint256.Int {
	if bal, ok := b.balances[key]; ok {
		return bal
	}
	return new(uint256.Int)
}
