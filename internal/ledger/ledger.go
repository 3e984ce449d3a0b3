package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance occurs when a debit exceeds the recorded balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOverflow occurs when a credit would exceed the 256-bit balance range.
	ErrOverflow = errors.New("balance overflow")

	// ErrZeroAmount rejects postings of zero units.
	ErrZeroAmount = errors.New("amount must be positive")
)

// InsufficientBalanceError identifies the account and asset of a failed debit.
type InsufficientBalanceError struct {
	Account common.Address
	Asset   common.Address
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for account %s asset %s", e.Account.Hex(), e.Asset.Hex())
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// Reader looks up balances. Implementations return zero for unseen pairs.
type Reader interface {
	Balance(ctx context.Context, account, asset common.Address) (*uint256.Int, error)
}

// Store persists balances inside a unit of work.
type Store interface {
	Reader
	SetBalance(ctx context.Context, account, asset common.Address, amount *uint256.Int) error
}

// BalanceOf returns the recorded balance of account in asset.
func BalanceOf(ctx context.Context, st Reader, account, asset common.Address) (*uint256.Int, error) {
	bal, err := st.Balance(ctx, account, asset)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return new(uint256.Int), nil
	}
	return bal, nil
}

// Credit adds amount to the balance and returns the new balance. It must only
// be called after the matching units entered custody.
func Credit(ctx context.Context, st Store, account, asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	bal, err := BalanceOf(ctx, st, account, asset)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	next, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return nil, ErrOverflow
	}
	if err := st.SetBalance(ctx, account, asset, next); err != nil {
		return nil, fmt.Errorf("store balance: %w", err)
	}
	return next, nil
}

// Debit subtracts amount from the balance and returns the new balance. The
// matching move out of custody must happen in the same unit of work.
func Debit(ctx context.Context, st Store, account, asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	bal, err := BalanceOf(ctx, st, account, asset)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	if bal.Lt(amount) {
		return nil, &InsufficientBalanceError{Account: account, Asset: asset}
	}
	next := new(uint256.Int).Sub(bal, amount)
	if err := st.SetBalance(ctx, account, asset, next); err != nil {
		return nil, fmt.Errorf("store balance: %w", err)
	}
	return next, nil
}
