package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnauthorized is returned when the caller does not hold the owner role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAccount is returned when the zero address is supplied where a
	// real account is required.
	ErrInvalidAccount = errors.New("invalid account")
)

// UnauthorizedError carries the rejected caller.
type UnauthorizedError struct {
	Caller common.Address
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized account %s", e.Caller.Hex())
}

// Is reports ErrUnauthorized so callers can match on the sentinel.
func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// OwnerReader exposes the current owner.
type OwnerReader interface {
	Owner(ctx context.Context) (common.Address, error)
}

// OwnerStore persists the owner inside a unit of work.
type OwnerStore interface {
	OwnerReader
	SetOwner(ctx context.Context, owner common.Address) error
}

// Owner returns the current administrator.
func Owner(ctx context.Context, st OwnerReader) (common.Address, error) {
	return st.Owner(ctx)
}

// RequireOwner fails with an UnauthorizedError unless caller is the owner.
func RequireOwner(ctx context.Context, st OwnerReader, caller common.Address) error {
	owner, err := st.Owner(ctx)
	if err != nil {
		return fmt.Errorf("load owner: %w", err)
	}
	if caller != owner {
		return &UnauthorizedError{Caller: caller}
	}
	return nil
}

// TransferOwnership hands the owner role to next and returns the previous owner.
func TransferOwnership(ctx context.Context, st OwnerStore, caller, next common.Address) (common.Address, error) {
	if err := RequireOwner(ctx, st, caller); err != nil {
		return common.Address{}, err
	}
	if IsZero(next) {
		return common.Address{}, ErrInvalidAccount
	}
	if err := st.SetOwner(ctx, next); err != nil {
		return common.Address{}, fmt.Errorf("store owner: %w", err)
	}
	return caller, nil
}

// IsZero reports whether addr is the empty identity.
func IsZero(addr common.Address) bool {
	return addr == (common.Address{})
}
