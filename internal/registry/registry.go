// Package registry holds the asset whitelist. It is a pure policy table: it
// never inspects the asset itself.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/custody_vault/internal/access"
)

// ErrNotWhitelisted rejects operations on assets the vault does not accept.
var ErrNotWhitelisted = errors.New("not whitelisted")

// NotWhitelistedError carries the rejected asset.
type NotWhitelistedError struct {
	Asset common.Address
}

func (e *NotWhitelistedError) Error() string {
	return fmt.Sprintf("asset %s not whitelisted", e.Asset.Hex())
}

func (e *NotWhitelistedError) Is(target error) bool {
	return target == ErrNotWhitelisted
}

// Reader answers whitelist lookups. Unknown assets are not accepted.
type Reader interface {
	IsWhitelisted(ctx context.Context, asset common.Address) (bool, error)
}

// Store persists whitelist entries inside a unit of work.
type Store interface {
	Reader
	access.OwnerReader
	SetWhitelisted(ctx context.Context, asset common.Address, accepted bool) error
}

// IsWhitelisted reports whether asset is currently accepted.
func IsWhitelisted(ctx context.Context, st Reader, asset common.Address) (bool, error) {
	return st.IsWhitelisted(ctx, asset)
}

// Require fails with a NotWhitelistedError unless asset is accepted.
func Require(ctx context.Context, st Reader, asset common.Address) error {
	ok, err := st.IsWhitelisted(ctx, asset)
	if err != nil {
		return fmt.Errorf("load whitelist entry: %w", err)
	}
	if !ok {
		return &NotWhitelistedError{Asset: asset}
	}
	return nil
}

// SetWhitelisted records accepted for asset. Writing the current value again
// succeeds.
func SetWhitelisted(ctx context.Context, st Store, caller, asset common.Address, accepted bool) error {
	if err := access.RequireOwner(ctx, st, caller); err != nil {
		return err
	}
	if access.IsZero(asset) {
		return access.ErrInvalidAccount
	}
	return st.SetWhitelisted(ctx, asset, accepted)
}
