package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/congo-pay/custody_vault/internal/events"
)

var (
	// ErrNotInitialized is returned before Init has recorded an owner.
	ErrNotInitialized = errors.New("vault state not initialized")

	// ErrCommit wraps failures of the final commit of a unit of work. Effects
	// performed outside the store during the unit may already have happened.
	ErrCommit = errors.New("commit unit of work")
)

const (
	// DefaultEventPage is used when Events is called without a limit.
	DefaultEventPage = 100
	// MaxEventPage caps a single Events page.
	MaxEventPage = 1000
)

// Reader is a consistent read-only view of the vault state.
type Reader interface {
	Owner(ctx context.Context) (common.Address, error)
	Paused(ctx context.Context) (bool, error)
	IsWhitelisted(ctx context.Context, asset common.Address) (bool, error)
	Balance(ctx context.Context, account, asset common.Address) (*uint256.Int, error)
}

// Tx is a unit of work. Nothing written through it is visible to other
// callers until the enclosing Atomically call returns nil.
type Tx interface {
	Reader
	SetOwner(ctx context.Context, owner common.Address) error
	SetPaused(ctx context.Context, paused bool) error
	SetWhitelisted(ctx context.Context, asset common.Address, accepted bool) error
	SetBalance(ctx context.Context, account, asset common.Address, amount *uint256.Int) error
	// AppendEvent stages e and returns it with its sequence number assigned.
	AppendEvent(ctx context.Context, e events.Event) (events.Event, error)
}

// Store is the vault persistence backend.
type Store interface {
	// Init records owner as the initial administrator unless one exists.
	Init(ctx context.Context, owner common.Address) error
	// Atomically runs fn as the only mutating call in flight. A non-nil error
	// from fn discards every write staged through tx.
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// View runs fn against a snapshot.
	View(ctx context.Context, fn func(ctx context.Context, r Reader) error) error
	// Events pages the audit log in sequence order, starting after seq.
	Events(ctx context.Context, after uint64, limit int) ([]events.Event, error)
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultEventPage
	case limit > MaxEventPage:
		return MaxEventPage
	default:
		return limit
	}
}
