package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/custody_vault/internal/access"
)

var (
	// ErrEnforcedPause rejects gated operations while the vault is paused.
	ErrEnforcedPause = errors.New("enforced pause")

	// ErrAlreadyPaused rejects Pause on a paused vault. It also matches
	// ErrEnforcedPause.
	ErrAlreadyPaused error = &alreadyPausedError{msg: "already paused"}

	// ErrNotPaused rejects Unpause on an active vault.
	ErrNotPaused = errors.New("expected pause")
)

type alreadyPausedError struct{ msg string }

func (e *alreadyPausedError) Error() string { return e.msg }

func (*alreadyPausedError) Is(target error) bool { return target == ErrEnforcedPause }

// Reader exposes the paused flag.
type Reader interface {
	Paused(ctx context.Context) (bool, error)
}

// Store persists the paused flag inside a unit of work.
type Store interface {
	Reader
	access.OwnerReader
	SetPaused(ctx context.Context, paused bool) error
}

// Check fails with ErrEnforcedPause when the gate is closed.
func Check(ctx context.Context, st Reader) error {
	paused, err := st.Paused(ctx)
	if err != nil {
		return fmt.Errorf("load paused flag: %w", err)
	}
	if paused {
		return ErrEnforcedPause
	}
	return nil
}

// Pause closes the gate. Only the owner may call it.
func Pause(ctx context.Context, st Store, caller common.Address) error {
	if err := access.RequireOwner(ctx, st, caller); err != nil {
		return err
	}
	paused, err := st.Paused(ctx)
	if err != nil {
		return fmt.Errorf("load paused flag: %w", err)
	}
	if paused {
		return ErrAlreadyPaused
	}
	return st.SetPaused(ctx, true)
}

// Unpause reopens the gate. Only the owner may call it.
func Unpause(ctx context.Context, st Store, caller common.Address) error {
	if err := access.RequireOwner(ctx, st, caller); err != nil {
		return err
	}
	paused, err := st.Paused(ctx)
	if err != nil {
		return fmt.Errorf("load paused flag: %w", err)
	}
	if !paused {
		return ErrNotPaused
	}
	return st.SetPaused(ctx, false)
}
