package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/congo-pay/custody_vault/internal/access"
	"github.com/congo-pay/custody_vault/internal/custody"
	"github.com/congo-pay/custody_vault/internal/events"
	"github.com/congo-pay/custody_vault/internal/gate"
	"github.com/congo-pay/custody_vault/internal/ledger"
	"github.com/congo-pay/custody_vault/internal/notification"
	"github.com/congo-pay/custody_vault/internal/registry"
	"github.com/congo-pay/custody_vault/internal/store"
)

// Service is the custodial vault. Every mutating method is one unit of work:
// either all of its effects (state, ledger, external movement, event) happen
// or none are observable.
type Service struct {
	store     store.Store
	mover     custody.Mover
	custodian common.Address
	notifier  notification.Notifier
	logger    *slog.Logger
}

// Receipt is returned by Deposit and Withdraw.
type Receipt struct {
	Event   events.Event
	Balance *uint256.Int
}

// NewService wires a vault over st. Units held by custodian in mover back the
// ledger balances. notifier may be nil.
func NewService(st store.Store, mover custody.Mover, custodian common.Address, notifier notification.Notifier, logger *slog.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if mover == nil {
		return nil, fmt.Errorf("transfer capability is required")
	}
	if access.IsZero(custodian) {
		return nil, fmt.Errorf("custodian address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, mover: mover, custodian: custodian, notifier: notifier, logger: logger}, nil
}

// Custodian returns the address holding vault funds.
func (s *Service) Custodian() common.Address {
	return s.custodian
}

// Owner returns the current administrator.
func (s *Service) Owner(ctx context.Context) (common.Address, error) {
	var owner common.Address
	err := s.store.View(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		owner, err = access.Owner(ctx, r)
		return err
	})
	return owner, err
}

// Paused reports the gate state.
func (s *Service) Paused(ctx context.Context) (bool, error) {
	var paused bool
	err := s.store.View(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		paused, err = r.Paused(ctx)
		return err
	})
	return paused, err
}

// IsWhitelisted reports whether asset is accepted.
func (s *Service) IsWhitelisted(ctx context.Context, asset common.Address) (bool, error) {
	var ok bool
	err := s.store.View(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		ok, err = registry.IsWhitelisted(ctx, r, asset)
		return err
	})
	return ok, err
}

// BalanceOf returns the ledger balance of account in asset; zero when unseen.
func (s *Service) BalanceOf(ctx context.Context, account, asset common.Address) (*uint256.Int, error) {
	var bal *uint256.Int
	err := s.store.View(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		bal, err = ledger.BalanceOf(ctx, r, account, asset)
		return err
	})
	return bal, err
}

// Events pages the audit log after seq.
func (s *Service) Events(ctx context.Context, after uint64, limit int) ([]events.Event, error) {
	return s.store.Events(ctx, after, limit)
}

// SetWhitelisted records whether asset is accepted. Owner only; idempotent.
func (s *Service) SetWhitelisted(ctx context.Context, caller, asset common.Address, accepted bool) (events.Event, error) {
	return s.run(ctx, "set_whitelisted", func(ctx context.Context, tx store.Tx, u *unit) error {
		if err := registry.SetWhitelisted(ctx, tx, caller, asset, accepted); err != nil {
			return err
		}
		return u.emit(ctx, tx, events.WhitelistUpdated(asset, accepted))
	})
}

// Pause halts deposits and withdrawals. Owner only.
func (s *Service) Pause(ctx context.Context, caller common.Address) (events.Event, error) {
	return s.run(ctx, "pause", func(ctx context.Context, tx store.Tx, u *unit) error {
		if err := gate.Pause(ctx, tx, caller); err != nil {
			return err
		}
		return u.emit(ctx, tx, events.Paused(caller))
	})
}

// Unpause resumes deposits and withdrawals. Owner only.
func (s *Service) Unpause(ctx context.Context, caller common.Address) (events.Event, error) {
	return s.run(ctx, "unpause", func(ctx context.Context, tx store.Tx, u *unit) error {
		if err := gate.Unpause(ctx, tx, caller); err != nil {
			return err
		}
		return u.emit(ctx, tx, events.Unpaused(caller))
	})
}

// TransferOwnership hands the owner role to next. Owner only.
func (s *Service) TransferOwnership(ctx context.Context, caller, next common.Address) (events.Event, error) {
	return s.run(ctx, "transfer_ownership", func(ctx context.Context, tx store.Tx, u *unit) error {
		previous, err := access.TransferOwnership(ctx, tx, caller, next)
		if err != nil {
			return err
		}
		return u.emit(ctx, tx, events.OwnershipTransferred(previous, next))
	})
}

// Deposit pulls amount of asset from account into custody and credits the
// account's ledger balance.
func (s *Service) Deposit(ctx context.Context, account, asset common.Address, amount *uint256.Int) (Receipt, error) {
	var balance *uint256.Int
	ev, err := s.run(ctx, "deposit", func(ctx context.Context, tx store.Tx, u *unit) error {
		if err := s.precheck(ctx, tx, account, asset, amount); err != nil {
			return err
		}

		in := custody.Movement{Asset: asset, From: account, To: s.custodian, Amount: amount.Clone()}
		if err := s.move(ctx, in); err != nil {
			return err
		}
		u.compensateWith(in.Reverse())

		var err error
		balance, err = ledger.Credit(ctx, tx, account, asset, amount)
		if err != nil {
			return err
		}
		return u.emit(ctx, tx, events.Deposited(account, asset, amount))
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Event: ev, Balance: balance}, nil
}

// Withdraw debits the account's ledger balance and pays amount of asset out
// of custody. The asset must still be whitelisted: funds of a de-whitelisted
// asset stay locked until it is accepted again.
func (s *Service) Withdraw(ctx context.Context, account, asset common.Address, amount *uint256.Int) (Receipt, error) {
	var balance *uint256.Int
	ev, err := s.run(ctx, "withdraw", func(ctx context.Context, tx store.Tx, u *unit) error {
		if err := s.precheck(ctx, tx, account, asset, amount); err != nil {
			return err
		}

		var err error
		balance, err = ledger.Debit(ctx, tx, account, asset, amount)
		if err != nil {
			return err
		}
		if err := u.emit(ctx, tx, events.Withdrew(account, asset, amount)); err != nil {
			return err
		}

		// The outbound movement cannot be compensated, so it is the last step
		// before commit.
		out := custody.Movement{Asset: asset, From: s.custodian, To: account, Amount: amount.Clone()}
		if err := s.move(ctx, out); err != nil {
			return err
		}
		u.outbound = &out
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Event: ev, Balance: balance}, nil
}

// precheck runs the gate, whitelist and amount checks shared by deposit and
// withdraw, in that order. The custodian cannot hold a ledger balance: its
// custody holdings are what back every other balance.
func (s *Service) precheck(ctx context.Context, tx store.Tx, account, asset common.Address, amount *uint256.Int) error {
	if err := gate.Check(ctx, tx); err != nil {
		return err
	}
	if err := registry.Require(ctx, tx, asset); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ledger.ErrZeroAmount
	}
	if access.IsZero(account) || account == s.custodian {
		return access.ErrInvalidAccount
	}
	return nil
}

func (s *Service) move(ctx context.Context, m custody.Movement) error {
	if err := s.mover.Move(ctx, m); err != nil {
		return &TransferFailedError{Movement: m, Err: err}
	}
	return nil
}

// unit tracks what a call did outside the store so a failed call can be
// undone or reported.
type unit struct {
	event         events.Event
	emitted       bool
	compensations []custody.Movement
	outbound      *custody.Movement
}

func (u *unit) emit(ctx context.Context, tx store.Tx, e events.Event) error {
	e.RequestID = RequestIDFrom(ctx)
	staged, err := tx.AppendEvent(ctx, e)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	u.event = staged
	u.emitted = true
	return nil
}

func (u *unit) compensateWith(m custody.Movement) {
	u.compensations = append(u.compensations, m)
}

func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx, u *unit) error) (events.Event, error) {
	u := &unit{}
	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := fn(ctx, tx, u); err != nil {
			return err
		}
		if !u.emitted {
			return fmt.Errorf("%s: no event staged", op)
		}
		return nil
	})
	if err != nil {
		s.rollbackExternal(ctx, op, u, err)
		if errors.Is(err, store.ErrCommit) {
			return events.Event{}, fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
		s.logger.Debug("vault call rejected", slog.String("op", op), slog.Any("error", err))
		return events.Event{}, err
	}

	if s.notifier != nil {
		if nerr := s.notifier.Notify(context.WithoutCancel(ctx), u.event); nerr != nil {
			s.logger.Warn("event notification failed",
				slog.String("op", op),
				slog.Uint64("seq", u.event.Seq),
				slog.Any("error", nerr),
			)
		}
	}
	return u.event, nil
}

// rollbackExternal undoes external movements of a failed unit in reverse order.
func (s *Service) rollbackExternal(ctx context.Context, op string, u *unit, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(u.compensations) - 1; i >= 0; i-- {
		m := u.compensations[i]
		if err := s.mover.Move(ctx, m); err != nil {
			s.logger.Error("compensating transfer failed; reconciliation required",
				slog.String("op", op),
				slog.String("movement", m.String()),
				slog.Any("cause", cause),
				slog.Any("error", err),
			)
		}
	}
	if u.outbound != nil {
		s.logger.Error("outbound transfer completed but unit was not committed; reconciliation required",
			slog.String("op", op),
			slog.String("movement", u.outbound.String()),
			slog.Any("error", cause),
		)
	}
}
