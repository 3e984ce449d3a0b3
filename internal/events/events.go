package events

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Kind names a vault observation.
type Kind string

const (
	KindDeposited            Kind = "Deposited"
	KindWithdrew             Kind = "Withdrew"
	KindWhitelistUpdated     Kind = "WhitelistUpdated"
	KindPaused               Kind = "Paused"
	KindUnpaused             Kind = "Unpaused"
	KindOwnershipTransferred Kind = "OwnershipTransferred"
)

// Event is one entry of the vault audit log. Seq is assigned by the store when
// the event is appended and is strictly increasing across the whole log.
//
// Only the fields relevant to Kind are populated:
//   - Deposited / Withdrew: Account, Asset, Amount
//   - WhitelistUpdated: Asset, Accepted
//   - Paused / Unpaused: Account (the owner that toggled the gate)
//   - OwnershipTransferred: PreviousOwner, NewOwner
type Event struct {
	Seq           uint64
	ID            uuid.UUID
	Kind          Kind
	Account       common.Address
	Asset         common.Address
	Amount        *uint256.Int
	Accepted      bool
	PreviousOwner common.Address
	NewOwner      common.Address
	RequestID     string
	At            time.Time
}

func newEvent(kind Kind) Event {
	return Event{ID: uuid.New(), Kind: kind, At: time.Now().UTC()}
}

// Deposited records a credited deposit.
func Deposited(account, asset common.Address, amount *uint256.Int) Event {
	e := newEvent(KindDeposited)
	e.Account, e.Asset, e.Amount = account, asset, amount.Clone()
	return e
}

// Withdrew records a paid-out withdrawal.
func Withdrew(account, asset common.Address, amount *uint256.Int) Event {
	e := newEvent(KindWithdrew)
	e.Account, e.Asset, e.Amount = account, asset, amount.Clone()
	return e
}

// WhitelistUpdated records a registry change. It is emitted even when the
// value did not change.
func WhitelistUpdated(asset common.Address, accepted bool) Event {
	e := newEvent(KindWhitelistUpdated)
	e.Asset, e.Accepted = asset, accepted
	return e
}

// Paused records the gate closing.
func Paused(by common.Address) Event {
	e := newEvent(KindPaused)
	e.Account = by
	return e
}

// Unpaused records the gate reopening.
func Unpaused(by common.Address) Event {
	e := newEvent(KindUnpaused)
	e.Account = by
	return e
}

// OwnershipTransferred records an owner change.
func OwnershipTransferred(previous, next common.Address) Event {
	e := newEvent(KindOwnershipTransferred)
	e.PreviousOwner, e.NewOwner = previous, next
	return e
}

// AmountString renders Amount in base 10, or "" when the event carries none.
func (e Event) AmountString() string {
	if e.Amount == nil {
		return ""
	}
	return e.Amount.Dec()
}
