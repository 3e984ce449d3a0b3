package vault

import (
	"time"

	"github.com/congo-pay/custody_vault/internal/events"
)

// AmountRequest is the body of deposit and withdrawal calls. Amount is a
// base-10 integer string in the asset's base units.
type AmountRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// WhitelistRequest is the body of PUT /admin/assets/:asset.
type WhitelistRequest struct {
	Accepted *bool `json:"accepted"`
}

// OwnershipRequest is the body of POST /admin/ownership.
type OwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

// EventResponse is the wire form of an events.Event.
type EventResponse struct {
	Seq           uint64    `json:"seq"`
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Account       string    `json:"account,omitempty"`
	Asset         string    `json:"asset,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Accepted      *bool     `json:"accepted,omitempty"`
	PreviousOwner string    `json:"previous_owner,omitempty"`
	NewOwner      string    `json:"new_owner,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	At            time.Time `json:"at"`
}

// ReceiptResponse is returned by deposit and withdrawal calls.
type ReceiptResponse struct {
	Event   EventResponse `json:"event"`
	Balance string        `json:"balance"`
}

// EventPage is returned by GET /events.
type EventPage struct {
	Events []EventResponse `json:"events"`
	Next   uint64          `json:"next"`
}

func toEventResponse(e events.Event) EventResponse {
	out := EventResponse{
		Seq:       e.Seq,
		ID:        e.ID.String(),
		Kind:      string(e.Kind),
		RequestID: e.RequestID,
		At:        e.At,
	}
	switch e.Kind {
	case events.KindDeposited, events.KindWithdrew:
		out.Account = e.Account.Hex()
		out.Asset = e.Asset.Hex()
		out.Amount = e.AmountString()
	case events.KindWhitelistUpdated:
		accepted := e.Accepted
		out.Asset = e.Asset.Hex()
		out.Accepted = &accepted
	case events.KindPaused, events.KindUnpaused:
		out.Account = e.Account.Hex()
	case events.KindOwnershipTransferred:
		out.PreviousOwner = e.PreviousOwner.Hex()
		out.NewOwner = e.NewOwner.Hex()
	}
	return out
}

func toReceiptResponse(r Receipt) ReceiptResponse {
	return ReceiptResponse{Event: toEventResponse(r.Event), Balance: r.Balance.Dec()}
}
