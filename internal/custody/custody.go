package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientFunds means the source holds fewer units than requested.
	ErrInsufficientFunds = errors.New("insufficient external balance")

	// ErrInsufficientAllowance means the source has not approved the custodian
	// for the requested amount.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrSupplyOverflow rejects mints past the 256-bit range.
	ErrSupplyOverflow = errors.New("supply overflow")

	// ErrSelfMove rejects movements whose source and destination are the same.
	ErrSelfMove = errors.New("source and destination are the same account")
)

// Movement describes units of an asset changing hands outside the vault ledger.
type Movement struct {
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (m Movement) String() string {
	return fmt.Sprintf("%s %s -> %s (asset %s)", m.Amount.Dec(), m.From.Hex(), m.To.Hex(), m.Asset.Hex())
}

// Reverse returns the movement that undoes m.
func (m Movement) Reverse() Movement {
	return Movement{Asset: m.Asset, From: m.To, To: m.From, Amount: m.Amount}
}

// Mover is the external asset-transfer capability. Move either completes the
// whole movement or fails without effect.
type Mover interface {
	Move(ctx context.Context, m Movement) error
}

// MoverFunc adapts a function to Mover.
type MoverFunc func(ctx context.Context, m Movement) error

func (f MoverFunc) Move(ctx context.Context, m Movement) error { return f(ctx, m) }

// Holding is an account's external balance of an asset and what it has
// approved the custodian to pull.
type Holding struct {
	Balance   *uint256.Int
	Allowance *uint256.Int
}

// Faucet is a token book that can hand out test units. Both the in-memory
// Book and PostgresBook implement it.
type Faucet interface {
	Mover
	Custodian() common.Address
	MintTo(ctx context.Context, asset, holder common.Address, amount *uint256.Int) error
	ApproveCustodian(ctx context.Context, asset, holder common.Address, amount *uint256.Int) error
	HoldingOf(ctx context.Context, asset, holder common.Address) (Holding, error)
}
