package custody

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody_vault/internal/store"
	"github.com/congo-pay/custody_vault/internal/store/pgtest"
)

func newPostgresBook(t *testing.T) *PostgresBook {
	t.Helper()
	db := pgtest.Pool(t)
	require.NoError(t, store.Migrate(context.Background(), db))
	return NewPostgresBook(db, vaultAddr)
}

func TestPostgresBookPullNeedsAllowance(t *testing.T) {
	b := newPostgresBook(t)
	ctx := context.Background()
	require.NoError(t, b.MintTo(ctx, token, alice, uint256.NewInt(100)))

	in := Movement{Asset: token, From: alice, To: vaultAddr, Amount: uint256.NewInt(40)}
	require.ErrorIs(t, b.Move(ctx, in), ErrInsufficientAllowance)

	require.NoError(t, b.ApproveCustodian(ctx, token, alice, uint256.NewInt(50)))
	require.NoError(t, b.Move(ctx, in))

	held, err := b.HoldingOf(ctx, token, alice)
	require.NoError(t, err)
	require.EqualValues(t, 60, held.Balance.Uint64())
	require.EqualValues(t, 10, held.Allowance.Uint64())
	vault, err := b.HoldingOf(ctx, token, vaultAddr)
	require.NoError(t, err)
	require.EqualValues(t, 40, vault.Balance.Uint64())

	require.ErrorIs(t, b.Move(ctx, in), ErrInsufficientAllowance)
}

func TestPostgresBookCustodianPaysWithoutAllowance(t *testing.T) {
	b := newPostgresBook(t)
	ctx := context.Background()
	require.NoError(t, b.MintTo(ctx, token, vaultAddr, uint256.NewInt(30)))

	out := Movement{Asset: token, From: vaultAddr, To: alice, Amount: uint256.NewInt(30)}
	require.NoError(t, b.Move(ctx, out))
	require.ErrorIs(t, b.Move(ctx, out), ErrInsufficientFunds)

	held, err := b.HoldingOf(ctx, token, alice)
	require.NoError(t, err)
	require.EqualValues(t, 30, held.Balance.Uint64())
}

func TestPostgresBookRejectsSelfMoveAndOverflow(t *testing.T) {
	b := newPostgresBook(t)
	ctx := context.Background()
	require.NoError(t, b.MintTo(ctx, token, vaultAddr, new(uint256.Int).SetAllOne()))

	self := Movement{Asset: token, From: vaultAddr, To: vaultAddr, Amount: uint256.NewInt(1)}
	require.ErrorIs(t, b.Move(ctx, self), ErrSelfMove)
	require.ErrorIs(t, b.MintTo(ctx, token, vaultAddr, uint256.NewInt(1)), ErrSupplyOverflow)

	held, err := b.HoldingOf(ctx, token, vaultAddr)
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).SetAllOne(), held.Balance)
}

func TestPostgresBookSurvivesReopen(t *testing.T) {
	b := newPostgresBook(t)
	ctx := context.Background()
	require.NoError(t, b.MintTo(ctx, token, vaultAddr, uint256.NewInt(12)))

	reopened := NewPostgresBook(b.db, vaultAddr)
	held, err := reopened.HoldingOf(ctx, token, vaultAddr)
	require.NoError(t, err)
	require.EqualValues(t, 12, held.Balance.Uint64())
}
