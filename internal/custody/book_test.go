package custody

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	vaultAddr = common.HexToAddress("0x000000000000000000000000000000000000ba17")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	token     = common.HexToAddress("0x0000000000000000000000000000000000000071")
)

func TestBookPullNeedsAllowance(t *testing.T) {
	b := NewBook(vaultAddr)
	ctx := context.Background()
	require.NoError(t, b.Mint(token, alice, uint256.NewInt(100)))

	in := Movement{Asset: token, From: alice, To: vaultAddr, Amount: uint256.NewInt(40)}
	require.ErrorIs(t, b.Move(ctx, in), ErrInsufficientAllowance)

	b.Approve(token, alice, vaultAddr, uint256.NewInt(50))
	require.NoError(t, b.Move(ctx, in))
	require.EqualValues(t, 60, b.BalanceOf(token, alice).Uint64())
	require.EqualValues(t, 40, b.BalanceOf(token, vaultAddr).Uint64())
	require.EqualValues(t, 10, b.Allowance(token, alice, vaultAddr).Uint64())

	require.ErrorIs(t, b.Move(ctx, in), ErrInsufficientAllowance)
}

func TestBookPullNeedsBalance(t *testing.T) {
	b := NewBook(vaultAddr)
	require.NoError(t, b.Mint(token, alice, uint256.NewInt(5)))
	b.Approve(token, alice, vaultAddr, uint256.NewInt(100))

	err := b.Move(context.Background(), Movement{Asset: token, From: alice, To: vaultAddr, Amount: uint256.NewInt(6)})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.EqualValues(t, 5, b.BalanceOf(token, alice).Uint64())
	require.EqualValues(t, 100, b.Allowance(token, alice, vaultAddr).Uint64())
}

func TestBookCustodianPaysWithoutAllowance(t *testing.T) {
	b := NewBook(vaultAddr)
	require.NoError(t, b.Mint(token, vaultAddr, uint256.NewInt(30)))

	out := Movement{Asset: token, From: vaultAddr, To: alice, Amount: uint256.NewInt(30)}
	require.NoError(t, b.Move(context.Background(), out))
	require.True(t, b.BalanceOf(token, vaultAddr).IsZero())
	require.EqualValues(t, 30, b.BalanceOf(token, alice).Uint64())

	require.ErrorIs(t, b.Move(context.Background(), out), ErrInsufficientFunds)
}

func TestBookMintOverflow(t *testing.T) {
	b := NewBook(vaultAddr)
	require.NoError(t, b.Mint(token, alice, new(uint256.Int).SetAllOne()))
	require.ErrorIs(t, b.Mint(token, alice, uint256.NewInt(1)), ErrSupplyOverflow)
}

func TestMovementReverse(t *testing.T) {
	m := Movement{Asset: token, From: alice, To: vaultAddr, Amount: uint256.NewInt(3)}
	r := m.Reverse()
	require.Equal(t, vaultAddr, r.From)
	require.Equal(t, alice, r.To)
	require.Equal(t, m.Amount, r.Amount)
	require.Contains(t, m.String(), "3 ")
}

func TestBookRejectsSelfMove(t *testing.T) {
	b := NewBook(vaultAddr)
	require.NoError(t, b.Mint(token, vaultAddr, uint256.NewInt(10)))

	err := b.Move(context.Background(), Movement{Asset: token, From: vaultAddr, To: vaultAddr, Amount: uint256.NewInt(10)})
	require.ErrorIs(t, err, ErrSelfMove)
	require.EqualValues(t, 10, b.BalanceOf(token, vaultAddr).Uint64())
}
