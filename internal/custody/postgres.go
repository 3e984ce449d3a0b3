package custody

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBook is the token book kept in PostgreSQL next to the vault ledger,
// so custody holdings survive restarts together with balances. Each movement
// runs in its own transaction; the vault unit of work compensates around it.
type PostgresBook struct {
	db        *pgxpool.Pool
	custodian common.Address
}

// NewPostgresBook creates a Postgres-backed book whose pulls are made by
// custodian. The tables are created by store.Migrate.
func NewPostgresBook(db *pgxpool.Pool, custodian common.Address) *PostgresBook {
	return &PostgresBook{db: db, custodian: custodian}
}

func (b *PostgresBook) Custodian() common.Address {
	return b.custodian
}

// Move implements Mover.
func (b *PostgresBook) Move(ctx context.Context, m Movement) error {
	if m.From == m.To {
		return ErrSelfMove
	}
	return pgx.BeginFunc(ctx, b.db, func(tx pgx.Tx) error {
		if err := lockHoldings(ctx, tx, m.Asset, m.From, m.To); err != nil {
			return err
		}

		fromBal, err := holdingBalance(ctx, tx, m.Asset, m.From)
		if err != nil {
			return err
		}
		if fromBal.Lt(m.Amount) {
			return ErrInsufficientFunds
		}

		pull := m.From != b.custodian
		var allowed *uint256.Int
		if pull {
			allowed, err = allowance(ctx, tx, m.Asset, m.From, b.custodian, true)
			if err != nil {
				return err
			}
			if allowed.Lt(m.Amount) {
				return ErrInsufficientAllowance
			}
		}

		toBal, err := holdingBalance(ctx, tx, m.Asset, m.To)
		if err != nil {
			return err
		}
		toNext, overflow := new(uint256.Int).AddOverflow(toBal, m.Amount)
		if overflow {
			return ErrSupplyOverflow
		}

		if err := setHolding(ctx, tx, m.Asset, m.From, new(uint256.Int).Sub(fromBal, m.Amount)); err != nil {
			return err
		}
		if err := setHolding(ctx, tx, m.Asset, m.To, toNext); err != nil {
			return err
		}
		if pull {
			return setAllowance(ctx, tx, m.Asset, m.From, b.custodian, new(uint256.Int).Sub(allowed, m.Amount))
		}
		return nil
	})
}

// MintTo implements Faucet.
func (b *PostgresBook) MintTo(ctx context.Context, asset, holder common.Address, amount *uint256.Int) error {
	return pgx.BeginFunc(ctx, b.db, func(tx pgx.Tx) error {
		if err := lockHoldings(ctx, tx, asset, holder); err != nil {
			return err
		}
		bal, err := holdingBalance(ctx, tx, asset, holder)
		if err != nil {
			return err
		}
		next, overflow := new(uint256.Int).AddOverflow(bal, amount)
		if overflow {
			return ErrSupplyOverflow
		}
		return setHolding(ctx, tx, asset, holder, next)
	})
}

// ApproveCustodian implements Faucet.
func (b *PostgresBook) ApproveCustodian(ctx context.Context, asset, holder common.Address, amount *uint256.Int) error {
	return setAllowance(ctx, b.db, asset, holder, b.custodian, amount)
}

// HoldingOf implements Faucet.
func (b *PostgresBook) HoldingOf(ctx context.Context, asset, holder common.Address) (Holding, error) {
	bal, err := holdingBalance(ctx, b.db, asset, holder)
	if err != nil {
		return Holding{}, err
	}
	allowed, err := allowance(ctx, b.db, asset, holder, b.custodian, false)
	if err != nil {
		return Holding{}, err
	}
	return Holding{Balance: bal, Allowance: allowed}, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// lockHoldings creates missing holding rows and locks them in holder order,
// so concurrent movements in opposite directions cannot deadlock.
func lockHoldings(ctx context.Context, tx pgx.Tx, asset common.Address, holders ...common.Address) error {
	sorted := slices.Clone(holders)
	slices.SortFunc(sorted, func(a, b common.Address) int { return a.Cmp(b) })
	for _, h := range sorted {
		if _, err := tx.Exec(ctx, `INSERT INTO custody_holdings (asset, holder, amount) VALUES ($1, $2, 0)
        ON CONFLICT (asset, holder) DO NOTHING`, asset.Bytes(), h.Bytes()); err != nil {
			return fmt.Errorf("create holding: %w", err)
		}
		var locked []byte
		if err := tx.QueryRow(ctx, `SELECT holder FROM custody_holdings WHERE asset = $1 AND holder = $2 FOR UPDATE`,
			asset.Bytes(), h.Bytes()).Scan(&locked); err != nil {
			return fmt.Errorf("lock holding: %w", err)
		}
	}
	return nil
}

func holdingBalance(ctx context.Context, q querier, asset, holder common.Address) (*uint256.Int, error) {
	var amount string
	err := q.QueryRow(ctx, `SELECT amount::text FROM custody_holdings WHERE asset = $1 AND holder = $2`,
		asset.Bytes(), holder.Bytes()).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return uint256.FromDecimal(amount)
}

func setHolding(ctx context.Context, q querier, asset, holder common.Address, amount *uint256.Int) error {
	_, err := q.Exec(ctx, `INSERT INTO custody_holdings (asset, holder, amount) VALUES ($1, $2, $3::numeric)
        ON CONFLICT (asset, holder) DO UPDATE SET amount = EXCLUDED.amount`,
		asset.Bytes(), holder.Bytes(), amount.Dec())
	return err
}

func allowance(ctx context.Context, q querier, asset, holder, spender common.Address, forUpdate bool) (*uint256.Int, error) {
	query := `SELECT amount::text FROM custody_allowances WHERE asset = $1 AND holder = $2 AND spender = $3`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var amount string
	err := q.QueryRow(ctx, query, asset.Bytes(), holder.Bytes(), spender.Bytes()).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return uint256.FromDecimal(amount)
}

func setAllowance(ctx context.Context, q querier, asset, holder, spender common.Address, amount *uint256.Int) error {
	_, err := q.Exec(ctx, `INSERT INTO custody_allowances (asset, holder, spender, amount) VALUES ($1, $2, $3, $4::numeric)
        ON CONFLICT (asset, holder, spender) DO UPDATE SET amount = EXCLUDED.amount`,
		asset.Bytes(), holder.Bytes(), spender.Bytes(), amount.Dec())
	return err
}
