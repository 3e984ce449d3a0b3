package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/custody_vault/internal/events"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables used by the Postgres store and the credential
// repository.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Postgres persists vault state in PostgreSQL. Every mutating call runs in one
// transaction holding the vault_state row lock.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed store.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Init(ctx context.Context, owner common.Address) error {
	_, err := p.db.Exec(ctx, `INSERT INTO vault_state (id, owner, paused) VALUES (1, $1, FALSE)
        ON CONFLICT (id) DO NOTHING`, owner.Bytes())
	return err
}

func (p *Postgres) Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var locked int
	if err := tx.QueryRow(ctx, `SELECT id FROM vault_state WHERE id = 1 FOR UPDATE`).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotInitialized
		}
		return err
	}

	if err := fn(ctx, &pgState{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	return nil
}

func (p *Postgres) View(ctx context.Context, fn func(ctx context.Context, r Reader) error) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgState{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Events(ctx context.Context, after uint64, limit int) ([]events.Event, error) {
	const query = `
        SELECT seq, id, kind, account, asset, amount::text, accepted,
               previous_owner, new_owner, request_id, created_at
        FROM events
        WHERE seq > $1
        ORDER BY seq
        LIMIT $2`
	rows, err := p.db.Query(ctx, query, int64(after), normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		var (
			seq                            int64
			id                             uuid.UUID
			kind                           string
			account, asset, prev, newOwner []byte
			amount                         *string
			e                              events.Event
			createdAt                      time.Time
		)
		if err := rows.Scan(&seq, &id, &kind, &account, &asset, &amount, &e.Accepted,
			&prev, &newOwner, &e.RequestID, &createdAt); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.ID = id
		e.Kind = events.Kind(kind)
		e.Account = common.BytesToAddress(account)
		e.Asset = common.BytesToAddress(asset)
		e.PreviousOwner = common.BytesToAddress(prev)
		e.NewOwner = common.BytesToAddress(newOwner)
		e.At = createdAt.UTC()
		if amount != nil {
			v, err := uint256.FromDecimal(*amount)
			if err != nil {
				return nil, fmt.Errorf("event %d amount: %w", seq, err)
			}
			e.Amount = v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// pgState implements Tx on top of a pgx transaction. Inside Atomically the
// vault_state row lock serializes writers, so reads need no extra locking.
type pgState struct {
	q pgx.Tx
}

func (s *pgState) Owner(ctx context.Context) (common.Address, error) {
	var owner []byte
	if err := s.q.QueryRow(ctx, `SELECT owner FROM vault_state WHERE id = 1`).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.Address{}, ErrNotInitialized
		}
		return common.Address{}, err
	}
	return common.BytesToAddress(owner), nil
}

func (s *pgState) Paused(ctx context.Context) (bool, error) {
	var paused bool
	if err := s.q.QueryRow(ctx, `SELECT paused FROM vault_state WHERE id = 1`).Scan(&paused); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotInitialized
		}
		return false, err
	}
	return paused, nil
}

func (s *pgState) IsWhitelisted(ctx context.Context, asset common.Address) (bool, error) {
	var accepted bool
	if err := s.q.QueryRow(ctx, `SELECT accepted FROM whitelist WHERE asset = $1`, asset.Bytes()).Scan(&accepted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return accepted, nil
}

func (s *pgState) Balance(ctx context.Context, account, asset common.Address) (*uint256.Int, error) {
	const query = `SELECT amount::text FROM balances WHERE account = $1 AND asset = $2`
	var amount string
	if err := s.q.QueryRow(ctx, query, account.Bytes(), asset.Bytes()).Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	return uint256.FromDecimal(amount)
}

func (s *pgState) SetOwner(ctx context.Context, owner common.Address) error {
	_, err := s.q.Exec(ctx, `UPDATE vault_state SET owner = $1 WHERE id = 1`, owner.Bytes())
	return err
}

func (s *pgState) SetPaused(ctx context.Context, paused bool) error {
	_, err := s.q.Exec(ctx, `UPDATE vault_state SET paused = $1 WHERE id = 1`, paused)
	return err
}

func (s *pgState) SetWhitelisted(ctx context.Context, asset common.Address, accepted bool) error {
	_, err := s.q.Exec(ctx, `INSERT INTO whitelist (asset, accepted, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (asset) DO UPDATE SET accepted = EXCLUDED.accepted, updated_at = EXCLUDED.updated_at`,
		asset.Bytes(), accepted)
	return err
}

func (s *pgState) SetBalance(ctx context.Context, account, asset common.Address, amount *uint256.Int) error {
	_, err := s.q.Exec(ctx, `INSERT INTO balances (account, asset, amount) VALUES ($1, $2, $3::numeric)
        ON CONFLICT (account, asset) DO UPDATE SET amount = EXCLUDED.amount`,
		account.Bytes(), asset.Bytes(), amount.Dec())
	return err
}

func (s *pgState) AppendEvent(ctx context.Context, e events.Event) (events.Event, error) {
	const insert = `
        INSERT INTO events (id, kind, account, asset, amount, accepted, previous_owner, new_owner, request_id, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)
        RETURNING seq`
	var amount *string
	if e.Amount != nil {
		dec := e.Amount.Dec()
		amount = &dec
	}
	var seq int64
	if err := s.q.QueryRow(ctx, insert, e.ID, string(e.Kind), e.Account.Bytes(), e.Asset.Bytes(), amount,
		e.Accepted, e.PreviousOwner.Bytes(), e.NewOwner.Bytes(), e.RequestID, e.At).Scan(&seq); err != nil {
		return events.Event{}, err
	}
	e.Seq = uint64(seq)
	return e, nil
}
