package identity

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no credential exists for an account.
	ErrNotFound = errors.New("credential not found")

	// ErrAlreadyRegistered is returned when an account registers twice.
	ErrAlreadyRegistered = errors.New("account already registered")
)

// Repository persists credentials.
type Repository interface {
	Create(ctx context.Context, cred Credential) error
	FindByAccount(ctx context.Context, account common.Address) (Credential, error)
	UpdateTokenVersion(ctx context.Context, account common.Address, version int) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed credential repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new credential.
func (r *PostgresRepository) Create(ctx context.Context, cred Credential) error {
	_, err := r.db.Exec(ctx, `INSERT INTO credentials (account, secret_hash, token_version, created_at)
		VALUES ($1, $2, $3, $4)`, cred.Account.Bytes(), cred.SecretHash, cred.TokenVersion, cred.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyRegistered
	}
	return err
}

// FindByAccount fetches the credential of account.
func (r *PostgresRepository) FindByAccount(ctx context.Context, account common.Address) (Credential, error) {
	row := r.db.QueryRow(ctx, `SELECT secret_hash, token_version, created_at FROM credentials WHERE account = $1`, account.Bytes())
	var (
		createdAt time.Time
		cred      = Credential{Account: account}
	)
	if err := row.Scan(&cred.SecretHash, &cred.TokenVersion, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, err
	}
	cred.CreatedAt = createdAt.UTC()
	return cred, nil
}

// UpdateTokenVersion stores a new token version, invalidating older tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, account common.Address, version int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE credentials SET token_version = $1 WHERE account = $2`, version, account.Bytes())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
