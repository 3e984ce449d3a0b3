package identity

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/bcrypt"
)

const minSecretLength = 8

var (
	// ErrInvalidCredentials hides whether the account or the secret was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrWeakSecret rejects secrets shorter than minSecretLength.
	ErrWeakSecret = errors.New("secret must be at least 8 characters")
	// ErrZeroAccount rejects the zero address.
	ErrZeroAccount = errors.New("account must not be the zero address")
	// ErrReservedAccount rejects accounts that never act as callers.
	ErrReservedAccount = errors.New("account cannot register credentials")
)

// Service manages caller credentials.
type Service struct {
	repo     Repository
	reserved map[common.Address]struct{}
}

// NewService creates a new identity service. Reserved accounts, such as the
// custodian, are refused at registration.
func NewService(repo Repository, reserved ...common.Address) *Service {
	s := &Service{repo: repo, reserved: make(map[common.Address]struct{}, len(reserved))}
	for _, a := range reserved {
		s.reserved[a] = struct{}{}
	}
	return s
}

// Register stores a bcrypt hash of the caller secret for the account once the
// signature proves the caller holds the account key.
func (s *Service) Register(ctx context.Context, creds Credentials) (Credential, error) {
	if creds.Account == (common.Address{}) {
		return Credential{}, ErrZeroAccount
	}
	if _, ok := s.reserved[creds.Account]; ok {
		return Credential{}, ErrReservedAccount
	}
	if len(creds.Secret) < minSecretLength {
		return Credential{}, ErrWeakSecret
	}
	if err := VerifyControl(creds.Account, creds.Secret, creds.Signature); err != nil {
		return Credential{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Secret), bcrypt.DefaultCost)
	if err != nil {
		return Credential{}, err
	}

	cred := Credential{
		Account:    creds.Account,
		SecretHash: hash,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// Authenticate verifies the secret of an account.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Credential, error) {
	cred, err := s.repo.FindByAccount(ctx, creds.Account)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credential{}, ErrInvalidCredentials
		}
		return Credential{}, err
	}
	if err := bcrypt.CompareHashAndPassword(cred.SecretHash, []byte(creds.Secret)); err != nil {
		return Credential{}, ErrInvalidCredentials
	}
	return cred, nil
}

// Repository exposes the underlying credential store.
func (s *Service) Repository() Repository {
	return s.repo
}
