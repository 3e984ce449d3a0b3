package identity

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type memoryRepository struct {
	mu    sync.RWMutex
	creds map[common.Address]Credential
}

// NewMemoryRepository builds an in-memory credential store.
func NewMemoryRepository() Repository {
	return &memoryRepository{creds: make(map[common.Address]Credential)}
}

func (r *memoryRepository) Create(_ context.Context, cred Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.creds[cred.Account]; exists {
		return ErrAlreadyRegistered
	}
	r.creds[cred.Account] = cred
	return nil
}

func (r *memoryRepository) FindByAccount(_ context.Context, account common.Address) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[account]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

func (r *memoryRepository) UpdateTokenVersion(_ context.Context, account common.Address, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[account]
	if !ok {
		return ErrNotFound
	}
	cred.TokenVersion = version
	r.creds[account] = cred
	return nil
}
