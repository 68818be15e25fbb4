package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

// keyRepo mantiene AccountKeys y su proyección (registry) bajo el mismo lock,
// así PutKey/Revoke actualizan ambas vistas atómicamente.
type keyRepo struct {
	mu       sync.RWMutex
	now      func() time.Time
	keys     map[string]*repository.AccountKey
	registry map[string]*repository.PublicKeyEntry
}

func newKeyRepo(now func() time.Time) *keyRepo {
	return &keyRepo{
		now:      now,
		keys:     make(map[string]*repository.AccountKey),
		registry: make(map[string]*repository.PublicKeyEntry),
	}
}

func (r *keyRepo) PutKey(ctx context.Context, in repository.PutKeyInput) (string, error) {
	if in.AccountID == "" || !in.Algorithm.IsValid() || len(in.PublicKey) == 0 {
		return "", repository.ErrInvalidInput
	}
	now := in.Now
	if now.IsZero() {
		now = r.now()
	}
	now = now.UTC()
	hash := repository.HashPublicKey(in.PublicKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.registry[hash]; exists {
		return "", repository.ErrConflict
	}
	id := in.KeyID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := r.keys[id]; exists {
		return "", repository.ErrConflict
	}

	// Retirar la activa anterior del mismo (cuenta, algoritmo)
	for _, k := range r.keys {
		if k.AccountID == in.AccountID && k.Algorithm == in.Algorithm && k.Status == repository.KeyActive {
			exp := now.Add(in.RetireGrace)
			rotated := now
			k.Status = repository.KeyRetiring
			k.RotatedAt = &rotated
			k.ExpiresAt = &exp
			if e, ok := r.registry[k.Address()]; ok {
				e.Status = repository.KeyRetiring
				e.ExpiresAt = &exp
			}
		}
	}

	pub := append([]byte(nil), in.PublicKey...)
	r.keys[id] = &repository.AccountKey{
		ID:         id,
		AccountID:  in.AccountID,
		Algorithm:  in.Algorithm,
		PublicKey:  pub,
		StorageRef: in.StorageRef,
		Status:     repository.KeyActive,
		CreatedAt:  now,
	}
	r.registry[hash] = &repository.PublicKeyEntry{
		Hash:      hash,
		KeyID:     id,
		AccountID: in.AccountID,
		Algorithm: in.Algorithm,
		PublicKey: pub,
		Status:    repository.KeyActive,
		CreatedAt: now,
	}
	return id, nil
}

func (r *keyRepo) FindActiveKey(ctx context.Context, accountID string, alg types.Algorithm) (*repository.AccountKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if k.AccountID == accountID && k.Algorithm == alg && k.Status == repository.KeyActive {
			return copyKey(k), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *keyRepo) FindByHash(ctx context.Context, hash string) (*repository.PublicKeyEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.registry[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	cp.PublicKey = append([]byte(nil), e.PublicKey...)
	return &cp, nil
}

func (r *keyRepo) GetKey(ctx context.Context, keyID string) (*repository.AccountKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[keyID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyKey(k), nil
}

func (r *keyRepo) ListKeys(ctx context.Context, accountID string) ([]repository.AccountKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repository.AccountKey, 0)
	for _, k := range r.keys {
		if k.AccountID == accountID {
			out = append(out, *copyKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *keyRepo) Revoke(ctx context.Context, keyID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[keyID]
	if !ok {
		return repository.ErrNotFound
	}
	at = at.UTC()
	k.Status = repository.KeyRevoked
	k.ExpiresAt = &at
	if e, ok := r.registry[k.Address()]; ok {
		e.Status = repository.KeyRevoked
		e.ExpiresAt = &at
	}
	return nil
}

func (r *keyRepo) RecordUsage(ctx context.Context, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.registry[hash]
	if !ok {
		return repository.ErrNotFound
	}
	at = at.UTC()
	e.LastUsed = &at
	e.UsageCount++
	return nil
}

func copyKey(k *repository.AccountKey) *repository.AccountKey {
	cp := *k
	cp.PublicKey = append([]byte(nil), k.PublicKey...)
	return &cp
}
