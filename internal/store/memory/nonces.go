package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

type nonceRepo struct {
	mu   sync.Mutex
	data map[string]repository.RequestNonce
}

func newNonceRepo() *nonceRepo {
	return &nonceRepo{data: make(map[string]repository.RequestNonce)}
}

// Reserve es un insert-if-absent bajo un único lock: el check y el insert
// ocurren en la misma sección crítica.
func (r *nonceRepo) Reserve(ctx context.Context, n repository.RequestNonce) error {
	if n.NonceHash == "" {
		return repository.ErrInvalidInput
	}
	if !n.ExpiresAt.After(n.CreatedAt) {
		return repository.ErrNonceExpired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, used := r.data[n.NonceHash]; used {
		return repository.ErrConflict
	}
	r.data[n.NonceHash] = n
	return nil
}

func (r *nonceRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, rec := range r.data {
		if rec.ExpiresAt.Before(before) {
			delete(r.data, h)
			n++
		}
	}
	return n, nil
}

// Len expone la cantidad de nonces vivos (tests).
func (r *nonceRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}
