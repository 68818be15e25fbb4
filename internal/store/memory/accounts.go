package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

type accountRepo struct {
	mu      sync.RWMutex
	now     func() time.Time
	byID    map[string]*repository.Account
	byOwner map[string]string
}

func newAccountRepo(now func() time.Time) *accountRepo {
	return &accountRepo{
		now:     now,
		byID:    make(map[string]*repository.Account),
		byOwner: make(map[string]string),
	}
}

func (r *accountRepo) Create(ctx context.Context, a *repository.Account) error {
	if a == nil || a.OwnerRef == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOwner[a.OwnerRef]; exists {
		return repository.ErrConflict
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, exists := r.byID[a.ID]; exists {
		return repository.ErrConflict
	}
	now := r.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = repository.AccountActive
	}
	cp := *a
	r.byID[a.ID] = &cp
	r.byOwner[a.OwnerRef] = a.ID
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*repository.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *accountRepo) GetByOwnerRef(ctx context.Context, ownerRef string) (*repository.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOwner[ownerRef]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *accountRepo) SetStatus(ctx context.Context, id string, status repository.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = r.now().UTC()
	return nil
}
