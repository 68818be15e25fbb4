package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

type walletRepo struct {
	mu      sync.RWMutex
	now     func() time.Time
	wallets map[string]*repository.Wallet
	signers map[string]*repository.WalletSigner // por signer ID
}

func newWalletRepo(now func() time.Time) *walletRepo {
	return &walletRepo{
		now:     now,
		wallets: make(map[string]*repository.Wallet),
		signers: make(map[string]*repository.WalletSigner),
	}
}

func (r *walletRepo) Create(ctx context.Context, w *repository.Wallet, signers []repository.WalletSigner) error {
	if w == nil {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if _, exists := r.wallets[w.ID]; exists {
		return repository.ErrConflict
	}
	now := r.now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now

	seen := make(map[string]bool, len(signers))
	staged := make([]*repository.WalletSigner, 0, len(signers))
	for i := range signers {
		s := signers[i]
		if seen[s.AccountID] {
			return repository.ErrConflict
		}
		seen[s.AccountID] = true
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.WalletID = w.ID
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		signers[i] = s
		staged = append(staged, &s)
	}

	cp := *w
	r.wallets[w.ID] = &cp
	for _, s := range staged {
		r.signers[s.ID] = s
	}
	return nil
}

func (r *walletRepo) Get(ctx context.Context, id string) (*repository.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *walletRepo) AddSigner(ctx context.Context, s *repository.WalletSigner) error {
	if s == nil {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[s.WalletID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, existing := range r.signers {
		if existing.WalletID == s.WalletID && existing.AccountID == s.AccountID {
			return repository.ErrConflict
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	cp := *s
	r.signers[s.ID] = &cp
	if cp.Eligible() {
		w.TotalSigners++
	}
	w.UpdatedAt = now
	return nil
}

func (r *walletRepo) GetSigner(ctx context.Context, signerID string) (*repository.WalletSigner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.signers[signerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *walletRepo) ListSigners(ctx context.Context, walletID string) ([]repository.WalletSigner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.wallets[walletID]; !ok {
		return nil, repository.ErrNotFound
	}
	out := make([]repository.WalletSigner, 0)
	for _, s := range r.signers {
		if s.WalletID == walletID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *walletRepo) NextSequence(ctx context.Context, walletID string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	seq := w.NextSequence
	w.NextSequence++
	return seq, nil
}

func (r *walletRepo) SetStatus(ctx context.Context, walletID string, status repository.WalletStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return repository.ErrNotFound
	}
	w.Status = status
	w.UpdatedAt = r.now().UTC()
	return nil
}
