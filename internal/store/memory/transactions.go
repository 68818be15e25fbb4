package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

// txRepo serializa cada transacción con su propio mutex; Update corre fn
// dentro de esa sección crítica, equivalente al SELECT ... FOR UPDATE de pg.
type txRepo struct {
	mu    sync.RWMutex
	now   func() time.Time
	recs  map[string]*repository.TxRecord
	locks map[string]*sync.Mutex
}

func newTxRepo(now func() time.Time) *txRepo {
	return &txRepo{
		now:   now,
		recs:  make(map[string]*repository.TxRecord),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *txRepo) Create(ctx context.Context, rec *repository.TxRecord) error {
	if rec == nil || rec.Tx.WalletID == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.Tx.ID == "" {
		rec.Tx.ID = uuid.NewString()
	}
	if _, exists := r.recs[rec.Tx.ID]; exists {
		return repository.ErrConflict
	}
	seen := make(map[string]bool, len(rec.Signatures))
	for i := range rec.Signatures {
		if seen[rec.Signatures[i].SignerID] {
			return repository.ErrConflict
		}
		seen[rec.Signatures[i].SignerID] = true
		rec.Signatures[i].TransactionID = rec.Tx.ID
	}
	now := r.now().UTC()
	if rec.Tx.CreatedAt.IsZero() {
		rec.Tx.CreatedAt = now
	}
	rec.Tx.UpdatedAt = now
	r.recs[rec.Tx.ID] = rec.Clone()
	r.locks[rec.Tx.ID] = &sync.Mutex{}
	return nil
}

func (r *txRepo) Get(ctx context.Context, id string) (*repository.TxRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *txRepo) Update(ctx context.Context, id string, fn func(rec *repository.TxRecord) error) (*repository.TxRecord, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	work := r.recs[id].Clone()
	r.mu.RUnlock()

	if err := fn(work); err != nil {
		return nil, err
	}
	work.Tx.ID = id
	work.Tx.UpdatedAt = r.now().UTC()
	for i := range work.Signatures {
		work.Signatures[i].TransactionID = id
	}

	r.mu.Lock()
	r.recs[id] = work.Clone()
	r.mu.Unlock()
	return work, nil
}

func (r *txRepo) ListByWallet(ctx context.Context, walletID string, limit int) ([]repository.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repository.Transaction, 0)
	for _, rec := range r.recs {
		if rec.Tx.WalletID == walletID {
			out = append(out, rec.Tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *txRepo) ListByStatus(ctx context.Context, status repository.TxStatus, olderThan time.Time, limit int) ([]repository.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repository.Transaction, 0)
	for _, rec := range r.recs {
		if rec.Tx.Status == status && rec.Tx.UpdatedAt.Before(olderThan) {
			out = append(out, rec.Tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
