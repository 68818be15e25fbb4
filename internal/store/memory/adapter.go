// Package memory implementa el adapter en memoria del store.
// Útil para desarrollo y testing; las garantías de atomicidad son las mismas
// que las del adapter postgres (exclusión por mutex en vez de locks de fila).
package memory

import (
	"context"
	"time"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	return New(), nil
}

// Store es la conexión en memoria. Cada agregado tiene su propio lock.
type Store struct {
	accounts *accountRepo
	keys     *keyRepo
	nonces   *nonceRepo
	wallets  *walletRepo
	txs      *txRepo
}

// New crea un store vacío.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock crea un store con reloj inyectado (tests).
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		accounts: newAccountRepo(now),
		keys:     newKeyRepo(now),
		nonces:   newNonceRepo(),
		wallets:  newWalletRepo(now),
		txs:      newTxRepo(now),
	}
}

func (s *Store) Name() string                   { return "memory" }
func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

// ─── Repositorios ───

func (s *Store) Accounts() repository.AccountRepository         { return s.accounts }
func (s *Store) Keys() repository.KeyRepository                 { return s.keys }
func (s *Store) Nonces() repository.NonceRepository             { return s.nonces }
func (s *Store) Wallets() repository.WalletRepository           { return s.wallets }
func (s *Store) Transactions() repository.TransactionRepository { return s.txs }
