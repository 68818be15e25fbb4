// Package multisig orquesta wallets M-of-N: firmantes, transacciones y la
// máquina de estados que junta votos RAGS hasta el threshold y entrega la
// transacción firmada al adapter de red.
//
// Toda mutación de una transacción pasa por TransactionRepository.Update,
// que la serializa por id. El conteo de votos, el cruce de threshold y la
// transición a Broadcasting ocurren adentro de esa sección crítica.
package multisig

import (
	"context"
	"time"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/network"
	"github.com/dropDatabas3/ragsig/internal/rags"
)

const (
	DefaultBroadcastTimeout = 30 * time.Second
	reconcileBatch          = 100
)

// VoteVerifier valida el envelope RAGS de un voto contra las claves de la
// cuenta firmante. *rags.Validator lo implementa.
type VoteVerifier interface {
	ValidateForAccount(ctx context.Context, accountID string, req rags.ValidateRequest) (*rags.Result, error)
}

var _ VoteVerifier = (*rags.Validator)(nil)

type Config struct {
	// BroadcastTimeout acota la llamada al adapter. Vencido, la tx queda en
	// Broadcasting hasta que Reconcile resuelva su destino.
	BroadcastTimeout time.Duration
	Now              func() time.Time
}

type Orchestrator struct {
	accounts repository.AccountRepository
	wallets  repository.WalletRepository
	txs      repository.TransactionRepository
	verifier VoteVerifier
	networks *network.Registry
	cfg      Config
}

func New(accounts repository.AccountRepository, wallets repository.WalletRepository, txs repository.TransactionRepository, verifier VoteVerifier, networks *network.Registry, cfg Config) *Orchestrator {
	if cfg.BroadcastTimeout <= 0 {
		cfg.BroadcastTimeout = DefaultBroadcastTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if networks == nil {
		networks = network.NewRegistry()
	}
	return &Orchestrator{
		accounts: accounts,
		wallets:  wallets,
		txs:      txs,
		verifier: verifier,
		networks: networks,
		cfg:      cfg,
	}
}
