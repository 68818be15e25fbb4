// Package controllers traduce HTTP a llamadas del core: decodifica el dto,
// invoca rags o multisig y mapea el resultado o el error tipado.
package controllers

import (
	"context"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/multisig"
	"github.com/dropDatabas3/ragsig/internal/rags"
)

// SignerService es lo que necesita /v1/rags/sign. *rags.Signer lo implementa.
type SignerService interface {
	SignForAccount(ctx context.Context, accountID string, req rags.SignRequest) (*rags.Envelope, error)
}

// ValidatorService es lo que necesita /v1/rags/validate. *rags.Validator lo implementa.
type ValidatorService interface {
	Validate(ctx context.Context, req rags.ValidateRequest) (*rags.Result, error)
	ValidateForAccount(ctx context.Context, accountID string, req rags.ValidateRequest) (*rags.Result, error)
}

// MultisigService agrupa las operaciones de wallets y transacciones.
// *multisig.Orchestrator lo implementa.
type MultisigService interface {
	CreateWallet(ctx context.Context, in multisig.CreateWalletInput) (*repository.Wallet, []repository.WalletSigner, error)
	GetWallet(ctx context.Context, walletID string) (*repository.Wallet, error)
	ListSigners(ctx context.Context, walletID string) ([]repository.WalletSigner, error)
	AddSigner(ctx context.Context, walletID string, in multisig.SignerInput) (*repository.WalletSigner, error)
	SetWalletStatus(ctx context.Context, walletID, accountID string, status repository.WalletStatus) error

	CreateTransaction(ctx context.Context, in multisig.CreateTxInput) (*repository.TxRecord, error)
	GetTransaction(ctx context.Context, txID string) (*repository.TxRecord, error)
	ListTransactions(ctx context.Context, walletID string, limit int) ([]repository.Transaction, error)
	SubmitSignature(ctx context.Context, txID, signerID string, sub multisig.Submission) (*repository.TxRecord, error)
	RejectSignature(ctx context.Context, txID, signerID, reason string) (*repository.TxRecord, error)
	FinalizeAndBroadcast(ctx context.Context, txID string) (*repository.TxRecord, error)
	Reconcile(ctx context.Context, txID string) (*repository.TxRecord, error)
	Cancel(ctx context.Context, txID, accountID string) (*repository.TxRecord, error)
}

var (
	_ SignerService    = (*rags.Signer)(nil)
	_ ValidatorService = (*rags.Validator)(nil)
	_ MultisigService  = (*multisig.Orchestrator)(nil)
)

// Controllers agrupa todos los controllers de la API.
type Controllers struct {
	Rags         *RagsController
	Wallets      *WalletController
	Transactions *TransactionController
	Health       *HealthController
}

// Deps son las dependencias para construir Controllers.
type Deps struct {
	Signer    SignerService
	Validator ValidatorService
	Multisig  MultisigService
	Checks    map[string]HealthCheck
}

func New(d Deps) *Controllers {
	return &Controllers{
		Rags:         NewRagsController(d.Signer, d.Validator),
		Wallets:      NewWalletController(d.Multisig),
		Transactions: NewTransactionController(d.Multisig),
		Health:       NewHealthController(d.Checks),
	}
}
