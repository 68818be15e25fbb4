package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// WalletStatus indica el estado de una wallet.
type WalletStatus string

const (
	WalletActive   WalletStatus = "active"
	WalletFrozen   WalletStatus = "frozen"
	WalletArchived WalletStatus = "archived"
)

// Wallet es una unidad de firma custodial M-of-N.
// Balance y LockedBalance son cache informativo, no autoritativo.
type Wallet struct {
	ID                 string
	OwnerAccountID     string
	Type               string // ej: "multisig"
	Network            string // ej: "ethereum", "bitcoin"
	Address            string
	Balance            decimal.Decimal
	LockedBalance      decimal.Decimal
	RequiredSignatures int // M
	TotalSigners       int // N (solo roles que cuentan para threshold)
	NextSequence       uint64
	Status             WalletStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SignerRole es el rol de un firmante dentro de una wallet.
type SignerRole string

const (
	RoleOwner    SignerRole = "Owner"
	RoleSigner   SignerRole = "Signer"
	RoleObserver SignerRole = "Observer"
)

// IsValid retorna true si el rol es conocido.
func (r SignerRole) IsValid() bool {
	switch r {
	case RoleOwner, RoleSigner, RoleObserver:
		return true
	}
	return false
}

// SignerStatus indica si el firmante sigue vigente.
type SignerStatus string

const (
	SignerActive  SignerStatus = "active"
	SignerRemoved SignerStatus = "removed"
)

// WalletSigner vincula una cuenta a una wallet. (WalletID, AccountID) es único.
type WalletSigner struct {
	ID        string
	WalletID  string
	AccountID string
	Address   string
	Role      SignerRole
	Weight    int
	Status    SignerStatus
	CreatedAt time.Time
}

// Eligible indica si el firmante cuenta para el threshold. Observer nunca cuenta.
func (s *WalletSigner) Eligible() bool {
	return s.Status == SignerActive && s.Role != RoleObserver
}

// WalletRepository define operaciones sobre wallets y sus firmantes.
type WalletRepository interface {
	// Create inserta la wallet y sus firmantes iniciales en una sola operación.
	Create(ctx context.Context, w *Wallet, signers []WalletSigner) error

	// Get busca una wallet por ID. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*Wallet, error)

	// AddSigner agrega un firmante y recalcula TotalSigners.
	// Retorna ErrConflict si (wallet, cuenta) ya existe.
	AddSigner(ctx context.Context, s *WalletSigner) error

	// GetSigner busca un firmante por ID.
	GetSigner(ctx context.Context, signerID string) (*WalletSigner, error)

	// ListSigners lista los firmantes de una wallet.
	ListSigners(ctx context.Context, walletID string) ([]WalletSigner, error)

	// NextSequence reserva el siguiente número de secuencia de red de la wallet.
	NextSequence(ctx context.Context, walletID string) (uint64, error)

	// SetStatus cambia el estado de la wallet.
	SetStatus(ctx context.Context, walletID string, status WalletStatus) error
}
