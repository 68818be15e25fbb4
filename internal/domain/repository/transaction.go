package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

// TxStatus es el estado de la máquina de estados de una transacción.
type TxStatus string

const (
	TxCreated           TxStatus = "Created"
	TxPendingSignatures TxStatus = "PendingSignatures"
	TxReady             TxStatus = "Ready"
	TxBroadcasting      TxStatus = "Broadcasting"
	TxConfirmed         TxStatus = "Confirmed"
	TxFailed            TxStatus = "Failed"
)

// Terminal indica si el estado ya no admite transiciones.
func (s TxStatus) Terminal() bool {
	return s == TxConfirmed || s == TxFailed
}

// Razones de falla de una transacción.
const (
	FailureThresholdUnreachable = "ThresholdUnreachable"
	FailureCancelled            = "Cancelled"
	FailureBroadcastFailed      = "BroadcastFailed"
)

// Transaction es un movimiento de fondos propuesto.
// RequiredSignatures se copia de la wallet al crear y es inmutable.
type Transaction struct {
	ID                   string
	WalletID             string
	Network              string
	FromAddress          string
	ToAddress            string
	Amount               decimal.Decimal
	Asset                string
	GasLimit             uint64
	MaxFeePerGas         decimal.Decimal
	MaxPriorityFeePerGas decimal.Decimal
	RequiredSignatures   int
	CurrentSignatures    int
	Status               TxStatus
	FailureReason        string
	FailureDetail        string
	Sequence             uint64
	TxHash               string
	CreatedBy            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	BroadcastAt          *time.Time
	ConfirmedAt          *time.Time
}

// VoteStatus es el estado del voto de un firmante.
type VoteStatus string

const (
	VotePending  VoteStatus = "Pending"
	VoteSigned   VoteStatus = "Signed"
	VoteRejected VoteStatus = "Rejected"
)

// TransactionSignature es el voto de un firmante. (TransactionID, SignerID) es único.
// Rejected es terminal: nunca pasa a Signed.
type TransactionSignature struct {
	TransactionID   string
	SignerID        string
	AccountID       string
	Weight          int
	Status          VoteStatus
	Signature       []byte
	Algorithm       types.Algorithm
	Nonce           string
	SignedAtMillis  int64
	Address         string
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TxRecord agrupa una transacción con sus votos. Es la unidad de lectura/escritura atómica.
type TxRecord struct {
	Tx         Transaction
	Signatures []TransactionSignature
}

// Vote retorna el voto del firmante o nil si no existe.
func (r *TxRecord) Vote(signerID string) *TransactionSignature {
	for i := range r.Signatures {
		if r.Signatures[i].SignerID == signerID {
			return &r.Signatures[i]
		}
	}
	return nil
}

// Clone hace una copia profunda (los stores nunca devuelven su estado interno).
func (r *TxRecord) Clone() *TxRecord {
	out := &TxRecord{Tx: r.Tx, Signatures: make([]TransactionSignature, len(r.Signatures))}
	copy(out.Signatures, r.Signatures)
	for i := range out.Signatures {
		if s := out.Signatures[i].Signature; s != nil {
			out.Signatures[i].Signature = append([]byte(nil), s...)
		}
	}
	return out
}

// TransactionRepository define operaciones sobre transacciones y votos.
type TransactionRepository interface {
	// Create inserta la transacción con sus votos iniciales.
	Create(ctx context.Context, rec *TxRecord) error

	// Get retorna una copia de la transacción con sus votos.
	Get(ctx context.Context, id string) (*TxRecord, error)

	// Update ejecuta fn bajo exclusión por transacción (read-modify-write atómico).
	// Si fn retorna error no se persiste nada y el error se propaga tal cual.
	// Retorna el estado persistido.
	Update(ctx context.Context, id string, fn func(rec *TxRecord) error) (*TxRecord, error)

	// ListByWallet lista transacciones de una wallet (más recientes primero).
	ListByWallet(ctx context.Context, walletID string, limit int) ([]Transaction, error)

	// ListByStatus lista transacciones en un estado con UpdatedAt < olderThan.
	ListByStatus(ctx context.Context, status TxStatus, olderThan time.Time, limit int) ([]Transaction, error)
}
