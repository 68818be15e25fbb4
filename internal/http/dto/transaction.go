package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateTransactionRequest struct {
	ToAddress            string          `json:"to_address"`
	Amount               decimal.Decimal `json:"amount"`
	Asset                string          `json:"asset"`
	GasLimit             uint64          `json:"gas_limit,omitempty"`
	MaxFeePerGas         decimal.Decimal `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas decimal.Decimal `json:"max_priority_fee_per_gas"`
}

// SubmitSignatureRequest es el envelope RAGS del voto. El mensaje firmado
// es el que devuelve GET /v1/transactions/{txID}/message.
type SubmitSignatureRequest struct {
	SignerID  string            `json:"signer_id"`
	Signature []byte            `json:"signature"`
	Algorithm string            `json:"algorithm"`
	Nonce     string            `json:"nonce"`
	Address   string            `json:"address"`
	Timestamp int64             `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type RejectSignatureRequest struct {
	SignerID string `json:"signer_id"`
	Reason   string `json:"reason"`
}

type SigningMessageResponse struct {
	ServiceName string `json:"service_name"`
	Message     []byte `json:"message"`
}

type TransactionResponse struct {
	ID                   string          `json:"id"`
	WalletID             string          `json:"wallet_id"`
	Network              string          `json:"network"`
	FromAddress          string          `json:"from_address"`
	ToAddress            string          `json:"to_address"`
	Amount               decimal.Decimal `json:"amount"`
	Asset                string          `json:"asset"`
	GasLimit             uint64          `json:"gas_limit,omitempty"`
	MaxFeePerGas         decimal.Decimal `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas decimal.Decimal `json:"max_priority_fee_per_gas"`
	RequiredSignatures   int             `json:"required_signatures"`
	CurrentSignatures    int             `json:"current_signatures"`
	Status               string          `json:"status"`
	FailureReason        string          `json:"failure_reason,omitempty"`
	FailureDetail        string          `json:"failure_detail,omitempty"`
	Sequence             uint64          `json:"sequence"`
	TxHash               string          `json:"tx_hash,omitempty"`
	CreatedBy            string          `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	BroadcastAt          *time.Time      `json:"broadcast_at,omitempty"`
	ConfirmedAt          *time.Time      `json:"confirmed_at,omitempty"`
	Signatures           []VoteResponse  `json:"signatures,omitempty"`
}

type VoteResponse struct {
	SignerID        string    `json:"signer_id"`
	AccountID       string    `json:"account_id"`
	Weight          int       `json:"weight"`
	Status          string    `json:"status"`
	Algorithm       string    `json:"algorithm,omitempty"`
	Address         string    `json:"address,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}
