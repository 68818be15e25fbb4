package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type SignerInput struct {
	AccountID string `json:"account_id"`
	Address   string `json:"address,omitempty"`
	Role      string `json:"role,omitempty"`
	Weight    int    `json:"weight,omitempty"`
}

type CreateWalletRequest struct {
	Type               string        `json:"type"`
	Network            string        `json:"network"`
	Address            string        `json:"address"`
	RequiredSignatures int           `json:"required_signatures"`
	Signers            []SignerInput `json:"signers"`
}

type SetWalletStatusRequest struct {
	Status string `json:"status"`
}

type WalletResponse struct {
	ID                 string           `json:"id"`
	OwnerAccountID     string           `json:"owner_account_id"`
	Type               string           `json:"type"`
	Network            string           `json:"network"`
	Address            string           `json:"address"`
	Balance            decimal.Decimal  `json:"balance"`
	LockedBalance      decimal.Decimal  `json:"locked_balance"`
	RequiredSignatures int              `json:"required_signatures"`
	TotalSigners       int              `json:"total_signers"`
	Status             string           `json:"status"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	Signers            []SignerResponse `json:"signers,omitempty"`
}

type SignerResponse struct {
	ID        string    `json:"id"`
	WalletID  string    `json:"wallet_id"`
	AccountID string    `json:"account_id"`
	Address   string    `json:"address"`
	Role      string    `json:"role"`
	Weight    int       `json:"weight"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
