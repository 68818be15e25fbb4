package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/http/dto"
	httperrors "github.com/dropDatabas3/ragsig/internal/http/errors"
	mw "github.com/dropDatabas3/ragsig/internal/http/middlewares"
	"github.com/dropDatabas3/ragsig/internal/multisig"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type WalletController struct {
	svc MultisigService
}

func NewWalletController(svc MultisigService) *WalletController {
	return &WalletController{svc: svc}
}

// Create maneja POST /v1/wallets. El caller queda como owner.
func (c *WalletController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dto.CreateWalletRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}

	in := multisig.CreateWalletInput{
		OwnerAccountID:     mw.GetAccountID(ctx),
		Type:               req.Type,
		Network:            req.Network,
		Address:            req.Address,
		RequiredSignatures: req.RequiredSignatures,
	}
	for _, s := range req.Signers {
		in.Signers = append(in.Signers, signerInput(s))
	}

	wallet, signers, err := c.svc.CreateWallet(ctx, in)
	if err != nil {
		logger.From(ctx).Info("create wallet rejected",
			logger.Op("WalletController.Create"), logger.ErrKind(string(types.KindOf(err))))
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, walletDTO(wallet, signers))
}

// Get maneja GET /v1/wallets/{walletID}.
func (c *WalletController) Get(w http.ResponseWriter, r *http.Request) {
	wallet, signers, err := member(r.Context(), c.svc, chi.URLParam(r, "walletID"), mw.GetAccountID(r.Context()))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, walletDTO(wallet, signers))
}

// ListSigners maneja GET /v1/wallets/{walletID}/signers.
func (c *WalletController) ListSigners(w http.ResponseWriter, r *http.Request) {
	_, signers, err := member(r.Context(), c.svc, chi.URLParam(r, "walletID"), mw.GetAccountID(r.Context()))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	out := make([]dto.SignerResponse, 0, len(signers))
	for i := range signers {
		out = append(out, signerDTO(&signers[i]))
	}
	httperrors.WriteJSON(w, http.StatusOK, out)
}

// AddSigner maneja POST /v1/wallets/{walletID}/signers. Sólo el owner.
func (c *WalletController) AddSigner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	walletID := chi.URLParam(r, "walletID")

	var req dto.SignerInput
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	wallet, err := c.svc.GetWallet(ctx, walletID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if wallet.OwnerAccountID != mw.GetAccountID(ctx) {
		httperrors.WriteError(w, types.E(types.KindSignerNotEligible, "only the wallet owner can add signers"))
		return
	}

	s, err := c.svc.AddSigner(ctx, walletID, signerInput(req))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, signerDTO(s))
}

// SetStatus maneja PUT /v1/wallets/{walletID}/status.
func (c *WalletController) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dto.SetWalletStatusRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	walletID := chi.URLParam(r, "walletID")
	if err := c.svc.SetWalletStatus(ctx, walletID, mw.GetAccountID(ctx), repository.WalletStatus(req.Status)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTransaction maneja POST /v1/wallets/{walletID}/transactions.
func (c *WalletController) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dto.CreateTransactionRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}

	rec, err := c.svc.CreateTransaction(ctx, multisig.CreateTxInput{
		WalletID:             chi.URLParam(r, "walletID"),
		CreatedBy:            mw.GetAccountID(ctx),
		ToAddress:            req.ToAddress,
		Amount:               req.Amount,
		Asset:                req.Asset,
		GasLimit:             req.GasLimit,
		MaxFeePerGas:         req.MaxFeePerGas,
		MaxPriorityFeePerGas: req.MaxPriorityFeePerGas,
	})
	if err != nil {
		logger.From(ctx).Info("create transaction rejected",
			logger.Op("WalletController.CreateTransaction"), logger.ErrKind(string(types.KindOf(err))))
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, recordDTO(rec))
}

// ListTransactions maneja GET /v1/wallets/{walletID}/transactions?limit=N.
func (c *WalletController) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	walletID := chi.URLParam(r, "walletID")
	if _, _, err := member(ctx, c.svc, walletID, mw.GetAccountID(ctx)); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	txs, err := c.svc.ListTransactions(ctx, walletID, limit)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	out := dto.ListTransactionsResponse{Transactions: make([]dto.TransactionResponse, 0, len(txs))}
	for i := range txs {
		out.Transactions = append(out.Transactions, txDTO(&txs[i]))
	}
	httperrors.WriteJSON(w, http.StatusOK, out)
}

func signerInput(s dto.SignerInput) multisig.SignerInput {
	return multisig.SignerInput{
		AccountID: s.AccountID,
		Address:   s.Address,
		Role:      repository.SignerRole(s.Role),
		Weight:    s.Weight,
	}
}

// member verifica que accountID sea owner o firmante activo (observer incluido).
func member(ctx context.Context, svc MultisigService, walletID, accountID string) (*repository.Wallet, []repository.WalletSigner, error) {
	wallet, err := svc.GetWallet(ctx, walletID)
	if err != nil {
		return nil, nil, err
	}
	signers, err := svc.ListSigners(ctx, walletID)
	if err != nil {
		return nil, nil, err
	}
	if wallet.OwnerAccountID == accountID {
		return wallet, signers, nil
	}
	for _, s := range signers {
		if s.AccountID == accountID && s.Status == repository.SignerActive {
			return wallet, signers, nil
		}
	}
	return nil, nil, types.E(types.KindSignerNotEligible, "caller is not a member of this wallet")
}
