package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/http/dto"
	httperrors "github.com/dropDatabas3/ragsig/internal/http/errors"
	mw "github.com/dropDatabas3/ragsig/internal/http/middlewares"
	"github.com/dropDatabas3/ragsig/internal/multisig"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

type TransactionController struct {
	svc MultisigService
}

func NewTransactionController(svc MultisigService) *TransactionController {
	return &TransactionController{svc: svc}
}

// Get maneja GET /v1/transactions/{txID}.
func (c *TransactionController) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := c.load(r.Context(), chi.URLParam(r, "txID"), mw.GetAccountID(r.Context()))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, recordDTO(rec))
}

// Message maneja GET /v1/transactions/{txID}/message: lo que cada firmante
// debe firmar con service_name multisig.vote.
func (c *TransactionController) Message(w http.ResponseWriter, r *http.Request) {
	rec, err := c.svc.GetTransaction(r.Context(), chi.URLParam(r, "txID"))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.SigningMessageResponse{
		ServiceName: multisig.VoteService,
		Message:     multisig.SigningMessage(&rec.Tx),
	})
}

// Sign maneja POST /v1/transactions/{txID}/sign. El envelope RAGS es la
// credencial, no hace falta bearer.
func (c *TransactionController) Sign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "txID")

	var req dto.SubmitSignatureRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if req.SignerID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("signer_id is required"))
		return
	}

	rec, err := c.svc.SubmitSignature(ctx, txID, req.SignerID, multisig.Submission{
		Signature: req.Signature,
		Algorithm: types.Algorithm(req.Algorithm),
		Nonce:     req.Nonce,
		Address:   req.Address,
		Timestamp: req.Timestamp,
		Metadata:  req.Metadata,
		OriginIP:  mw.ClientIP(r),
	})
	if err != nil {
		logger.From(ctx).Info("vote rejected",
			logger.Op("TransactionController.Sign"), logger.TxID(txID),
			logger.SignerID(req.SignerID), logger.ErrKind(string(types.KindOf(err))))
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, recordDTO(rec))
}

// Reject maneja POST /v1/transactions/{txID}/reject. El signer debe ser del caller.
func (c *TransactionController) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "txID")

	var req dto.RejectSignatureRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	rec, err := c.svc.GetTransaction(ctx, txID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	vote := rec.Vote(req.SignerID)
	if vote == nil || vote.AccountID != mw.GetAccountID(ctx) {
		httperrors.WriteError(w, types.E(types.KindSignerNotEligible, "signer does not belong to caller"))
		return
	}

	out, err := c.svc.RejectSignature(ctx, txID, req.SignerID, req.Reason)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, recordDTO(out))
}

// Finalize maneja POST /v1/transactions/{txID}/finalize.
// BroadcastTimeout responde 504 con la tx todavía en Broadcasting.
func (c *TransactionController) Finalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "txID")
	if _, err := c.load(ctx, txID, mw.GetAccountID(ctx)); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	rec, err := c.svc.FinalizeAndBroadcast(ctx, txID)
	if err != nil {
		logger.From(ctx).Warn("finalize failed",
			logger.Op("TransactionController.Finalize"), logger.TxID(txID), logger.ErrKind(string(types.KindOf(err))))
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, recordDTO(rec))
}

// Cancel maneja POST /v1/transactions/{txID}/cancel.
func (c *TransactionController) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := c.svc.Cancel(ctx, chi.URLParam(r, "txID"), mw.GetAccountID(ctx))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, recordDTO(rec))
}

// Reconcile maneja POST /v1/transactions/{txID}/reconcile.
func (c *TransactionController) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "txID")
	if _, err := c.load(ctx, txID, mw.GetAccountID(ctx)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	rec, err := c.svc.Reconcile(ctx, txID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, recordDTO(rec))
}

// load trae la tx y verifica que el caller sea miembro de su wallet.
func (c *TransactionController) load(ctx context.Context, txID, accountID string) (*repository.TxRecord, error) {
	rec, err := c.svc.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if _, _, err := member(ctx, c.svc, rec.Tx.WalletID, accountID); err != nil {
		return nil, err
	}
	return rec, nil
}
