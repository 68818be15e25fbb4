package controllers

import (
	"net/http"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/http/dto"
	httperrors "github.com/dropDatabas3/ragsig/internal/http/errors"
	mw "github.com/dropDatabas3/ragsig/internal/http/middlewares"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
	"github.com/dropDatabas3/ragsig/internal/rags"
)

type RagsController struct {
	signer    SignerService
	validator ValidatorService
}

func NewRagsController(signer SignerService, validator ValidatorService) *RagsController {
	return &RagsController{signer: signer, validator: validator}
}

// Sign maneja POST /v1/rags/sign. Firma con las claves de la cuenta del bearer.
func (c *RagsController) Sign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RagsController.Sign"))

	var req dto.SignRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	accountID := mw.GetAccountID(ctx)
	if accountID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	env, err := c.signer.SignForAccount(ctx, accountID, rags.SignRequest{
		ServiceName: req.ServiceName,
		Message:     req.Message,
		Algorithm:   types.Algorithm(req.Algorithm),
		Nonce:       req.Nonce,
		Address:     req.Address,
		Metadata:    req.Metadata,
	})
	if err != nil {
		log.Info("sign rejected", logger.Service(req.ServiceName), logger.ErrKind(string(types.KindOf(err))))
		httperrors.WriteError(w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.SignResponse{
		Signature: env.Signature,
		Nonce:     env.Nonce,
		Timestamp: env.Timestamp,
		Algorithm: string(env.Algorithm),
		Address:   env.Address,
	})
}

// Validate maneja POST /v1/rags/validate. Es público: el envelope es la credencial.
func (c *RagsController) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RagsController.Validate"))

	var req dto.ValidateRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	in := rags.ValidateRequest{
		ServiceName: req.ServiceName,
		Message:     req.Message,
		Signature:   req.Signature,
		Algorithm:   types.Algorithm(req.Algorithm),
		Nonce:       req.Nonce,
		Address:     req.Address,
		Metadata:    req.Metadata,
		Timestamp:   req.Timestamp,
		RequestType: req.RequestType,
		OriginIP:    mw.ClientIP(r),
	}

	var (
		res *rags.Result
		err error
	)
	if req.AccountID != "" {
		res, err = c.validator.ValidateForAccount(ctx, req.AccountID, in)
	} else {
		res, err = c.validator.Validate(ctx, in)
	}
	if err != nil {
		log.Info("validation rejected", logger.Service(req.ServiceName), logger.ErrKind(string(types.KindOf(err))))
		httperrors.WriteError(w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.ValidateResponse{
		Valid:     true,
		AccountID: res.AccountID,
		KeyID:     res.KeyID,
		Address:   res.Address,
		Algorithm: string(res.Algorithm),
	})
}
