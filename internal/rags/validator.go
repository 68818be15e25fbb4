package rags

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/keys"
	"github.com/dropDatabas3/ragsig/internal/metrics"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
	"github.com/dropDatabas3/ragsig/internal/sigcodec"
	"github.com/dropDatabas3/ragsig/internal/util"
)

const usageTimeout = 2 * time.Second

// Validator verifica envelopes RAGS. El orden de los pasos es fijo:
// clave → firma → frescura → nonce. El nonce se reserva recién después de
// verificar la firma, así un probe sin autenticar no quema nonces.
type Validator struct {
	accounts repository.AccountRepository
	keyRepo  repository.KeyRepository
	nonces   repository.NonceRepository
	resolver keyResolver
	codec    *sigcodec.Codec
	cfg      Config

	usage sync.WaitGroup
}

func NewValidator(accounts repository.AccountRepository, keyRepo repository.KeyRepository, nonces repository.NonceRepository, cache *keys.RegistryCache, codec *sigcodec.Codec, cfg Config) *Validator {
	if cache == nil {
		cache = keys.NewRegistryCache(keyRepo, 0)
	}
	if codec == nil {
		codec = sigcodec.Default()
	}
	return &Validator{
		accounts: accounts,
		keyRepo:  keyRepo,
		nonces:   nonces,
		resolver: cache,
		codec:    codec,
		cfg:      cfg.withDefaults(),
	}
}

// Validate resuelve la cuenta por req.ServiceName y valida.
func (v *Validator) Validate(ctx context.Context, req ValidateRequest) (*Result, error) {
	start := time.Now()
	a, err := resolveAccount(ctx, v.accounts, req.ServiceName)
	if err != nil {
		v.observe(ctx, req, "", start, err)
		return nil, err
	}
	res, err := v.validate(ctx, a.ID, req)
	v.observe(ctx, req, a.ID, start, err)
	return res, err
}

// ValidateForAccount valida contra las claves de accountID (firmantes de wallets).
func (v *Validator) ValidateForAccount(ctx context.Context, accountID string, req ValidateRequest) (*Result, error) {
	start := time.Now()
	a, err := v.accounts.GetByID(ctx, accountID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		err = types.E(types.KindUnknownSigner, "unknown signer")
	case err != nil:
		err = types.Internal("get account", err)
	case a.Status != repository.AccountActive:
		err = types.E(types.KindUnknownSigner, "signer account is not active")
	}
	if err != nil {
		v.observe(ctx, req, accountID, start, err)
		return nil, err
	}
	res, err := v.validate(ctx, accountID, req)
	v.observe(ctx, req, accountID, start, err)
	return res, err
}

func (v *Validator) validate(ctx context.Context, accountID string, req ValidateRequest) (*Result, error) {
	if _, err := v.codec.Scheme(req.Algorithm); err != nil {
		return nil, err
	}
	if req.Nonce == "" {
		return nil, types.E(types.KindInvalidSignature, "nonce is required")
	}
	now := v.cfg.Now()

	// 1. payload canónico
	payload := CanonicalPayload(req.ServiceName, req.Message, req.Nonce, req.Timestamp, req.Metadata)

	// 2. clave del firmante
	key, err := resolveKey(ctx, v.resolver, accountID, req.Algorithm, req.Address, now)
	if err != nil {
		return nil, err
	}

	// 3. firma
	ok, err := v.codec.Verify(req.Algorithm, key.PublicKey, payload, req.Signature)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.E(types.KindInvalidSignature, "signature verification failed")
	}

	// 4. frescura (ventana simétrica)
	ts := time.UnixMilli(req.Timestamp)
	if ts.Before(now.Add(-v.cfg.SkewWindow)) || ts.After(now.Add(v.cfg.SkewWindow)) {
		return nil, types.Ef(types.KindStaleRequest, "timestamp outside the %s window", v.cfg.SkewWindow)
	}

	// 5. nonce de un solo uso (insert-if-absent)
	base := now
	if ts.After(base) {
		base = ts
	}
	err = v.nonces.Reserve(ctx, repository.RequestNonce{
		NonceHash:   repository.NonceHash(accountID, req.Nonce),
		AccountID:   accountID,
		Nonce:       req.Nonce,
		CreatedAt:   now,
		ExpiresAt:   base.Add(v.cfg.NonceTTL),
		RequestType: req.RequestType,
		OriginIP:    req.OriginIP,
	})
	switch {
	case errors.Is(err, repository.ErrConflict):
		return nil, types.E(types.KindReplayDetected, "nonce already used")
	case errors.Is(err, repository.ErrNonceExpired):
		return nil, types.E(types.KindStaleRequest, "nonce expired")
	case err != nil:
		return nil, types.Internal("reserve nonce", err)
	}

	// 6. telemetría, fuera del camino crítico
	v.recordUsage(ctx, key.Address, now)

	return &Result{AccountID: accountID, KeyID: key.KeyID, Address: key.Address, Algorithm: req.Algorithm}, nil
}

func (v *Validator) recordUsage(ctx context.Context, hash string, at time.Time) {
	v.usage.Add(1)
	go func() {
		defer v.usage.Done()
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageTimeout)
		defer cancel()
		if err := v.keyRepo.RecordUsage(uctx, hash, at); err != nil {
			logger.From(ctx).Debug("record key usage failed", logger.Op("rags.recordUsage"), logger.Err(err))
		}
	}()
}

// Wait bloquea hasta que terminen las actualizaciones de telemetría en vuelo.
func (v *Validator) Wait() { v.usage.Wait() }

func (v *Validator) observe(ctx context.Context, req ValidateRequest, accountID string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(types.KindOf(err))
	}
	metrics.ObserveValidation(string(req.Algorithm), outcome, time.Since(start))
	if err == nil {
		return
	}

	log := logger.From(ctx).With(
		logger.Op("rags.Validate"),
		logger.Service(req.ServiceName),
		logger.AccountID(accountID),
		logger.Algorithm(string(req.Algorithm)),
		logger.ErrKind(outcome),
		zap.String("address", util.MaskHex(req.Address)),
	)
	if types.KindOf(err) == types.KindInternal {
		log.Error("signature validation aborted", logger.Err(err))
		return
	}
	if types.IsAuthFailure(err) {
		log.Info("signature rejected", zap.String("reason", err.Error()))
		return
	}
	log.Warn("malformed validation request", zap.String("reason", err.Error()))
}
