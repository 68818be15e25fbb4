package rags

import (
	"context"
	"errors"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/keys"
	"github.com/dropDatabas3/ragsig/internal/metrics"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
	"github.com/dropDatabas3/ragsig/internal/sigcodec"
)

// Signer produce envelopes RAGS. No toca el store de nonces: el nonce se
// consume sólo al validar.
type Signer struct {
	accounts repository.AccountRepository
	keyRepo  repository.KeyRepository
	resolver keyResolver
	vault    keys.Vault
	codec    *sigcodec.Codec
	cfg      Config
}

func NewSigner(accounts repository.AccountRepository, keyRepo repository.KeyRepository, cache *keys.RegistryCache, vault keys.Vault, codec *sigcodec.Codec, cfg Config) *Signer {
	if cache == nil {
		cache = keys.NewRegistryCache(keyRepo, 0)
	}
	if codec == nil {
		codec = sigcodec.Default()
	}
	return &Signer{
		accounts: accounts,
		keyRepo:  keyRepo,
		resolver: cache,
		vault:    vault,
		codec:    codec,
		cfg:      cfg.withDefaults(),
	}
}

// Sign firma en nombre de la cuenta cuyo OwnerRef es req.ServiceName.
func (s *Signer) Sign(ctx context.Context, req SignRequest) (*Envelope, error) {
	a, err := resolveAccount(ctx, s.accounts, req.ServiceName)
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, a, req)
}

// SignForAccount firma con las claves de accountID. req.ServiceName sigue
// formando parte del payload (contexto de la firma).
func (s *Signer) SignForAccount(ctx context.Context, accountID string, req SignRequest) (*Envelope, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.E(types.KindUnknownSigner, "unknown signer")
		}
		return nil, types.Internal("get account", err)
	}
	if a.Status != repository.AccountActive {
		return nil, types.E(types.KindUnknownSigner, "signer account is not active")
	}
	return s.sign(ctx, a, req)
}

func (s *Signer) sign(ctx context.Context, a *repository.Account, req SignRequest) (*Envelope, error) {
	if _, err := s.codec.Scheme(req.Algorithm); err != nil {
		return nil, err
	}

	nonce := req.Nonce
	if nonce == "" {
		n, err := newNonce(s.cfg.Rand, s.cfg.NonceBytes)
		if err != nil {
			return nil, types.Internal("generate nonce", err)
		}
		nonce = n
	}

	now := s.cfg.Now()
	key, err := resolveKey(ctx, s.resolver, a.ID, req.Algorithm, req.Address, now)
	if err != nil {
		return nil, err
	}
	ak, err := s.keyRepo.GetKey(ctx, key.KeyID)
	if err != nil {
		return nil, types.Internal("get key", err)
	}

	ts := now.UnixMilli()
	payload := CanonicalPayload(req.ServiceName, req.Message, nonce, ts, req.Metadata)
	sig, err := s.vault.Sign(ctx, ak.StorageRef, req.Algorithm, payload)
	if err != nil {
		logger.From(ctx).Error("vault sign failed",
			logger.Op("rags.Sign"), logger.AccountID(a.ID), logger.KeyID(ak.ID), logger.Err(err))
		return nil, types.Internal("sign", err)
	}
	metrics.SignaturesIssued.WithLabelValues(string(req.Algorithm)).Inc()

	return &Envelope{
		Signature: sig,
		Nonce:     nonce,
		Timestamp: ts,
		Algorithm: req.Algorithm,
		Address:   key.Address,
	}, nil
}
