package rags

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

type resolvedKey struct {
	KeyID     string
	PublicKey []byte
	Address   string
}

// resolveKey elige la clave de accountID para alg.
// Con address explícito acepta también claves retiring dentro de la gracia;
// sin address sólo la activa.
func resolveKey(ctx context.Context, r keyResolver, accountID string, alg types.Algorithm, address string, now time.Time) (*resolvedKey, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		k, err := r.ActiveKey(ctx, accountID, alg)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, types.E(types.KindUnknownSigner, "no active key for algorithm")
			}
			return nil, types.Internal("find active key", err)
		}
		return &resolvedKey{KeyID: k.ID, PublicKey: k.PublicKey, Address: k.Address()}, nil
	}

	e, err := r.ByHash(ctx, address)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.E(types.KindUnknownSigner, "unknown signer address")
		}
		return nil, types.Internal("find key by hash", err)
	}
	if e.AccountID != accountID || e.Algorithm != alg {
		return nil, types.E(types.KindUnknownSigner, "address does not belong to signer")
	}
	if e.Status == repository.KeyRevoked {
		return nil, types.E(types.KindKeyRevoked, "signer key was revoked")
	}
	if !e.UsableAt(now) {
		return nil, types.E(types.KindUnknownSigner, "signer key is no longer valid")
	}
	return &resolvedKey{KeyID: e.KeyID, PublicKey: e.PublicKey, Address: e.Hash}, nil
}
