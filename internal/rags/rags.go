// Package rags implementa la emisión y validación de firmas RAGS
// (Robust Anti-replay Governance Signature): payload canónico con hash del
// mensaje, nonce de un solo uso y timestamp acotado por una ventana de skew.
package rags

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/keys"
)

const (
	DefaultSkewWindow = 5 * time.Minute
	DefaultNonceTTL   = 5 * time.Minute
	MinNonceBytes     = 16
)

type Config struct {
	// SkewWindow es la tolerancia simétrica |now - timestamp|.
	SkewWindow time.Duration
	// NonceTTL es la vida del nonce reservado. Debe ser >= SkewWindow.
	NonceTTL time.Duration
	// NonceBytes de aleatoriedad para nonces generados (mínimo 16).
	NonceBytes int
	Now        func() time.Time
	Rand       io.Reader
}

func (c Config) withDefaults() Config {
	if c.SkewWindow <= 0 {
		c.SkewWindow = DefaultSkewWindow
	}
	if c.NonceTTL <= 0 {
		c.NonceTTL = DefaultNonceTTL
	}
	if c.NonceTTL < c.SkewWindow {
		c.NonceTTL = c.SkewWindow
	}
	if c.NonceBytes < MinNonceBytes {
		c.NonceBytes = MinNonceBytes
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	return c
}

// SignRequest es la entrada de generate_signature.
type SignRequest struct {
	ServiceName string
	Message     []byte
	Algorithm   types.Algorithm
	Nonce       string            // opcional; si vacío se genera
	Address     string            // opcional; hash de la clave a usar
	Metadata    map[string]string // opcional
}

// Envelope es lo que el firmante adjunta al request.
type Envelope struct {
	Signature []byte
	Nonce     string
	Timestamp int64 // unix millis
	Algorithm types.Algorithm
	Address   string
}

// ValidateRequest es la entrada de validate_signature.
type ValidateRequest struct {
	ServiceName string
	Message     []byte
	Signature   []byte
	Algorithm   types.Algorithm
	Nonce       string
	Address     string
	Metadata    map[string]string
	Timestamp   int64 // unix millis

	// Metadata del request que queda asociada al nonce.
	RequestType string
	OriginIP    string
}

// Result describe al firmante validado.
type Result struct {
	AccountID string
	KeyID     string
	Address   string
	Algorithm types.Algorithm
}

// keyResolver es lo que necesitan signer y validator del registry.
type keyResolver interface {
	ByHash(ctx context.Context, hash string) (*repository.PublicKeyEntry, error)
	ActiveKey(ctx context.Context, accountID string, alg types.Algorithm) (*repository.AccountKey, error)
}

var _ keyResolver = (*keys.RegistryCache)(nil)

func newNonce(r io.Reader, n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// resolveAccount mapea serviceName a su cuenta (OwnerRef).
func resolveAccount(ctx context.Context, accounts repository.AccountRepository, serviceName string) (*repository.Account, error) {
	if serviceName == "" {
		return nil, types.E(types.KindUnknownSigner, "service name is required")
	}
	a, err := accounts.GetByOwnerRef(ctx, serviceName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.E(types.KindUnknownSigner, "unknown signer")
		}
		return nil, types.Internal("resolve account", err)
	}
	if a.Status != repository.AccountActive {
		return nil, types.E(types.KindUnknownSigner, "signer account is not active")
	}
	return a, nil
}
