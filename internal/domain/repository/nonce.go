package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RequestNonce es un token de un solo uso contra replay. Nunca se actualiza.
type RequestNonce struct {
	NonceHash   string
	AccountID   string
	Nonce       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RequestType string
	OriginIP    string
}

// NonceHash calcula la PK del nonce: hex(SHA256(accountID ‖ 0x00 ‖ nonce)).
func NonceHash(accountID, nonce string) string {
	h := sha256.New()
	h.Write([]byte(accountID))
	h.Write([]byte{0})
	h.Write([]byte(nonce))
	return hex.EncodeToString(h.Sum(nil))
}

// NonceRepository define la reserva atómica de nonces.
type NonceRepository interface {
	// Reserve inserta el nonce solo si su hash no existe (insert-if-absent).
	// Retorna ErrConflict si ya fue usado y ErrNonceExpired si
	// ExpiresAt <= CreatedAt. Dos llamadas concurrentes con el mismo hash
	// resultan en exactamente un nil.
	Reserve(ctx context.Context, n RequestNonce) error

	// DeleteExpired borra nonces con ExpiresAt < before (estricto). Retorna cuántos.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
