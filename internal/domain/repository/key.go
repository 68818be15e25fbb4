package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

// KeyStatus indica el estado de una clave.
type KeyStatus string

const (
	// KeyActive es la única clave elegible para firmas nuevas por (cuenta, algoritmo).
	KeyActive KeyStatus = "active"
	// KeyRetiring sigue validando firmas en vuelo hasta ExpiresAt.
	KeyRetiring KeyStatus = "retiring"
	// KeyRevoked no valida nada.
	KeyRevoked KeyStatus = "revoked"
)

// AccountKey es un par de claves de una cuenta.
// La privada vive fuera del proceso; aquí solo se guarda su StorageRef.
type AccountKey struct {
	ID         string
	AccountID  string
	Algorithm  types.Algorithm
	PublicKey  []byte
	StorageRef string // ej: vault://<keyID>, kms path, etc.
	Status     KeyStatus
	CreatedAt  time.Time
	RotatedAt  *time.Time
	ExpiresAt  *time.Time
}

// Address es el hash hex del public key; es la clave del registry.
func (k *AccountKey) Address() string { return HashPublicKey(k.PublicKey) }

// PublicKeyEntry es la proyección de lectura de AccountKey indexada por SHA256(publicKey).
type PublicKeyEntry struct {
	Hash       string
	KeyID      string
	AccountID  string
	Algorithm  types.Algorithm
	PublicKey  []byte
	Status     KeyStatus
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	LastUsed   *time.Time
	UsageCount int64
}

// UsableAt indica si la entrada puede validar una firma en el instante now.
func (e *PublicKeyEntry) UsableAt(now time.Time) bool {
	switch e.Status {
	case KeyActive:
		return true
	case KeyRetiring:
		return e.ExpiresAt != nil && now.Before(*e.ExpiresAt)
	}
	return false
}

// HashPublicKey calcula el hash del registry: hex(SHA256(publicKey)).
func HashPublicKey(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// PutKeyInput contiene los datos para registrar una clave nueva.
type PutKeyInput struct {
	KeyID      string // opcional; si vacío el store genera uno
	AccountID  string
	Algorithm  types.Algorithm
	PublicKey  []byte
	StorageRef string
	// RetireGrace es la ventana durante la cual la clave activa anterior
	// (si existe) sigue validando firmas en vuelo.
	RetireGrace time.Duration
	Now         time.Time
}

// KeyRepository define operaciones sobre claves y el registry de public keys.
type KeyRepository interface {
	// PutKey registra una clave activa. La activa anterior del mismo
	// (cuenta, algoritmo) pasa a retiring con ExpiresAt = Now + RetireGrace,
	// en la misma operación atómica. Retorna el ID de la clave nueva.
	PutKey(ctx context.Context, in PutKeyInput) (string, error)

	// FindActiveKey retorna la clave activa para (cuenta, algoritmo) o ErrNotFound.
	FindActiveKey(ctx context.Context, accountID string, alg types.Algorithm) (*AccountKey, error)

	// FindByHash busca en el registry por SHA256(publicKey) hex.
	FindByHash(ctx context.Context, hash string) (*PublicKeyEntry, error)

	// GetKey busca una clave por ID.
	GetKey(ctx context.Context, keyID string) (*AccountKey, error)

	// ListKeys lista todas las claves de una cuenta (cualquier estado).
	ListKeys(ctx context.Context, accountID string) ([]AccountKey, error)

	// Revoke revoca una clave inmediatamente.
	Revoke(ctx context.Context, keyID string, at time.Time) error

	// RecordUsage actualiza lastUsed/usageCount. Solo telemetría.
	RecordUsage(ctx context.Context, hash string, at time.Time) error
}
