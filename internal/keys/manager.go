// Package keys maneja el ciclo de vida de cuentas y claves de firma:
// onboarding, provisión en el vault, rotación con ventana de gracia y
// revocación. El material privado nunca pasa por acá; sólo el storage ref.
package keys

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
	"github.com/dropDatabas3/ragsig/internal/util"
)

// Vault es el custodio de claves privadas (KMS/HSM o el vault local).
type Vault interface {
	Generate(ctx context.Context, alg types.Algorithm) (ref string, pub []byte, err error)
	Sign(ctx context.Context, ref string, alg types.Algorithm, msg []byte) ([]byte, error)
	Destroy(ctx context.Context, ref string) error
}

type Config struct {
	RotationGrace time.Duration
	Now           func() time.Time
}

type Manager struct {
	accounts repository.AccountRepository
	keys     repository.KeyRepository
	vault    Vault
	cache    *RegistryCache
	grace    time.Duration
	now      func() time.Time
}

func NewManager(accounts repository.AccountRepository, keyRepo repository.KeyRepository, vault Vault, cache *RegistryCache, cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RotationGrace <= 0 {
		cfg.RotationGrace = 24 * time.Hour
	}
	if cache == nil {
		cache = NewRegistryCache(keyRepo, 0)
	}
	return &Manager{
		accounts: accounts,
		keys:     keyRepo,
		vault:    vault,
		cache:    cache,
		grace:    cfg.RotationGrace,
		now:      cfg.Now,
	}
}

// Cache expone el registry cache compartido con el validador.
func (m *Manager) Cache() *RegistryCache { return m.cache }

// EnsureAccount devuelve la cuenta de ownerRef, creándola si no existe.
func (m *Manager) EnsureAccount(ctx context.Context, ownerRef string, ownerType repository.OwnerType) (*repository.Account, error) {
	if ownerRef == "" {
		return nil, types.E(types.KindInvalidInput, "owner reference is required")
	}
	if ownerType != repository.OwnerClient && ownerType != repository.OwnerSystem {
		return nil, types.Ef(types.KindInvalidInput, "owner type %q is not valid", ownerType)
	}

	a, err := m.accounts.GetByOwnerRef(ctx, ownerRef)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, types.Internal("get account", err)
	}

	a = &repository.Account{OwnerRef: ownerRef, OwnerType: ownerType, Status: repository.AccountActive}
	if err := m.accounts.Create(ctx, a); err != nil {
		// carrera con otro onboarding del mismo owner
		if errors.Is(err, repository.ErrConflict) {
			return m.accounts.GetByOwnerRef(ctx, ownerRef)
		}
		return nil, types.Internal("create account", err)
	}
	logger.From(ctx).Info("account created",
		logger.Op("keys.EnsureAccount"), logger.AccountID(a.ID), zap.String("owner_type", string(ownerType)))
	return a, nil
}

// Deactivate marca la cuenta inactive. Sus claves dejan de validar.
func (m *Manager) Deactivate(ctx context.Context, accountID string) error {
	if err := m.accounts.SetStatus(ctx, accountID, repository.AccountInactive); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return types.E(types.KindUnknownSigner, "account not found")
		}
		return types.Internal("deactivate account", err)
	}
	m.cache.Flush()
	logger.From(ctx).Info("account deactivated", logger.Op("keys.Deactivate"), logger.AccountID(accountID))
	return nil
}

// Provision garantiza una clave activa para (cuenta, alg). Si ya hay una la devuelve.
func (m *Manager) Provision(ctx context.Context, accountID string, alg types.Algorithm) (*repository.AccountKey, error) {
	if _, err := m.activeAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if !alg.IsValid() {
		return nil, types.Ef(types.KindUnsupportedAlgorithm, "algorithm %q is not supported", alg)
	}
	k, err := m.keys.FindActiveKey(ctx, accountID, alg)
	if err == nil {
		return k, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, types.Internal("find active key", err)
	}
	return m.install(ctx, accountID, alg, "keys.Provision")
}

// Rotate genera una clave nueva; la anterior queda retiring durante la gracia.
func (m *Manager) Rotate(ctx context.Context, accountID string, alg types.Algorithm) (*repository.AccountKey, error) {
	if _, err := m.activeAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if !alg.IsValid() {
		return nil, types.Ef(types.KindUnsupportedAlgorithm, "algorithm %q is not supported", alg)
	}
	var oldHash string
	if prev, err := m.keys.FindActiveKey(ctx, accountID, alg); err == nil {
		oldHash = prev.Address()
	}
	k, err := m.install(ctx, accountID, alg, "keys.Rotate")
	if err != nil {
		return nil, err
	}
	m.cache.Invalidate(accountID, alg, oldHash)
	return k, nil
}

func (m *Manager) install(ctx context.Context, accountID string, alg types.Algorithm, op string) (*repository.AccountKey, error) {
	ref, pub, err := m.vault.Generate(ctx, alg)
	if err != nil {
		if types.IsKind(err, types.KindUnsupportedAlgorithm) {
			return nil, err
		}
		return nil, types.Internal("vault generate", err)
	}
	id, err := m.keys.PutKey(ctx, repository.PutKeyInput{
		AccountID:   accountID,
		Algorithm:   alg,
		PublicKey:   pub,
		StorageRef:  ref,
		RetireGrace: m.grace,
		Now:         m.now(),
	})
	if err != nil {
		return nil, types.Internal("put key", err)
	}
	k, err := m.keys.GetKey(ctx, id)
	if err != nil {
		return nil, types.Internal("get key", err)
	}
	logger.From(ctx).Info("key installed",
		logger.Op(op), logger.AccountID(accountID), logger.KeyID(id), logger.Algorithm(string(alg)),
		logger.String("storage_ref", util.MaskRef(ref)))
	return k, nil
}

// Revoke revoca una clave de inmediato (sin gracia).
func (m *Manager) Revoke(ctx context.Context, keyID string) error {
	k, err := m.keys.GetKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return types.E(types.KindUnknownSigner, "key not found")
		}
		return types.Internal("get key", err)
	}
	if err := m.keys.Revoke(ctx, keyID, m.now()); err != nil {
		return types.Internal("revoke key", err)
	}
	m.cache.Invalidate(k.AccountID, k.Algorithm, k.Address())

	log := logger.From(ctx).With(logger.Op("keys.Revoke"), logger.AccountID(k.AccountID), logger.KeyID(keyID))
	// la fila ya quedó revocada; si el vault falla la clave privada queda huérfana pero no valida
	if err := m.vault.Destroy(ctx, k.StorageRef); err != nil {
		log.Warn("vault destroy failed", logger.Err(err))
	}
	log.Warn("key revoked", logger.Algorithm(string(k.Algorithm)))
	return nil
}

func (m *Manager) ListKeys(ctx context.Context, accountID string) ([]repository.AccountKey, error) {
	ks, err := m.keys.ListKeys(ctx, accountID)
	if err != nil {
		return nil, types.Internal("list keys", err)
	}
	return ks, nil
}

// Account devuelve la cuenta por id.
func (m *Manager) Account(ctx context.Context, accountID string) (*repository.Account, error) {
	a, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.E(types.KindUnknownSigner, "account not found")
		}
		return nil, types.Internal("get account", err)
	}
	return a, nil
}

func (m *Manager) activeAccount(ctx context.Context, accountID string) (*repository.Account, error) {
	a, err := m.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.Status != repository.AccountActive {
		return nil, types.E(types.KindUnknownSigner, "account is not active")
	}
	return a, nil
}
