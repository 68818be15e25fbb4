// Package vault es el custodio local de claves privadas.
//
// Cumple el rol de KMS/HSM para desarrollo y despliegues single-node: la
// clave privada se genera adentro, se guarda sellada con AES-GCM y nunca sale.
// Afuera sólo viaja el handle "vault://<id>" y las firmas.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/security/secretbox"
	"github.com/dropDatabas3/ragsig/internal/sigcodec"
	"github.com/dropDatabas3/ragsig/internal/util/atomicwrite"
)

const (
	RefPrefix = "vault://"
	hkdfInfo  = "ragsig/vault/v1"
	fileExt   = ".key"
)

var (
	ErrKeyNotFound = errors.New("vault: key not found")
	ErrInvalidRef  = errors.New("vault: invalid storage ref")
	ErrAlgMismatch = errors.New("vault: algorithm mismatch")
	ErrNoMasterKey = errors.New("vault: master key required")
)

// Config del vault. Dir vacío = sólo memoria (tests).
type Config struct {
	Dir       string
	MasterKey []byte
	Rand      io.Reader
}

type sealedKey struct {
	ID        string          `json:"id"`
	Algorithm types.Algorithm `json:"algorithm"`
	Sealed    string          `json:"sealed"`
	CreatedAt time.Time       `json:"created_at"`
}

type Vault struct {
	cfg   Config
	codec *sigcodec.Codec

	mu   sync.RWMutex
	keys map[string]sealedKey
}

func New(cfg Config, codec *sigcodec.Codec) (*Vault, error) {
	if len(cfg.MasterKey) != secretbox.KeyLength {
		return nil, ErrNoMasterKey
	}
	if codec == nil {
		codec = sigcodec.Default()
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("vault: mkdir %s: %w", cfg.Dir, err)
		}
	}
	return &Vault{cfg: cfg, codec: codec, keys: make(map[string]sealedKey)}, nil
}

// Ref arma el handle para un id.
func Ref(id string) string { return RefPrefix + id }

// ParseRef extrae el id de un handle vault://<uuid>.
func ParseRef(ref string) (string, error) {
	if !strings.HasPrefix(ref, RefPrefix) {
		return "", ErrInvalidRef
	}
	id := strings.TrimPrefix(ref, RefPrefix)
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidRef
	}
	return id, nil
}

// Generate crea un par para alg y devuelve (ref, publicKey).
func (v *Vault) Generate(ctx context.Context, alg types.Algorithm) (string, []byte, error) {
	scheme, err := v.codec.Scheme(alg)
	if err != nil {
		return "", nil, err
	}
	priv, pub, err := scheme.GenerateKey(v.cfg.Rand)
	if err != nil {
		return "", nil, err
	}
	defer wipe(priv)

	id := uuid.NewString()
	dek, err := v.deriveKey(id)
	if err != nil {
		return "", nil, err
	}
	sealed, err := secretbox.Seal(dek, priv, aad(id, alg))
	if err != nil {
		return "", nil, err
	}
	sk := sealedKey{ID: id, Algorithm: alg, Sealed: sealed, CreatedAt: time.Now().UTC()}

	if v.cfg.Dir != "" {
		b, err := json.Marshal(sk)
		if err != nil {
			return "", nil, err
		}
		if err := atomicwrite.CreateExclusive(v.path(id), b, 0o600); err != nil {
			return "", nil, fmt.Errorf("vault: persist: %w", err)
		}
	}

	v.mu.Lock()
	v.keys[id] = sk
	v.mu.Unlock()
	return Ref(id), pub, nil
}

// Sign firma msg con la clave referida. alg debe coincidir con el de la clave.
func (v *Vault) Sign(ctx context.Context, ref string, alg types.Algorithm, msg []byte) ([]byte, error) {
	id, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	sk, err := v.load(id)
	if err != nil {
		return nil, err
	}
	if sk.Algorithm != alg {
		return nil, ErrAlgMismatch
	}
	dek, err := v.deriveKey(id)
	if err != nil {
		return nil, err
	}
	priv, err := secretbox.Open(dek, sk.Sealed, aad(id, alg))
	if err != nil {
		return nil, fmt.Errorf("vault: unseal: %w", err)
	}
	defer wipe(priv)
	return v.codec.Sign(alg, priv, msg)
}

// PublicKey deriva la pública de la clave referida.
func (v *Vault) PublicKey(ctx context.Context, ref string) (types.Algorithm, []byte, error) {
	id, err := ParseRef(ref)
	if err != nil {
		return "", nil, err
	}
	sk, err := v.load(id)
	if err != nil {
		return "", nil, err
	}
	scheme, err := v.codec.Scheme(sk.Algorithm)
	if err != nil {
		return "", nil, err
	}
	dek, err := v.deriveKey(id)
	if err != nil {
		return "", nil, err
	}
	priv, err := secretbox.Open(dek, sk.Sealed, aad(id, sk.Algorithm))
	if err != nil {
		return "", nil, fmt.Errorf("vault: unseal: %w", err)
	}
	defer wipe(priv)
	pub, err := scheme.PublicFromPrivate(priv)
	return sk.Algorithm, pub, err
}

// Destroy borra la clave. Después de esto el ref ya no firma.
func (v *Vault) Destroy(ctx context.Context, ref string) error {
	id, err := ParseRef(ref)
	if err != nil {
		return err
	}
	v.mu.Lock()
	delete(v.keys, id)
	v.mu.Unlock()
	if v.cfg.Dir != "" {
		if err := os.Remove(v.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (v *Vault) load(id string) (sealedKey, error) {
	v.mu.RLock()
	sk, ok := v.keys[id]
	v.mu.RUnlock()
	if ok {
		return sk, nil
	}
	if v.cfg.Dir == "" {
		return sealedKey{}, ErrKeyNotFound
	}

	b, err := os.ReadFile(v.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return sealedKey{}, ErrKeyNotFound
	}
	if err != nil {
		return sealedKey{}, err
	}
	if err := json.Unmarshal(b, &sk); err != nil {
		return sealedKey{}, fmt.Errorf("vault: decode %s: %w", id, err)
	}
	if sk.ID != id {
		return sealedKey{}, fmt.Errorf("vault: id mismatch in %s", id)
	}

	v.mu.Lock()
	v.keys[id] = sk
	v.mu.Unlock()
	return sk, nil
}

func (v *Vault) path(id string) string {
	return filepath.Join(v.cfg.Dir, id+fileExt)
}

// deriveKey: una clave AEAD por id, HKDF-SHA256(master, salt=id).
func (v *Vault) deriveKey(id string) ([]byte, error) {
	r := hkdf.New(sha256.New, v.cfg.MasterKey, []byte(id), []byte(hkdfInfo))
	k := make([]byte, secretbox.KeyLength)
	if _, err := io.ReadFull(r, k); err != nil {
		return nil, fmt.Errorf("vault: hkdf: %w", err)
	}
	return k, nil
}

func aad(id string, alg types.Algorithm) []byte {
	return []byte(id + "|" + string(alg))
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
