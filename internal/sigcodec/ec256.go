package sigcodec

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"io"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

// ec256 es ECDSA sobre NIST P-256 con digest SHA-256 y firma DER (r,s).
// Pública: punto comprimido (33 bytes). Privada: SEC1 DER.
type ec256 struct {
	rand io.Reader
}

// NewEC256 crea el scheme EC256. rand nil usa crypto/rand.
func NewEC256(r io.Reader) Scheme {
	if r == nil {
		r = rand.Reader
	}
	return &ec256{rand: r}
}

func (s *ec256) Algorithm() types.Algorithm { return types.AlgEC256 }

func (s *ec256) GenerateKey(r io.Reader) ([]byte, []byte, error) {
	if r == nil {
		r = s.rand
	}
	k, err := ecdsa.GenerateKey(elliptic.P256(), r)
	if err != nil {
		return nil, nil, fmt.Errorf("ec256: generate: %w", err)
	}
	priv, err := x509.MarshalECPrivateKey(k)
	if err != nil {
		return nil, nil, fmt.Errorf("ec256: marshal private: %w", err)
	}
	return priv, elliptic.MarshalCompressed(elliptic.P256(), k.X, k.Y), nil
}

func (s *ec256) PublicFromPrivate(priv []byte) ([]byte, error) {
	k, err := x509.ParseECPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("ec256: parse private: %w", err)
	}
	return elliptic.MarshalCompressed(elliptic.P256(), k.X, k.Y), nil
}

func (s *ec256) Sign(priv, msg []byte) ([]byte, error) {
	k, err := x509.ParseECPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("ec256: parse private: %w", err)
	}
	if k.Curve != elliptic.P256() {
		return nil, errors.New("ec256: key is not on P-256")
	}
	digest := sha256.Sum256(msg)
	return ecdsa.SignASN1(s.rand, k, digest[:])
}

func (s *ec256) Verify(pub, msg, sig []byte) bool {
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), pub)
	if x == nil {
		return false
	}
	pk := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	digest := sha256.Sum256(msg)
	return ecdsa.VerifyASN1(pk, digest[:], sig)
}
