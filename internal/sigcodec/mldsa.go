package sigcodec

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

// PQC-A = ML-DSA-65, PQC-B = ML-DSA-87 (FIPS 204).
// Firmas determinísticas y sin context string.

type mldsa65Scheme struct{}

func NewMLDSA65() Scheme { return mldsa65Scheme{} }

func (mldsa65Scheme) Algorithm() types.Algorithm { return types.AlgPQCA }

func (mldsa65Scheme) GenerateKey(r io.Reader) ([]byte, []byte, error) {
	pk, sk, err := mldsa65.GenerateKey(r)
	if err != nil {
		return nil, nil, fmt.Errorf("mldsa65: generate: %w", err)
	}
	return marshalPair(sk, pk)
}

func (mldsa65Scheme) PublicFromPrivate(priv []byte) ([]byte, error) {
	var sk mldsa65.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, fmt.Errorf("mldsa65: parse private: %w", err)
	}
	pk, ok := sk.Public().(*mldsa65.PublicKey)
	if !ok {
		return nil, fmt.Errorf("mldsa65: unexpected public key type")
	}
	return pk.MarshalBinary()
}

func (mldsa65Scheme) Sign(priv, msg []byte) ([]byte, error) {
	var sk mldsa65.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, fmt.Errorf("mldsa65: parse private: %w", err)
	}
	sig := make([]byte, mldsa65.SignatureSize)
	mldsa65.SignTo(&sk, msg, nil, false, sig)
	return sig, nil
}

func (mldsa65Scheme) Verify(pub, msg, sig []byte) bool {
	if len(sig) != mldsa65.SignatureSize {
		return false
	}
	var pk mldsa65.PublicKey
	if err := pk.UnmarshalBinary(pub); err != nil {
		return false
	}
	return mldsa65.Verify(&pk, msg, nil, sig)
}

type mldsa87Scheme struct{}

func NewMLDSA87() Scheme { return mldsa87Scheme{} }

func (mldsa87Scheme) Algorithm() types.Algorithm { return types.AlgPQCB }

func (mldsa87Scheme) GenerateKey(r io.Reader) ([]byte, []byte, error) {
	pk, sk, err := mldsa87.GenerateKey(r)
	if err != nil {
		return nil, nil, fmt.Errorf("mldsa87: generate: %w", err)
	}
	return marshalPair(sk, pk)
}

func (mldsa87Scheme) PublicFromPrivate(priv []byte) ([]byte, error) {
	var sk mldsa87.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, fmt.Errorf("mldsa87: parse private: %w", err)
	}
	pk, ok := sk.Public().(*mldsa87.PublicKey)
	if !ok {
		return nil, fmt.Errorf("mldsa87: unexpected public key type")
	}
	return pk.MarshalBinary()
}

func (mldsa87Scheme) Sign(priv, msg []byte) ([]byte, error) {
	var sk mldsa87.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, fmt.Errorf("mldsa87: parse private: %w", err)
	}
	sig := make([]byte, mldsa87.SignatureSize)
	mldsa87.SignTo(&sk, msg, nil, false, sig)
	return sig, nil
}

func (mldsa87Scheme) Verify(pub, msg, sig []byte) bool {
	if len(sig) != mldsa87.SignatureSize {
		return false
	}
	var pk mldsa87.PublicKey
	if err := pk.UnmarshalBinary(pub); err != nil {
		return false
	}
	return mldsa87.Verify(&pk, msg, nil, sig)
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

func marshalPair(sk, pk binaryMarshaler) ([]byte, []byte, error) {
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}
