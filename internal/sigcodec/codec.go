// Package sigcodec agrupa las primitivas sign/verify por algoritmo.
//
// Cada algoritmo es un Scheme registrado en un Codec; los callers sólo
// conocen el tag (types.Algorithm). Agregar un algoritmo es registrar un
// Scheme nuevo, sin tocar a los callers.
package sigcodec

import (
	"io"
	"sort"
	"sync"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

// Scheme es una familia de firma concreta.
// Las claves viajan como bytes opacos en el encoding propio del scheme.
type Scheme interface {
	Algorithm() types.Algorithm

	// GenerateKey crea un par nuevo. priv sólo debe salir hacia el vault.
	GenerateKey(rand io.Reader) (priv, pub []byte, err error)

	// PublicFromPrivate deriva la clave pública de la privada.
	PublicFromPrivate(priv []byte) ([]byte, error)

	Sign(priv, msg []byte) ([]byte, error)

	// Verify nunca devuelve error: cualquier input malformado es false.
	Verify(pub, msg, sig []byte) bool
}

// Codec resuelve Schemes por tag.
type Codec struct {
	mu      sync.RWMutex
	schemes map[types.Algorithm]Scheme
}

// New crea un Codec con los schemes dados.
func New(schemes ...Scheme) *Codec {
	c := &Codec{schemes: make(map[types.Algorithm]Scheme, len(schemes))}
	for _, s := range schemes {
		c.Register(s)
	}
	return c
}

// Default devuelve el Codec con los tres algoritmos soportados.
func Default() *Codec {
	return New(NewEC256(nil), NewMLDSA65(), NewMLDSA87())
}

// Register agrega o reemplaza un scheme.
func (c *Codec) Register(s Scheme) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemes[s.Algorithm()] = s
}

// Scheme devuelve el scheme del algoritmo o UnsupportedAlgorithm.
func (c *Codec) Scheme(alg types.Algorithm) (Scheme, error) {
	c.mu.RLock()
	s, ok := c.schemes[alg]
	c.mu.RUnlock()
	if !ok {
		return nil, types.Ef(types.KindUnsupportedAlgorithm, "algorithm %q is not supported", string(alg))
	}
	return s, nil
}

// Supported lista los tags registrados, ordenados.
func (c *Codec) Supported() []types.Algorithm {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Algorithm, 0, len(c.schemes))
	for alg := range c.schemes {
		out = append(out, alg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Codec) Sign(alg types.Algorithm, priv, msg []byte) ([]byte, error) {
	s, err := c.Scheme(alg)
	if err != nil {
		return nil, err
	}
	return s.Sign(priv, msg)
}

// Verify devuelve (false, err) sólo si el algoritmo no está soportado.
func (c *Codec) Verify(alg types.Algorithm, pub, msg, sig []byte) (bool, error) {
	s, err := c.Scheme(alg)
	if err != nil {
		return false, err
	}
	return s.Verify(pub, msg, sig), nil
}
