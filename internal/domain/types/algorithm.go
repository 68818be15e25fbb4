// Package types define tipos de dominio compartidos entre paquetes.
package types

import "strings"

// Algorithm es el tag de algoritmo de firma de una clave o de una firma RAGS.
type Algorithm string

const (
	// AlgEC256 es ECDSA sobre NIST P-256 con digest SHA-256 y firma DER (r,s).
	AlgEC256 Algorithm = "EC256"
	// AlgPQCA es el primer esquema post-cuántico (backend por defecto: ML-DSA-65).
	AlgPQCA Algorithm = "PQC-A"
	// AlgPQCB es el segundo esquema post-cuántico (backend por defecto: ML-DSA-87).
	AlgPQCB Algorithm = "PQC-B"
)

// Algorithms lista el conjunto cerrado de algoritmos declarados.
func Algorithms() []Algorithm {
	return []Algorithm{AlgEC256, AlgPQCA, AlgPQCB}
}

// IsValid retorna true si el tag pertenece al conjunto declarado.
func (a Algorithm) IsValid() bool {
	switch a {
	case AlgEC256, AlgPQCA, AlgPQCB:
		return true
	}
	return false
}

// ParseAlgorithm normaliza un tag recibido por API/CLI ("ec256", "pqc-a", ...).
func ParseAlgorithm(s string) (Algorithm, bool) {
	a := Algorithm(strings.ToUpper(strings.TrimSpace(s)))
	return a, a.IsValid()
}
