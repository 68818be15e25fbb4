// Package network es el borde hacia los adapters de red (broadcast de
// transacciones ya firmadas). Cada red registra su Adapter por id.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

var (
	ErrUnknownNetwork = errors.New("network: no adapter registered")
	ErrInvalidPayload = errors.New("network: invalid payload")
)

// Status es el destino de una transacción según la red.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusDropped   Status = "Dropped"
)

// SignedVote es una firma del quórum tal como viaja al adapter.
type SignedVote struct {
	SignerID  string          `json:"signer_id"`
	AccountID string          `json:"account_id"`
	Address   string          `json:"address"`
	Algorithm types.Algorithm `json:"algorithm"`
	Nonce     string          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Signature []byte          `json:"signature"`
}

// Payload es la transacción finalizada: campos + votos Signed.
type Payload struct {
	TxID                 string          `json:"tx_id"`
	WalletID             string          `json:"wallet_id"`
	Network              string          `json:"network"`
	From                 string          `json:"from"`
	To                   string          `json:"to"`
	Amount               decimal.Decimal `json:"amount"`
	Asset                string          `json:"asset"`
	Sequence             uint64          `json:"sequence"`
	GasLimit             uint64          `json:"gas_limit,omitempty"`
	MaxFeePerGas         decimal.Decimal `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas decimal.Decimal `json:"max_priority_fee_per_gas"`
	RequiredSignatures   int             `json:"required_signatures"`
	Signatures           []SignedVote    `json:"signatures"`
}

// Encode serializa el payload con los votos ordenados por signer.
func (p Payload) Encode() ([]byte, error) {
	if p.TxID == "" || p.Network == "" {
		return nil, ErrInvalidPayload
	}
	votes := append([]SignedVote(nil), p.Signatures...)
	sort.Slice(votes, func(i, j int) bool { return votes[i].SignerID < votes[j].SignerID })
	p.Signatures = votes
	return json.Marshal(p)
}

// Receipt es la respuesta de la red.
type Receipt struct {
	TxHash string
	Status Status
}

// Adapter habla con una red concreta. Broadcast no se reintenta desde el
// orquestador: un timeout se resuelve con Lookup.
type Adapter interface {
	Broadcast(ctx context.Context, p Payload) (Receipt, error)
	// Lookup consulta el destino de txID. Una transacción que la red nunca
	// vio se reporta como StatusDropped.
	Lookup(ctx context.Context, network, txID string) (Receipt, error)
}

// Registry mapea network id → Adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func normalize(network string) string { return strings.ToLower(strings.TrimSpace(network)) }

// Register asocia a a la red. Reemplaza un adapter previo.
func (r *Registry) Register(network string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[normalize(network)] = a
}

// Get retorna el adapter de network o ErrUnknownNetwork.
func (r *Registry) Get(network string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[normalize(network)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
	return a, nil
}

// Networks lista las redes registradas.
func (r *Registry) Networks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
