package network

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Loopback es un adapter local: "confirma" al instante y usa
// 0x ‖ hex(SHA256(payload)) como hash. Para desarrollo y tests.
type Loopback struct {
	mu   sync.Mutex
	seen map[string]string // txID → hash
}

func NewLoopback() *Loopback {
	return &Loopback{seen: make(map[string]string)}
}

func (l *Loopback) Broadcast(ctx context.Context, p Payload) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	raw, err := p.Encode()
	if err != nil {
		return Receipt{}, err
	}
	sum := sha256.Sum256(raw)
	hash := "0x" + hex.EncodeToString(sum[:])

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.seen[p.TxID]; ok {
		return Receipt{TxHash: prev, Status: StatusConfirmed}, nil
	}
	l.seen[p.TxID] = hash
	return Receipt{TxHash: hash, Status: StatusConfirmed}, nil
}

func (l *Loopback) Lookup(ctx context.Context, network, txID string) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.seen[txID]; ok {
		return Receipt{TxHash: h, Status: StatusConfirmed}, nil
	}
	return Receipt{Status: StatusDropped}, nil
}

// Broadcasts retorna cuántas transacciones distintas recibió.
func (l *Loopback) Broadcasts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
