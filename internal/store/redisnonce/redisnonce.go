// Package redisnonce implementa repository.NonceRepository sobre Redis.
// La reserva es un SET NX PX: el TTL del key es la ventana de vida del nonce,
// así que el barrido de expirados lo hace Redis.
package redisnonce

import (
	"context"
	"encoding/json"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

type Store struct {
	Client *rdb.Client
	Prefix string
}

func New(client *rdb.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "rags:nonce:"
	}
	return &Store{Client: client, Prefix: prefix}
}

type record struct {
	AccountID   string    `json:"account_id"`
	Nonce       string    `json:"nonce"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	RequestType string    `json:"request_type,omitempty"`
	OriginIP    string    `json:"origin_ip,omitempty"`
}

func (s *Store) Reserve(ctx context.Context, n repository.RequestNonce) error {
	if n.NonceHash == "" {
		return repository.ErrInvalidInput
	}
	ttl := n.ExpiresAt.Sub(n.CreatedAt)
	if ttl <= 0 {
		return repository.ErrNonceExpired
	}
	b, err := json.Marshal(record{
		AccountID:   n.AccountID,
		Nonce:       n.Nonce,
		CreatedAt:   n.CreatedAt.UTC(),
		ExpiresAt:   n.ExpiresAt.UTC(),
		RequestType: n.RequestType,
		OriginIP:    n.OriginIP,
	})
	if err != nil {
		return err
	}
	ok, err := s.Client.SetNX(ctx, s.Prefix+n.NonceHash, b, ttl+time.Second).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrConflict
	}
	return nil
}

// DeleteExpired no hace nada: Redis expira las keys por TTL.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.Client.Ping(ctx).Err() }

func (s *Store) Close() error { return s.Client.Close() }
