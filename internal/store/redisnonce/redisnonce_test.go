package redisnonce

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

// Requiere un Redis real: RAGS_TEST_REDIS_ADDR=localhost:6379
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("RAGS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RAGS_TEST_REDIS_ADDR no definido")
	}
	s := New(rdb.NewClient(&rdb.Options{Addr: addr, DB: 0}), "rags:test:"+uuid.NewString()+":")
	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("redis no disponible: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReserve_ConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	n := repository.RequestNonce{
		NonceHash: repository.NonceHash("acc", uuid.NewString()),
		AccountID: "acc",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}

	var wins int32
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			err := s.Reserve(ctx, n)
			if err == nil {
				atomic.AddInt32(&wins, 1)
				return nil
			}
			if errors.Is(err, repository.ErrConflict) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, wins)
}

func TestReserve_RejectsNonPositiveTTL(t *testing.T) {
	s := New(nil, "")
	now := time.Now()
	err := s.Reserve(context.Background(), repository.RequestNonce{NonceHash: "x", CreatedAt: now, ExpiresAt: now.Add(-time.Second)})
	require.ErrorIs(t, err, repository.ErrNonceExpired)
}
