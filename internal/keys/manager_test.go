package keys

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/store/memory"
	"github.com/dropDatabas3/ragsig/internal/vault"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newManager(t *testing.T) (*Manager, *memory.Store, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	st := memory.NewWithClock(clk.Now)
	v, err := vault.New(vault.Config{MasterKey: bytes.Repeat([]byte{1}, 32)}, nil)
	require.NoError(t, err)
	m := NewManager(st.Accounts(), st.Keys(), v, NewRegistryCache(st.Keys(), time.Minute), Config{
		RotationGrace: time.Hour,
		Now:           clk.Now,
	})
	return m, st, clk
}

func TestEnsureAccount_Idempotent(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	a1, err := m.EnsureAccount(ctx, "svc-ledger", repository.OwnerSystem)
	require.NoError(t, err)
	a2, err := m.EnsureAccount(ctx, "svc-ledger", repository.OwnerSystem)
	require.NoError(t, err)
	assert.Equal(t, a1.ID, a2.ID)

	_, err = m.EnsureAccount(ctx, "x", repository.OwnerType("Robot"))
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestProvisionRotateRevoke(t *testing.T) {
	m, st, clk := newManager(t)
	ctx := context.Background()

	a, err := m.EnsureAccount(ctx, "svc-payments", repository.OwnerSystem)
	require.NoError(t, err)

	k1, err := m.Provision(ctx, a.ID, types.AlgEC256)
	require.NoError(t, err)
	assert.Equal(t, repository.KeyActive, k1.Status)
	assert.Contains(t, k1.StorageRef, vault.RefPrefix)

	again, err := m.Provision(ctx, a.ID, types.AlgEC256)
	require.NoError(t, err)
	assert.Equal(t, k1.ID, again.ID)

	// poblar cache con la activa vieja
	cached, err := m.Cache().ActiveKey(ctx, a.ID, types.AlgEC256)
	require.NoError(t, err)
	assert.Equal(t, k1.ID, cached.ID)

	clk.Advance(time.Minute)
	k2, err := m.Rotate(ctx, a.ID, types.AlgEC256)
	require.NoError(t, err)
	assert.NotEqual(t, k1.ID, k2.ID)

	cached, err = m.Cache().ActiveKey(ctx, a.ID, types.AlgEC256)
	require.NoError(t, err)
	assert.Equal(t, k2.ID, cached.ID, "rotation invalida el cache")

	old, err := st.Keys().GetKey(ctx, k1.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.KeyRetiring, old.Status)
	assert.Equal(t, clk.Now().Add(time.Hour), *old.ExpiresAt)

	require.NoError(t, m.Revoke(ctx, k2.ID))
	e, err := m.Cache().ByHash(ctx, k2.Address())
	require.NoError(t, err)
	assert.Equal(t, repository.KeyRevoked, e.Status)
	_, err = m.vault.Sign(ctx, k2.StorageRef, types.AlgEC256, []byte("after revoke"))
	assert.Error(t, err)

	ks, err := m.ListKeys(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, ks, 2)
}

func TestProvision_InactiveAccount(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	a, err := m.EnsureAccount(ctx, "user-7", repository.OwnerClient)
	require.NoError(t, err)
	require.NoError(t, m.Deactivate(ctx, a.ID))

	_, err = m.Provision(ctx, a.ID, types.AlgPQCA)
	assert.True(t, types.IsKind(err, types.KindUnknownSigner))
}

func TestProvision_UnsupportedAlgorithm(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	a, err := m.EnsureAccount(ctx, "user-8", repository.OwnerClient)
	require.NoError(t, err)

	_, err = m.Provision(ctx, a.ID, types.Algorithm("RSA2048"))
	assert.True(t, types.IsKind(err, types.KindUnsupportedAlgorithm))
}

func TestRegistryCache_OnlyActiveEntriesAreCached(t *testing.T) {
	m, st, clk := newManager(t)
	ctx := context.Background()
	cache := NewRegistryCache(st.Keys(), time.Hour)

	a, err := m.EnsureAccount(ctx, "svc-cache", repository.OwnerSystem)
	require.NoError(t, err)
	put := func(pub string) string {
		id, err := st.Keys().PutKey(ctx, repository.PutKeyInput{
			AccountID: a.ID, Algorithm: types.AlgEC256, PublicKey: []byte(pub),
			StorageRef: "vault://" + pub, RetireGrace: time.Hour, Now: clk.Now(),
		})
		require.NoError(t, err)
		return id
	}
	oldID := put("pk-old")
	newID := put("pk-new")
	oldHash := repository.HashPublicKey([]byte("pk-old"))
	newHash := repository.HashPublicKey([]byte("pk-new"))

	// retiring: se lee del store cada vez
	e, err := cache.ByHash(ctx, oldHash)
	require.NoError(t, err)
	assert.Equal(t, repository.KeyRetiring, e.Status)

	// revocación hecha por otro proceso: no pasa por Invalidate
	require.NoError(t, st.Keys().Revoke(ctx, oldID, clk.Now()))
	e, err = cache.ByHash(ctx, oldHash)
	require.NoError(t, err)
	assert.Equal(t, repository.KeyRevoked, e.Status, "una clave no activa nunca queda cacheada")

	// activa: cacheada hasta ttl o Invalidate
	e, err = cache.ByHash(ctx, newHash)
	require.NoError(t, err)
	assert.Equal(t, repository.KeyActive, e.Status)
	require.NoError(t, st.Keys().Revoke(ctx, newID, clk.Now()))
	e, err = cache.ByHash(ctx, newHash)
	require.NoError(t, err)
	assert.Equal(t, repository.KeyActive, e.Status, "lag acotado por ttl")

	cache.Invalidate(a.ID, types.AlgEC256, newHash)
	e, err = cache.ByHash(ctx, newHash)
	require.NoError(t, err)
	assert.Equal(t, repository.KeyRevoked, e.Status)
}
