package multisig

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/keys"
	"github.com/dropDatabas3/ragsig/internal/network"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
	"github.com/dropDatabas3/ragsig/internal/rags"
	"github.com/dropDatabas3/ragsig/internal/sigcodec"
	"github.com/dropDatabas3/ragsig/internal/store/memory"
	"github.com/dropDatabas3/ragsig/internal/vault"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeAdapter struct {
	calls     int32
	delay     time.Duration
	block     bool
	err       error
	lookup    network.Receipt
	lookupErr error
}

func (f *fakeAdapter) Broadcast(ctx context.Context, p network.Payload) (network.Receipt, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block {
		<-ctx.Done()
		return network.Receipt{}, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return network.Receipt{}, f.err
	}
	return network.Receipt{TxHash: "0xhash-" + p.TxID, Status: network.StatusConfirmed}, nil
}

func (f *fakeAdapter) Lookup(ctx context.Context, net, txID string) (network.Receipt, error) {
	return f.lookup, f.lookupErr
}

func (f *fakeAdapter) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

type fixture struct {
	orch     *Orchestrator
	signer   *rags.Signer
	keys     *keys.Manager
	store    *memory.Store
	clock    *clock
	adapter  *fakeAdapter
	accounts map[string]string // nombre → account id
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	st := memory.NewWithClock(clk.Now)
	codec := sigcodec.Default()
	v, err := vault.New(vault.Config{MasterKey: bytes.Repeat([]byte{7}, 32)}, codec)
	require.NoError(t, err)

	cache := keys.NewRegistryCache(st.Keys(), time.Minute)
	km := keys.NewManager(st.Accounts(), st.Keys(), v, cache, keys.Config{Now: clk.Now})
	cfg := rags.Config{Now: clk.Now}
	validator := rags.NewValidator(st.Accounts(), st.Keys(), st.Nonces(), cache, codec, cfg)
	t.Cleanup(validator.Wait)

	adapter := &fakeAdapter{}
	reg := network.NewRegistry()
	reg.Register("ethereum", adapter)

	f := &fixture{
		orch:     New(st.Accounts(), st.Wallets(), st.Transactions(), validator, reg, Config{BroadcastTimeout: 50 * time.Millisecond, Now: clk.Now}),
		signer:   rags.NewSigner(st.Accounts(), st.Keys(), cache, v, codec, cfg),
		keys:     km,
		store:    st,
		clock:    clk,
		adapter:  adapter,
		accounts: map[string]string{},
	}
	ctx := context.Background()
	for _, name := range []string{"alice", "bob", "carol", "dave", "erin"} {
		a, err := km.EnsureAccount(ctx, name, repository.OwnerClient)
		require.NoError(t, err)
		_, err = km.Provision(ctx, a.ID, types.AlgEC256)
		require.NoError(t, err)
		f.accounts[name] = a.ID
	}
	return f
}

// wallet2of3 crea alice(owner) + bob + carol, con dave como observer.
func (f *fixture) wallet2of3(t *testing.T) (*repository.Wallet, map[string]string) {
	t.Helper()
	w, signers, err := f.orch.CreateWallet(context.Background(), CreateWalletInput{
		OwnerAccountID:     f.accounts["alice"],
		Network:            "Ethereum",
		Address:            "0xwallet",
		RequiredSignatures: 2,
		Signers: []SignerInput{
			{AccountID: f.accounts["bob"]},
			{AccountID: f.accounts["carol"]},
			{AccountID: f.accounts["dave"], Role: repository.RoleObserver},
		},
	})
	require.NoError(t, err)
	ids := map[string]string{}
	for name, acc := range f.accounts {
		for _, s := range signers {
			if s.AccountID == acc {
				ids[name] = s.ID
			}
		}
	}
	return w, ids
}

func (f *fixture) transfer(t *testing.T, walletID string) *repository.TxRecord {
	t.Helper()
	rec, err := f.orch.CreateTransaction(context.Background(), CreateTxInput{
		WalletID:  walletID,
		CreatedBy: f.accounts["alice"],
		ToAddress: "0xdest",
		Amount:    decimal.NewFromInt(100),
		Asset:     "USDC",
	})
	require.NoError(t, err)
	return rec
}

func (f *fixture) envelope(t *testing.T, rec *repository.TxRecord, name string) Submission {
	t.Helper()
	env, err := f.signer.SignForAccount(context.Background(), f.accounts[name], rags.SignRequest{
		ServiceName: VoteService,
		Message:     SigningMessage(&rec.Tx),
		Algorithm:   types.AlgEC256,
	})
	require.NoError(t, err)
	return Submission{
		Signature: env.Signature,
		Algorithm: env.Algorithm,
		Nonce:     env.Nonce,
		Address:   env.Address,
		Timestamp: env.Timestamp,
	}
}

func (f *fixture) sign(t *testing.T, rec *repository.TxRecord, ids map[string]string, name string) *repository.TxRecord {
	t.Helper()
	out, err := f.orch.SubmitSignature(context.Background(), rec.Tx.ID, ids[name], f.envelope(t, rec, name))
	require.NoError(t, err)
	return out
}

func TestCreateWallet_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, signers, err := f.orch.CreateWallet(ctx, CreateWalletInput{
		OwnerAccountID:     f.accounts["alice"],
		Network:            "ethereum",
		RequiredSignatures: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, w.TotalSigners)
	require.Len(t, signers, 1)
	assert.Equal(t, repository.RoleOwner, signers[0].Role)

	cases := []struct {
		name string
		in   CreateWalletInput
		kind types.Kind
	}{
		{"m zero", CreateWalletInput{OwnerAccountID: f.accounts["alice"], Network: "ethereum", RequiredSignatures: 0}, types.KindInvalidWalletConfiguration},
		{"observer does not count", CreateWalletInput{
			OwnerAccountID: f.accounts["alice"], Network: "ethereum", RequiredSignatures: 2,
			Signers: []SignerInput{{AccountID: f.accounts["dave"], Role: repository.RoleObserver}},
		}, types.KindInvalidWalletConfiguration},
		{"duplicate signer", CreateWalletInput{
			OwnerAccountID: f.accounts["alice"], Network: "ethereum", RequiredSignatures: 1,
			Signers: []SignerInput{{AccountID: f.accounts["bob"]}, {AccountID: f.accounts["bob"]}},
		}, types.KindInvalidWalletConfiguration},
		{"unknown signer account", CreateWalletInput{
			OwnerAccountID: f.accounts["alice"], Network: "ethereum", RequiredSignatures: 1,
			Signers: []SignerInput{{AccountID: "nope"}},
		}, types.KindUnknownSigner},
		{"missing network", CreateWalletInput{OwnerAccountID: f.accounts["alice"], RequiredSignatures: 1}, types.KindInvalidInput},
		{"bad role", CreateWalletInput{
			OwnerAccountID: f.accounts["alice"], Network: "ethereum", RequiredSignatures: 1,
			Signers: []SignerInput{{AccountID: f.accounts["bob"], Role: "Admin"}},
		}, types.KindInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.orch.CreateWallet(ctx, tc.in)
			assert.Equal(t, tc.kind, types.KindOf(err))
		})
	}
}

func TestCreateTransaction_SnapshotsPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.wallet2of3(t)
	assert.Equal(t, 3, w.TotalSigners)

	rec := f.transfer(t, w.ID)
	assert.Equal(t, repository.TxPendingSignatures, rec.Tx.Status)
	assert.Equal(t, 2, rec.Tx.RequiredSignatures)
	assert.Equal(t, "ethereum", rec.Tx.Network)
	assert.Len(t, rec.Signatures, 3, "el observer no tiene voto")
	assert.EqualValues(t, 0, rec.Tx.Sequence)
	assert.EqualValues(t, 1, f.transfer(t, w.ID).Tx.Sequence)

	// un firmante agregado después no vota sobre transacciones existentes
	late, err := f.orch.AddSigner(ctx, w.ID, SignerInput{AccountID: f.accounts["erin"]})
	require.NoError(t, err)
	_, err = f.orch.SubmitSignature(ctx, rec.Tx.ID, late.ID, f.envelope(t, rec, "erin"))
	assert.Equal(t, types.KindSignerNotEligible, types.KindOf(err))

	got, err := f.orch.GetTransaction(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Tx.RequiredSignatures)

	_, err = f.orch.CreateTransaction(ctx, CreateTxInput{
		WalletID: w.ID, CreatedBy: f.accounts["dave"], ToAddress: "0x1", Amount: decimal.NewFromInt(1), Asset: "ETH",
	})
	assert.Equal(t, types.KindSignerNotEligible, types.KindOf(err))

	_, err = f.orch.CreateTransaction(ctx, CreateTxInput{
		WalletID: w.ID, CreatedBy: f.accounts["alice"], ToAddress: "0x1", Amount: decimal.Zero, Asset: "ETH",
	})
	assert.Equal(t, types.KindInvalidInput, types.KindOf(err))

	require.NoError(t, f.orch.SetWalletStatus(ctx, w.ID, f.accounts["alice"], repository.WalletFrozen))
	_, err = f.orch.CreateTransaction(ctx, CreateTxInput{
		WalletID: w.ID, CreatedBy: f.accounts["alice"], ToAddress: "0x1", Amount: decimal.NewFromInt(1), Asset: "ETH",
	})
	assert.Equal(t, types.KindInvalidWalletConfiguration, types.KindOf(err))

	_, err = f.orch.CreateTransaction(ctx, CreateTxInput{
		WalletID: "missing", CreatedBy: f.accounts["alice"], ToAddress: "0x1", Amount: decimal.NewFromInt(1), Asset: "ETH",
	})
	assert.Equal(t, types.KindWalletNotFound, types.KindOf(err))
}

func TestEndToEnd_TwoOfThree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)

	rec = f.sign(t, rec, ids, "alice")
	assert.Equal(t, repository.TxPendingSignatures, rec.Tx.Status)
	assert.Equal(t, 1, rec.Tx.CurrentSignatures)

	rec = f.sign(t, rec, ids, "bob")
	assert.Equal(t, repository.TxReady, rec.Tx.Status)
	assert.Equal(t, 2, rec.Tx.CurrentSignatures)

	first, err := f.orch.FinalizeAndBroadcast(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TxConfirmed, first.Tx.Status)
	assert.Equal(t, "0xhash-"+rec.Tx.ID, first.Tx.TxHash)
	require.NotNil(t, first.Tx.BroadcastAt)
	require.NotNil(t, first.Tx.ConfirmedAt)

	second, err := f.orch.FinalizeAndBroadcast(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Tx.TxHash, second.Tx.TxHash)
	assert.Equal(t, repository.TxConfirmed, second.Tx.Status)
	assert.Equal(t, 1, f.adapter.Calls())

	late, err := f.orch.RejectSignature(ctx, rec.Tx.ID, ids["carol"], "too late")
	require.NoError(t, err)
	assert.Equal(t, repository.TxConfirmed, late.Tx.Status)
	assert.Equal(t, repository.VoteRejected, late.Vote(ids["carol"]).Status)
	assert.Equal(t, "too late", late.Vote(ids["carol"]).RejectionReason)
}

func TestThreshold_IndependentOfOrder(t *testing.T) {
	type step struct {
		name   string
		reject bool
	}
	orders := [][]step{
		{{"alice", false}, {"bob", false}, {"carol", true}},
		{{"carol", true}, {"alice", false}, {"bob", false}},
		{{"bob", false}, {"carol", true}, {"alice", false}},
		{{"carol", false}, {"alice", true}, {"bob", false}},
	}
	for i, order := range orders {
		f := newFixture(t)
		w, ids := f.wallet2of3(t)
		rec := f.transfer(t, w.ID)
		for _, s := range order {
			if s.reject {
				out, err := f.orch.RejectSignature(context.Background(), rec.Tx.ID, ids[s.name], "no")
				require.NoError(t, err, "order %d", i)
				rec = out
				continue
			}
			rec = f.sign(t, rec, ids, s.name)
		}
		assert.Equal(t, repository.TxReady, rec.Tx.Status, "order %d", i)
		assert.Equal(t, 2, rec.Tx.CurrentSignatures, "order %d", i)
	}
}

func TestThreshold_ExtraSignatureAfterReady(t *testing.T) {
	f := newFixture(t)
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)
	f.sign(t, rec, ids, "alice")
	f.sign(t, rec, ids, "bob")
	rec = f.sign(t, rec, ids, "carol")
	assert.Equal(t, repository.TxReady, rec.Tx.Status)
	assert.Equal(t, 3, rec.Tx.CurrentSignatures)
}

func TestThresholdUnreachable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)

	out, err := f.orch.RejectSignature(ctx, rec.Tx.ID, ids["bob"], "amount too high")
	require.NoError(t, err)
	assert.Equal(t, repository.TxPendingSignatures, out.Tx.Status)

	out, err = f.orch.RejectSignature(ctx, rec.Tx.ID, ids["carol"], "unknown destination")
	require.NoError(t, err)
	assert.Equal(t, repository.TxFailed, out.Tx.Status)
	assert.Equal(t, repository.FailureThresholdUnreachable, out.Tx.FailureReason)
	assert.Equal(t, 0, out.Tx.CurrentSignatures)

	_, err = f.orch.SubmitSignature(ctx, rec.Tx.ID, ids["alice"], f.envelope(t, rec, "alice"))
	assert.Equal(t, types.KindInvalidTransactionState, types.KindOf(err))

	_, err = f.orch.FinalizeAndBroadcast(ctx, rec.Tx.ID)
	assert.Equal(t, types.KindInvalidTransactionState, types.KindOf(err))
	assert.Zero(t, f.adapter.Calls())
}

func TestDuplicateVotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)

	f.sign(t, rec, ids, "alice")
	_, err := f.orch.SubmitSignature(ctx, rec.Tx.ID, ids["alice"], f.envelope(t, rec, "alice"))
	assert.Equal(t, types.KindDuplicateVote, types.KindOf(err))
	_, err = f.orch.RejectSignature(ctx, rec.Tx.ID, ids["alice"], "changed my mind")
	assert.Equal(t, types.KindDuplicateVote, types.KindOf(err))

	_, err = f.orch.RejectSignature(ctx, rec.Tx.ID, ids["bob"], "no")
	require.NoError(t, err)
	_, err = f.orch.SubmitSignature(ctx, rec.Tx.ID, ids["bob"], f.envelope(t, rec, "bob"))
	assert.Equal(t, types.KindDuplicateVote, types.KindOf(err), "Rejected es terminal")
}

func TestSubmitSignature_ConcurrentSameSigner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)
	sub := f.envelope(t, rec, "alice")

	// el mismo envelope: los perdedores chocan con el nonce ya usado o con
	// el voto ya registrado, según en qué punto lleguen.
	var ok, rejected int32
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := f.orch.SubmitSignature(ctx, rec.Tx.ID, ids["alice"], sub)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case types.IsKind(err, types.KindDuplicateVote), types.IsKind(err, types.KindReplayDetected):
				atomic.AddInt32(&rejected, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, 49, rejected)

	got, err := f.orch.GetTransaction(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Tx.CurrentSignatures)
}

func TestSubmitSignature_ConcurrentThresholdCrossing(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)

	subs := map[string]Submission{}
	for _, name := range []string{"alice", "bob", "carol"} {
		subs[name] = f.envelope(t, rec, name)
	}
	var g errgroup.Group
	for name, sub := range subs {
		g.Go(func() error {
			_, err := f.orch.SubmitSignature(ctx, rec.Tx.ID, ids[name], sub)
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := f.orch.GetTransaction(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TxReady, got.Tx.Status)
	assert.Equal(t, 3, got.Tx.CurrentSignatures)

	readies := 0
	for _, e := range logs.FilterMessage("tx_transition").All() {
		if e.ContextMap()["to"] == string(repository.TxReady) {
			readies++
		}
	}
	assert.Equal(t, 1, readies)
}

func TestSubmitSignature_DistinctEnvelopesSameSigner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)

	subs := make([]Submission, 10)
	for i := range subs {
		subs[i] = f.envelope(t, rec, "bob")
	}
	var ok, dup int32
	var g errgroup.Group
	for _, sub := range subs {
		g.Go(func() error {
			_, err := f.orch.SubmitSignature(ctx, rec.Tx.ID, ids["bob"], sub)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case types.IsKind(err, types.KindDuplicateVote):
				atomic.AddInt32(&dup, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, 9, dup)

	got, err := f.orch.GetTransaction(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Tx.CurrentSignatures)
	assert.Equal(t, repository.TxPendingSignatures, got.Tx.Status)
}

// connPool imita un pool de conexiones de tamaño fijo: el repo de tx y el
// validador toman un slot cada uno mientras trabajan.
type connPool struct{ slots chan struct{} }

func (p *connPool) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *connPool) release() { <-p.slots }

type pooledTxs struct {
	repository.TransactionRepository
	pool *connPool
}

func (r pooledTxs) Update(ctx context.Context, id string, fn func(*repository.TxRecord) error) (*repository.TxRecord, error) {
	if err := r.pool.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.pool.release()
	return r.TransactionRepository.Update(ctx, id, fn)
}

type pooledVerifier struct {
	VoteVerifier
	pool *connPool
}

func (v pooledVerifier) ValidateForAccount(ctx context.Context, accountID string, req rags.ValidateRequest) (*rags.Result, error) {
	actx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := v.pool.acquire(actx); err != nil {
		return nil, err
	}
	defer v.pool.release()
	return v.VoteVerifier.ValidateForAccount(ctx, accountID, req)
}

func TestSubmitSignature_ValidationDoesNotHoldTxLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)

	// un solo slot: si la validación corriera dentro de Update, esperaría
	// un slot que su propio Update tiene tomado.
	pool := &connPool{slots: make(chan struct{}, 1)}
	orch := New(f.store.Accounts(), f.store.Wallets(),
		pooledTxs{TransactionRepository: f.store.Transactions(), pool: pool},
		pooledVerifier{VoteVerifier: f.orch.verifier, pool: pool},
		f.orch.networks, f.orch.cfg)

	subs := map[string]Submission{}
	for _, name := range []string{"alice", "bob", "carol"} {
		subs[name] = f.envelope(t, rec, name)
	}
	var g errgroup.Group
	for name, sub := range subs {
		g.Go(func() error {
			_, err := orch.SubmitSignature(ctx, rec.Tx.ID, ids[name], sub)
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := orch.GetTransaction(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TxReady, got.Tx.Status)
	assert.Equal(t, 3, got.Tx.CurrentSignatures)
}

func TestThreshold_CountsDistinctSignersNotWeight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, signers, err := f.orch.CreateWallet(ctx, CreateWalletInput{
		OwnerAccountID:     f.accounts["alice"],
		Network:            "Ethereum",
		Address:            "0xheavy",
		RequiredSignatures: 2,
		Signers: []SignerInput{
			{AccountID: f.accounts["bob"], Weight: 5},
			{AccountID: f.accounts["carol"]},
		},
	})
	require.NoError(t, err)
	ids := map[string]string{}
	for name, acc := range f.accounts {
		for _, s := range signers {
			if s.AccountID == acc {
				ids[name] = s.ID
			}
		}
	}

	rec := f.transfer(t, w.ID)
	out := f.sign(t, rec, ids, "bob")
	assert.Equal(t, repository.TxPendingSignatures, out.Tx.Status)
	assert.Equal(t, 1, out.Tx.CurrentSignatures)

	out = f.sign(t, rec, ids, "carol")
	assert.Equal(t, repository.TxReady, out.Tx.Status)
	assert.Equal(t, 2, out.Tx.CurrentSignatures)

	// con alice y carol rechazando, bob solo no alcanza aunque pese 5
	rec2 := f.transfer(t, w.ID)
	_, err = f.orch.RejectSignature(ctx, rec2.Tx.ID, ids["alice"], "no")
	require.NoError(t, err)
	out, err = f.orch.RejectSignature(ctx, rec2.Tx.ID, ids["carol"], "no")
	require.NoError(t, err)
	assert.Equal(t, repository.TxFailed, out.Tx.Status)
	assert.Equal(t, repository.FailureThresholdUnreachable, out.Tx.FailureReason)
}

func TestSubmitSignature_Eligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)

	_, err := f.orch.SubmitSignature(ctx, rec.Tx.ID, ids["dave"], f.envelope(t, rec, "dave"))
	assert.Equal(t, types.KindSignerNotEligible, types.KindOf(err), "observer")

	// firmante de otra wallet
	_, otherSigners, err := f.orch.CreateWallet(ctx, CreateWalletInput{
		OwnerAccountID: f.accounts["erin"], Network: "ethereum", RequiredSignatures: 1,
	})
	require.NoError(t, err)
	_, err = f.orch.SubmitSignature(ctx, rec.Tx.ID, otherSigners[0].ID, f.envelope(t, rec, "erin"))
	assert.Equal(t, types.KindSignerNotEligible, types.KindOf(err))

	_, err = f.orch.SubmitSignature(ctx, "missing", ids["alice"], Submission{})
	assert.Equal(t, types.KindTransactionNotFound, types.KindOf(err))
}

func TestSubmitSignature_EnvelopeMustCoverTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)
	other := f.transfer(t, w.ID)

	// firma válida, pero de otra transacción
	_, err := f.orch.SubmitSignature(ctx, rec.Tx.ID, ids["alice"], f.envelope(t, other, "alice"))
	assert.Equal(t, types.KindInvalidSignature, types.KindOf(err))

	// bob firmando con la clave de alice
	_, err = f.orch.SubmitSignature(ctx, rec.Tx.ID, ids["bob"], f.envelope(t, rec, "alice"))
	assert.Equal(t, types.KindUnknownSigner, types.KindOf(err))

	// envelope vencido
	sub := f.envelope(t, rec, "carol")
	f.clock.Advance(6 * time.Minute)
	_, err = f.orch.SubmitSignature(ctx, rec.Tx.ID, ids["carol"], sub)
	assert.Equal(t, types.KindStaleRequest, types.KindOf(err))

	got, err := f.orch.GetTransaction(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Tx.CurrentSignatures)
	for _, v := range got.Signatures {
		assert.Equal(t, repository.VotePending, v.Status)
	}
}

func TestFinalize_OnlyFromReady(t *testing.T) {
	f := newFixture(t)
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)
	f.sign(t, rec, ids, "alice")

	_, err := f.orch.FinalizeAndBroadcast(context.Background(), rec.Tx.ID)
	assert.Equal(t, types.KindInvalidTransactionState, types.KindOf(err))
	assert.Zero(t, f.adapter.Calls())

	_, err = f.orch.FinalizeAndBroadcast(context.Background(), "missing")
	assert.Equal(t, types.KindTransactionNotFound, types.KindOf(err))
}

func readyTx(t *testing.T, f *fixture) *repository.TxRecord {
	t.Helper()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)
	f.sign(t, rec, ids, "alice")
	return f.sign(t, rec, ids, "bob")
}

func TestFinalize_AdapterFailure(t *testing.T) {
	f := newFixture(t)
	f.adapter.err = errors.New("nonce too low")
	rec := readyTx(t, f)

	out, err := f.orch.FinalizeAndBroadcast(context.Background(), rec.Tx.ID)
	assert.Equal(t, types.KindBroadcastFailed, types.KindOf(err))
	require.NotNil(t, out)
	assert.Equal(t, repository.TxFailed, out.Tx.Status)
	assert.Equal(t, repository.FailureBroadcastFailed, out.Tx.FailureReason)
	assert.Equal(t, "nonce too low", out.Tx.FailureDetail)

	// reintentar devuelve el mismo fallo sin volver a llamar al adapter
	again, err := f.orch.FinalizeAndBroadcast(context.Background(), rec.Tx.ID)
	assert.Equal(t, types.KindBroadcastFailed, types.KindOf(err))
	require.NotNil(t, again)
	assert.Equal(t, repository.TxFailed, again.Tx.Status)
	assert.Equal(t, "nonce too low", again.Tx.FailureDetail)
	assert.Equal(t, 1, f.adapter.Calls())
}

func TestFinalize_SlowAdapterWithOpaqueError(t *testing.T) {
	f := newFixture(t)
	f.adapter.delay = 100 * time.Millisecond
	f.adapter.err = errors.New("rpc error: code = DeadlineExceeded")
	rec := readyTx(t, f)

	out, err := f.orch.FinalizeAndBroadcast(context.Background(), rec.Tx.ID)
	assert.Equal(t, types.KindBroadcastTimeout, types.KindOf(err))
	require.NotNil(t, out)
	assert.Equal(t, repository.TxBroadcasting, out.Tx.Status)

	got, err := f.orch.GetTransaction(context.Background(), rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TxBroadcasting, got.Tx.Status, "queda para Reconcile")
	assert.Empty(t, got.Tx.FailureReason)
}

func TestFinalize_TimeoutThenReconcile(t *testing.T) {
	f := newFixture(t)
	f.adapter.block = true
	rec := readyTx(t, f)
	ctx := context.Background()

	out, err := f.orch.FinalizeAndBroadcast(ctx, rec.Tx.ID)
	assert.Equal(t, types.KindBroadcastTimeout, types.KindOf(err))
	assert.Equal(t, repository.TxBroadcasting, out.Tx.Status)

	// un segundo finalize no reintenta el broadcast
	again, err := f.orch.FinalizeAndBroadcast(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TxBroadcasting, again.Tx.Status)
	assert.Equal(t, 1, f.adapter.Calls())

	f.adapter.lookup = network.Receipt{Status: network.StatusPending}
	pending, err := f.orch.Reconcile(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TxBroadcasting, pending.Tx.Status)

	f.adapter.lookup = network.Receipt{Status: network.StatusConfirmed, TxHash: "0xfound"}
	done, err := f.orch.Reconcile(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TxConfirmed, done.Tx.Status)
	assert.Equal(t, "0xfound", done.Tx.TxHash)

	final, err := f.orch.FinalizeAndBroadcast(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "0xfound", final.Tx.TxHash)
	assert.Equal(t, 1, f.adapter.Calls())
}

func TestFinalize_ConcurrentCallsBroadcastOnce(t *testing.T) {
	f := newFixture(t)
	f.adapter.delay = 10 * time.Millisecond
	rec := readyTx(t, f)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			out, err := f.orch.FinalizeAndBroadcast(context.Background(), rec.Tx.ID)
			if err != nil {
				return err
			}
			if out.Tx.Status != repository.TxBroadcasting && out.Tx.Status != repository.TxConfirmed {
				return errors.New("unexpected status " + string(out.Tx.Status))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, f.adapter.Calls())
}

func TestFinalize_UnknownNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, signers, err := f.orch.CreateWallet(ctx, CreateWalletInput{
		OwnerAccountID: f.accounts["alice"], Network: "solana", RequiredSignatures: 1,
	})
	require.NoError(t, err)
	rec, err := f.orch.CreateTransaction(ctx, CreateTxInput{
		WalletID: w.ID, CreatedBy: f.accounts["alice"], ToAddress: "x", Amount: decimal.NewFromInt(1), Asset: "SOL",
	})
	require.NoError(t, err)
	rec = f.sign(t, rec, map[string]string{"alice": signers[0].ID}, "alice")
	require.Equal(t, repository.TxReady, rec.Tx.Status)

	_, err = f.orch.FinalizeAndBroadcast(ctx, rec.Tx.ID)
	assert.Equal(t, types.KindBroadcastFailed, types.KindOf(err))
	got, err := f.orch.GetTransaction(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TxReady, got.Tx.Status, "sin adapter no se reclama la tx")
}

func TestReconcileStale(t *testing.T) {
	f := newFixture(t)
	f.adapter.block = true
	rec := readyTx(t, f)
	ctx := context.Background()

	_, err := f.orch.FinalizeAndBroadcast(ctx, rec.Tx.ID)
	require.Equal(t, types.KindBroadcastTimeout, types.KindOf(err))

	f.adapter.lookup = network.Receipt{Status: network.StatusDropped}
	n, err := f.orch.ReconcileStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "todavía dentro del timeout")

	f.clock.Advance(time.Minute)
	n, err = f.orch.ReconcileStale(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := f.orch.GetTransaction(ctx, rec.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TxFailed, got.Tx.Status)
	assert.Equal(t, repository.FailureBroadcastFailed, got.Tx.FailureReason)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, ids := f.wallet2of3(t)
	rec := f.transfer(t, w.ID)

	_, err := f.orch.Cancel(ctx, rec.Tx.ID, f.accounts["bob"])
	assert.Equal(t, types.KindSignerNotEligible, types.KindOf(err))

	out, err := f.orch.Cancel(ctx, rec.Tx.ID, f.accounts["alice"])
	require.NoError(t, err)
	assert.Equal(t, repository.TxFailed, out.Tx.Status)
	assert.Equal(t, repository.FailureCancelled, out.Tx.FailureReason)

	ready := f.transfer(t, w.ID)
	f.sign(t, ready, ids, "alice")
	f.sign(t, ready, ids, "bob")
	_, err = f.orch.Cancel(ctx, ready.Tx.ID, f.accounts["alice"])
	assert.Equal(t, types.KindInvalidTransactionState, types.KindOf(err))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(repository.TxCreated, repository.TxPendingSignatures))
	assert.True(t, canTransition(repository.TxPendingSignatures, repository.TxReady))
	assert.True(t, canTransition(repository.TxReady, repository.TxBroadcasting))
	assert.True(t, canTransition(repository.TxBroadcasting, repository.TxConfirmed))
	assert.True(t, canTransition(repository.TxBroadcasting, repository.TxFailed))

	assert.False(t, canTransition(repository.TxReady, repository.TxPendingSignatures))
	assert.False(t, canTransition(repository.TxPendingSignatures, repository.TxBroadcasting))
	assert.False(t, canTransition(repository.TxConfirmed, repository.TxFailed))
	assert.False(t, canTransition(repository.TxFailed, repository.TxReady))
}

func TestSigningMessage_CoversFields(t *testing.T) {
	base := repository.Transaction{ID: "t", WalletID: "w", Network: "ethereum", ToAddress: "0x1", Amount: decimal.NewFromInt(100), Asset: "USDC"}
	mut := base
	mut.Amount = decimal.NewFromInt(101)
	assert.NotEqual(t, SigningMessage(&base), SigningMessage(&mut))

	mut = base
	mut.Sequence = 1
	assert.NotEqual(t, SigningMessage(&base), SigningMessage(&mut))

	mut = base
	mut.ToAddress, mut.Asset = "0x1U", "SDC"
	assert.NotEqual(t, SigningMessage(&base), SigningMessage(&mut))
}
