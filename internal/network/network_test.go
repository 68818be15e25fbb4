package network

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() Payload {
	return Payload{
		TxID:     "tx-1",
		WalletID: "w-1",
		Network:  "ethereum",
		From:     "0xfrom",
		To:       "0xto",
		Amount:   decimal.RequireFromString("100.50"),
		Asset:    "USDC",
		Sequence: 7,
		Signatures: []SignedVote{
			{SignerID: "b", Signature: []byte{2}},
			{SignerID: "a", Signature: []byte{1}},
		},
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	lb := NewLoopback()
	r.Register("Ethereum", lb)

	a, err := r.Get(" ethereum ")
	require.NoError(t, err)
	assert.Same(t, lb, a)

	_, err = r.Get("solana")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
	assert.Equal(t, []string{"ethereum"}, r.Networks())
}

func TestPayloadEncode_SignatureOrderIndependent(t *testing.T) {
	p1 := samplePayload()
	p2 := samplePayload()
	p2.Signatures[0], p2.Signatures[1] = p2.Signatures[1], p2.Signatures[0]

	b1, err := p1.Encode()
	require.NoError(t, err)
	b2, err := p2.Encode()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
	assert.Equal(t, "b", p1.Signatures[0].SignerID, "Encode no muta al caller")

	_, err = Payload{}.Encode()
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestLoopback(t *testing.T) {
	ctx := context.Background()
	lb := NewLoopback()

	r, err := lb.Lookup(ctx, "ethereum", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDropped, r.Status)

	r1, err := lb.Broadcast(ctx, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, r1.Status)
	assert.True(t, strings.HasPrefix(r1.TxHash, "0x"))
	assert.Len(t, r1.TxHash, 66)

	r2, err := lb.Broadcast(ctx, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, r1.TxHash, r2.TxHash)
	assert.Equal(t, 1, lb.Broadcasts())

	got, err := lb.Lookup(ctx, "ethereum", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, r1, got)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = lb.Broadcast(cctx, samplePayload())
	assert.ErrorIs(t, err, context.Canceled)
}
