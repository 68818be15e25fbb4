package jwt

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestIssueParse(t *testing.T) {
	iss, err := NewIssuer(secret, "ragsig", time.Minute)
	require.NoError(t, err)

	tok, exp, err := iss.Issue("acct-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.Subject)
	assert.Equal(t, "ragsig", claims.Issuer)
}

func TestParseRejects(t *testing.T) {
	iss, err := NewIssuer(secret, "ragsig", time.Minute)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewIssuer("another-secret-another-secret-xx", "ragsig", time.Minute)
		tok, _, err := other.Issue("acct-1")
		require.NoError(t, err)
		_, err = iss.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, _ := NewIssuer(secret, "someone-else", time.Minute)
		tok, _, err := other.Issue("acct-1")
		require.NoError(t, err)
		_, err = iss.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		old, _ := NewIssuer(secret, "ragsig", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, _, err := old.Issue("acct-1")
		require.NoError(t, err)
		_, err = iss.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		tok, err := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, jwtv5.MapClaims{
			"sub": "acct-1", "iss": "ragsig", "exp": time.Now().Add(time.Minute).Unix(),
		}).SignedString(jwtv5.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = iss.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := iss.Parse("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("  ", "", 0)
	assert.ErrorIs(t, err, ErrMissingSecret)

	iss, err := NewIssuer(secret, "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, iss.TTL)

	_, _, err = iss.Issue("")
	assert.ErrorIs(t, err, ErrMissingSubject)
}
