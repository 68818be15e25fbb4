// Package jwt emite y valida los bearer tokens HS256 de la API.
// El claim sub es el account id del caller.
package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTTL = time.Hour
	leeway     = 30 * time.Second
)

var (
	ErrMissingSecret  = errors.New("jwt: secret is required")
	ErrInvalidToken   = errors.New("invalid_jwt")
	ErrInvalidIssuer  = errors.New("invalid_issuer")
	ErrMissingSubject = errors.New("missing_sub")
)

// Issuer firma y valida tokens con un secreto compartido.
type Issuer struct {
	Iss    string
	TTL    time.Duration
	secret []byte
	now    func() time.Time
}

// NewIssuer crea un Issuer. iss vacío desactiva el chequeo de issuer.
func NewIssuer(secret, iss string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{Iss: iss, TTL: ttl, secret: []byte(secret), now: time.Now}, nil
}

// Claims son las claims que viajan en el token.
type Claims struct {
	jwtv5.RegisteredClaims
}

// Issue firma un token para la cuenta accountID.
func (i *Issuer) Issue(accountID string) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, ErrMissingSubject
	}
	now := i.now()
	exp := now.Add(i.TTL)
	claims := Claims{RegisteredClaims: jwtv5.RegisteredClaims{
		Subject:   accountID,
		Issuer:    i.Iss,
		IssuedAt:  jwtv5.NewNumericDate(now),
		NotBefore: jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(exp),
	}}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse valida firma, exp/nbf (con tolerancia) e iss, y devuelve las claims.
func (i *Issuer) Parse(token string) (*Claims, error) {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(leeway),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithExpirationRequired(),
	}
	if i.Iss != "" {
		opts = append(opts, jwtv5.WithIssuer(i.Iss))
	}

	var claims Claims
	tok, err := jwtv5.ParseWithClaims(token, &claims, func(*jwtv5.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenInvalidIssuer) {
			return nil, ErrInvalidIssuer
		}
		return nil, ErrInvalidToken
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return &claims, nil
}
