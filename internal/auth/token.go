package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

type tokenClaims struct {
	UserID int64     `json:"userId"`
	Type   TokenKind `json:"typ"`
	// IssuedAtNanos keeps tokens issued within the same second distinct.
	IssuedAtNanos int64 `json:"iatn"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 tokens. Each kind has its own secret, so
// a leaked refresh secret cannot mint access tokens and vice versa.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock replaces the time source used for issuance and expiry checks.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

func (c *TokenCodec) TTL(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Sign returns the token and the expiry embedded in it, at the second
// precision the token carries.
func (c *TokenCodec) Sign(kind TokenKind, userID int64) (string, time.Time, error) {
	secret, err := c.secret(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	issuedAt := c.now().UTC()
	now := issuedAt.Truncate(time.Second)
	expiresAt := now.Add(c.TTL(kind))

	claims := tokenClaims{
		UserID:        userID,
		Type:          kind,
		IssuedAtNanos: issuedAt.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return encoded, expiresAt, nil
}

// Verify checks signature, token kind and expiry. It never consults external
// state; any failure is reported as ErrInvalidToken.
func (c *TokenCodec) Verify(kind TokenKind, tokenStr string) (int64, error) {
	secret, err := c.secret(kind)
	if err != nil {
		return 0, err
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Type != kind || claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

func (c *TokenCodec) secret(kind TokenKind) ([]byte, error) {
	switch kind {
	case AccessToken:
		return c.accessSecret, nil
	case RefreshToken:
		return c.refreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
}
