package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type CredentialStore interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	InsertRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	DeleteRefreshTokensForUser(ctx context.Context, userID int64) error
}

type SessionStore interface {
	SetAccessToken(ctx context.Context, userID int64, token string, ttl time.Duration) error
	GetAccessToken(ctx context.Context, userID int64) (string, bool, error)
	DeleteAccessToken(ctx context.Context, userID int64) error
}

type Service struct {
	store    CredentialStore
	sessions SessionStore
	codec    *TokenCodec
}

func NewService(store CredentialStore, sessions SessionStore, codec *TokenCodec) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		codec:    codec,
	}
}

func (s *Service) RefreshTTL() time.Duration {
	return s.codec.TTL(RefreshToken)
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a comparable amount of time so response latency does not
			// reveal whether the account exists.
			_ = bcrypt.CompareHashAndPassword(placeholderHash(), []byte(password))
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	accessToken, _, err := s.codec.Sign(AccessToken, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	refreshToken, refreshExpiresAt, err := s.codec.Sign(RefreshToken, user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.sessions.SetAccessToken(ctx, user.ID, accessToken, s.codec.TTL(AccessToken)); err != nil {
		return LoginResult{}, err
	}
	if err := s.store.InsertRefreshToken(ctx, user.ID, refreshToken, refreshExpiresAt); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
		User: PublicUser{
			ID:    user.ID,
			Email: user.Email,
		},
	}, nil
}

// Logout ends every session of the user: the cached access token and all
// refresh tokens. Both steps run even if one of them fails.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	cacheErr := s.sessions.DeleteAccessToken(ctx, userID)
	storeErr := s.store.DeleteRefreshTokensForUser(ctx, userID)

	if err := errors.Join(cacheErr, storeErr); err != nil {
		return fmt.Errorf("logout user %d: %w", userID, err)
	}
	return nil
}

// ValidateAccessToken accepts a token only if it verifies and is still the one
// cached for its user. A later login replaces the cached token, which makes
// every earlier token invalid before its own expiry.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrUnauthenticated
	}

	userID, err := s.codec.Verify(AccessToken, token)
	if err != nil {
		return 0, err
	}

	cached, found, err := s.sessions.GetAccessToken(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !found || cached != token {
		return 0, ErrInvalidToken
	}

	return userID, nil
}

var (
	placeholderOnce sync.Once
	placeholder     []byte
)

func placeholderHash() []byte {
	placeholderOnce.Do(func() {
		placeholder, _ = bcrypt.GenerateFromPassword([]byte("finelth-placeholder-password"), bcrypt.DefaultCost)
	})
	return placeholder
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthenticated    = errors.New("unauthenticated")
)
