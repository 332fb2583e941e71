package auth

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"finelth-api/internal/observability"
)

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type refreshRecord struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	users   map[string]User
	refresh []refreshRecord
	nextID  int64
	findErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]User)}
}

func (m *memoryStore) addUser(t *testing.T, id int64, email, password string) User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	user := User{ID: id, Email: email, PasswordHash: string(hash)}
	m.users[email] = user
	return user
}

func (m *memoryStore) FindUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return User{}, m.findErr
	}
	user, ok := m.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *memoryStore) InsertRefreshToken(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.refresh = append(m.refresh, refreshRecord{ID: m.nextID, UserID: userID, Token: token, ExpiresAt: expiresAt})
	return nil
}

func (m *memoryStore) DeleteRefreshTokensForUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.refresh[:0]
	for _, rec := range m.refresh {
		if rec.UserID != userID {
			kept = append(kept, rec)
		}
	}
	m.refresh = kept
	return nil
}

func (m *memoryStore) refreshFor(userID int64) []refreshRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []refreshRecord
	for _, rec := range m.refresh {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}

type testEnv struct {
	service *Service
	store   *memoryStore
	cache   *SessionCache
	codec   *TokenCodec
	clock   *fakeClock
	mr      *miniredis.Miniredis
	rdb     *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := newFakeClock()
	codec, err := NewTokenCodec(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	codec.WithClock(clock.Now)

	store := newMemoryStore()
	cache := NewSessionCache(rdb)

	return &testEnv{
		service: NewService(store, cache, codec),
		store:   store,
		cache:   cache,
		codec:   codec,
		clock:   clock,
		mr:      mr,
		rdb:     rdb,
	}
}

func newTestLogger() (*observability.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return observability.NewLoggerTo(&buf), &buf
}
