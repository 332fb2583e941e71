package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hitFrom(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginRateLimiter_BlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger, _ := newTestLogger()

	h := NewLoginRateLimiter(rdb, logger, 2, time.Minute).Middleware(okHandler())

	assert.Equal(t, http.StatusOK, hitFrom(h, "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, hitFrom(h, "198.51.100.1").Code)

	rec := hitFrom(h, "198.51.100.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "TOO_MANY_REQUESTS", decodeError(t, rec).Error)

	assert.Equal(t, http.StatusOK, hitFrom(h, "198.51.100.2").Code)

	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusOK, hitFrom(h, "198.51.100.1").Code)
}

func TestLoginRateLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	logger, buf := newTestLogger()

	h := NewLoginRateLimiter(rdb, logger, 1, time.Minute).Middleware(okHandler())
	mr.Close()

	assert.Equal(t, http.StatusOK, hitFrom(h, "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, hitFrom(h, "198.51.100.1").Code)
	assert.Contains(t, buf.String(), "login_rate_limit_failed")
}

func TestLoginRateLimiter_IgnoresForwardedForByDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger, _ := newTestLogger()

	h := NewLoginRateLimiter(rdb, logger, 2, time.Minute).Middleware(okHandler())

	blocked := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "198.51.100.1:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			blocked++
		}
	}

	assert.Equal(t, 18, blocked)
	assert.True(t, mr.Exists("login_rate:198.51.100.1"))
}

func TestLoginRateLimiter_TrustedProxyUsesAppendedHop(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger, _ := newTestLogger()

	h := NewLoginRateLimiter(rdb, logger, 1, time.Minute).WithTrustedProxy(true).Middleware(okHandler())

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("1.1.1.1, 198.51.100.7"))
	assert.Equal(t, http.StatusTooManyRequests, send("2.2.2.2, 198.51.100.7"))
	assert.Equal(t, http.StatusOK, send("198.51.100.8"))
}
