package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"finelth-api/internal/observability"
)

const loginRateKeyPrefix = "login_rate:"

// LoginRateLimiter caps login attempts per client IP in a fixed window kept in
// Redis, so every instance behind the load balancer shares the same counters.
type LoginRateLimiter struct {
	client  redis.Cmdable
	logger  *observability.Logger
	maxHits int
	window  time.Duration

	trustProxy bool
}

func NewLoginRateLimiter(client redis.Cmdable, logger *observability.Logger, maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		client:  client,
		logger:  logger,
		maxHits: maxHits,
		window:  window,
	}
}

// WithTrustedProxy keys clients on the proxy-appended X-Forwarded-For hop
// instead of the peer address.
func (l *LoginRateLimiter) WithTrustedProxy(trust bool) *LoginRateLimiter {
	l.trustProxy = trust
	return l
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter, err := l.allow(r.Context(), observability.ClientIP(r, l.trustProxy))
		if err != nil {
			// Fail open: an unavailable limiter must not lock everyone out.
			l.logger.ErrorContext(r.Context(), "login_rate_limit_failed", map[string]any{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, codeTooManyRequests, "Too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ctx context.Context, ip string) (bool, time.Duration, error) {
	key := loginRateKeyPrefix + ip

	hits, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("increment login rate counter: %w", err)
	}
	if hits == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire login rate counter: %w", err)
		}
	}

	if hits <= int64(l.maxHits) {
		return true, 0, nil
	}

	retryAfter, err := l.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("read login rate ttl: %w", err)
	}
	if retryAfter <= 0 {
		// The counter lost its expiry; restart the window rather than block forever.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire login rate counter: %w", err)
		}
		retryAfter = l.window
	}
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return false, retryAfter, nil
}
