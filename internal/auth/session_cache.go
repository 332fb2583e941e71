package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const accessTokenKeyPrefix = "access_token:"

// SessionCache holds the single access token currently honoured for each user.
// Writing a new token replaces the previous one, which revokes it.
type SessionCache struct {
	client redis.Cmdable
}

func NewSessionCache(client redis.Cmdable) *SessionCache {
	return &SessionCache{client: client}
}

func (c *SessionCache) SetAccessToken(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, accessTokenKey(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("cache access token: %w", err)
	}
	return nil
}

// GetAccessToken reports found=false when no token is cached for the user.
func (c *SessionCache) GetAccessToken(ctx context.Context, userID int64) (string, bool, error) {
	token, err := c.client.Get(ctx, accessTokenKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read cached access token: %w", err)
	}
	return token, true, nil
}

func (c *SessionCache) DeleteAccessToken(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, accessTokenKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cached access token: %w", err)
	}
	return nil
}

func (c *SessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func accessTokenKey(userID int64) string {
	return accessTokenKeyPrefix + strconv.FormatInt(userID, 10)
}
