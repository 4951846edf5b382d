package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Only the holder of the token may drop the key.
const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrLeaseNotConfigured = errors.New("replay lease not configured")

// lease is a single-holder lock on one Redis key that expires after ttl if
// the holder never releases it.
type lease struct {
	client  *redis.Client
	release *redis.Script
	key     string
	ttl     time.Duration
}

func newLease(client *redis.Client, key string, ttl time.Duration) *lease {
	return &lease{
		client:  client,
		release: redis.NewScript(leaseReleaseScript),
		key:     key,
		ttl:     ttl,
	}
}

func (l *lease) acquire(ctx context.Context) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrLeaseNotConfigured
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *lease) drop(ctx context.Context, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{l.key}, token).Err()
}
