package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock is a single-holder lock backed by SET NX PX. It serializes the
// stop-loss sweep, order reconciliation, and session-driven orders that
// touch the same ticker.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// NewLock creates an unacquired lock for the given key.
func (c *Client) NewLock(key string) *Lock {
	return &Lock{
		client: c.Client,
		key:    key,
		token:  uuid.NewString(),
	}
}

// Acquire tries to take the lock, returning false if another holder owns it.
func (l *Lock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, ttl).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release drops the lock if this instance still holds it.
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
