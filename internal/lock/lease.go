// Package lock provides a Redis lease used to keep replicas from running the
// same periodic job at the same time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when another holder owns the lease.
var ErrHeld = errors.New("lease held by another owner")

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const connectTimeout = 5 * time.Second

// Connect opens the Redis client that backs leases. The URL must use the
// redis:// or rediss:// scheme; the server has connectTimeout to answer a PING.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lease store URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("lease store %s unreachable: %w", opts.Addr, err)
	}
	return client, nil
}

// Locker hands out leases on named Redis keys.
type Locker struct {
	client *redis.Client
	prefix string
}

// NewLocker constructs a Locker whose keys are prefixed with prefix.
func NewLocker(client *redis.Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Lease is a held lock. It expires on its own after the TTL given to Acquire.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *Locker) key(name string) string {
	return l.prefix + name
}

// Acquire takes the lease on name for ttl. It returns ErrHeld when the lease
// is already taken.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	key := l.key(name)

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return &Lease{client: l.client, key: key, token: token}, nil
}

// Release gives the lease back. Releasing a lease that already expired, or
// was taken over by someone else, is not an error.
func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("releasing lease %s: %w", l.key, err)
	}
	return nil
}
