package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "taskgate:lease:"

// ErrLeaseLost is returned when releasing a lease that expired or was taken over.
var ErrLeaseLost = errors.New("lease was already released or expired")

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Locker hands out short-lived named leases.
type Locker struct {
	client redis.UniversalClient
}

// NewLocker creates a Locker.
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// Lease is a held lease.
type Lease struct {
	client redis.UniversalClient
	key    string
	token  string
}

// TryAcquire takes the named lease for ttl without waiting.
// It returns nil and no error if another holder has it.
func (l *Locker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	key := leaseKeyPrefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}

	return &Lease{client: l.client, key: key, token: token}, nil
}

// Release gives the lease back.
func (l *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}
