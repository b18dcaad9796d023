// Package lock provides keyed mutual exclusion for billing units of work.
// RedisLocker coordinates several worker instances; InMemoryLocker serves a
// single process and tests.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/config"
)

// Locker holds a named lock for the duration of a unit of work
type Locker interface {
	// Lock blocks until the key is held, the wait budget is spent or ctx is done.
	// The returned func releases the lock and is safe to call more than once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

const defaultRetryInterval = 50 * time.Millisecond

// Options tunes lock acquisition
type Options struct {
	TTL           time.Duration // lease on the key; redis only
	Wait          time.Duration // how long Lock keeps trying before LOCK_TIMEOUT
	RetryInterval time.Duration // pause between attempts; redis only
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 10 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
	return o
}

func timeoutError(key string, wait time.Duration) error {
	return shared.NewDomainError(shared.CodeLockTimeout,
		fmt.Sprintf("Timed out after %s waiting for lock %s", wait, key))
}

// NewFromConfig builds the locker selected by billing.lock_backend.
// The redis backend needs a connected client.
func NewFromConfig(cfg config.BillingConfig, client redis.UniversalClient, logger *zap.Logger) (Locker, error) {
	opts := Options{TTL: cfg.LockTTL, Wait: cfg.LockWait}
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("lock backend %q requires a redis client", cfg.LockBackend)
		}
		return NewRedisLocker(client, opts, logger), nil
	case config.LockBackendMemory, "":
		return NewInMemoryLocker(opts), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}
