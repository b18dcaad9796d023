package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/config"
)

// releaseScript deletes the key only while it still carries our token, so an
// expired lease taken over by another holder is never released by us
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const releaseTimeout = 3 * time.Second

// RedisLocker implements Locker with SET NX PX and a token-checked release
type RedisLocker struct {
	client redis.UniversalClient
	opts   Options
	logger *zap.Logger
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisLocker creates a RedisLocker over an existing client
func NewRedisLocker(client redis.UniversalClient, opts Options, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client: client,
		opts:   opts.withDefaults(),
		logger: logger.Named("lock"),
	}
}

// Lock retries SET NX until it wins, the wait budget runs out or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.opts.Wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return l.unlocker(key, token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, timeoutError(key, l.opts.Wait)
		}
		pause := min(l.opts.RetryInterval, remaining)

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) unlocker(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release regardless.
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()

			deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
			switch {
			case err != nil && !errors.Is(err, redis.Nil):
				l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
			case deleted == 0:
				l.logger.Warn("Lock lease expired before release", zap.String("key", key), zap.Duration("ttl", l.opts.TTL))
			}
		})
	}
}

var _ Locker = (*RedisLocker)(nil)
