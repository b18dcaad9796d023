package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/config"
)

func TestNewFromConfig(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		l, err := NewFromConfig(config.BillingConfig{LockBackend: config.LockBackendMemory, LockWait: time.Second}, nil, nil)
		require.NoError(t, err)
		assert.IsType(t, &InMemoryLocker{}, l)
	})

	t.Run("redis backend requires a client", func(t *testing.T) {
		_, err := NewFromConfig(config.BillingConfig{LockBackend: config.LockBackendRedis}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("redis backend", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
		defer client.Close()
		l, err := NewFromConfig(config.BillingConfig{LockBackend: config.LockBackendRedis}, client, nil)
		require.NoError(t, err)
		assert.IsType(t, &RedisLocker{}, l)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewFromConfig(config.BillingConfig{LockBackend: "etcd"}, nil, nil)
		assert.Error(t, err)
	})
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 30*time.Second, o.TTL)
	assert.Equal(t, 10*time.Second, o.Wait)
	assert.Equal(t, defaultRetryInterval, o.RetryInterval)

	o = Options{TTL: time.Second, Wait: 2 * time.Second, RetryInterval: time.Millisecond}.withDefaults()
	assert.Equal(t, time.Second, o.TTL)
	assert.Equal(t, 2*time.Second, o.Wait)
	assert.Equal(t, time.Millisecond, o.RetryInterval)
}

func TestRedisLocker_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	locker := NewRedisLocker(client, Options{Wait: time.Second}, nil)
	_, err := locker.Lock(context.Background(), "rentpay:allocation:tenant:x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire lock")
}
