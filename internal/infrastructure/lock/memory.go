package lock

import (
	"context"
	"sync"
	"time"
)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// InMemoryLocker implements Locker for a single process.
// Entries are dropped once nobody holds or waits for the key.
type InMemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	wait  time.Duration
}

// NewInMemoryLocker creates an in-memory locker; only opts.Wait applies
func NewInMemoryLocker(opts Options) *InMemoryLocker {
	return &InMemoryLocker{
		locks: make(map[string]*keyLock),
		wait:  opts.withDefaults().Wait,
	}
}

func (l *InMemoryLocker) acquireRef(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *InMemoryLocker) releaseRef(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock waits for the key up to the configured wait
func (l *InMemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	kl := l.acquireRef(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key, kl)
		return nil, ctx.Err()
	case <-timer.C:
		l.releaseRef(key, kl)
		return nil, timeoutError(key, l.wait)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.releaseRef(key, kl)
		})
	}, nil
}

// held reports how many keys are currently tracked
func (l *InMemoryLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ Locker = (*InMemoryLocker)(nil)
