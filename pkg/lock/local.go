package lock

import (
	"context"
	"fmt"
	"sync"
)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed lock. It only serialises callers within one
// process; use Redis when several API replicas share a store.
type Local struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewLocal constructs an empty in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*keyLock)}
}

// Acquire takes every key or none of them.
func (l *Local) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalize(keys)
	releases := make([]func(), 0, len(keys))
	for _, key := range keys {
		release, err := l.acquireOne(ctx, key)
		if err != nil {
			chain(releases)()
			return nil, err
		}
		releases = append(releases, release)
	}
	return chain(releases), nil
}

func (l *Local) acquireOne(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return func() {
			<-kl.ch
			l.unref(key, kl)
		}, nil
	case <-ctx.Done():
		l.unref(key, kl)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}
}

func (l *Local) unref(key string, kl *keyLock) {
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
