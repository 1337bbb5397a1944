package lock

import (
	"context"
	"sync"
)

// Locker serializes work per key. Lock blocks until the key is free or ctx
// is done; the returned func releases the key and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker. Waiters on different keys never block
// each other, and idle keys are dropped so the map does not grow with the
// number of doctors ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: map[string]*slot{}}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s := k.slots[key]
	if s == nil {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.waiters++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(key, s, true) })
	}, nil
}

func (k *KeyedMutex) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	k.mu.Lock()
	s.waiters--
	if s.waiters == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}

// Noop never blocks; correctness then rests on the store constraint alone.
type Noop struct{}

func (Noop) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
