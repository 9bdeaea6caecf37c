package lock

import (
	"context"
	"sync"
)

type localLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocal() Locker {
	return &localLocker{held: map[string]bool{}}
}

func (l *localLocker) TryAcquire(ctx context.Context, name string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, ErrHeld
	}
	l.held[name] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
	}, nil
}

func (l *localLocker) Close() error { return nil }
