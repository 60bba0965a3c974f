package linking

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dropDatabas3/devlog/internal/identity"
)

// userLocks serializa link/unlink por uid. La espera respeta ctx.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*semaphore.Weighted
}

func newUserLocks() *userLocks {
	return &userLocks{m: map[string]*semaphore.Weighted{}}
}

func (l *userLocks) get(uid string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.m[uid]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.m[uid] = s
	}
	return s
}

func (l *userLocks) run(ctx context.Context, uid string, fn func() error) error {
	s := l.get(uid)
	if err := s.Acquire(ctx, 1); err != nil {
		return identity.Wrap(identity.KindUserCancelled, err, "waiting for another account operation")
	}
	defer s.Release(1)
	return fn()
}
