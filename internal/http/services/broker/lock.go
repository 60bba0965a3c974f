package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/devlog/internal/cache"
)

const defaultLockTTL = 30 * time.Second

// userLocks serializa las operaciones que mutan el TokenRecord de un uid.
// No espera: si el lock está tomado devuelve ErrBusy y el cliente reintenta
// la operación completa.
type userLocks struct {
	locker cache.Locker
	ttl    time.Duration
}

func newUserLocks(l cache.Locker, ttl time.Duration) *userLocks {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &userLocks{locker: l, ttl: ttl}
}

func (u *userLocks) run(ctx context.Context, uid string, fn func() error) error {
	if u == nil || u.locker == nil {
		return fn()
	}
	unlock, err := u.locker.TryLock(ctx, "uid:"+uid, u.ttl)
	if errors.Is(err, cache.ErrLocked) {
		return ErrBusy
	}
	if err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}
	defer unlock()
	return fn()
}
