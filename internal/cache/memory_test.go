package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("t", time.Minute)

	_, err := c.Get(ctx, "k")
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, _ = c.Exists(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_TTLExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", time.Minute)
	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_TryLock(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", 0)

	unlock, err := c.TryLock(ctx, "uid-1", time.Minute)
	require.NoError(t, err)

	_, err = c.TryLock(ctx, "uid-1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	// Otro uid no se ve afectado.
	unlock2, err := c.TryLock(ctx, "uid-2", time.Minute)
	require.NoError(t, err)
	unlock2()

	unlock()
	unlock() // idempotente

	unlock3, err := c.TryLock(ctx, "uid-1", time.Minute)
	require.NoError(t, err)
	unlock3()
}

func TestMemory_TryLockExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", 0)

	stale, err := c.TryLock(ctx, "uid", 20*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)

	fresh, err := c.TryLock(ctx, "uid", time.Minute)
	require.NoError(t, err)

	// El unlock vencido no debe liberar el lock del nuevo dueño.
	stale()
	_, err = c.TryLock(ctx, "uid", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)
	fresh()
}

func TestMemory_TryLockSingleWinner(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", 0)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.TryLock(ctx, "same", time.Minute); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}
