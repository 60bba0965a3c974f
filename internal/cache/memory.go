package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Store sobre patrickmn/go-cache.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	// lockMu serializa TryLock/unlock (go-cache no tiene compare-and-delete).
	lockMu sync.Mutex
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(prefix string, defaultTTL time.Duration) *memoryClient {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(defaultTTL, time.Minute),
	}
}

func (m *memoryClient) key(k string) string { return prefixed(m.prefix, k) }

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(m.key(key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	m.c.Delete(m.key(key))
	return nil
}

func (m *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.c.Get(m.key(key))
	return ok, nil
}

func (m *memoryClient) Ping(ctx context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}

func (m *memoryClient) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := m.key("lock:" + key)
	token := uuid.NewString()

	m.lockMu.Lock()
	err := m.c.Add(k, token, ttl)
	m.lockMu.Unlock()
	if err != nil {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.lockMu.Lock()
			defer m.lockMu.Unlock()
			if v, ok := m.c.Get(k); ok && v == token {
				m.c.Delete(k)
			}
		})
	}, nil
}
