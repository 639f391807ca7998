package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CacheStore — хранилище кеша.
// Реализации: MemoryCache и repo.CacheRepo (Postgres).
type CacheStore interface {
	// Get возвращает значение; отсутствующий или просроченный ключ — ErrCacheMiss.
	Get(ctx context.Context, key string) (any, error)

	// Set записывает значение; ttl == 0 — без срока.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete удаляет ключ. Отсутствующий ключ не ошибка.
	Delete(ctx context.Context, key string) error
}

// Cache — сервис кеша поверх CacheStore.
//
// Типичный сценарий — кеш с загрузкой при промахе:
//
//	type: job
//	invoke: cache.get
//	args: ["user:•id"]
//	onFail:
//	  type: job
//	  invoke: http.get
//	  args: ["https://api.example.com/users/•{id}"]
//	  onSuccess:
//	    type: job
//	    invoke: cache.set
//	    args: ["user:•id", "•result", 300]
type Cache struct {
	store CacheStore
}

// NewCache создаёт сервис; store == nil — MemoryCache.
func NewCache(store CacheStore) *Cache {
	if store == nil {
		store = NewMemoryCache()
	}
	return &Cache{store: store}
}

// Get: get(key). Промах возвращается как ошибка ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, args ...any) (any, error) {
	key, err := stringArg("cache.get", args, 0)
	if err != nil {
		return nil, err
	}
	return c.store.Get(ctx, key)
}

// Set: set(key, value, ttlSeconds?). Возвращает value.
func (c *Cache) Set(ctx context.Context, args ...any) (any, error) {
	key, err := stringArg("cache.set", args, 0)
	if err != nil {
		return nil, err
	}

	var ttl time.Duration
	if v := arg(args, 2); v != nil {
		d, ok := seconds(v)
		if !ok || d < 0 {
			return nil, fmt.Errorf("%w: cache.set: invalid ttl %v", ErrInvalidArgs, v)
		}
		ttl = d
	}

	value := arg(args, 1)
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		return nil, fmt.Errorf("cache.set %s: %w", key, err)
	}
	return value, nil
}

// Delete: delete(key). Возвращает key.
func (c *Cache) Delete(ctx context.Context, args ...any) (any, error) {
	key, err := stringArg("cache.delete", args, 0)
	if err != nil {
		return nil, err
	}
	if err := c.store.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("cache.delete %s: %w", key, err)
	}
	return key, nil
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache — кеш в памяти процесса с TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache создаёт пустой кеш.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get реализует CacheStore.
func (m *MemoryCache) Get(_ context.Context, key string) (any, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || (!e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	return e.value, nil
}

// Set реализует CacheStore.
func (m *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	e := cacheEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

// Delete реализует CacheStore.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
