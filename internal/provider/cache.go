package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vnbacktest/internal/domain"
)

// cacheBackend is the storage behind CacheProvider, grounded on
// original_source/src/providers/cache_provider.py's JSON file cache —
// adapted here into a pluggable key/value interface so the default
// in-process map and the optional Redis backend share one caller.
type cacheBackend interface {
	get(key string) (domain.Series, bool)
	set(key string, series domain.Series)
}

// MemoryCacheBackend is the default in-process cache backend.
type MemoryCacheBackend struct {
	mu    sync.RWMutex
	store map[string]domain.Series
}

func NewMemoryCacheBackend() *MemoryCacheBackend {
	return &MemoryCacheBackend{store: make(map[string]domain.Series)}
}

func (m *MemoryCacheBackend) get(key string) (domain.Series, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[key]
	return s, ok
}

func (m *MemoryCacheBackend) set(key string, series domain.Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = series
}

// RedisCacheBackend is the `--cache-backend redis` option of
// SPEC_FULL.md §4, grounded on Junivor-DoAn-Finpull's pkg/cache/redis.go.
type RedisCacheBackend struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewRedisCacheBackend(addr string, ttl time.Duration) *RedisCacheBackend {
	return &RedisCacheBackend{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		TTL:    ttl,
		Prefix: "vnbacktest",
	}
}

func (r *RedisCacheBackend) get(key string) (domain.Series, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := r.Client.Get(ctx, r.wrapKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var series domain.Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, false
	}
	return series, true
}

func (r *RedisCacheBackend) set(key string, series domain.Series) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(series)
	if err != nil {
		return
	}
	_ = r.Client.Set(ctx, r.wrapKey(key), data, r.TTL).Err()
}

func (r *RedisCacheBackend) wrapKey(key string) string {
	return fmt.Sprintf("%s:%s", r.Prefix, key)
}

// CacheProvider wraps another Provider with a (symbol, from, to)-keyed
// cache: a repeated request for the same symbol and window is served
// from the backend and reaches the backing provider only once. Errors
// are not cached.
type CacheProvider struct {
	Backend cacheBackend
	Next    Provider
}

func NewCacheProvider(backend cacheBackend, next Provider) *CacheProvider {
	return &CacheProvider{Backend: backend, Next: next}
}

func (c *CacheProvider) Name() string { return "cache(" + c.Next.Name() + ")" }

func (c *CacheProvider) GetDailyHistory(ctx context.Context, symbol string, from, to time.Time) (domain.Series, error) {
	key := cacheKey(symbol, from, to)
	if series, ok := c.Backend.get(key); ok {
		return series, nil
	}
	series, err := c.Next.GetDailyHistory(ctx, symbol, from, to)
	if err != nil {
		return series, err
	}
	c.Backend.set(key, series)
	return series, nil
}

func (c *CacheProvider) GetLastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	return c.Next.GetLastPrices(ctx, symbols)
}

func cacheKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("%s|%s|%s", symbol, from.Format(csvDateLayout), to.Format(csvDateLayout))
}
