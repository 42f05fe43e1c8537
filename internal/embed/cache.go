// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/vector"
)

// Cache stores encoded vectors by key. Get reports a miss with ok=false and
// a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (vec []float32, ok bool, err error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CacheKey is the key under which a model's embedding of text is stored.
func CacheKey(model, text string) string {
	sum := md5.Sum([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}

// RedisCache keeps vectors in Redis using the vector BLOB encoding.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr. The connection is checked lazily.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// Ping checks the connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := vector.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	return r.client.Set(ctx, key, vector.Encode(vec), r.ttl).Err()
}

// Close releases the client.
func (r *RedisCache) Close() error { return r.client.Close() }

type memItem struct {
	vec     []float32
	expires time.Time
}

// MemoryCache is a process-local cache with per-entry expiry. A zero TTL
// keeps entries forever.
type MemoryCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memItem
	now   func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, items: make(map[string]memItem), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !it.expires.IsZero() && m.now().After(it.expires) {
		delete(m.items, key)
		return nil, false, nil
	}
	return append([]float32(nil), it.vec...), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := memItem{vec: append([]float32(nil), vec...)}
	if m.ttl > 0 {
		it.expires = m.now().Add(m.ttl)
	}
	m.items[key] = it
	return nil
}

// CachedEmbedder looks texts up in a cache before calling the wrapped
// embedder and stores what it had to compute. Cache failures are logged and
// treated as misses.
type CachedEmbedder struct {
	inner  Embedder
	cache  Cache
	logger *zap.Logger
}

func NewCachedEmbedder(inner Embedder, cache Cache, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, cache: cache, logger: logger}
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) Name() string { return c.inner.Name() }

// Close closes the cache when it holds a connection.
func (c *CachedEmbedder) Close() error {
	if closer, ok := c.cache.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, t := range texts {
		keys[i] = CacheKey(c.inner.Name(), t)
		vec, ok, err := c.cache.Get(ctx, keys[i])
		if err != nil {
			c.logger.Warn("embedding cache read failed", zap.String("key", keys[i]), zap.Error(err))
		}
		if ok {
			out[i] = vec
			continue
		}
		missing = append(missing, t)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, errors.New("embedder returned a different number of vectors than texts")
	}
	for j, i := range slots {
		out[i] = vecs[j]
		if err := c.cache.Set(ctx, keys[i], vecs[j]); err != nil {
			c.logger.Warn("embedding cache write failed", zap.String("key", keys[i]), zap.Error(err))
		}
	}
	return out, nil
}
