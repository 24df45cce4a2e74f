// Package cache keeps the payment head catalogue close to the client.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"student-portal/logger"
	"student-portal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const headsKey = "portal:payment_heads"

// HeadsCache stores the payment head list. Get reports ok=false on a miss.
type HeadsCache interface {
	Get(ctx context.Context) (heads []models.PaymentHead, ok bool, err error)
	Set(ctx context.Context, heads []models.PaymentHead, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// Fetcher loads the heads from the backend.
type Fetcher interface {
	PaymentHeads(ctx context.Context) ([]models.PaymentHead, error)
}

// RedisHeads is a HeadsCache shared through redis.
type RedisHeads struct {
	rdb *redis.Client
}

func NewRedisHeads(rdb *redis.Client) *RedisHeads {
	return &RedisHeads{rdb: rdb}
}

func (r *RedisHeads) Get(ctx context.Context) ([]models.PaymentHead, bool, error) {
	raw, err := r.rdb.Get(ctx, headsKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var heads []models.PaymentHead
	if err := json.Unmarshal(raw, &heads); err != nil {
		return nil, false, err
	}
	return heads, true, nil
}

func (r *RedisHeads) Set(ctx context.Context, heads []models.PaymentHead, ttl time.Duration) error {
	raw, err := json.Marshal(heads)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, headsKey, raw, ttl).Err()
}

func (r *RedisHeads) Invalidate(ctx context.Context) error {
	return r.rdb.Del(ctx, headsKey).Err()
}

// MemoryHeads is a process local HeadsCache.
type MemoryHeads struct {
	mu        sync.RWMutex
	heads     []models.PaymentHead
	expiresAt time.Time
	now       func() time.Time
}

func NewMemoryHeads() *MemoryHeads {
	return &MemoryHeads{now: time.Now}
}

func (m *MemoryHeads) Get(context.Context) ([]models.PaymentHead, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.heads == nil || !m.now().Before(m.expiresAt) {
		return nil, false, nil
	}
	return m.heads, true, nil
}

func (m *MemoryHeads) Set(_ context.Context, heads []models.PaymentHead, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads = heads
	m.expiresAt = m.now().Add(ttl)
	return nil
}

func (m *MemoryHeads) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads = nil
	return nil
}

// HeadSource serves heads from the cache and collapses concurrent misses into
// a single backend call. Cache failures fall through to the backend.
type HeadSource struct {
	fetcher Fetcher
	cache   HeadsCache
	ttl     time.Duration
	group   singleflight.Group
}

func NewHeadSource(fetcher Fetcher, cache HeadsCache, ttl time.Duration) *HeadSource {
	return &HeadSource{fetcher: fetcher, cache: cache, ttl: ttl}
}

func (s *HeadSource) PaymentHeads(ctx context.Context) ([]models.PaymentHead, error) {
	if s.cache != nil && s.ttl > 0 {
		heads, ok, err := s.cache.Get(ctx)
		if err != nil {
			logger.Warn("payment heads cache read failed: %v", err)
		} else if ok {
			return heads, nil
		}
	}

	v, err, _ := s.group.Do(headsKey, func() (interface{}, error) {
		heads, err := s.fetcher.PaymentHeads(ctx)
		if err != nil {
			return nil, err
		}
		// an empty list is not cached so a fixed backend is picked up at once
		if s.cache != nil && s.ttl > 0 && len(heads) > 0 {
			if err := s.cache.Set(ctx, heads, s.ttl); err != nil {
				logger.Warn("payment heads cache write failed: %v", err)
			}
		}
		return heads, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.PaymentHead), nil
}
