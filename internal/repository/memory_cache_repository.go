package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gobwas/glob"
	gocache "github.com/patrickmn/go-cache"

	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
)

// MemoryCacheRepository is the in-process cache used when Redis is disabled.
// Values are stored JSON-encoded so callers observe the same copy semantics as Redis.
type MemoryCacheRepository struct {
	store *gocache.Cache
}

func NewMemoryCacheRepository(defaultTTL, cleanupInterval time.Duration) *MemoryCacheRepository {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryCacheRepository{store: gocache.New(defaultTTL, cleanupInterval)}
}

func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := r.store.Get(key)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(raw.([]byte), dest); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}
	r.store.Set(key, payload, ttl)
	return nil
}

// DeleteByPattern accepts the same glob syntax as Redis SCAN MATCH.
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) error {
	g, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compile pattern %s: %w", pattern, err)
	}
	for key := range r.store.Items() {
		if g.Match(key) {
			r.store.Delete(key)
		}
	}
	return nil
}

// Len is the number of unexpired entries.
func (r *MemoryCacheRepository) Len() int {
	return r.store.ItemCount()
}
