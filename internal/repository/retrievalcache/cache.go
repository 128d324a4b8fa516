// Package retrievalcache memoizes fused retrieval results for a short TTL.
package retrievalcache

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/db"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
)

// DefaultTTL is how long a fused result list stays cached.
const DefaultTTL = 90 * time.Second

const keyPrefix = "talkdb:retrieval:"

// kvStore is the consumer interface for the shared cache (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KV caches results in the shared key-value store, so every replica sees them.
type KV struct {
	store  kvStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewKV creates a store-backed cache.
func NewKV(s kvStore, ttl time.Duration, logger *zap.Logger) *KV {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &KV{store: s, ttl: ttl, logger: logger}
}

// Get returns cached results. Store failures count as misses.
func (c *KV) Get(ctx context.Context, key string) ([]retrieval.Result, bool) {
	data, err := c.store.Get(ctx, keyPrefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read retrieval cache", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var dtos []resultDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		c.logger.Warn("Failed to decode retrieval cache", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return fromDTOs(dtos), true
}

// Put stores results with the configured TTL.
func (c *KV) Put(ctx context.Context, key string, rs []retrieval.Result) {
	data, err := json.Marshal(toDTOs(rs))
	if err != nil {
		c.logger.Warn("Failed to encode retrieval cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, keyPrefix+key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to write retrieval cache", zap.String("key", key), zap.Error(err))
	}
}

// Local caches results in process memory.
type Local struct {
	cache *gocache.Cache
}

// NewLocal creates an in-process cache that sweeps expired entries every ttl.
func NewLocal(ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Local{cache: gocache.New(ttl, ttl)}
}

// Get returns a copy of the cached results.
func (c *Local) Get(_ context.Context, key string) ([]retrieval.Result, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return slices.Clone(v.([]retrieval.Result)), true
}

// Put stores a copy of rs.
func (c *Local) Put(_ context.Context, key string, rs []retrieval.Result) {
	c.cache.SetDefault(key, slices.Clone(rs))
}
