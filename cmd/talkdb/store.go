package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/config"
	"github.com/kailas-cloud/talkdb/internal/db"
	dbRedis "github.com/kailas-cloud/talkdb/internal/db/redis"
	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/metrics"
	"github.com/kailas-cloud/talkdb/internal/repository/chunkstore"
	"github.com/kailas-cloud/talkdb/internal/repository/embcache"
	"github.com/kailas-cloud/talkdb/internal/repository/memchunk"
	"github.com/kailas-cloud/talkdb/internal/repository/pgchunk"
	"github.com/kailas-cloud/talkdb/internal/repository/retrievalcache"
	"github.com/kailas-cloud/talkdb/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/talkdb/internal/usecase/health"
	"github.com/kailas-cloud/talkdb/internal/usecase/indexing"
	"github.com/kailas-cloud/talkdb/internal/usecase/retriever"
)

// chunkStore is what the indexer writes and the retrievers read.
type chunkStore interface {
	indexing.ChunkStore
	retriever.ChunkSearcher
}

// vectorStore bundles the configured backend with its side services.
// redis is set only for the redis backend, which also serves the caches.
type vectorStore struct {
	chunks chunkStore
	pinger healthuc.Pinger
	redis  db.Store
	close  func()
}

func openVectorStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*vectorStore, error) {
	v := cfg.Vector
	switch v.Backend {
	case config.BackendRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: v.Addrs, Password: v.Password})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(v.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		chunks := chunkstore.New(store, v.CollectionPrefix, v.Dimensions).
			WithHNSW(chunkstore.HNSWConfig{M: v.HNSWM, EFConstruct: v.HNSWEFConstruct})
		return &vectorStore{chunks: chunks, pinger: store, redis: store, close: store.Close}, nil

	case config.BackendPGVector:
		readyCtx, cancel := context.WithTimeout(ctx, time.Duration(v.ReadinessTimeout)*time.Second)
		defer cancel()
		sqlDB, err := pgchunk.Open(readyCtx, v.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return &vectorStore{
			chunks: pgchunk.New(sqlDB, v.CollectionPrefix, v.Dimensions),
			pinger: healthuc.PingFunc(sqlDB.PingContext),
			close:  closeDB(sqlDB, logger),
		}, nil

	default:
		logger.Warn("Using in-memory vector store; indexed chunks are lost on restart")
		return &vectorStore{chunks: memchunk.New(v.CollectionPrefix, v.Dimensions), close: func() {}}, nil
	}
}

// cache returns the retrieval cache: shared through redis when available,
// otherwise per process.
func (v *vectorStore) cache(ttl time.Duration, logger *zap.Logger) fusion.Cache {
	if v.redis != nil {
		return retrievalcache.NewKV(v.redis, ttl, logger)
	}
	return retrievalcache.NewLocal(ttl)
}

// cachedEmbedder wraps inner with the redis embedding cache when available.
func (v *vectorStore) cachedEmbedder(inner domain.Embedder, model string, logger *zap.Logger) domain.Embedder {
	if v.redis == nil {
		return inner
	}
	return embcache.New(inner, v.redis, model, 0, metrics.EmbeddingCacheTotal, logger)
}

func closeDB(pool *sql.DB, logger *zap.Logger) func() {
	return func() {
		if err := pool.Close(); err != nil {
			logger.Warn("Failed to close postgres pool", zap.Error(err))
		}
	}
}
