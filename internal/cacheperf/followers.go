package cacheperf

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/pkg/logger"
)

// ProfileCache resolves display snapshots for inbox and collaborator views.
// Reads go through redis (MGET) first and only missing ids hit the store in
// one bulk query. A nil redis client disables caching.
type ProfileCache struct {
	users repository.UserRepository
	cache *redis.Client
	ttl   time.Duration

	hits     atomic.Int64
	misses   atomic.Int64
	bulkLoad atomic.Int64
}

func NewProfileCache(users repository.UserRepository, cache *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileCache{users: users, cache: cache, ttl: ttl}
}

func profileKey(id string) string { return fmt.Sprintf("user:%s", id) }

// Resolve returns snapshots keyed by id. Ids with no user row are absent.
func (s *ProfileCache) Resolve(ctx context.Context, ids []string) (map[string]model.UserSnapshot, error) {
	out := make(map[string]model.UserSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	if s.cache != nil {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = profileKey(id)
		}
		vals, err := s.cache.MGet(ctx, keys...).Result()
		if err != nil {
			// 缓存不可用时降级到数据库
			logger.Warn("profile cache mget failed", zap.Error(err))
		}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				continue
			}
			var snap model.UserSnapshot
			if uErr := json.Unmarshal([]byte(str), &snap); uErr == nil {
				out[ids[i]] = snap
			}
		}
	}

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	s.hits.Add(int64(len(ids) - len(missing)))
	s.misses.Add(int64(len(missing)))
	if len(missing) == 0 {
		return out, nil
	}

	s.bulkLoad.Add(1)
	users, err := s.users.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	var pipe redis.Pipeliner
	if s.cache != nil {
		pipe = s.cache.Pipeline()
	}
	for _, u := range users {
		snap := u.Snapshot()
		out[u.ID] = snap
		if pipe != nil {
			if payload, err := json.Marshal(snap); err == nil {
				pipe.Set(ctx, profileKey(u.ID), payload, s.ttl)
			}
		}
	}
	if pipe != nil && len(users) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("profile cache fill failed", zap.Error(err))
		}
	}
	return out, nil
}

// Invalidate drops a cached snapshot after the user's display data changed.
func (s *ProfileCache) Invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, profileKey(id)).Err(); err != nil {
		logger.Warn("profile cache invalidate failed", zap.String("user", id), zap.Error(err))
	}
}

// ResetCounters clears recorded counters.
func (s *ProfileCache) ResetCounters() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.bulkLoad.Store(0)
}

// Counters reports cache effectiveness since the last reset.
func (s *ProfileCache) Counters() ProfileCounters {
	return ProfileCounters{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		BulkLoad: s.bulkLoad.Load(),
	}
}

// ProfileCounters summarises cache hits and store loads during a run.
type ProfileCounters struct {
	Hits     int64
	Misses   int64
	BulkLoad int64
}
