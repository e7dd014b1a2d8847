package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyTTL keeps finished weeks around for a while after they close.
const keyTTL = 60 * 24 * time.Hour

type Entry struct {
	Rank  int   `json:"rank"`
	FID   int64 `json:"fid"`
	Score int64 `json:"score"`
}

// Store keeps per-week net winnings.
type Store interface {
	Add(ctx context.Context, weekID string, fid int64, delta int64) error
	Top(ctx context.Context, weekID string, limit int) ([]Entry, error)
	// Get returns nil when the user has no score for the week.
	Get(ctx context.Context, weekID string, fid int64) (*Entry, error)
}

type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(c redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "leaderboard"
	}
	return &RedisStore{redis: c, prefix: prefix}
}

func (s *RedisStore) key(weekID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, weekID)
}

func (s *RedisStore) Add(ctx context.Context, weekID string, fid int64, delta int64) error {
	key := s.key(weekID)
	pipe := s.redis.TxPipeline()
	pipe.ZIncrBy(ctx, key, float64(delta), strconv.FormatInt(fid, 10))
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}
	return nil
}

func (s *RedisStore) Top(ctx context.Context, weekID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	res, err := s.redis.ZRevRangeWithScores(ctx, s.key(weekID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	out := make([]Entry, 0, len(res))
	for i, z := range res {
		fid, err := strconv.ParseInt(z.Member.(string), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Entry{Rank: i + 1, FID: fid, Score: int64(z.Score)})
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, weekID string, fid int64) (*Entry, error) {
	member := strconv.FormatInt(fid, 10)
	score, err := s.redis.ZScore(ctx, s.key(weekID), member).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rank, err := s.redis.ZRevRank(ctx, s.key(weekID), member).Result()
	if err != nil {
		return nil, err
	}
	return &Entry{Rank: int(rank) + 1, FID: fid, Score: int64(score)}, nil
}

// MemoryStore is used when Redis is not configured.
type MemoryStore struct {
	mu     sync.RWMutex
	scores map[string]map[int64]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string]map[int64]int64)}
}

func (s *MemoryStore) Add(ctx context.Context, weekID string, fid int64, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	week, ok := s.scores[weekID]
	if !ok {
		week = make(map[int64]int64)
		s.scores[weekID] = week
	}
	week[fid] += delta
	return nil
}

func (s *MemoryStore) ranked(weekID string) []Entry {
	week := s.scores[weekID]
	out := make([]Entry, 0, len(week))
	for fid, score := range week {
		out = append(out, Entry{FID: fid, Score: score})
	}
	// ties resolve like a redis ZSET in reverse: higher member first
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strconv.FormatInt(out[i].FID, 10) > strconv.FormatInt(out[j].FID, 10)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (s *MemoryStore) Top(ctx context.Context, weekID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.ranked(weekID)
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, weekID string, fid int64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.ranked(weekID) {
		if e.FID == fid {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}
