package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a sorted-set log per key, scored by unix milliseconds.
type RedisStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisStore keeps entries for retention; it must cover both the window
// and the longest cooldown in use.
func NewRedisStore(rdb *redis.Client, prefix string, retention time.Duration) *RedisStore {
	if retention < Window {
		retention = Window
	}
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, retention: retention}
}

func (s *RedisStore) userKey(kind Kind, userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:user:%s", s.prefix, kind, userID)
}

func (s *RedisStore) ipKey(kind Kind, ip string) string {
	return fmt.Sprintf("%s:%s:ip:%s", s.prefix, kind, ip)
}

func (s *RedisStore) Stats(ctx context.Context, kind Kind, userID uuid.UUID, ip string, since time.Time) (Stats, error) {
	var stats Stats

	userCount, userOldest, userLatest, err := s.keyStats(ctx, s.userKey(kind, userID), since)
	if err != nil {
		return stats, err
	}
	stats.UserCount = userCount
	stats.OldestUser = userOldest
	stats.Latest = userLatest

	if ip == "" {
		return stats, nil
	}

	ipCount, ipOldest, ipLatest, err := s.keyStats(ctx, s.ipKey(kind, ip), since)
	if err != nil {
		return stats, err
	}
	stats.IPCount = ipCount
	stats.OldestIP = ipOldest
	if ipLatest != nil && (stats.Latest == nil || ipLatest.After(*stats.Latest)) {
		stats.Latest = ipLatest
	}

	return stats, nil
}

func (s *RedisStore) keyStats(ctx context.Context, key string, since time.Time) (int, *time.Time, *time.Time, error) {
	min := strconv.FormatInt(since.UnixMilli(), 10)

	pipe := s.rdb.Pipeline()
	countCmd := pipe.ZCount(ctx, key, min, "+inf")
	oldestCmd := pipe.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: min, Max: "+inf", Offset: 0, Count: 1})
	latestCmd := pipe.ZRevRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, nil, nil, fmt.Errorf("redis stats %s: %w", key, err)
	}

	var oldest, latest *time.Time
	if zs := oldestCmd.Val(); len(zs) > 0 {
		t := time.UnixMilli(int64(zs[0].Score))
		oldest = &t
	}
	if zs := latestCmd.Val(); len(zs) > 0 {
		t := time.UnixMilli(int64(zs[0].Score))
		latest = &t
	}

	return int(countCmd.Val()), oldest, latest, nil
}

func (s *RedisStore) Record(ctx context.Context, kind Kind, userID uuid.UUID, ip string, at time.Time) error {
	keys := []string{s.userKey(kind, userID)}
	if ip != "" {
		keys = append(keys, s.ipKey(kind, ip))
	}

	score := float64(at.UnixMilli())
	member := strconv.FormatInt(at.UnixNano(), 10) + ":" + uuid.NewString()
	cutoff := strconv.FormatInt(at.Add(-s.retention).UnixMilli(), 10)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
			pipe.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff)
			pipe.Expire(ctx, key, s.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record %s: %w", kind, err)
	}

	return nil
}
