package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemberGenerator produces unique sorted-set members for recorded requests.
type MemberGenerator func() string

// RateLimitRedisStore is a Redis implementation of ratelimit.Store.
// Each key is a sorted set of request timestamps, pruned to the window on every record.
type RateLimitRedisStore struct {
	client   *redis.Client
	prefix   string
	memberID MemberGenerator
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client *redis.Client, memberID MemberGenerator) *RateLimitRedisStore {
	return &RateLimitRedisStore{
		client:   client,
		prefix:   "ratelimit:",
		memberID: memberID,
	}
}

func (s *RateLimitRedisStore) Record(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now()
	redisKey := s.prefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	// MULTI/EXEC so prune, add and count see the same set
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: s.memberID()})
	count := pipe.ZCard(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return count.Val(), nil
}
