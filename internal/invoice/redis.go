package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "invoice:seq:"
	// counters outlive their day so late requests around midnight still see them
	redisKeyTTL = 48 * time.Hour
)

// RedisSequencer keeps the day counters as redis integers
type RedisSequencer struct {
	client redis.Cmdable
	clock  Clock
}

func NewRedisSequencer(client redis.Cmdable, clock Clock) *RedisSequencer {
	if clock == nil {
		clock = time.Now
	}
	return &RedisSequencer{client: client, clock: clock}
}

// Next returns the next invoice number of the current day
func (s *RedisSequencer) Next(ctx context.Context) (string, error) {
	key := DateKey(s.clock())
	redisKey := redisKeyPrefix + key

	// EXPIRE NX rides along every increment so a key that missed its TTL
	// picks one up on the next call
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, redisKeyTTL)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to increment invoice sequence %s: %w", key, err)
	}
	return Format(key, incr.Val()), nil
}
