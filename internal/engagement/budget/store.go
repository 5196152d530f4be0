// internal/engagement/budget/store.go
package budget

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the remote system of record for per-session emission counts.
// The counter is created implicitly on first increment and is never
// decremented by this client.
type Store interface {
	SessionCount(ctx context.Context, sessionID string) (int, error)
	Increment(ctx context.Context, sessionID string) (int, error)
}

const keyPrefix = "engagement:session:"

// RedisStore keeps the session counters in Redis with a TTL covering the
// lifetime of a browsing session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

// SessionCount returns the count already recorded for the session. An
// unknown session reads as zero, not as an error.
func (s *RedisStore) SessionCount(ctx context.Context, sessionID string) (int, error) {
	val, err := s.client.Get(ctx, keyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

// Increment advances the session counter and refreshes its TTL.
func (s *RedisStore) Increment(ctx context.Context, sessionID string) (int, error) {
	key := keyPrefix + sessionID
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// TTL refresh failure leaves a counter that lives longer than the
	// session, which only makes the budget stricter.
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	return int(n), nil
}
