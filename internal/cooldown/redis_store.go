package cooldown

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "signal:cooldown:"

// RedisStore keeps cooldown windows in Redis so restarts and multiple
// instances share suppression state. When Redis becomes unavailable the
// store degrades to an in-process fallback and periodically retries.
type RedisStore struct {
	client    *redis.Client
	fallback  *MemoryStore
	available atomic.Bool
	log       zerolog.Logger
}

// NewRedisStore connects to Redis and verifies it with a ping. A failed
// ping does not fail construction; the store starts in fallback mode.
func NewRedisStore(addr, password string, db int, logger zerolog.Logger) *RedisStore {
	s := &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		fallback: NewMemoryStore(),
		log:      logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.log.Warn().Err(err).Str("addr", addr).
			Msg("redis unavailable, cooldowns held in memory")
	} else {
		s.available.Store(true)
	}

	return s
}

// Active checks the cooldown key in Redis, falling back to memory when
// Redis errors
func (s *RedisStore) Active(ctx context.Context, key string) (bool, error) {
	if !s.available.Load() {
		s.retryConnection(ctx)
	}
	if s.available.Load() {
		n, err := s.client.Exists(ctx, keyPrefix+key).Result()
		if err == nil {
			return n > 0, nil
		}
		s.markUnavailable(err)
	}
	return s.fallback.Active(ctx, key)
}

// Mark sets the cooldown key with TTL in Redis and mirrors it to the
// fallback so a mid-window outage keeps suppressing
func (s *RedisStore) Mark(ctx context.Context, key string, ttl time.Duration) error {
	_ = s.fallback.Mark(ctx, key, ttl)

	if !s.available.Load() {
		return nil
	}
	if err := s.client.Set(ctx, keyPrefix+key, time.Now().Format(time.RFC3339), ttl).Err(); err != nil {
		s.markUnavailable(err)
	}
	return nil
}

// Close releases the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) markUnavailable(err error) {
	if s.available.CompareAndSwap(true, false) {
		s.log.Warn().Err(err).Msg("redis error, switching cooldowns to memory fallback")
	}
}

func (s *RedisStore) retryConnection(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.client.Ping(pingCtx).Err(); err == nil {
		if s.available.CompareAndSwap(false, true) {
			s.log.Info().Msg("redis connection restored")
		}
	}
}

var _ Store = (*RedisStore)(nil)
