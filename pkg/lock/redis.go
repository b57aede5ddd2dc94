package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisConfig tunes the distributed lock.
type RedisConfig struct {
	Prefix     string
	TTL        time.Duration
	RetryDelay time.Duration
}

// Redis is a distributed keyed lock based on SET NX PX with token-checked
// release. The TTL bounds how long a crashed holder can block others.
type Redis struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedis constructs a Redis-backed locker.
func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 25 * time.Millisecond
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "lock:"
	}
	return &Redis{client: client, prefix: cfg.Prefix, ttl: cfg.TTL, retryDelay: cfg.RetryDelay}
}

// Acquire takes every key or none of them, retrying until ctx is done.
func (r *Redis) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalize(keys)
	token := uuid.NewString()
	releases := make([]func(), 0, len(keys))
	for _, key := range keys {
		full := r.prefix + key
		if err := r.acquireOne(ctx, full, token); err != nil {
			chain(releases)()
			return nil, err
		}
		releases = append(releases, func() {
			// release must outlive a cancelled request context
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, r.client, []string{full}, token).Err()
		})
	}
	return chain(releases), nil
}

func (r *Redis) acquireOne(ctx context.Context, key, token string) error {
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
			}
			return fmt.Errorf("redis setnx %s: %w", key, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-timer.C:
		}
	}
}
