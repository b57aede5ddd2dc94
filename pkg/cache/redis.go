package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/timetable-api/pkg/config"
)

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// RedisMarker records seen keys with SET NX so every replica shares them.
type RedisMarker struct {
	client *redis.Client
	prefix string
}

// NewRedisMarker builds a Marker backed by client.
func NewRedisMarker(client *redis.Client, prefix string) *RedisMarker {
	if prefix == "" {
		prefix = "timetable:seen:"
	}
	return &RedisMarker{client: client, prefix: prefix}
}

// MarkOnce implements Marker.
func (m *RedisMarker) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", key, err)
	}
	return ok, nil
}

// Unmark implements Marker.
func (m *RedisMarker) Unmark(ctx context.Context, key string) error {
	if err := m.client.Del(ctx, m.prefix+key).Err(); err != nil {
		return fmt.Errorf("unmark %s: %w", key, err)
	}
	return nil
}
