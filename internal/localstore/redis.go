package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps local state outside the process, for storefrontd instances
// that run stateless (Cloud Run). Keys are namespaced per visitor so one
// Redis can hold many storefront sessions.
type Redis struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// RedisConfig configures a Redis-backed store.
type RedisConfig struct {
	URL       string        // redis://[:password@]host:port/db
	Namespace string        // e.g. visitor or deployment id
	TTL       time.Duration // 0 = no expiry
}

// NewRedis parses the URL and returns a store. It does not dial; the first
// command does.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	return NewRedisWithClient(redis.NewClient(opts), cfg.Namespace, cfg.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, namespace string, ttl time.Duration) *Redis {
	return &Redis{client: client, namespace: namespace, ttl: ttl}
}

func (r *Redis) key(k string) string {
	return "storefront:" + r.namespace + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
