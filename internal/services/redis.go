package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "llamachat:response:"

// RedisCache implements ResponseCache on a Redis server. Entries expire after ttl; a zero ttl keeps
// them until Redis evicts them.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at addr and checks it answers.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return RedisCache{}, errors.Wrapf(err, "failed to connect to redis at %s", addr)
	}

	return RedisCache{client: client, ttl: ttl}, nil
}

// Get returns the response stored under key.
func (r RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get failed")
	}
	return val, true, nil
}

// Put stores response under key.
func (r RedisCache) Put(ctx context.Context, key, response string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, response, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set failed")
	}
	return nil
}

// Close closes the connection pool.
func (r RedisCache) Close() error {
	return r.client.Close()
}
