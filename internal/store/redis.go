package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

const redisPrefix = "kge:compat:"

// RedisStorage shares tables between machines through Redis.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration // 0 keeps entries forever
}

// NewRedisStorage creates a new Redis storage backend.
// Returns error if connection fails.
func NewRedisStorage(url string, ttl time.Duration) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.StoreError("connecting to redis", err)
	}

	return &RedisStorage{
		client: client,
		prefix: redisPrefix,
		ttl:    ttl,
	}, nil
}

func (rs *RedisStorage) Put(ctx context.Context, key string, data []byte) error {
	if err := rs.client.Set(ctx, rs.prefix+key, data, rs.ttl).Err(); err != nil {
		return errors.StoreError("saving "+key, err)
	}
	return nil
}

func (rs *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rs.client.Get(ctx, rs.prefix+key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NotFoundError("compat table " + key)
	}
	if err != nil {
		return nil, errors.StoreError("loading "+key, err)
	}
	return data, nil
}

func (rs *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return errors.StoreError("deleting "+key, err)
	}
	return nil
}

func (rs *RedisStorage) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	iter := rs.client.Scan(ctx, 0, rs.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(rs.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, errors.StoreError("listing keys", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the Redis connection.
func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}
