package offsetstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON encoded offset per querier under a common key prefix
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("redis offset store requires a url")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisStoreWithClient(client, constants.DefaultRedisKeyPrefix), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Load(ctx context.Context, key string) (types.Offset, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Offset{}, nil
	}
	if err != nil {
		return types.Offset{}, fmt.Errorf("failed to get offset: %w", err)
	}
	return decodeOffset(val)
}

func (s *RedisStore) Save(ctx context.Context, key string, offset types.Offset) error {
	val, err := encodeOffset(offset)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, val, 0).Err(); err != nil {
		return fmt.Errorf("failed to set offset: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) (map[string]types.Offset, error) {
	result := make(map[string]types.Offset)
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		val, err := s.client.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get offset %s: %w", redisKey, err)
		}
		offset, err := decodeOffset(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", redisKey, err)
		}
		result[strings.TrimPrefix(redisKey, s.prefix)] = offset
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list offsets: %w", err)
	}
	return result, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
