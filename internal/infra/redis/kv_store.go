package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVStore is a securestore backend on Redis strings. Keys are namespaced
// under prefix so Keys only sees entries this store wrote.
// The Redis TTL is a safety net; record expiry is enforced by securestore.
type KVStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewKVStore(client *redis.Client, prefix string, ttl time.Duration) *KVStore {
	if prefix == "" {
		prefix = "securestore:"
	}
	return &KVStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
