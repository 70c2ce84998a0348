package identity

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStorage stores keys in Redis under a common prefix. It lets several
// terminals on one machine, or one user on several machines, share a visitor
// identity.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

var _ Storage = &RedisStorage{}

func NewRedisStorage(addr, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "chatwidget:"
	}
	return &RedisStorage{client: redis.NewClient(&redis.Options{Addr: addr}), prefix: prefix}
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "redis get")
	}
	return v, nil
}

func (s *RedisStorage) Set(ctx context.Context, key, value string) error {
	return errors.Wrap(s.client.Set(ctx, s.prefix+key, value, 0).Err(), "redis set")
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	return errors.Wrap(s.client.Del(ctx, s.prefix+key).Err(), "redis del")
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
