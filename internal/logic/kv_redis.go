package logic

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// delIfEquals releases a lease only while the caller still owns it
var delIfEquals = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisKV implements KVStore using Redis
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return b, err
}

func (s *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisKV) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisKV) DelIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := delIfEquals.Run(ctx, s.client, []string{key}, value).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisKV) HSet(ctx context.Context, key, field string, value []byte) error {
	return s.client.HSet(ctx, key, field, value).Err()
}

func (s *RedisKV) HSetNX(ctx context.Context, key, field string, value []byte) (bool, error) {
	return s.client.HSetNX(ctx, key, field, value).Result()
}

func (s *RedisKV) HDel(ctx context.Context, key, field string) error {
	return s.client.HDel(ctx, key, field).Err()
}

func (s *RedisKV) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(m))
	for f, v := range m {
		out[f] = []byte(v)
	}
	return out, nil
}

func (s *RedisKV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
