package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in redis under Options.Prefix. Expiry and the
// background purge are left to redis; MaxEntries is not enforced.
type RedisStore struct {
	client *redis.Client
	opts   Options
	owned  bool
}

// NewRedisStore wraps an existing client. Close leaves the client open.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: applyOptions(opts...)}
}

// DialRedis connects to addr and checks the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis %s: %w", addr, err)
	}
	s := NewRedisStore(client, opts...)
	s.owned = true
	return s, nil
}

// Client returns the underlying client.
func (s *RedisStore) Client() *redis.Client { return s.client }

func (s *RedisStore) key(k string) string { return s.opts.Prefix + k }

func (s *RedisStore) Read(ctx context.Context, key string) ([]byte, bool) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (s *RedisStore) Write(ctx context.Context, key string, value []byte) error {
	return s.WriteWithTTL(ctx, key, value, 0)
}

func (s *RedisStore) WriteWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, s.opts.ttl(ttl)).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// DeleteByPrefix scans for matching keys rather than using KEYS.
func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	iter := s.client.Scan(ctx, 0, s.key(prefix)+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	return int(n), err
}

// Clear removes every key under the prefix. Without a prefix the whole
// database is flushed.
func (s *RedisStore) Clear(ctx context.Context) error {
	if s.opts.Prefix == "" {
		return s.client.FlushDB(ctx).Err()
	}
	_, err := s.DeleteByPrefix(ctx, "")
	return err
}

func (s *RedisStore) Exist(ctx context.Context, key string) bool {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	return err == nil && n > 0
}

func (s *RedisStore) Stats(ctx context.Context) Stats {
	stats := Stats{TTL: s.opts.TTL, Backend: "redis"}

	iter := s.client.Scan(ctx, 0, s.key("")+"*", 100).Iterator()
	for iter.Next(ctx) {
		stats.Entries++
	}
	return stats
}

// Close closes the client when the store dialed it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
