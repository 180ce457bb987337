package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "skatestock:dedup:"

// RedisStore is the shared authoritative backend. SETNX with TTL gives the
// atomic check-and-set required when multiple consumer instances race on
// the same fingerprint.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis from a URL ("redis://host:port/0") or a
// plain host:port and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	inserted, err := s.client.SetNX(ctx, redisKeyPrefix+fingerprint, nowFunc().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: setnx: %v", ErrStoreUnavailable, err)
	}
	return inserted, nil
}

func (s *RedisStore) Put(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisKeyPrefix+fingerprint, nowFunc().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
