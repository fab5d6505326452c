package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis. Entries are stored as the same
// JSON document the file backend writes; Redis expiry is set to the TTL as a
// backstop, and age is still checked on read so that a shared Redis with a
// longer TTL configured elsewhere cannot serve stale entries.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	clock  Clock
}

type RedisConfig struct {
	Prefix string
	TTL    time.Duration
	Clock  Clock
}

// NewRedisStore creates a Redis-backed cache.
func NewRedisStore(client *redis.Client, config RedisConfig) *RedisStore {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		ttl:    ttl,
		clock:  config.Clock,
	}
}

// key builds the final Redis key with prefix.
func (c *RedisStore) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *RedisStore) pattern() string {
	return c.key("relay:*")
}

// Get retrieves an entry. On Redis error, it returns (Entry{}, false, err) so
// the caller can log and treat it as a miss.
func (c *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, false, fmt.Errorf("context error: %w", err)
	}

	redisKey := c.key(key)

	res, err := c.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Key does not exist: this is a clean miss.
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(res, &e); err != nil {
		_ = c.client.Del(ctx, redisKey).Err()
		return Entry{}, false, fmt.Errorf("redis decode failed: %w", err)
	}

	if e.Expired(c.clock.now(), c.ttl) {
		if err := c.client.Del(ctx, redisKey).Err(); err != nil {
			return Entry{}, false, fmt.Errorf("redis evict failed: %w", err)
		}
		return Entry{}, false, nil
	}

	return e, true, nil
}

// Put stores an entry with the store TTL.
func (c *RedisStore) Put(ctx context.Context, key string, payload string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	data, err := json.Marshal(Entry{Key: key, Payload: payload, CreatedAt: c.clock.now()})
	if err != nil {
		return fmt.Errorf("redis encode failed: %w", err)
	}

	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes a key from cache
func (c *RedisStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return c.client.Del(ctx, c.key(key)).Err()
}

// Clear deletes every relay entry under the prefix.
func (c *RedisStore) Clear(ctx context.Context) (int, error) {
	deleted := 0
	iter := c.client.Scan(ctx, 0, c.pattern(), 100).Iterator()
	batch := make([]string, 0, 100)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis clear failed: %w", err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan failed: %w", err)
	}
	return deleted, flush()
}

func (c *RedisStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: "redis", TTL: c.ttl.String()}

	iter := c.client.Scan(ctx, 0, c.pattern(), 100).Iterator()
	for iter.Next(ctx) {
		data, err := c.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		collectStats(&st, e, int64(len(data)))
	}
	if err := iter.Err(); err != nil {
		return st, fmt.Errorf("redis scan failed: %w", err)
	}
	return st, nil
}

// Ping checks if Redis connection is healthy.
func (c *RedisStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return c.client.Ping(ctx).Err()
}
