package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a completed relay result stays valid.
const DefaultTTL = 24 * time.Hour

type Config struct {
	Backend string // memory | file | redis
	TTL     time.Duration
	Dir     string
	Prefix  string
	Clock   Clock
}

// New builds the configured backend. redisClient is only used (and required)
// for the redis backend.
func New(cfg Config, redisClient *redis.Client) (Store, error) {
	switch cfg.Backend {
	case "redis":
		if redisClient == nil {
			return nil, errors.New("cache: redis backend needs a client")
		}
		return NewRedisStore(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
			TTL:    cfg.TTL,
			Clock:  cfg.Clock,
		}), nil
	case "file":
		return NewFileStore(cfg.Dir, cfg.TTL, cfg.Clock)
	case "", "memory":
		return NewMemoryStore(cfg.TTL, cfg.Clock), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
