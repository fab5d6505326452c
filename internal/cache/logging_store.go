package cache

import (
	"context"
	"time"

	"codestream-gateway/internal/metrics"
	"codestream-gateway/pkg/logging/logging"

	"go.uber.org/zap"
)

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner Store
}

// NewLoggingStore returns a store that logs and records metrics.
func NewLoggingStore(inner Store) Store {
	return &LoggingStore{inner: inner}
}

func (c *LoggingStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	start := time.Now()
	entry, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}

	fields := append(keyFields(key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	)
	if ok {
		fields = append(fields, zap.Time("created_at", entry.CreatedAt))
	}

	metrics.CacheLookupsTotal.WithLabelValues(taskOf(key), result).Inc()

	logger := logging.FromContext(ctx)
	if err != nil {
		logger.Error("relay_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Info("relay_cache_get", fields...)
	}

	return entry, ok, err
}

func (c *LoggingStore) Put(ctx context.Context, key string, payload string) error {
	start := time.Now()
	err := c.inner.Put(ctx, key, payload)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := append(keyFields(key),
		zap.Int("payload_bytes", len(payload)),
		zap.Float64("latency_ms", latencyMs),
	)

	logger := logging.FromContext(ctx)
	if err != nil {
		metrics.CacheWritesTotal.WithLabelValues(taskOf(key), "error").Inc()
		logger.Error("relay_cache_put", append(fields, zap.Error(err))...)
	} else {
		metrics.CacheWritesTotal.WithLabelValues(taskOf(key), "ok").Inc()
		logger.Info("relay_cache_put", fields...)
	}

	return err
}

func (c *LoggingStore) Delete(ctx context.Context, key string) error {
	err := c.inner.Delete(ctx, key)
	if err != nil {
		logging.FromContext(ctx).Error("relay_cache_delete", append(keyFields(key), zap.Error(err))...)
	}
	return err
}

func (c *LoggingStore) Clear(ctx context.Context) (int, error) {
	n, err := c.inner.Clear(ctx)
	logger := logging.FromContext(ctx)
	if err != nil {
		logger.Error("relay_cache_clear", zap.Int("deleted", n), zap.Error(err))
	} else {
		logger.Info("relay_cache_clear", zap.Int("deleted", n))
	}
	return n, err
}

func (c *LoggingStore) Stats(ctx context.Context) (Stats, error) {
	return c.inner.Stats(ctx)
}

func keyFields(key string) []zap.Field {
	fields := []zap.Field{zap.String("cache_key", key)}
	if parts, ok := parseKey(key); ok {
		fields = append(fields,
			zap.String("task", parts.task),
			zap.String("language", parts.language),
			zap.String("problem", parts.problem),
			zap.String("version_id", parts.version),
			zap.String("hash", parts.hash),
		)
	}
	return fields
}

func taskOf(key string) string {
	if parts, ok := parseKey(key); ok {
		return parts.task
	}
	return "unknown"
}
