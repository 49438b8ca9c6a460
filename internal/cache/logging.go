package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mtben82-coder/voicebubble-backend/internal/metrics"
	"github.com/mtben82-coder/voicebubble-backend/pkg/logging"
)

// LoggingBackend wraps a Backend with structured logging + metrics.
type LoggingBackend struct {
	inner Backend
}

// NewLoggingBackend returns a backend that logs every operation and
// records hit/miss counters per category.
func NewLoggingBackend(inner Backend) Backend {
	return &LoggingBackend{inner: inner}
}

func (b *LoggingBackend) Get(ctx context.Context, key string) (string, bool) {
	start := time.Now()
	value, hit := b.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	category := string(CategoryOf(key))

	result := "miss"
	if hit {
		result = "hit"
		metrics.CacheHitsTotal.WithLabelValues(category).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(category).Inc()
	}

	logging.L(ctx).Info("cache_get",
		zap.String("fingerprint", key),
		zap.String("category", category),
		zap.String("cache_result", result),
		zap.String("backend_status", b.inner.Status().String()),
		zap.Float64("latency_ms", latencyMs),
	)

	return value, hit
}

func (b *LoggingBackend) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	start := time.Now()
	ok := b.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logging.L(ctx).Info("cache_set",
		zap.String("fingerprint", key),
		zap.String("category", string(CategoryOf(key))),
		zap.Bool("stored", ok),
		zap.Duration("ttl", ttl),
		zap.Float64("latency_ms", latencyMs),
	)

	return ok
}

func (b *LoggingBackend) Ping(ctx context.Context) error { return b.inner.Ping(ctx) }

func (b *LoggingBackend) Status() Status { return b.inner.Status() }

func (b *LoggingBackend) Close() error { return b.inner.Close() }
