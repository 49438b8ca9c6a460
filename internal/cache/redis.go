package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var errNotConnected = errors.New("cache backend not connected")

// RedisBackend implements Backend on a Redis connection it owns for the
// whole process lifetime. NewRedisBackend returns immediately; the
// connection is established by a background loop so a slow or absent
// Redis never delays startup. While the connection is down every
// operation degrades to a miss.
type RedisBackend struct {
	client *redis.Client
	logger *zap.Logger
	cfg    Config

	status    atomic.Int32
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewRedisBackend(cfg Config, logger *zap.Logger) *RedisBackend {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 8 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 15
	}

	b := &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.ConnectTimeout,
		}),
		logger: logger.Named("cache"),
		cfg:    cfg,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	b.status.Store(int32(StatusUninitialized))

	go b.run()

	return b
}

func (b *RedisBackend) setStatus(s Status) {
	if Status(b.status.Swap(int32(s))) != s {
		b.logger.Info("cache backend state changed", zap.Stringer("status", s))
	}
}

// Status returns the current connection state.
func (b *RedisBackend) Status() Status {
	return Status(b.status.Load())
}

// run drives the connect / monitor / reconnect cycle until Close or
// until MaxAttempts consecutive failures put the backend in the
// terminal error state.
func (b *RedisBackend) run() {
	defer close(b.done)

	attempt := 0
	first := true

	for {
		select {
		case <-b.stop:
			b.setStatus(StatusDisconnected)
			return
		default:
		}

		if first {
			b.setStatus(StatusConnecting)
		} else {
			b.setStatus(StatusReconnecting)
		}

		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ConnectTimeout)
		err := b.client.Ping(ctx).Err()
		cancel()

		if err == nil {
			b.setStatus(StatusConnected)
			attempt = 0
			first = false
			if !b.monitor() {
				b.setStatus(StatusDisconnected)
				return
			}
			// monitor saw a failed probe; fall through to reconnect
			continue
		}

		attempt++
		b.logger.Warn("cache backend connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", b.cfg.MaxAttempts),
			zap.Error(err),
		)

		if attempt >= b.cfg.MaxAttempts {
			// Terminal: stop retrying, require a restart to recover.
			b.setStatus(StatusError)
			b.logger.Error("cache backend gave up reconnecting",
				zap.Int("attempts", attempt),
			)
			return
		}

		select {
		case <-b.stop:
			b.setStatus(StatusDisconnected)
			return
		case <-time.After(ReconnectDelay(attempt)):
		}
	}
}

// monitor pings the connection on a fixed cadence. It returns true when
// a probe failed (the caller should reconnect) and false on shutdown.
func (b *RedisBackend) monitor() bool {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return false
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ConnectTimeout)
			err := b.client.Ping(ctx).Err()
			cancel()
			if err != nil {
				b.logger.Warn("cache backend health probe failed", zap.Error(err))
				return true
			}
		}
	}
}

// Get retrieves a value. Any failure, including "not connected", is a miss.
func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool) {
	if b.Status() != StatusConnected {
		return "", false
	}

	val, err := b.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		b.logger.Warn("cache backend get failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, true
}

// Set stores a value with ttl, reporting success. Failures are logged only.
func (b *RedisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if b.Status() != StatusConnected {
		return false
	}
	if ttl <= 0 {
		return false
	}

	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		b.logger.Warn("cache backend set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Ping probes the connection directly, bypassing the monitor cadence.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if b.Status() != StatusConnected {
		return errNotConnected
	}
	return b.client.Ping(ctx).Err()
}

// Close stops the connection loop and closes the client. Safe to call
// multiple times and on every process-exit path.
func (b *RedisBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stop)
		select {
		case <-b.done:
		case <-time.After(2 * time.Second):
		}
		err = b.client.Close()
		if err != nil {
			b.logger.Warn("cache backend close failed", zap.Error(err))
		}
	})
	return err
}
