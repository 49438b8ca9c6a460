package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Status is the lifecycle state of the cache backend connection.
// Transitions are driven by the backend's own connect/monitor loop;
// request handling only reads the current value.
type Status int32

const (
	StatusUninitialized Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusDisconnected
	StatusError
	// StatusDisabled is terminal: no backend endpoint was configured.
	// Distinguishes "intentionally absent" from "failed".
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Backend is the key-value surface the fingerprint store runs on.
// Every operation fast-fails when the connection is not up: Get reports
// a miss, Set reports failure, Ping reports unhealthy. Callers must
// never block or fail because the backend is unavailable.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) bool
	Ping(ctx context.Context) error
	Status() Status
	Close() error
}

// Config selects and tunes the backend.
type Config struct {
	Driver   string // "redis" or "memory"
	Addr     string
	Password string
	DB       int

	ConnectTimeout time.Duration // per connection attempt
	PingInterval   time.Duration // health probe cadence once connected
	MaxAttempts    int           // consecutive failures before terminal error
}

// New builds the backend for cfg. With the redis driver and no address
// configured the cache is disabled rather than failing: the service
// runs fine without it, every lookup is just a miss.
func New(cfg Config, logger *zap.Logger) Backend {
	switch cfg.Driver {
	case "redis":
		if cfg.Addr == "" {
			logger.Warn("no redis address configured, cache disabled")
			return NewDisabledBackend()
		}
		return NewRedisBackend(cfg, logger)
	default:
		return NewMemoryBackend(5 * time.Minute)
	}
}

// ReconnectDelay is the backoff before reconnect attempt n (1-based):
// linear in the attempt number, capped at 3s.
func ReconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * 200 * time.Millisecond
	if d > 3*time.Second {
		d = 3 * time.Second
	}
	return d
}

var errCacheDisabled = errors.New("cache backend disabled")

// DisabledBackend is the no-op backend used when no endpoint is
// configured. Every Get is a miss and every Set is dropped.
type DisabledBackend struct{}

func NewDisabledBackend() *DisabledBackend { return &DisabledBackend{} }

func (*DisabledBackend) Get(context.Context, string) (string, bool) { return "", false }

func (*DisabledBackend) Set(context.Context, string, string, time.Duration) bool { return false }

func (*DisabledBackend) Ping(context.Context) error { return errCacheDisabled }

func (*DisabledBackend) Status() Status { return StatusDisabled }

func (*DisabledBackend) Close() error { return nil }
