package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryBackend is the in-process Backend used for development and
// tests. It always reports connected and expires entries by TTL only.
type MemoryBackend struct {
	mu              sync.RWMutex
	items           map[string]memoryEntry
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
	cleanupInterval time.Duration
}

// NewMemoryBackend starts a backend whose background sweep runs every
// cleanupInterval (default 5 minutes when <= 0).
func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	b := &MemoryBackend{
		items:           make(map[string]memoryEntry),
		stopCleanup:     make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}

	go b.cleanupExpired()

	return b
}

func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool) {
	b.mu.RLock()
	entry, ok := b.items[key]
	b.mu.RUnlock()

	if !ok {
		return "", false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		b.mu.Lock()
		if e, exists := b.items[key]; exists && now.After(e.expiresAt) {
			delete(b.items, key)
		}
		b.mu.Unlock()
		return "", false
	}

	return entry.value, true
}

func (b *MemoryBackend) Set(_ context.Context, key, value string, ttl time.Duration) bool {
	if ttl <= 0 {
		b.mu.Lock()
		delete(b.items, key)
		b.mu.Unlock()
		return false
	}

	b.mu.Lock()
	b.items[key] = memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	b.mu.Unlock()

	return true
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) Status() Status { return StatusConnected }

// cleanupExpired runs periodically to remove expired entries.
func (b *MemoryBackend) cleanupExpired() {
	ticker := time.NewTicker(b.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			b.mu.Lock()
			for k, v := range b.items {
				if now.After(v.expiresAt) {
					delete(b.items, k)
				}
			}
			b.mu.Unlock()
		case <-b.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine. Call this on shutdown or in tests.
func (b *MemoryBackend) Close() error {
	b.cleanupOnce.Do(func() {
		close(b.stopCleanup)
	})
	return nil
}

// Len returns the number of items currently in the cache.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Clear removes all items. Useful for tests or manual resets.
func (b *MemoryBackend) Clear() {
	b.mu.Lock()
	b.items = make(map[string]memoryEntry)
	b.mu.Unlock()
}
