package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBackend_TTL(t *testing.T) {
	b := NewMemoryBackend(10 * time.Millisecond)
	defer b.Close()

	ctx := context.Background()
	key := "test:key"

	if ok := b.Set(ctx, key, "hello", 20*time.Millisecond); !ok {
		t.Fatalf("Set failed")
	}

	got, hit := b.Get(ctx, key)
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if got != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}

	// Wait for TTL to expire
	time.Sleep(30 * time.Millisecond)

	if _, hit = b.Get(ctx, key); hit {
		t.Fatalf("expected miss after TTL expiry")
	}
}

func TestMemoryBackend_ZeroTTLRejected(t *testing.T) {
	b := NewMemoryBackend(time.Minute)
	defer b.Close()

	ctx := context.Background()
	if ok := b.Set(ctx, "k", "v", 0); ok {
		t.Fatalf("zero TTL must not store")
	}
	if _, hit := b.Get(ctx, "k"); hit {
		t.Fatalf("entry stored despite zero TTL")
	}
}

func TestMemoryBackend_Status(t *testing.T) {
	b := NewMemoryBackend(time.Minute)
	defer b.Close()

	if b.Status() != StatusConnected {
		t.Fatalf("memory backend should always report connected, got %s", b.Status())
	}
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestReconnectDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 200 * time.Millisecond},
		{5, time.Second},
		{15, 3 * time.Second},
		{100, 3 * time.Second},
		{0, 200 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := ReconnectDelay(tc.attempt); got != tc.want {
			t.Fatalf("ReconnectDelay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}
