package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mtben82-coder/voicebubble-backend/pkg/logging"
)

const (
	// DefaultTranscriptionTTL is short: identical audio bytes mostly
	// repeat only on near-term retries.
	DefaultTranscriptionTTL = 24 * time.Hour
	// DefaultRewriteTTL is long: the same (text, preset) pair is
	// expected to recur across sessions.
	DefaultRewriteTTL = 7 * 24 * time.Hour
)

// Store maps fingerprints to previously computed outputs with a
// per-category TTL. It never fails the caller: a broken backend makes
// Lookup miss and Save drop the write.
type Store struct {
	backend Backend
	ttls    map[Category]time.Duration
}

func NewStore(backend Backend, transcriptionTTL, rewriteTTL time.Duration) *Store {
	if transcriptionTTL <= 0 {
		transcriptionTTL = DefaultTranscriptionTTL
	}
	if rewriteTTL <= 0 {
		rewriteTTL = DefaultRewriteTTL
	}
	return &Store{
		backend: backend,
		ttls: map[Category]time.Duration{
			CategoryTranscription: transcriptionTTL,
			CategoryRewrite:       rewriteTTL,
		},
	}
}

// Lookup returns the cached value for fingerprint, if present and not
// expired. Backend failures are reported as a plain miss.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (string, bool) {
	return s.backend.Get(ctx, fingerprint)
}

// Save stores value under fingerprint with the TTL for its category.
// Best-effort: a failed write is logged and never propagated.
func (s *Store) Save(ctx context.Context, fingerprint, value string) {
	ttl, ok := s.ttls[CategoryOf(fingerprint)]
	if !ok {
		ttl = DefaultRewriteTTL
	}
	if !s.backend.Set(ctx, fingerprint, value, ttl) {
		logging.L(ctx).Debug("cache save skipped",
			zap.String("fingerprint", fingerprint),
			zap.String("backend_status", s.backend.Status().String()),
		)
	}
}

// TTL reports the expiry used for a category, mostly for tests and stats.
func (s *Store) TTL(category Category) time.Duration {
	return s.ttls[category]
}

// Backend exposes the underlying backend for health reporting.
func (s *Store) Backend() Backend {
	return s.backend
}
