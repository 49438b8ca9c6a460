// Package pipeline drives each request through fingerprint lookup,
// upstream calls, chunk relaying, and cache write-back. The cache is a
// pure optimization: every failure there degrades to a miss and the
// request falls through to upstream.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mtben82-coder/voicebubble-backend/internal/cache"
	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
	"github.com/mtben82-coder/voicebubble-backend/internal/metrics"
	"github.com/mtben82-coder/voicebubble-backend/internal/preset"
	"github.com/mtben82-coder/voicebubble-backend/pkg/logging"
)

// ErrUnknownPreset reports a preset identifier outside the catalog.
var ErrUnknownPreset = errors.New("unknown preset")

type Orchestrator struct {
	store   *cache.Store
	client  llm.Client
	presets *preset.Catalog
}

func New(store *cache.Store, client llm.Client, presets *preset.Catalog) *Orchestrator {
	return &Orchestrator{
		store:   store,
		client:  client,
		presets: presets,
	}
}

// Presets exposes the catalog for handler validation.
func (o *Orchestrator) Presets() *preset.Catalog {
	return o.presets
}

// Transcribe resolves one audio upload: fingerprint first, cache
// lookup, then upstream on a miss. The result is cached best-effort
// before returning.
func (o *Orchestrator) Transcribe(ctx context.Context, audio []byte, filename string) (Result, error) {
	start := time.Now()

	fingerprint := cache.TranscriptionFingerprint(audio)

	if text, ok := o.store.Lookup(ctx, fingerprint); ok {
		return Result{Text: text, Cached: true, Elapsed: time.Since(start)}, nil
	}

	text, err := o.client.Transcribe(ctx, audio, filename)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("transcribe", "error").Inc()
		return Result{Elapsed: time.Since(start)}, err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("transcribe", "ok").Inc()

	o.store.Save(ctx, fingerprint, text)

	return Result{Text: text, Cached: false, Elapsed: time.Since(start)}, nil
}

// Rewrite is the batch (non-streaming) rewrite. Identity for caching is
// the (text, preset, language) triple.
func (o *Orchestrator) Rewrite(ctx context.Context, text, presetID, language string) (Result, error) {
	start := time.Now()

	p, ok := o.presets.Get(presetID)
	if !ok {
		return Result{Elapsed: time.Since(start)}, ErrUnknownPreset
	}

	fingerprint := cache.RewriteFingerprint(text, presetID, language)

	if value, ok := o.store.Lookup(ctx, fingerprint); ok {
		return Result{Text: value, Cached: true, Elapsed: time.Since(start)}, nil
	}

	messages := preset.BuildMessages(p, text, language)

	out, err := o.client.Complete(ctx, messages, p.Params())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("rewrite", "error").Inc()
		return Result{Elapsed: time.Since(start)}, err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("rewrite", "ok").Inc()

	o.store.Save(ctx, fingerprint, out)

	return Result{Text: out, Cached: false, Elapsed: time.Since(start)}, nil
}

// RewriteStream is the streaming rewrite. On a cache hit the stored
// value is replayed through the sink with the same event shapes a live
// stream produces. On a miss every upstream chunk is relayed in arrival
// order; the accumulated text is written back to the cache before the
// terminal done event. Any upstream failure mid-stream discards the
// partial text and nothing is cached.
//
// If the sink stops accepting events (client disconnect), relaying is
// abandoned but the upstream stream is drained to completion and its
// result still committed to cache — the work is not wasted.
func (o *Orchestrator) RewriteStream(ctx context.Context, text, presetID, language string, sink Sink) {
	start := time.Now()
	logger := logging.L(ctx)

	p, ok := o.presets.Get(presetID)
	if !ok {
		_ = sink.Error("unknown_preset", "Unknown preset: "+presetID, time.Since(start))
		return
	}

	fingerprint := cache.RewriteFingerprint(text, presetID, language)

	if value, ok := o.store.Lookup(ctx, fingerprint); ok {
		_ = sink.Chunk(value, true)
		_ = sink.Done(value, true, time.Since(start))
		return
	}

	messages := preset.BuildMessages(p, text, language)

	// Detached from client cancellation: a disconnect stops relaying
	// but not the upstream call or the cache write-back.
	upstreamCtx := context.WithoutCancel(ctx)

	results, err := o.client.CompleteStream(upstreamCtx, messages, p.Params())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("rewrite_stream", "error").Inc()
		_ = sink.Error("rewrite_failed", err.Error(), time.Since(start))
		return
	}

	var full strings.Builder
	relaying := true

	for res := range results {
		if res.Err != nil {
			// Partial text is discarded: the caller gets an error,
			// never a truncated result, and nothing reaches the cache.
			metrics.UpstreamRequestsTotal.WithLabelValues("rewrite_stream", "error").Inc()
			logger.Warn("rewrite stream failed",
				zap.String("preset", presetID),
				zap.Int("partial_chars", full.Len()),
				zap.Error(res.Err),
			)
			if relaying {
				_ = sink.Error("rewrite_failed", res.Err.Error(), time.Since(start))
			}
			return
		}
		if res.Chunk == nil || res.Chunk.Delta == "" {
			continue
		}

		full.WriteString(res.Chunk.Delta)
		metrics.StreamChunksTotal.Inc()

		if relaying {
			if err := sink.Chunk(res.Chunk.Delta, false); err != nil {
				relaying = false
				logger.Info("client went away mid-stream, draining upstream",
					zap.String("preset", presetID),
				)
			}
		}
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("rewrite_stream", "ok").Inc()

	out := full.String()
	o.store.Save(upstreamCtx, fingerprint, out)

	if relaying {
		_ = sink.Done(out, false, time.Since(start))
	}
}
