package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mtben82-coder/voicebubble-backend/internal/cache"
	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
	"github.com/mtben82-coder/voicebubble-backend/internal/preset"
)

type mockLLMClient struct {
	transcript      string
	completion      string
	stream          []llm.StreamResult
	err             error
	transcribeCalls int
	completeCalls   int
	streamCalls     int
	lastMessages    []llm.Message
}

func (m *mockLLMClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	m.transcribeCalls++
	if m.err != nil {
		return "", m.err
	}
	return m.transcript, nil
}

func (m *mockLLMClient) Complete(ctx context.Context, messages []llm.Message, p llm.Params) (string, error) {
	m.completeCalls++
	m.lastMessages = messages
	if m.err != nil {
		return "", m.err
	}
	return m.completion, nil
}

func (m *mockLLMClient) CompleteStream(ctx context.Context, messages []llm.Message, p llm.Params) (<-chan llm.StreamResult, error) {
	m.streamCalls++
	m.lastMessages = messages
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan llm.StreamResult, len(m.stream))
	for _, res := range m.stream {
		ch <- res
	}
	close(ch)
	return ch, nil
}

func (m *mockLLMClient) HealthCheck(ctx context.Context) bool { return true }

// collectorSink records every event it receives, optionally failing
// Chunk after a set number of calls to simulate a gone client.
type collectorSink struct {
	chunks     []string
	chunkFlags []bool
	doneText   string
	doneCached bool
	doneCalls  int
	errCode    string
	errCalls   int
	failAfter  int // fail Chunk once this many have been accepted (0 = never)
}

func (s *collectorSink) Chunk(text string, cached bool) error {
	if s.failAfter > 0 && len(s.chunks) >= s.failAfter {
		return errors.New("client gone")
	}
	s.chunks = append(s.chunks, text)
	s.chunkFlags = append(s.chunkFlags, cached)
	return nil
}

func (s *collectorSink) Done(text string, cached bool, _ time.Duration) error {
	s.doneCalls++
	s.doneText = text
	s.doneCached = cached
	return nil
}

func (s *collectorSink) Error(code, _ string, _ time.Duration) error {
	s.errCalls++
	s.errCode = code
	return nil
}

func newTestOrchestrator(t *testing.T, client llm.Client) *Orchestrator {
	t.Helper()

	backend := cache.NewMemoryBackend(time.Minute)
	t.Cleanup(func() { backend.Close() })

	catalog, err := preset.Load("")
	if err != nil {
		t.Fatalf("load presets: %v", err)
	}

	return New(cache.NewStore(backend, time.Minute, time.Minute), client, catalog)
}

func streamOf(deltas ...string) []llm.StreamResult {
	out := make([]llm.StreamResult, 0, len(deltas))
	for _, d := range deltas {
		out = append(out, llm.StreamResult{Chunk: &llm.StreamChunk{Delta: d}})
	}
	return out
}

func TestTranscribeCachesResult(t *testing.T) {
	client := &mockLLMClient{transcript: "hello world"}
	o := newTestOrchestrator(t, client)
	ctx := context.Background()

	res, err := o.Transcribe(ctx, []byte("audio-bytes"), "clip.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello world" || res.Cached {
		t.Fatalf("unexpected first result: %#v", res)
	}

	res, err = o.Transcribe(ctx, []byte("audio-bytes"), "clip.wav")
	if err != nil {
		t.Fatalf("Transcribe (second): %v", err)
	}
	if res.Text != "hello world" || !res.Cached {
		t.Fatalf("expected cached result: %#v", res)
	}

	if client.transcribeCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", client.transcribeCalls)
	}
}

func TestTranscribeFailureNotCached(t *testing.T) {
	client := &mockLLMClient{err: errors.New("upstream down")}
	o := newTestOrchestrator(t, client)
	ctx := context.Background()

	if _, err := o.Transcribe(ctx, []byte("audio"), "a.wav"); err == nil {
		t.Fatalf("expected error")
	}

	client.err = nil
	client.transcript = "recovered"

	res, err := o.Transcribe(ctx, []byte("audio"), "a.wav")
	if err != nil {
		t.Fatalf("Transcribe after recovery: %v", err)
	}
	if res.Cached {
		t.Fatalf("failure must not leave a cache entry")
	}
	if res.Text != "recovered" {
		t.Fatalf("unexpected transcript: %q", res.Text)
	}
}

func TestRewriteBatchHitReplay(t *testing.T) {
	client := &mockLLMClient{completion: "Running late."}
	o := newTestOrchestrator(t, client)
	ctx := context.Background()

	res, err := o.Rewrite(ctx, "hey im late", "shorten", "en")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if res.Text != "Running late." || res.Cached {
		t.Fatalf("unexpected first result: %#v", res)
	}

	res, err = o.Rewrite(ctx, "hey im late", "shorten", "en")
	if err != nil {
		t.Fatalf("Rewrite (second): %v", err)
	}
	if res.Text != "Running late." || !res.Cached {
		t.Fatalf("expected cached replay: %#v", res)
	}

	if client.completeCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", client.completeCalls)
	}
}

func TestRewriteUnknownPreset(t *testing.T) {
	client := &mockLLMClient{}
	o := newTestOrchestrator(t, client)

	_, err := o.Rewrite(context.Background(), "text", "no_such_preset", "en")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
	if client.completeCalls != 0 {
		t.Fatalf("unknown preset must not reach upstream")
	}
}

func TestRewriteStreamMissRelayAndStore(t *testing.T) {
	client := &mockLLMClient{stream: streamOf("Run", "ning ", "late.")}
	o := newTestOrchestrator(t, client)
	ctx := context.Background()

	sink := &collectorSink{}
	o.RewriteStream(ctx, "hey im late", "shorten", "en", sink)

	if len(sink.chunks) != 3 {
		t.Fatalf("expected 3 relayed chunks, got %v", sink.chunks)
	}
	for i, cached := range sink.chunkFlags {
		if cached {
			t.Fatalf("live chunk %d flagged cached", i)
		}
	}
	if sink.doneCalls != 1 || sink.doneText != "Running late." || sink.doneCached {
		t.Fatalf("unexpected terminal event: %#v", sink)
	}

	// Second request replays the committed result as one chunk.
	replay := &collectorSink{}
	o.RewriteStream(ctx, "hey im late", "shorten", "en", replay)

	if client.streamCalls != 1 {
		t.Fatalf("cache hit must not open a second stream, got %d calls", client.streamCalls)
	}
	if len(replay.chunks) != 1 || replay.chunks[0] != "Running late." || !replay.chunkFlags[0] {
		t.Fatalf("unexpected replay chunks: %#v", replay)
	}
	if replay.doneCalls != 1 || !replay.doneCached || replay.doneText != "Running late." {
		t.Fatalf("unexpected replay terminal event: %#v", replay)
	}
}

func TestRewriteStreamFailureDiscardsPartial(t *testing.T) {
	client := &mockLLMClient{stream: append(
		streamOf("partial "),
		llm.StreamResult{Err: errors.New("connection reset")},
	)}
	o := newTestOrchestrator(t, client)
	ctx := context.Background()

	sink := &collectorSink{}
	o.RewriteStream(ctx, "some text", "magic", "en", sink)

	if sink.errCalls != 1 || sink.errCode != "rewrite_failed" {
		t.Fatalf("expected terminal error event: %#v", sink)
	}
	if sink.doneCalls != 0 {
		t.Fatalf("failed stream must not emit done")
	}

	// Nothing was cached: the next request goes upstream again.
	client.stream = streamOf("full text")
	retry := &collectorSink{}
	o.RewriteStream(ctx, "some text", "magic", "en", retry)

	if client.streamCalls != 2 {
		t.Fatalf("expected a fresh upstream call after failure, got %d", client.streamCalls)
	}
	if retry.doneText != "full text" || retry.doneCached {
		t.Fatalf("unexpected retry result: %#v", retry)
	}
}

func TestRewriteStreamClientGoneStillCommits(t *testing.T) {
	client := &mockLLMClient{stream: streamOf("one ", "two ", "three")}
	o := newTestOrchestrator(t, client)
	ctx := context.Background()

	sink := &collectorSink{failAfter: 1}
	o.RewriteStream(ctx, "draft", "magic", "en", sink)

	if sink.doneCalls != 0 {
		t.Fatalf("gone client must not receive done")
	}

	// The full text was still committed; a hit follows.
	replay := &collectorSink{}
	o.RewriteStream(ctx, "draft", "magic", "en", replay)

	if client.streamCalls != 1 {
		t.Fatalf("expected drained result to be cached, got %d stream calls", client.streamCalls)
	}
	if replay.doneText != "one two three" || !replay.doneCached {
		t.Fatalf("unexpected replayed result: %#v", replay)
	}
}

func TestRewriteStreamUnknownPreset(t *testing.T) {
	client := &mockLLMClient{}
	o := newTestOrchestrator(t, client)

	sink := &collectorSink{}
	o.RewriteStream(context.Background(), "text", "bogus", "en", sink)

	if sink.errCalls != 1 || sink.errCode != "unknown_preset" {
		t.Fatalf("expected unknown_preset error event: %#v", sink)
	}
	if client.streamCalls != 0 {
		t.Fatalf("unknown preset must not reach upstream")
	}
}

func TestRewriteStreamDisabledCacheDegrades(t *testing.T) {
	client := &mockLLMClient{stream: streamOf("out")}

	catalog, err := preset.Load("")
	if err != nil {
		t.Fatalf("load presets: %v", err)
	}
	o := New(cache.NewStore(cache.NewDisabledBackend(), time.Minute, time.Minute), client, catalog)

	sink := &collectorSink{}
	o.RewriteStream(context.Background(), "text", "magic", "en", sink)
	if sink.doneText != "out" || sink.doneCached {
		t.Fatalf("unexpected result with disabled cache: %#v", sink)
	}

	// No cache means every request streams upstream.
	again := &collectorSink{}
	client.stream = streamOf("out")
	o.RewriteStream(context.Background(), "text", "magic", "en", again)
	if client.streamCalls != 2 {
		t.Fatalf("disabled cache must never replay, got %d stream calls", client.streamCalls)
	}
}
