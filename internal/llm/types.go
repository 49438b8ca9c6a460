package llm

import (
	"context"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the sampling knobs a preset controls.
type Params struct {
	Temperature float32
	MaxTokens   int
}

// StreamChunk is one incremental content fragment from a streaming
// completion, delivered in arrival order.
type StreamChunk struct {
	Delta        string
	FinishReason string
}

// StreamResult is what flows over the stream channel: a chunk or a
// terminal error. After an error no further results arrive.
type StreamResult struct {
	Chunk *StreamChunk
	Err   error
}

// Client talks to the upstream transcription and completion services.
type Client interface {
	// Transcribe sends one audio file and returns the transcript.
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	// Complete returns the full completion text in one shot.
	Complete(ctx context.Context, messages []Message, p Params) (string, error)
	// CompleteStream opens a streaming completion. Fragments arrive on
	// the returned channel in order; the channel closes after the
	// upstream sentinel or transport end. A transport failure before
	// that surfaces as a StreamResult with Err set, and any text
	// already delivered must be discarded by the consumer.
	CompleteStream(ctx context.Context, messages []Message, p Params) (<-chan StreamResult, error)
	// HealthCheck reports upstream reachability. Never returns an error.
	HealthCheck(ctx context.Context) bool
}

// UpstreamError is a non-2xx or malformed response from the provider.
type UpstreamError struct {
	Status  int
	Type    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("upstream %d: %s (%s)", e.Status, e.Message, e.Type)
	}
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}
