package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
	"github.com/mtben82-coder/voicebubble-backend/internal/pipeline"
	"github.com/mtben82-coder/voicebubble-backend/pkg/logging"

	"go.uber.org/zap"
)

type rewriteRequest struct {
	Text     string `json:"text"`
	PresetID string `json:"presetId"`
	Language string `json:"language,omitempty"`
}

// RewriteHandler serves the streaming and batch rewrite endpoints.
type RewriteHandler struct {
	Pipeline *pipeline.Orchestrator
}

func NewRewriteHandler(p *pipeline.Orchestrator) *RewriteHandler {
	return &RewriteHandler{Pipeline: p}
}

func (h *RewriteHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request) (rewriteRequest, bool) {
	var req rewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid request", "Request body must be valid JSON")
		return req, false
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TEXT",
			"Invalid request", "Text is required and must be a string")
		return req, false
	}
	if req.PresetID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PRESET",
			"Invalid request", "Preset ID is required and must be a string")
		return req, false
	}
	if _, ok := h.Pipeline.Presets().Get(req.PresetID); !ok {
		writeError(w, http.StatusBadRequest, "INVALID_PRESET",
			"Invalid request", "Unknown preset: "+req.PresetID)
		return req, false
	}
	return req, true
}

// Stream handles POST /api/rewrite: an SSE stream of `{"chunk":...}`
// events terminated by a `{"type":"done",...}` or `{"type":"error",...}`
// event. Validation failures are plain 400 JSON, sent before any SSE
// headers go out.
func (h *RewriteHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	req, ok := h.decodeAndValidate(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED",
			"Streaming unsupported", "The server connection does not support streaming")
		return
	}

	logger.Info("rewrite stream request",
		zap.String("preset", req.PresetID),
		zap.Int("text_chars", len(req.Text)),
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{ctx: ctx, w: w, flusher: flusher}
	h.Pipeline.RewriteStream(ctx, req.Text, req.PresetID, req.Language, sink)
}

// Batch handles POST /api/rewrite/batch: same terminal payload as the
// stream's done event, returned synchronously.
func (h *RewriteHandler) Batch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := h.decodeAndValidate(w, r)
	if !ok {
		return
	}

	logging.L(ctx).Info("batch rewrite request",
		zap.String("preset", req.PresetID),
		zap.String("language", req.Language),
		zap.Int("text_chars", len(req.Text)),
	)

	result, err := h.Pipeline.Rewrite(ctx, req.Text, req.PresetID, req.Language)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrUnknownPreset) {
			status = http.StatusBadRequest
		}
		var upErr *llm.UpstreamError
		if errors.As(err, &upErr) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{
			Error:      "Rewrite failed",
			Message:    err.Error(),
			DurationMs: time.Since(start).Milliseconds(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"text":        result.Text,
		"cached":      result.Cached,
		"duration_ms": result.Elapsed.Milliseconds(),
	})
}

// --- SSE sink ---

type chunkEvent struct {
	Chunk  string `json:"chunk"`
	Cached bool   `json:"cached,omitempty"`
}

type doneEvent struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Cached     bool   `json:"cached"`
	DurationMs int64  `json:"duration_ms"`
}

type errorEvent struct {
	Type       string `json:"type"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	DurationMs int64  `json:"duration_ms"`
}

// sseSink writes pipeline events as SSE frames, flushing after each
// one. A cancelled request context makes every send fail so the
// pipeline notices the disconnect.
type sseSink struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) send(v interface{}) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Chunk(text string, cached bool) error {
	return s.send(chunkEvent{Chunk: text, Cached: cached})
}

func (s *sseSink) Done(text string, cached bool, elapsed time.Duration) error {
	return s.send(doneEvent{
		Type:       "done",
		Text:       text,
		Cached:     cached,
		DurationMs: elapsed.Milliseconds(),
	})
}

func (s *sseSink) Error(code, message string, elapsed time.Duration) error {
	return s.send(errorEvent{
		Type:       "error",
		Error:      code,
		Message:    message,
		DurationMs: elapsed.Milliseconds(),
	})
}
