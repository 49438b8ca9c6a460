package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
	"github.com/mtben82-coder/voicebubble-backend/internal/preset"
	"github.com/mtben82-coder/voicebubble-backend/pkg/logging"
)

const maxTransformChars = 10000

type transformRequest struct {
	Text           string `json:"text"`
	Action         string `json:"action"`
	Context        string `json:"context,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// TransformHandler serves the ad-hoc text transformation endpoints:
// prompt-templated wrappers around the completion API, no caching.
type TransformHandler struct {
	Client llm.Client
}

func NewTransformHandler(client llm.Client) *TransformHandler {
	return &TransformHandler{Client: client}
}

// Transform handles POST /api/transform/transform-text.
func (h *TransformHandler) Transform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req transformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid request", "Request body must be valid JSON")
		return
	}

	if req.Text == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMETERS",
			"Invalid request", "Text and action are required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "EMPTY_TEXT",
			"Invalid request", "Text cannot be empty")
		return
	}
	if len(req.Text) > maxTransformChars {
		writeError(w, http.StatusBadRequest, "TEXT_TOO_LONG",
			"Invalid request", "Text is too long (max 10,000 characters)")
		return
	}

	action := preset.Action(req.Action)
	messages, err := preset.TransformMessages(action, req.Text, req.Context, req.TargetLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ACTION",
			"Invalid request", "Unknown action: "+req.Action)
		return
	}

	logging.L(ctx).Info("transform request",
		zap.String("action", req.Action),
		zap.Int("text_chars", len(req.Text)),
	)

	out, err := h.Client.Complete(ctx, messages, preset.TransformParams(action, len(req.Text)))
	if err != nil {
		h.writeUpstreamError(w, err, start)
		return
	}
	if out == "" {
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:      "Transformation failed",
			Message:    "Upstream returned an empty response",
			DurationMs: time.Since(start).Milliseconds(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transformedText": out,
		"originalText":    req.Text,
		"action":          req.Action,
		"processingTime":  time.Since(start).Milliseconds(),
		"success":         true,
	})
}

type translateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
}

// Translate handles POST /api/transform/translate-text.
func (h *TransformHandler) Translate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid request", "Request body must be valid JSON")
		return
	}
	if req.Text == "" || req.TargetLanguage == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMETERS",
			"Invalid request", "Text and targetLanguage are required")
		return
	}
	if len(req.Text) > maxTransformChars {
		writeError(w, http.StatusBadRequest, "TEXT_TOO_LONG",
			"Invalid request", "Text is too long (max 10,000 characters)")
		return
	}

	messages, err := preset.TransformMessages(preset.ActionTranslate, req.Text, "", req.TargetLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ACTION",
			"Invalid request", err.Error())
		return
	}

	logging.L(ctx).Info("translate request",
		zap.String("target_language", req.TargetLanguage),
		zap.Int("text_chars", len(req.Text)),
	)

	out, err := h.Client.Complete(ctx, messages, preset.TransformParams(preset.ActionTranslate, len(req.Text)))
	if err != nil {
		h.writeUpstreamError(w, err, start)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"translatedText": out,
		"originalText":   req.Text,
		"targetLanguage": req.TargetLanguage,
		"processingTime": time.Since(start).Milliseconds(),
		"success":        true,
	})
}

// Languages handles GET /api/transform/languages.
func (h *TransformHandler) Languages(w http.ResponseWriter, r *http.Request) {
	langs := preset.Languages()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"languages": langs,
		"count":     len(langs),
	})
}

func (h *TransformHandler) writeUpstreamError(w http.ResponseWriter, err error, start time.Time) {
	status := http.StatusInternalServerError
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{
		Error:      "Transformation failed",
		Message:    err.Error(),
		DurationMs: time.Since(start).Milliseconds(),
	})
}
