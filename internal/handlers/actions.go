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

type actionsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// SmartAction is one actionable item extracted from voice input.
type SmartAction struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Datetime    string   `json:"datetime,omitempty"`
	Location    string   `json:"location,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	Recipient   string   `json:"recipient,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Body        string   `json:"body,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Platform    string   `json:"platform,omitempty"`
	Formatted   string   `json:"formatted,omitempty"`
}

// ActionsHandler serves POST /api/actions/extract: smart action
// extraction from raw voice input.
type ActionsHandler struct {
	Client llm.Client
}

func NewActionsHandler(client llm.Client) *ActionsHandler {
	return &ActionsHandler{Client: client}
}

func (h *ActionsHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req actionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid request", "Request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TEXT",
			"Invalid request", "Text is required")
		return
	}

	logging.L(ctx).Info("smart actions request",
		zap.String("language", req.Language),
		zap.Int("text_chars", len(req.Text)),
	)

	messages := preset.SmartActionMessages(req.Text, req.Language)
	out, err := h.Client.Complete(ctx, messages, llm.Params{Temperature: 0.2, MaxTokens: 2000})
	if err != nil {
		status := http.StatusInternalServerError
		var upErr *llm.UpstreamError
		if errors.As(err, &upErr) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{
			Error:      "Failed to extract smart actions",
			Message:    err.Error(),
			DurationMs: time.Since(start).Milliseconds(),
		})
		return
	}

	var parsed struct {
		Actions []SmartAction `json:"actions"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &parsed); err != nil {
		logging.L(ctx).Warn("smart actions response was not valid JSON", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:      "Failed to extract smart actions",
			Message:    "Upstream returned malformed action data",
			DurationMs: time.Since(start).Milliseconds(),
		})
		return
	}

	// Keep only actions with the required fields.
	valid := parsed.Actions[:0]
	for _, a := range parsed.Actions {
		if a.Type != "" && a.Title != "" {
			valid = append(valid, a)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"actions":     valid,
		"count":       len(valid),
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// stripCodeFence removes a markdown code fence the model sometimes
// wraps JSON in despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
