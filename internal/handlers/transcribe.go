package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
	"github.com/mtben82-coder/voicebubble-backend/internal/pipeline"
	"github.com/mtben82-coder/voicebubble-backend/pkg/logging"
)

const (
	// maxAudioBytes matches the upstream transcription service's limit.
	maxAudioBytes = 25 * 1024 * 1024
	// formOverhead covers multipart framing and extra fields.
	formOverhead = 1 * 1024 * 1024
)

var allowedAudioExts = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true,
	".webm": true, ".ogg": true, ".flac": true, ".mp4": true,
}

// TranscribeHandler serves POST /api/transcribe: multipart audio in,
// `{text, cached, duration_ms}` out.
type TranscribeHandler struct {
	Pipeline *pipeline.Orchestrator
}

func NewTranscribeHandler(p *pipeline.Orchestrator) *TranscribeHandler {
	return &TranscribeHandler{Pipeline: p}
}

func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	// Oversized uploads are rejected here, before any upstream call.
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes+formOverhead)

	if err := r.ParseMultipartForm(maxAudioBytes + formOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, "FILE_TOO_LARGE",
				"File too large", "Audio file must be smaller than 25MB")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"Invalid request", "Expected multipart/form-data with an \"audio\" file field")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_AUDIO",
			"No audio file provided", "Please upload an audio file in the \"audio\" field")
		return
	}
	defer file.Close()

	if !acceptableAudio(header.Filename, header.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, "INVALID_FILE_TYPE",
			"Invalid file type", "Please upload an audio file (wav, mp3, m4a, webm, ogg, flac)")
		return
	}

	audio, err := io.ReadAll(file)
	if err != nil {
		logger.Warn("reading audio upload failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"Invalid request", "Could not read the uploaded audio file")
		return
	}
	if len(audio) > maxAudioBytes {
		writeError(w, http.StatusBadRequest, "FILE_TOO_LARGE",
			"File too large", "Audio file must be smaller than 25MB")
		return
	}

	logger.Info("transcription request",
		zap.String("filename", header.Filename),
		zap.Int("audio_bytes", len(audio)),
	)

	result, err := h.Pipeline.Transcribe(ctx, audio, header.Filename)
	if err != nil {
		status := http.StatusInternalServerError
		var upErr *llm.UpstreamError
		if errors.As(err, &upErr) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{
			Error:      "Transcription failed",
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

func acceptableAudio(filename, contentType string) bool {
	if strings.HasPrefix(contentType, "audio/") {
		return true
	}
	return allowedAudioExts[strings.ToLower(filepath.Ext(filename))]
}
