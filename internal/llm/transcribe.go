package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Transcribe uploads one audio file to the speech-to-text endpoint and
// returns the transcript text. The call is bounded by UpstreamTimeout;
// failures surface as *UpstreamError with the provider's message. No
// retry — the caller decides.
func (c *client) Transcribe(parentCtx context.Context, audio []byte, filename string) (string, error) {
	start := time.Now()

	if len(audio) == 0 {
		return "", fmt.Errorf("llmclient: empty audio payload")
	}
	if filename == "" {
		filename = "audio.wav"
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("llmclient: build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("llmclient: write audio part: %w", err)
	}
	if err := mw.WriteField("model", c.cfg.TranscriptionModel); err != nil {
		return "", fmt.Errorf("llmclient: write model field: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("llmclient: write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("llmclient: finalize multipart body: %w", err)
	}

	url := c.cfg.BaseURL + "/v1/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("llmclient: build HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("transcription request failed",
			zap.String("filename", filename),
			zap.Int("audio_bytes", len(audio)),
			zap.Error(err),
		)
		return "", fmt.Errorf("llmclient: transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.upstreamError(resp)
	}

	var out providerTranscription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llmclient: decode transcription response: %w", err)
	}

	c.logger.Info("transcription completed",
		zap.String("filename", filename),
		zap.Int("audio_bytes", len(audio)),
		zap.Int("transcript_chars", len(out.Text)),
		zap.Duration("duration", time.Since(start)),
	)

	return out.Text, nil
}
