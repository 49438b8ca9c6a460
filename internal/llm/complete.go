package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxRequestSize = 2 * 1024 * 1024 // 2MB total JSON payload
	maxMessageSize = 512 * 1024      // 512KB per message content
)

func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("llmclient: at least one message is required")
	}
	for i, m := range messages {
		if m.Role != RoleSystem && m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("llmclient: invalid role %q in messages[%d]", m.Role, i)
		}
		if len(m.Content) > maxMessageSize {
			return fmt.Errorf(
				"llmclient: message[%d] content too large (%d bytes, max %d)",
				i, len(m.Content), maxMessageSize,
			)
		}
	}
	return nil
}

// Complete issues a non-streaming chat completion and returns the
// trimmed content of the first choice. Non-2xx responses surface as
// *UpstreamError; there is no internal retry.
func (c *client) Complete(parentCtx context.Context, messages []Message, p Params) (string, error) {
	start := time.Now()

	if err := validateMessages(messages); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	pReq := providerChatRequest{
		Model:       c.cfg.CompletionModel,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Stream:      false,
	}

	bodyBytes, err := json.Marshal(pReq)
	if err != nil {
		return "", fmt.Errorf("llmclient: marshal request: %w", err)
	}
	if len(bodyBytes) > maxRequestSize {
		return "", fmt.Errorf(
			"llmclient: request too large (%d bytes, max %d)",
			len(bodyBytes), maxRequestSize,
		)
	}

	resp, err := c.postJSON(ctx, c.cfg.BaseURL+"/v1/chat/completions", bodyBytes)
	if err != nil {
		c.logger.Error("llm request failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return "", fmt.Errorf("llmclient: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.upstreamError(resp)
	}

	var pResp providerChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&pResp); err != nil {
		return "", fmt.Errorf("llmclient: decode upstream response: %w", err)
	}
	if len(pResp.Choices) == 0 {
		c.logger.Error("llm provider returned no choices",
			zap.String("model", c.cfg.CompletionModel),
		)
		return "", &UpstreamError{Status: resp.StatusCode, Message: "provider returned no choices"}
	}

	out := strings.TrimSpace(pResp.Choices[0].Message.Content)

	c.logger.Info("llm request completed",
		zap.String("model", pResp.Model),
		zap.Int("output_chars", len(out)),
		zap.Duration("duration", time.Since(start)),
	)

	return out, nil
}

func (c *client) postJSON(ctx context.Context, url string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(httpReq)
}

// upstreamError reads the failed response body and maps it to
// *UpstreamError, preferring the provider's structured error message.
func (c *client) upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var perr providerErrorResponse
	if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
		c.logger.Error("llm provider error",
			zap.Int("status", resp.StatusCode),
			zap.String("error_type", perr.Error.Type),
			zap.String("error_message", perr.Error.Message),
		)
		return &UpstreamError{
			Status:  resp.StatusCode,
			Type:    perr.Error.Type,
			Message: perr.Error.Message,
		}
	}

	c.logger.Error("llm upstream error",
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(string(body), 200)),
	)
	return &UpstreamError{
		Status:  resp.StatusCode,
		Message: truncate(string(body), 200),
	}
}

// HealthCheck probes the provider's model listing with a short timeout.
// Failures are reported as false, never raised.
func (c *client) HealthCheck(parentCtx context.Context) bool {
	ctx, cancel := context.WithTimeout(parentCtx, 5*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("llm health check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
