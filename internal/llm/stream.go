package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// CompleteStream opens a streaming chat completion and re-emits
// incremental content fragments on the returned channel, in arrival
// order. Frames may arrive split across transport reads; line-buffered
// reading holds partial frames until a boundary is observed, and
// fragments that still fail to parse are skipped rather than fatal.
// The channel closes after the [DONE] sentinel or transport end; a
// transport error before that is delivered as a StreamResult with Err.
func (c *client) CompleteStream(parentCtx context.Context, messages []Message, p Params) (<-chan StreamResult, error) {
	if err := validateMessages(messages); err != nil {
		return nil, err
	}

	// No timeout here: a streaming completion runs until the sentinel,
	// transport end, or caller cancellation.
	ctx, cancel := context.WithCancel(parentCtx)

	results := make(chan StreamResult, 16)

	go func() {
		defer close(results)
		defer cancel()

		pReq := providerChatRequest{
			Model:       c.cfg.CompletionModel,
			Messages:    messages,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			Stream:      true,
		}

		bodyBytes, err := json.Marshal(pReq)
		if err != nil {
			results <- StreamResult{Err: fmt.Errorf("llmclient: marshal stream request: %w", err)}
			return
		}
		if len(bodyBytes) > maxRequestSize {
			results <- StreamResult{Err: fmt.Errorf(
				"llmclient: request too large (%d bytes, max %d)",
				len(bodyBytes), maxRequestSize,
			)}
			return
		}

		resp, err := c.postJSON(ctx, c.cfg.BaseURL+"/v1/chat/completions", bodyBytes)
		if err != nil {
			c.logger.Error("llm stream connect failed", zap.Error(err))
			results <- StreamResult{Err: fmt.Errorf("llmclient: stream connect: %w", err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			results <- StreamResult{Err: c.upstreamError(resp)}
			return
		}

		reader := bufio.NewReader(resp.Body)
		chunkCount := 0

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("llm stream cancelled",
					zap.Int("chunks", chunkCount),
					zap.Error(ctx.Err()),
				)
				return
			default:
			}

			line, err := reader.ReadBytes('\n')
			if err != nil {
				if err == io.EOF {
					// Normal end of stream without explicit [DONE]
					c.logger.Info("llm stream completed (EOF)",
						zap.Int("chunks", chunkCount),
					)
					return
				}
				results <- StreamResult{Err: fmt.Errorf("llmclient: read stream: %w", err)}
				return
			}

			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}

			const prefix = "data: "
			if !bytes.HasPrefix(line, []byte(prefix)) {
				// Ignore non-data SSE lines
				continue
			}

			payload := bytes.TrimSpace(line[len(prefix):])

			// End-of-stream sentinel from provider
			if bytes.Equal(payload, []byte("[DONE]")) {
				c.logger.Info("llm stream received [DONE]",
					zap.Int("chunks", chunkCount),
				)
				return
			}

			var chunk providerStreamChunk
			if err := json.Unmarshal(payload, &chunk); err != nil {
				// Incomplete or malformed frame: skip, keep reading.
				c.logger.Debug("llm stream skipping unparseable frame",
					zap.String("payload", truncate(string(payload), 120)),
				)
				continue
			}

			for _, choice := range chunk.Choices {
				deltaText := choice.Delta.Content
				if deltaText == "" && choice.FinishReason == "" {
					continue
				}

				sc := &StreamChunk{
					Delta:        deltaText,
					FinishReason: choice.FinishReason,
				}
				chunkCount++

				select {
				case <-ctx.Done():
					c.logger.Info("llm stream cancelled while sending chunk",
						zap.Int("chunks", chunkCount),
						zap.Error(ctx.Err()),
					)
					return
				case results <- StreamResult{Chunk: sc}:
				}
			}
		}
	}()

	return results, nil
}
