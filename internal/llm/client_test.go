package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

func TestCompleteSuccess(t *testing.T) {
	t.Parallel()

	var gotReq providerChatRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}

		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}

		resp := providerChatResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []providerChatChoice{
				{
					Index: 0,
					Message: Message{
						Role:    RoleAssistant,
						Content: "  Rewritten text.  ",
					},
					FinishReason: "stop",
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	out, err := client.Complete(context.Background(), []Message{
		{Role: RoleUser, Content: "ping"},
	}, Params{Temperature: 0.3, MaxTokens: 50})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected Authorization header: %s", gotAuth)
	}
	if gotReq.Stream {
		t.Fatalf("non-stream request should not set stream=true")
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %s", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "ping" {
		t.Fatalf("unexpected request messages: %#v", gotReq.Messages)
	}

	if out != "Rewritten text." {
		t.Fatalf("expected trimmed first choice, got %q", out)
	}
}

func TestCompleteValidationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("server should not be called for invalid request")
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	_, err = client.Complete(context.Background(), nil, Params{})
	if err == nil || !strings.Contains(err.Error(), "at least one message") {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{
		{Role: "robot", Content: "hi"},
	}, Params{})
	if err == nil || !strings.Contains(err.Error(), "invalid role") {
		t.Fatalf("expected role error, got %v", err)
	}
}

func TestCompleteUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	_, err = client.Complete(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
	}, Params{})

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if ue.Status != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", ue.Status)
	}
	if ue.Message != "rate limited" || ue.Type != "rate_limit_error" {
		t.Fatalf("provider error not mapped: %#v", ue)
	}
}

func TestCompleteStream(t *testing.T) {
	t.Parallel()

	var gotReq providerChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatalf("response writer does not support flushing")
		}

		chunks := []string{
			`{"choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"lo, "}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"world"},"finish_reason":"stop"}]}`,
		}

		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "stream-key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.CompleteStream(ctx, []Message{
		{Role: RoleUser, Content: "hello"},
	}, Params{})
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}

	var deltas strings.Builder
	var finishReason string

	for res := range stream {
		if res.Err != nil {
			t.Fatalf("received stream error: %v", res.Err)
		}
		if res.Chunk == nil {
			continue
		}

		deltas.WriteString(res.Chunk.Delta)
		if res.Chunk.FinishReason != "" {
			finishReason = res.Chunk.FinishReason
		}
	}

	if !gotReq.Stream {
		t.Fatalf("stream requests must set stream=true")
	}
	if deltas.String() != "Hello, world" {
		t.Fatalf("unexpected stream deltas: %s", deltas.String())
	}
	if finishReason != "stop" {
		t.Fatalf("unexpected finish reason: %s", finishReason)
	}
}

func TestCompleteStreamSkipsMalformedFrames(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, "data: {not json at all\n\n")
		fmt.Fprint(w, ": comment line\n\n")
		fmt.Fprint(w, `data: {"choices":[{"index":0,"delta":{"content":"ok"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	stream, err := client.CompleteStream(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
	}, Params{})
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}

	var got strings.Builder
	for res := range stream {
		if res.Err != nil {
			t.Fatalf("malformed frame must be skipped, not fatal: %v", res.Err)
		}
		if res.Chunk != nil {
			got.WriteString(res.Chunk.Delta)
		}
	}

	if got.String() != "ok" {
		t.Fatalf("expected only the valid delta, got %q", got.String())
	}
}

func TestCompleteStreamUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "bad",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	stream, err := client.CompleteStream(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
	}, Params{})
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}

	var streamErr error
	for res := range stream {
		if res.Err != nil {
			streamErr = res.Err
		}
	}

	var ue *UpstreamError
	if !errors.As(streamErr, &ue) || ue.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 *UpstreamError on stream, got %v", streamErr)
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var gotModel, gotFilename string
	var gotAudio []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}

		gotModel = r.FormValue("model")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		gotAudio, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hello from audio"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	text, err := client.Transcribe(context.Background(), []byte("RIFF...."), "clip.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if text != "hello from audio" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if gotModel != "whisper-1" {
		t.Fatalf("unexpected model field: %s", gotModel)
	}
	if gotFilename != "clip.wav" {
		t.Fatalf("unexpected filename: %s", gotFilename)
	}
	if string(gotAudio) != "RIFF...." {
		t.Fatalf("audio bytes not forwarded intact")
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{
		BaseURL: "http://127.0.0.1:1",
		APIKey:  "key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	if _, err := client.Transcribe(context.Background(), nil, "clip.wav"); err == nil {
		t.Fatalf("expected error for empty audio")
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	if !client.HealthCheck(context.Background()) {
		t.Fatalf("expected healthy")
	}

	srv.Close()
	if client.HealthCheck(context.Background()) {
		t.Fatalf("expected unhealthy after server close")
	}
}

func closeClient(c Client) {
	if closer, ok := c.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
