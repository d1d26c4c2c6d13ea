package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
)

func anthropicServer(t *testing.T, status int, body any, calls *int32, seen *map[string]any) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(calls, 1)
		if seen != nil {
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Request-Id", "req_anthropic_1")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestAnthropicGenerate(t *testing.T) {
	var calls int32
	var seen map[string]any
	srv := anthropicServer(t, http.StatusOK, map[string]any{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       DefaultAnthropicModel,
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": "Students liked "}, {"type": "text", "text": "the lab."}},
		"usage":       map[string]any{"input_tokens": 120, "output_tokens": 30},
	}, &calls, &seen)
	defer srv.Close()

	c := NewAnthropicClient("test-key", RuntimeConfig{RetryMax: 1, HTTPTimeout: 5 * time.Second}, option.WithBaseURL(srv.URL+"/"))
	resp, err := c.Generate(context.Background(), GenerateRequest{Messages: []Message{{Role: "user", Content: "How's engagement?"}}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text() != "Students liked the lab." {
		t.Fatalf("text: %q", resp.Text())
	}
	if resp.Usage.TotalTokens != 150 {
		t.Fatalf("usage: %+v", resp.Usage)
	}
	if seen["model"] != DefaultAnthropicModel || seen["max_tokens"] != float64(300) {
		t.Fatalf("defaults not applied: model=%v max_tokens=%v", seen["model"], seen["max_tokens"])
	}
	if calls != 1 {
		t.Fatalf("calls: %d", calls)
	}
}

func TestAnthropicErrorsAreTypedAndNotRetried(t *testing.T) {
	var calls int32
	srv := anthropicServer(t, http.StatusUnauthorized, map[string]any{
		"type":  "error",
		"error": map[string]any{"type": "authentication_error", "message": "invalid x-api-key"},
	}, &calls, nil)
	defer srv.Close()

	c := NewAnthropicClient("bad-key", RuntimeConfig{RetryMax: 1}, option.WithBaseURL(srv.URL+"/"))
	_, err := c.Generate(context.Background(), GenerateRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	var auth *AuthError
	if !errors.As(err, &auth) {
		t.Fatalf("want AuthError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("want a single attempt, got %d", calls)
	}
}

func TestAnthropicMissingKey(t *testing.T) {
	c := NewAnthropicClient("", RuntimeConfig{})
	if _, err := c.Generate(context.Background(), GenerateRequest{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
