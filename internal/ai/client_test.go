package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func testServerSequence(t *testing.T, statuses []int, headers []http.Header, bodyOK any) (*ipv4Server, *int32) {
	t.Helper()
	var idx int32
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		st := statuses[i]
		if headers != nil && i < len(headers) && headers[i] != nil {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		if st >= 200 && st < 300 {
			w.WriteHeader(st)
			_ = json.NewEncoder(w).Encode(bodyOK)
			return
		}
		w.WriteHeader(st)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited"}})
	})), &idx
}

var okBody = GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}

func hiRequest() GenerateRequest {
	return GenerateRequest{Model: "test-model", Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 1}
}

func TestGenerateSingleAttemptByDefault(t *testing.T) {
	srv, calls := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}, {}}, okBody)
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 0, 10*time.Millisecond, 100*time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), hiRequest())
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("want RateLimitError, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("want exactly one call, got %d", n)
	}
	if Kind(err) != "rate_limit" {
		t.Fatalf("kind: %s", Kind(err))
	}
}

func TestGenerateRetriesOn429WhenConfigured(t *testing.T) {
	srv, _ := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}, {}}, okBody)
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 3, 10*time.Millisecond, 100*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, hiRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 1, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), hiRequest())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
	if Kind(err) != "bad_request" {
		t.Fatalf("kind: %s", Kind(err))
	}
}

func TestGenerateUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: cannot open local listener (%v)", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := NewClientWithBaseURL("test", time.Second, 1, 0, 0, "http://"+addr)
	_, err = c.Generate(context.Background(), hiRequest())
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("want UnreachableError, got %v", err)
	}
}

func TestGenerateRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient("", 0, 0, 0, 0).Generate(context.Background(), hiRequest()); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewClient("k", 0, 0, 0, 0).Generate(context.Background(), GenerateRequest{}); err == nil {
		t.Fatalf("expected empty model error")
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		err  *APIError
		kind string
	}{
		{&APIError{StatusCode: 401}, "auth"},
		{&APIError{StatusCode: 403}, "auth"},
		{&APIError{StatusCode: 404, Message: "Model not found"}, "model_not_found"},
		{&APIError{StatusCode: 404}, "api"},
		{&APIError{StatusCode: 400, Message: "Your credit balance is too low"}, "quota"},
		{&APIError{StatusCode: 400}, "bad_request"},
		{&APIError{StatusCode: 529}, "server"},
	}
	for _, c := range cases {
		if got := Kind(classifyStatus(c.err, 0)); got != c.kind {
			t.Errorf("status %d %q: got %s want %s", c.err.StatusCode, c.err.Message, got, c.kind)
		}
	}
	if Kind(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) != "timeout" {
		t.Errorf("deadline must classify as timeout")
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{ProviderAnthropic, ProviderOpenRouter} {
		rt, ok := GetRuntime(name, RuntimeConfig{APIKey: "k"})
		if !ok || rt == nil {
			t.Fatalf("provider %s not registered", name)
		}
	}
	if _, ok := GetRuntime("ollama", RuntimeConfig{}); ok {
		t.Fatalf("unexpected provider")
	}
	if got := Providers(); len(got) != 2 {
		t.Fatalf("providers: %v", got)
	}
}
