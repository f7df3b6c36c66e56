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
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv}
	t.Cleanup(s.Close)
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// sequenceServer answers path with statuses in order, repeating the last one.
func sequenceServer(t *testing.T, path string, statuses []int, headers []http.Header, bodyOK any, calls *int32) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(calls, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(statuses[i])
		if statuses[i] >= 200 && statuses[i] < 300 {
			_ = json.NewEncoder(w).Encode(bodyOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))
}

func hi() []Message { return []Message{{Role: "user", Content: "hi"}} }

func TestGenerateRetriesOn429(t *testing.T) {
	var calls int32
	okBody := GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}
	srv := sequenceServer(t, "/chat/completions", []int{429, 200}, []http.Header{{"Retry-After": {"0"}}}, okBody, &calls)

	c := NewClient("test", 2*time.Second, 3, 10*time.Millisecond, 100*time.Millisecond).WithBaseURL(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, GenerateRequest{Model: "test-model", Messages: hi(), MaxTokens: 1})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryAfterHonored(t *testing.T) {
	var calls int32
	okBody := GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}
	srv := sequenceServer(t, "/chat/completions", []int{429, 200}, []http.Header{{"Retry-After": {"1"}}}, okBody, &calls)

	c := NewClient("test", 5*time.Second, 3, 0, 0).WithBaseURL(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	if _, err := c.Generate(ctx, GenerateRequest{Model: "test-model", Messages: hi()}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected at least ~1s delay due to Retry-After, got %v", elapsed)
	}
}

func TestRateLimitExhaustedIsTyped(t *testing.T) {
	var calls int32
	srv := sequenceServer(t, "/chat/completions", []int{429}, nil, nil, &calls)

	c := NewClient("test", 2*time.Second, 2, time.Millisecond, 5*time.Millisecond).WithBaseURL(srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: hi()})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected wrapped APIError with 429, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))

	c := NewClient("test", 2*time.Second, 1, 10*time.Millisecond, 50*time.Millisecond).WithBaseURL(srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "test-model", Messages: hi()})
	if err == nil {
		t.Fatalf("expected error")
	}
	var bad *BadRequestError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadRequestError, got %T", err)
	}
	if !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
}

func TestAuthHeadersAndMissingKey(t *testing.T) {
	var gotAuth string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(GenerateResponse{Choices: []Choice{{Message: Message{Content: "[]"}}}})
	}))
	c := NewClient("sekret", time.Second, 1, 0, 0).WithBaseURL(srv.URL)
	if _, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: hi()}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotAuth != "Bearer sekret" {
		t.Fatalf("unexpected Authorization header %q", gotAuth)
	}
	if _, err := NewOpenRouterClient("").Generate(context.Background(), GenerateRequest{Model: "m", Messages: hi()}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestOllamaGenerateSuccess(t *testing.T) {
	var got ollamaChatRequest
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3",
			"message":           map[string]any{"role": "assistant", "content": "hello"},
			"done":              true,
			"prompt_eval_count": 7,
			"eval_count":        3,
		})
	}))

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	msgs := []Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}}
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3", Messages: msgs, MaxTokens: 16, Temperature: 0.2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text() != "hello" || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Stream {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Options["num_predict"] != float64(16) {
		t.Fatalf("expected num_predict option, got %v", got.Options)
	}
}

func TestOllamaModelNotFound(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model 'nope' not found"})
	}))
	c := NewOllamaClient(srv.URL, time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "nope", Messages: hi()})
	var nf *ModelNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ModelNotFoundError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected server message in error: %v", err)
	}
}

func TestOllamaUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open local listener: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := NewOllamaClient("http://"+addr, time.Second, 1, 0, 0)
	_, err = c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: hi()})
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T: %v", err, err)
	}
}

func TestOllamaValidatesRequest(t *testing.T) {
	c := NewOllamaClient("", time.Second, 1, 0, 0)
	if _, err := c.Generate(context.Background(), GenerateRequest{Messages: hi()}); err == nil {
		t.Fatalf("expected error for empty model")
	}
	if _, err := c.Generate(context.Background(), GenerateRequest{Model: "m"}); err == nil {
		t.Fatalf("expected error for empty messages")
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{ProviderOpenRouter, "OLLAMA"} {
		if _, ok := GetRuntime(name, RuntimeConfig{}); !ok {
			t.Fatalf("expected runtime %q to be registered", name)
		}
	}
	if _, err := NewRuntime("bogus", RuntimeConfig{}); err == nil || !strings.Contains(err.Error(), "openrouter") {
		t.Fatalf("expected unknown provider error listing providers, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if s, err := parseRetryAfterSeconds("3"); err != nil || s != 3 {
		t.Fatalf("got %d, %v", s, err)
	}
	if _, err := parseRetryAfterSeconds("soon"); err == nil {
		t.Fatalf("expected error")
	}
	future := time.Now().Add(5 * time.Second).UTC().Format(http.TimeFormat)
	if s, err := parseRetryAfterSeconds(future); err != nil || s < 3 || s > 5 {
		t.Fatalf("http date: got %d, %v", s, err)
	}
}
