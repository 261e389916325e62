package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lexiqai/meeting-listener/internal/config"
	"github.com/lexiqai/meeting-listener/internal/resilience"
	"github.com/rs/zerolog"
)

func newTestClient(backend Completer) *Client {
	retry := &resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
	return NewClient(backend, "fr", resilience.NewCircuitBreaker("llm_test", 10, time.Minute), retry, time.Second, zerolog.Nop())
}

func TestOpenAICompleter_Translate(t *testing.T) {
	var gotModel, gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		if len(body.Messages) == 2 {
			gotPrompt = body.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  bonjour  "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := newTestClient(NewOpenAICompleter("test-key", server.URL+"/v1", "mistral-small-latest"))
	out, err := client.Translate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "bonjour" {
		t.Errorf("Expected trimmed 'bonjour', got %q", out)
	}
	if gotModel != "mistral-small-latest" {
		t.Errorf("Unexpected model %q", gotModel)
	}
	if !strings.Contains(gotPrompt, "**French**") || !strings.HasSuffix(gotPrompt, "hello") {
		t.Errorf("Unexpected prompt %q", gotPrompt)
	}
}

func TestOpenAICompleter_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"merci"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(NewOpenAICompleter("k", server.URL, "m"))
	out, err := client.Translate(context.Background(), "thanks")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "merci" || atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected success on second call, got %q after %d calls", out, calls)
	}
}

func TestOpenAICompleter_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key","type":"auth"}}`))
	}))
	defer server.Close()

	client := newTestClient(NewOpenAICompleter("bad", server.URL, "m"))
	_, err := client.Translate(context.Background(), "hello")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
}

func TestOllamaCompleter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Stream {
			t.Error("Expected non-streaming request")
		}
		if req.Model != "llama3.2:latest" {
			t.Errorf("Expected default model, got %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Response: "résumé", Done: true})
	}))
	defer server.Close()

	client := newTestClient(NewOllamaCompleter(server.URL+"/", "", server.Client()))
	out, err := client.Summarize(context.Background(), "long transcript")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "résumé" {
		t.Errorf("Expected 'résumé', got %q", out)
	}
}

func TestOllamaCompleter_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	client := newTestClient(NewOllamaCompleter(endpoint, "m", nil))
	if _, err := client.Translate(context.Background(), "hello"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

type staticCompleter struct {
	out   string
	err   error
	calls int
}

func (s *staticCompleter) Name() string { return "static" }

func (s *staticCompleter) Complete(ctx context.Context, req Request) (string, error) {
	s.calls++
	return s.out, s.err
}

func TestClient_SummarizeEmptySkipsBackend(t *testing.T) {
	backend := &staticCompleter{out: "x"}
	out, err := newTestClient(backend).Summarize(context.Background(), "  ")
	if err != nil || out != SummaryUnavailable {
		t.Errorf("Expected fixed unavailable text, got %q (%v)", out, err)
	}
	if backend.calls != 0 {
		t.Errorf("Expected no backend call, got %d", backend.calls)
	}
}

func TestClient_EmptyCompletionIsUnavailable(t *testing.T) {
	_, err := newTestClient(&staticCompleter{out: "   "}).Translate(context.Background(), "hello")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestClient_UpdateSummaryAndAnswerPrompts(t *testing.T) {
	var prompts []string
	backend := &recordingCompleter{record: func(p string) { prompts = append(prompts, p) }}
	client := newTestClient(backend)

	if _, err := client.UpdateSummary(context.Background(), "old summary", "hello", "bonjour"); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}
	if _, err := client.Answer(context.Background(), "context block", "who spoke?"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if !strings.Contains(prompts[0], "old summary") || !strings.Contains(prompts[0], "bonjour") {
		t.Errorf("Unexpected update prompt %q", prompts[0])
	}
	if !strings.HasPrefix(prompts[1], "context block") || !strings.Contains(prompts[1], "who spoke?") {
		t.Errorf("Unexpected answer prompt %q", prompts[1])
	}
}

type recordingCompleter struct{ record func(string) }

func (r *recordingCompleter) Name() string { return "recording" }

func (r *recordingCompleter) Complete(ctx context.Context, req Request) (string, error) {
	r.record(req.Prompt)
	return "ok", nil
}

func TestMockCompleter(t *testing.T) {
	client := newTestClient(NewMockCompleter())
	out, err := client.Translate(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "[mock] hello there" {
		t.Errorf("Unexpected mock output %q", out)
	}
}

func TestLanguageName(t *testing.T) {
	if LanguageName("FR") != "French" || LanguageName("") != "French" || LanguageName("sv") != "sv" {
		t.Error("Unexpected language name mapping")
	}
}

func TestNew_Modes(t *testing.T) {
	cfg := &config.Config{LLMMode: "mock", CircuitBreakerMaxFailures: 3, CircuitBreakerResetTimeout: 30, RetryMaxAttempts: 2, RetryInitialBackoff: 10}
	if _, err := New(cfg, zerolog.Nop()); err != nil {
		t.Fatalf("New(mock): %v", err)
	}
	cfg.LLMMode = "openai"
	if _, err := New(cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error without API key")
	}
	cfg.LLMMode = "anthropic"
	if _, err := New(cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for unknown mode")
	}
}
