package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexiqai/meeting-listener/internal/config"
	"github.com/lexiqai/meeting-listener/internal/observability"
	"github.com/lexiqai/meeting-listener/internal/resilience"
	"github.com/rs/zerolog"
)

// ErrUnavailable wraps every remote failure of the language model
var ErrUnavailable = errors.New("language model unavailable")

// Translator is the translation and summarization collaborator
type Translator interface {
	// Translate renders text in the target language
	Translate(ctx context.Context, text string) (string, error)

	// Summarize writes a paragraph report of a long transcript
	Summarize(ctx context.Context, transcript string) (string, error)

	// UpdateSummary extends the running summary with a new chunk
	UpdateSummary(ctx context.Context, current, raw, translated string) (string, error)

	// Answer responds to a question about the meeting
	Answer(ctx context.Context, meetingContext, question string) (string, error)
}

// Request is one completion call against a backend
type Request struct {
	System      string
	Prompt      string
	Temperature float32
}

// Completer is a single-shot text completion backend
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Client implements Translator over a Completer with breaker, retry and metrics
type Client struct {
	backend Completer
	lang    string
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient wraps a backend. targetLang is an ISO code such as "fr".
func NewClient(backend Completer, targetLang string, breaker *resilience.CircuitBreaker, retry *resilience.RetryConfig, timeout time.Duration, logger zerolog.Logger) *Client {
	breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	})
	return &Client{
		backend: backend,
		lang:    LanguageName(targetLang),
		breaker: breaker,
		retry:   retry,
		timeout: timeout,
		logger:  logger.With().Str("component", "llm").Str("backend", backend.Name()).Logger(),
	}
}

// Translate renders text in the target language
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	return c.complete(ctx, "translate", translatePrompt(c.lang, text), 0.0)
}

// Summarize writes a report of transcript. Empty input is not sent upstream.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return SummaryUnavailable, nil
	}
	return c.complete(ctx, "summarize", summaryPrompt(c.lang, transcript), 0.3)
}

// UpdateSummary folds a new chunk into the running summary
func (c *Client) UpdateSummary(ctx context.Context, current, raw, translated string) (string, error) {
	return c.complete(ctx, "summary_update", summaryUpdatePrompt(c.lang, current, raw, translated), 0.0)
}

// Answer responds to a question using the supplied meeting context
func (c *Client) Answer(ctx context.Context, meetingContext, question string) (string, error) {
	return c.complete(ctx, "answer", answerPrompt(c.lang, meetingContext, question), 0.0)
}

func (c *Client) complete(ctx context.Context, operation, prompt string, temperature float32) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	var out string
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		return c.breaker.Call(func() error {
			var err error
			out, err = c.backend.Complete(ctx, Request{System: systemPrompt, Prompt: prompt, Temperature: temperature})
			return err
		})
	}, c.retry, resilience.IsRetryableNetworkError)

	out = strings.TrimSpace(out)
	if err == nil && out == "" {
		err = errors.New("empty completion")
	}
	observability.RecordLLM(operation, err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(c.breaker.Name())
		}
		c.logger.Warn().Err(err).Str("operation", operation).Msg("Completion failed")
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, err)
	}
	return out, nil
}

// New builds the translator selected by LLM_MODE
func New(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	var backend Completer
	switch cfg.LLMMode {
	case "openai":
		if cfg.LLMAPIKey == "" {
			return nil, fmt.Errorf("LLM_API_KEY is required for openai mode")
		}
		backend = NewOpenAICompleter(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	case "ollama":
		backend = NewOllamaCompleter(cfg.OllamaEndpoint, cfg.LLMModel, nil)
	case "mock":
		backend = NewMockCompleter()
	default:
		return nil, fmt.Errorf("unknown LLM_MODE %q", cfg.LLMMode)
	}

	breaker := resilience.NewCircuitBreaker(
		"llm_"+backend.Name(),
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond
	return NewClient(backend, cfg.LLMTargetLang, breaker, retry, time.Duration(cfg.LLMTimeoutSecs)*time.Second, logger), nil
}

// Healthy reports false while the breaker is open
func (c *Client) Healthy() bool {
	return c.breaker.GetState() != resilience.StateOpen
}
