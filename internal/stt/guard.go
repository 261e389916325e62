package stt

import (
	"context"
	"fmt"
	"time"

	"github.com/lexiqai/meeting-listener/internal/audio"
	"github.com/lexiqai/meeting-listener/internal/config"
	"github.com/lexiqai/meeting-listener/internal/observability"
	"github.com/lexiqai/meeting-listener/internal/resilience"
	"github.com/rs/zerolog"
)

// GuardedRecognizer wraps a backend with a per-call timeout, a circuit
// breaker and metrics. Recognition is never retried: a failed chunk is dropped.
type GuardedRecognizer struct {
	inner   Recognizer
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// NewGuardedRecognizer wraps inner
func NewGuardedRecognizer(inner Recognizer, breaker *resilience.CircuitBreaker, timeout time.Duration) *GuardedRecognizer {
	breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	})
	return &GuardedRecognizer{inner: inner, breaker: breaker, timeout: timeout}
}

// Name identifies the wrapped backend
func (g *GuardedRecognizer) Name() string {
	return g.inner.Name()
}

// Transcribe calls the backend through the breaker
func (g *GuardedRecognizer) Transcribe(ctx context.Context, path string, opts Options) (Result, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	var result Result
	err := g.breaker.Call(func() error {
		var err error
		result, err = g.inner.Transcribe(ctx, path, opts)
		return err
	})
	observability.RecordSTT(err == nil, time.Since(start))
	if err != nil {
		observability.IncrementCircuitBreakerFailures(g.breaker.Name())
		return Result{}, err
	}
	return result, nil
}

// New builds the recognizer selected by STT_MODE
func New(cfg *config.Config, logger zerolog.Logger) (Recognizer, error) {
	var (
		inner Recognizer
		err   error
	)
	switch cfg.STTMode {
	case "deepgram":
		inner, err = NewDeepgramRecognizer(cfg.DeepgramAPIKey, cfg.DeepgramModel, logger)
	case "exec":
		inner, err = NewExecRecognizer(cfg.STTCommand, cfg.STTModel, logger)
	case "mock":
		inner = NewMockRecognizer(&audio.VADConfig{
			EnergyThreshold: cfg.VADEnergyThreshold,
			SilenceFrames:   cfg.VADSilenceFrames,
		})
	default:
		return nil, fmt.Errorf("unknown STT_MODE %q", cfg.STTMode)
	}
	if err != nil {
		return nil, err
	}

	breaker := resilience.NewCircuitBreaker(
		"stt_"+inner.Name(),
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	return NewGuardedRecognizer(inner, breaker, time.Duration(cfg.STTTimeoutSecs)*time.Second), nil
}

// Healthy reports false while the breaker is open
func (g *GuardedRecognizer) Healthy() bool {
	return g.breaker.GetState() != resilience.StateOpen
}
