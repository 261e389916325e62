package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lexiqai/meeting-listener/internal/api"
	"github.com/lexiqai/meeting-listener/internal/audio"
	"github.com/lexiqai/meeting-listener/internal/capture"
	"github.com/lexiqai/meeting-listener/internal/config"
	"github.com/lexiqai/meeting-listener/internal/device"
	"github.com/lexiqai/meeting-listener/internal/device/portaudio"
	"github.com/lexiqai/meeting-listener/internal/events"
	"github.com/lexiqai/meeting-listener/internal/live"
	"github.com/lexiqai/meeting-listener/internal/llm"
	"github.com/lexiqai/meeting-listener/internal/meeting"
	"github.com/lexiqai/meeting-listener/internal/memory"
	"github.com/lexiqai/meeting-listener/internal/observability"
	"github.com/lexiqai/meeting-listener/internal/resilience"
	"github.com/lexiqai/meeting-listener/internal/session"
	"github.com/lexiqai/meeting-listener/internal/stt"
	"github.com/lexiqai/meeting-listener/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("audio_driver", cfg.AudioDriver).
		Str("stt_mode", cfg.STTMode).
		Str("llm_mode", cfg.LLMMode).
		Str("store_mode", cfg.StoreMode).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Meeting listener starting")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	store, err := memory.Open(startCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open meeting store")
	}
	defer store.Close()

	recognizer, err := stt.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create recognizer")
	}

	translator, err := llm.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create translator")
	}

	driver, closeDriver, err := openDriver(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open audio driver")
	}
	defer closeDriver()

	hub := live.NewHub(observability.ComponentLogger("live"))
	defer hub.Close()
	publishers := events.Fanout{hub}

	var bus *events.NATSPublisher
	if cfg.NATSURL != "" {
		reconnect := resilience.DefaultReconnectConfig()
		reconnect.MaxAttempts = cfg.ReconnectMaxAttempts
		reconnect.Backoff = time.Duration(cfg.ReconnectBackoff) * time.Millisecond
		bus, err = events.ConnectNATS(startCtx, cfg.NATSURL, cfg.NATSSubject, reconnect, observability.ComponentLogger("events"))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer bus.Close()
		publishers = append(publishers, bus)
	}

	vad := &audio.VADConfig{EnergyThreshold: cfg.VADEnergyThreshold, SilenceFrames: cfg.VADSilenceFrames}
	controller := session.NewController(session.Deps{
		Driver:     driver,
		Recognizer: recognizer,
		Translator: translator,
		Store:      store,
		Publisher:  publishers,
	}, session.Config{
		MeetingID:  cfg.MeetingID,
		Device:     capture.DeviceAt(cfg.AudioDeviceIndex),
		SampleRate: cfg.AudioSampleRate,
		Channels:   cfg.AudioChannels,
		Capture: capture.Config{
			Dir:             chunkDir(cfg),
			ChunkDuration:   time.Duration(cfg.ChunkSeconds) * time.Second,
			PollInterval:    time.Duration(cfg.CapturePollIntervalMs) * time.Millisecond,
			FramesPerBuffer: cfg.AudioFramesPerBuffer,
			VAD:             vad,
		},
		Worker: worker.Config{
			LanguageHint: cfg.STTLanguage,
			VADFilter:    cfg.STTVADFilter,
			PollTimeout:  time.Duration(cfg.WorkerPollTimeoutMs) * time.Millisecond,
			KeepFiles:    cfg.ChunkKeepFiles,
			Summary:      cfg.SummaryEnabled,
		},
		DrainTimeout: time.Duration(cfg.DrainTimeoutSeconds) * time.Second,
	}, logger)

	// Create HTTP server
	mux := http.NewServeMux()
	meetings := meeting.NewService(store, translator, logger)
	api.NewHandler(controller, meetings, hub, logger).Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	checks := map[string]observability.HealthCheckFunc{
		"store": func(ctx context.Context) (bool, error) {
			if err := store.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
		"stt": func(ctx context.Context) (bool, error) {
			if g, ok := recognizer.(*stt.GuardedRecognizer); ok && !g.Healthy() {
				return false, fmt.Errorf("%s circuit open", recognizer.Name())
			}
			return true, nil
		},
		"llm": func(ctx context.Context) (bool, error) {
			if !translator.Healthy() {
				return false, errors.New("language model circuit open")
			}
			return true, nil
		},
	}
	if bus != nil {
		checks["nats"] = func(ctx context.Context) (bool, error) {
			return bus.Healthy(), nil
		}
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. QA and export call the model, so the
	// write timeout covers one full LLM round trip.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.LLMTimeoutSecs+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("live_feed", fmt.Sprintf("ws://localhost:%s/api/live/ws", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Flush the active chunk and let the worker drain before closing the store
	controller.Stop()
	drain := time.Duration(cfg.DrainTimeoutSeconds) * time.Second
	if !controller.Wait(drain) {
		logger.Warn().Dur("timeout", drain).Msg("Pipeline did not drain, pending chunks abandoned")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

// openDriver selects the audio backend named by AUDIO_DRIVER
func openDriver(cfg *config.Config) (capture.Driver, func(), error) {
	switch cfg.AudioDriver {
	case "synthetic":
		return device.NewSynthetic(), func() {}, nil
	case "portaudio":
		host, err := portaudio.New()
		if err != nil {
			return nil, nil, err
		}
		return host, func() { host.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown AUDIO_DRIVER %q", cfg.AudioDriver)
}

func chunkDir(cfg *config.Config) string {
	if cfg.ChunkDir != "" {
		return cfg.ChunkDir
	}
	return filepath.Join(os.TempDir(), "meeting-chunks")
}
