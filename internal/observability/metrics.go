package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	sessionListening = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_listener_session_listening",
		Help: "1 while the session is listening, 0 when stopped",
	})

	sessionStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_listener_session_starts_total",
		Help: "Total number of capture pipelines started",
	})

	// Capture metrics
	chunksCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_listener_chunks_captured_total",
		Help: "Chunk artifacts produced by the capture engine",
	}, []string{"status"}) // status: "enqueued" or "dropped"

	rotationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_listener_rotation_seconds",
		Help:    "Time spent finalizing a buffer slot after a swap",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	})

	streamAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_listener_stream_anomalies_total",
		Help: "Hardware stream status flags reported by the capture callback",
	})

	audioSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_listener_audio_samples_total",
		Help: "Total audio samples written to chunk artifacts",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_listener_dispatch_queue_depth",
		Help: "Chunk artifacts waiting for the worker",
	})

	// STT metrics
	sttRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_listener_stt_requests_total",
		Help: "Total number of STT requests",
	}, []string{"status"})

	sttLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_listener_stt_latency_seconds",
		Help:    "STT processing latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	noSpeechProbability = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_listener_no_speech_probability",
		Help:    "Mean non-speech probability per recognized chunk",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	// LLM metrics
	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_listener_llm_requests_total",
		Help: "Total number of translation and summarization requests",
	}, []string{"operation", "status"})

	llmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meeting_listener_llm_latency_seconds",
		Help:    "Translation and summarization latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"operation"})

	// Persistence metrics
	chunksPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_listener_chunks_persisted_total",
		Help: "Meeting chunks appended to the meeting memory store",
	}, []string{"translated"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_listener_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meeting_listener_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_listener_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// SetSessionListening updates the session status gauge
func SetSessionListening(listening bool) {
	if listening {
		sessionListening.Set(1)
		return
	}
	sessionListening.Set(0)
}

// RecordSessionStart counts a freshly started pipeline
func RecordSessionStart() {
	sessionStarts.Inc()
}

// RecordChunkCaptured records an artifact leaving the capture engine
func RecordChunkCaptured(enqueued bool, samples int, finalize time.Duration) {
	if enqueued {
		chunksCaptured.WithLabelValues("enqueued").Inc()
		audioSamples.Add(float64(samples))
	} else {
		chunksCaptured.WithLabelValues("dropped").Inc()
	}
	rotationLatency.Observe(finalize.Seconds())
}

// RecordStreamAnomaly counts a hardware status flag
func RecordStreamAnomaly() {
	streamAnomalies.Inc()
}

// SetQueueDepth reports the dispatch queue length
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// RecordSTT records the outcome and latency of one recognition call
func RecordSTT(success bool, latency time.Duration) {
	sttLatency.Observe(latency.Seconds())
	sttRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordNoSpeech observes the mean non-speech probability of a chunk
func RecordNoSpeech(p float64) {
	noSpeechProbability.Observe(p)
}

// RecordLLM records the outcome and latency of a translate or summarize call
func RecordLLM(operation string, success bool, latency time.Duration) {
	llmLatency.WithLabelValues(operation).Observe(latency.Seconds())
	llmRequests.WithLabelValues(operation, statusLabel(success)).Inc()
}

// RecordChunkPersisted counts a chunk appended to the store
func RecordChunkPersisted(translated bool) {
	label := "false"
	if translated {
		label = "true"
	}
	chunksPersisted.WithLabelValues(label).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
