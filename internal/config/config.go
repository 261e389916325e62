package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the meeting listener service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Meeting identity. One active meeting per deployment.
	MeetingID string `envconfig:"MEETING_ID" default:"current"`

	// Audio capture configuration
	AudioDriver           string `envconfig:"AUDIO_DRIVER" default:"portaudio"`     // portaudio, synthetic
	AudioDeviceIndex      int    `envconfig:"AUDIO_DEVICE_INDEX" default:"-1"`      // -1 picks the first input-capable device
	AudioSampleRate       int    `envconfig:"AUDIO_SAMPLE_RATE" default:"0"`        // 0 uses the device default rate
	AudioChannels         int    `envconfig:"AUDIO_CHANNELS" default:"1"`           // Mono by default
	AudioFramesPerBuffer  int    `envconfig:"AUDIO_FRAMES_PER_BUFFER" default:"1024"` // Frames per hardware callback
	ChunkSeconds          int    `envconfig:"CHUNK_SECONDS" default:"20"`           // Rotation period
	ChunkDir              string `envconfig:"CHUNK_DIR" default:""`                 // Defaults to os.TempDir()/meeting-chunks
	ChunkKeepFiles        bool   `envconfig:"CHUNK_KEEP_FILES" default:"false"`     // Keep WAV artifacts after processing
	CapturePollIntervalMs int    `envconfig:"CAPTURE_POLL_INTERVAL_MS" default:"100"` // Rotation loop sleep slice

	// Worker configuration
	WorkerPollTimeoutMs int  `envconfig:"WORKER_POLL_TIMEOUT_MS" default:"500"` // Dispatch queue pop timeout
	DrainTimeoutSeconds int  `envconfig:"DRAIN_TIMEOUT_SECONDS" default:"30"`  // Bounded wait for pipeline shutdown
	SummaryEnabled      bool `envconfig:"SUMMARY_ENABLED" default:"true"`      // Update the running summary per chunk

	// Voice activity statistics computed per chunk
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for VAD
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"10"`      // Frames of silence to mark speech end

	// Speech-to-text configuration
	STTMode        string `envconfig:"STT_MODE" default:"deepgram"` // deepgram, exec, mock
	STTLanguage    string `envconfig:"STT_LANGUAGE" default:""`     // Empty lets the engine detect
	STTVADFilter   bool   `envconfig:"STT_VAD_FILTER" default:"false"`
	STTCommand     string `envconfig:"STT_COMMAND" default:""`   // Whisper CLI for exec mode
	STTModel       string `envconfig:"STT_MODEL" default:"base"` // Passed as --model in exec mode
	STTTimeoutSecs int    `envconfig:"STT_TIMEOUT" default:"60"`

	// Deepgram STT API configuration
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`

	// Translation and summarization configuration
	LLMMode        string `envconfig:"LLM_MODE" default:"openai"` // openai, ollama, mock
	LLMAPIKey      string `envconfig:"LLM_API_KEY" default:""`
	LLMBaseURL     string `envconfig:"LLM_BASE_URL" default:"https://api.mistral.ai/v1"`
	LLMModel       string `envconfig:"LLM_MODEL" default:"mistral-small-latest"`
	LLMTargetLang  string `envconfig:"LLM_TARGET_LANG" default:"fr"`
	LLMTimeoutSecs int    `envconfig:"LLM_TIMEOUT" default:"30"`
	OllamaEndpoint string `envconfig:"OLLAMA_ENDPOINT" default:"http://localhost:11434"`

	// Meeting memory store configuration
	StoreMode  string `envconfig:"STORE_MODE" default:"redis"` // memory, sqlite, redis
	RedisURL   string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"./data/meeting.db"`

	// Chunk event bus (disabled when NATS_URL is empty)
	NATSURL     string `envconfig:"NATS_URL" default:""`
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"meeting.chunks"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks mode-dependent required fields
func (c *Config) Validate() error {
	if c.ChunkSeconds <= 0 {
		return fmt.Errorf("CHUNK_SECONDS must be positive")
	}
	if c.AudioChannels <= 0 {
		return fmt.Errorf("AUDIO_CHANNELS must be positive")
	}
	if c.AudioSampleRate < 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be >= 0")
	}
	if c.CapturePollIntervalMs <= 0 || c.WorkerPollTimeoutMs <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}

	switch c.AudioDriver {
	case "portaudio", "synthetic":
	default:
		return fmt.Errorf("AUDIO_DRIVER must be one of portaudio|synthetic, got %q", c.AudioDriver)
	}

	switch c.STTMode {
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when STT_MODE=deepgram")
		}
	case "exec":
		if c.STTCommand == "" {
			return fmt.Errorf("STT_COMMAND is required when STT_MODE=exec")
		}
	case "mock":
	default:
		return fmt.Errorf("STT_MODE must be one of deepgram|exec|mock, got %q", c.STTMode)
	}

	switch c.LLMMode {
	case "openai":
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required when LLM_MODE=openai")
		}
	case "ollama":
		if c.OllamaEndpoint == "" {
			return fmt.Errorf("OLLAMA_ENDPOINT is required when LLM_MODE=ollama")
		}
	case "mock":
	default:
		return fmt.Errorf("LLM_MODE must be one of openai|ollama|mock, got %q", c.LLMMode)
	}

	switch c.StoreMode {
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_MODE=redis")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_MODE=sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_MODE must be one of memory|sqlite|redis, got %q", c.StoreMode)
	}

	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
