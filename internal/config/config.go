package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the widget-api service.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"widget-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8190"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPIILevel     string        `env:"LOG_PII_LEVEL" envDefault:"hashed"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// OpenTelemetry
	EnableTracing    bool    `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TraceSampleRatio float64 `env:"OTEL_TRACE_SAMPLE_RATIO" envDefault:"1"`

	// Auth (Keycloak)
	AuthEnabled  bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer   string `env:"AUTH_ISSUER"`
	AuthAudience string `env:"AUTH_AUDIENCE"`
	AuthJWKSURL  string `env:"AUTH_JWKS_URL"`

	// Upstream chat completions
	ChatAPIURL        string        `env:"CHAT_API_URL" envDefault:"http://localhost:8080"`
	ChatAPIPath       string        `env:"CHAT_API_PATH" envDefault:"/v1/chat/completions"`
	ChatAPIKey        string        `env:"CHAT_API_KEY"`
	ChatModel         string        `env:"CHAT_MODEL"`
	ChatStreamTimeout time.Duration `env:"CHAT_STREAM_TIMEOUT" envDefault:"0s"`

	// Stream decoding
	StreamMaxMalformedLines int `env:"STREAM_MAX_MALFORMED_LINES" envDefault:"0"`

	// Text-to-speech
	TTSEnabled  bool          `env:"TTS_ENABLED" envDefault:"false"`
	TTSAPIURL   string        `env:"TTS_API_URL"`
	TTSAPIPath  string        `env:"TTS_API_PATH" envDefault:"/v1/audio/speech"`
	TTSAPIKey   string        `env:"TTS_API_KEY"`
	TTSVoice    string        `env:"TTS_VOICE" envDefault:"alloy"`
	TTSTimeout  time.Duration `env:"TTS_TIMEOUT" envDefault:"30s"`
	VoiceOutput bool          `env:"VOICE_OUTPUT_DEFAULT" envDefault:"false"`

	// LiveKit voice sessions
	LiveKitWsURL     string        `env:"LIVEKIT_WS_URL" envDefault:"ws://localhost:7880"`
	LiveKitAPIKey    string        `env:"LIVEKIT_API_KEY"`
	LiveKitAPISecret string        `env:"LIVEKIT_API_SECRET"`
	LiveKitTokenTTL  time.Duration `env:"LIVEKIT_TOKEN_TTL" envDefault:"10m"`

	// Conversation storage
	MaxConversations int           `env:"MAX_CONVERSATIONS" envDefault:"10000"`
	RedisURL         string        `env:"REDIS_URL"`
	TranscriptTTL    time.Duration `env:"TRANSCRIPT_TTL" envDefault:"24h"`

	// Event feed
	EventBufferSize      int           `env:"EVENT_BUFFER_SIZE" envDefault:"64"`
	SSEHeartbeatInterval time.Duration `env:"SSE_HEARTBEAT_INTERVAL" envDefault:"15s"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.AuthEnabled {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("AUTH_ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthAudience) == "" {
			return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthJWKSURL) == "" {
			return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ENABLED is true")
		}
	}

	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACE_SAMPLE_RATIO must be between 0 and 1")
	}

	if strings.TrimSpace(c.ChatAPIURL) == "" {
		return fmt.Errorf("CHAT_API_URL is required")
	}
	if c.ChatStreamTimeout < 0 {
		return fmt.Errorf("CHAT_STREAM_TIMEOUT must not be negative")
	}
	if c.StreamMaxMalformedLines < 0 {
		return fmt.Errorf("STREAM_MAX_MALFORMED_LINES must not be negative")
	}

	if c.TTSEnabled && strings.TrimSpace(c.TTSAPIURL) == "" {
		return fmt.Errorf("TTS_API_URL is required when TTS_ENABLED is true")
	}

	switch strings.ToLower(c.LogPIILevel) {
	case "none", "hashed", "full":
	default:
		return fmt.Errorf("LOG_PII_LEVEL must be one of none, hashed, full (got %q)", c.LogPIILevel)
	}

	if c.MaxConversations <= 0 {
		return fmt.Errorf("MAX_CONVERSATIONS must be positive")
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must be positive")
	}
	if c.SSEHeartbeatInterval <= 0 {
		return fmt.Errorf("SSE_HEARTBEAT_INTERVAL must be positive")
	}
	return nil
}

// VoiceSessionsEnabled reports whether LiveKit credentials are configured.
func (c *Config) VoiceSessionsEnabled() bool {
	return strings.TrimSpace(c.LiveKitAPIKey) != "" && strings.TrimSpace(c.LiveKitAPISecret) != ""
}

// Addr returns the HTTP server address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
