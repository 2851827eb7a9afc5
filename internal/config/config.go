// Package config loads go-max configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 9000
	DefaultVoice        = "en_US-hfc_female-medium"
	DefaultUsername     = "User"
	DefaultPruningLimit = 10
)

// Config holds all configuration for the assistant server.
// It is data only; loading happens in FromEnv.
type Config struct {
	// HTTP server bind address.
	Host string
	Port int

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	// Ollama (OpenAI-compatible) endpoint and model.
	OllamaBaseURL string
	OllamaModel   string

	// Neo4j connection.
	Neo4jURI      string
	Neo4jUsername string
	Neo4jPassword string

	// Speech services.
	STTWebSocketURL string
	TTSAddr         string
	TTSVoice        string

	// Conversation defaults.
	Username     string
	PruningLimit int

	// Timing.
	QueueGetTimeout time.Duration
	ShutdownTimeout time.Duration
	STTRetryDelay   time.Duration
	TTSRetryDelay   time.Duration
}

// FromEnv builds a Config from environment variables, falling back to
// defaults suitable for local development.
func FromEnv() Config {
	return Config{
		Host:            envStr("HOST", DefaultHost),
		Port:            envInt("PORT", DefaultPort),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		OllamaBaseURL:   envStr("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		OllamaModel:     envStr("OLLAMA_MODEL_NAME", "llama3"),
		Neo4jURI:        envStr("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUsername:   envStr("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword:   envStr("NEO4J_PASSWORD", "password"),
		STTWebSocketURL: envStr("STT_WEBSOCKET_URL", "ws://stt/ws"),
		TTSAddr:         envStr("TTS_ADDR", "tts:10200"),
		TTSVoice:        envStr("TTS_VOICE", DefaultVoice),
		Username:        envStr("DEFAULT_USERNAME", DefaultUsername),
		PruningLimit:    envInt("MESSAGE_PRUNING_LIMIT", DefaultPruningLimit),
		QueueGetTimeout: envDuration("QUEUE_GET_TIMEOUT", time.Second),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		STTRetryDelay:   envDuration("STT_RETRY_DELAY", 5*time.Second),
		TTSRetryDelay:   envDuration("TTS_RETRY_DELAY", 5*time.Second),
	}
}

// Validate checks that required configuration is usable.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return &Error{Field: "Port", Message: "PORT must be between 1 and 65535"}
	}
	if c.PruningLimit <= 0 {
		return &Error{Field: "PruningLimit", Message: "MESSAGE_PRUNING_LIMIT must be positive"}
	}
	if c.OllamaModel == "" {
		return &Error{Field: "OllamaModel", Message: "OLLAMA_MODEL_NAME must not be empty"}
	}
	return nil
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envDuration reads a duration either as a Go duration string ("1.5s")
// or as a bare number of seconds ("1.5").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}
