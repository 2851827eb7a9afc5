package config

import (
	"errors"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Host != DefaultHost {
		t.Errorf("Expected host %s, got %s", DefaultHost, cfg.Host)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.PruningLimit != DefaultPruningLimit {
		t.Errorf("Expected pruning limit %d, got %d", DefaultPruningLimit, cfg.PruningLimit)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected 5s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("OLLAMA_MODEL_NAME", "qwen2")
	t.Setenv("MESSAGE_PRUNING_LIMIT", "20")
	t.Setenv("TTS_VOICE", "en_GB-alba-medium")

	cfg := FromEnv()
	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.OllamaModel != "qwen2" {
		t.Errorf("Expected model qwen2, got %s", cfg.OllamaModel)
	}
	if cfg.PruningLimit != 20 {
		t.Errorf("Expected pruning limit 20, got %d", cfg.PruningLimit)
	}
	if cfg.TTSVoice != "en_GB-alba-medium" {
		t.Errorf("Expected overridden voice, got %s", cfg.TTSVoice)
	}
}

func TestEnvDurationForms(t *testing.T) {
	// Go duration syntax.
	t.Setenv("QUEUE_GET_TIMEOUT", "250ms")
	// Bare seconds, as the deployment scripts write it.
	t.Setenv("SHUTDOWN_TIMEOUT", "2.5")
	// Garbage falls back to the default.
	t.Setenv("STT_RETRY_DELAY", "soon")

	cfg := FromEnv()
	if cfg.QueueGetTimeout != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", cfg.QueueGetTimeout)
	}
	if cfg.ShutdownTimeout != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.STTRetryDelay != 5*time.Second {
		t.Errorf("Expected default 5s, got %v", cfg.STTRetryDelay)
	}
}

func TestValidate(t *testing.T) {
	cfg := FromEnv()

	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected invalid port to fail validation")
	}

	cfg = FromEnv()
	cfg.PruningLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Expected negative pruning limit to fail validation")
	}

	cfg = FromEnv()
	cfg.OllamaModel = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected empty model to fail validation")
	}
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Field != "OllamaModel" {
		t.Errorf("Expected OllamaModel field error, got %v", err)
	}
}
