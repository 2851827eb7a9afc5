package inference

import (
	"context"
	"log/slog"
	"time"
)

// Warmup forces the backend to load the configured model by issuing a
// minimal generation request. Local servers like Ollama load model weights
// on the first request, which can take tens of seconds; doing it at startup
// keeps the first real user turn fast.
func Warmup(ctx context.Context, p Provider, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	logger.Info("warming up model")

	_, err := p.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("Hello")},
		MaxTokens: 1,
	})
	if err != nil {
		logger.Error("model warm-up failed", "error", err)
		return err
	}

	logger.Info("model warm-up complete", "elapsed", time.Since(start))
	return nil
}
