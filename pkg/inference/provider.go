// Package inference provides a chat-completion client for OpenAI-compatible
// APIs, used here against a local Ollama server.
package inference

import "context"

// ChatRequest is a request for a chat completion.
type ChatRequest struct {
	// Model overrides the configured default model.
	Model string

	// Messages is the conversation so far, including the system prompt.
	Messages []Message

	// Tools the model may call.
	Tools []Tool

	// ToolChoice controls tool selection ("auto", "none", or a tool name).
	ToolChoice string

	// Sampling overrides. Zero values fall back to config defaults.
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
}

// ChatResponse is the model's reply to a ChatRequest.
type ChatResponse struct {
	// Message is the assistant message, possibly carrying tool calls.
	Message Message

	// FinishReason reports why generation stopped ("stop", "tool_calls", ...).
	FinishReason string

	// Usage reports token accounting.
	Usage Usage

	// Model is the model that produced the response.
	Model string

	// LatencyMs is the round-trip time in milliseconds.
	LatencyMs int64
}

// Usage reports token consumption for a request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is the interface implemented by inference backends.
type Provider interface {
	// Chat generates a chat completion.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health checks API connectivity.
	Health(ctx context.Context) error

	// Close releases resources.
	Close() error
}
