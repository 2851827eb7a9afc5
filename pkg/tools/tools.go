// Package tools defines the callable capabilities exposed to the reasoning
// loop and the registry that collects them from providers.
package tools

import (
	"context"
	"encoding/json"

	"github.com/rbegg/go-max/pkg/inference"
)

// Tool is a named, schema-described capability the model can invoke.
type Tool struct {
	// Name uniquely identifies the tool within a registry.
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Parameters is the JSON Schema for the tool's arguments.
	Parameters map[string]interface{}

	// Handler executes the tool. It returns a string for the model,
	// conventionally JSON. Handlers must be safe for concurrent calls.
	Handler func(ctx context.Context, args map[string]interface{}) (string, error)
}

// Definition converts the tool to the wire form sent to the model.
func (t Tool) Definition() inference.Tool {
	params := t.Parameters
	if params == nil {
		params = map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
	return inference.NewTool(t.Name, t.Description, params)
}

// ErrorPayload encodes a tool failure as JSON for the model to read.
// The model is expected to recover or apologize, never to see a raw error.
func ErrorPayload(kind, message string) string {
	data, err := json.Marshal(map[string]string{
		"error":   kind,
		"message": message,
	})
	if err != nil {
		return `{"error": "internal", "message": "failed to encode error"}`
	}
	return string(data)
}

// stringArg extracts an optional string argument.
func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}
