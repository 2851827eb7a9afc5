package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestErrorPayload(t *testing.T) {
	payload := ErrorPayload("query_failed", "connection refused")

	var decoded map[string]string
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("Payload is not valid JSON: %v", err)
	}
	if decoded["error"] != "query_failed" {
		t.Errorf("Expected error kind query_failed, got %s", decoded["error"])
	}
	if decoded["message"] != "connection refused" {
		t.Errorf("Unexpected message: %s", decoded["message"])
	}
}

func TestToolDefinitionDefaultsParameters(t *testing.T) {
	tool := Tool{Name: "bare", Description: "no params"}
	def := tool.Definition()

	if def.Type != "function" {
		t.Errorf("Expected function type, got %s", def.Type)
	}
	if def.Function.Name != "bare" {
		t.Errorf("Unexpected name: %s", def.Function.Name)
	}
	if def.Function.Parameters == nil {
		t.Error("Nil parameters should become an empty object schema")
	}
}

func TestGetCurrentDatetime(t *testing.T) {
	orig := Now
	Now = func() string { return "2025-06-01T09:30" }
	defer func() { Now = orig }()

	p, err := NewTimeTools(Deps{})
	if err != nil {
		t.Fatalf("NewTimeTools failed: %v", err)
	}
	ts := p.Tools()
	if len(ts) != 1 || ts[0].Name != "get_current_datetime" {
		t.Fatalf("Unexpected tools: %+v", ts)
	}

	out, err := ts[0].Handler(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if out != "2025-06-01T09:30" {
		t.Errorf("Unexpected datetime: %s", out)
	}
}
