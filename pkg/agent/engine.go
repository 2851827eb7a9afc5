package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rbegg/go-max/pkg/inference"
	"github.com/rbegg/go-max/pkg/tools"
)

// DefaultPruningLimit bounds history length when no limit is configured.
const DefaultPruningLimit = 10

// DefaultMaxToolCycles bounds tool-call round trips within one turn. Weak
// models occasionally loop on tool calls; after the cap the engine asks for
// a plain reply instead of executing more tools.
const DefaultMaxToolCycles = 8

// Engine runs the tool-calling reasoning loop. One engine is shared across
// all sessions; per-session data lives in State.
type Engine struct {
	provider      inference.Provider
	registry      *tools.Registry
	defs          []inference.Tool
	pruneLimit    int
	maxToolCycles int
	logger        *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPruningLimit sets the history length bound.
func WithPruningLimit(n int) EngineOption {
	return func(e *Engine) { e.pruneLimit = n }
}

// WithMaxToolCycles sets the per-turn tool round-trip bound.
func WithMaxToolCycles(n int) EngineOption {
	return func(e *Engine) { e.maxToolCycles = n }
}

// WithEngineLogger sets the structured logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds the engine. It initializes the registry eagerly: a tool
// provider that cannot be constructed makes the whole engine unavailable.
func NewEngine(provider inference.Provider, registry *tools.Registry, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		provider:      provider,
		registry:      registry,
		pruneLimit:    DefaultPruningLimit,
		maxToolCycles: DefaultMaxToolCycles,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "agent.engine")

	if err := registry.Init(); err != nil {
		return nil, err
	}
	e.defs = registry.Definitions()

	return e, nil
}

// Respond runs one turn: it threads the utterance through prepare, prune,
// model invocation and tool execution until the model produces a plain
// reply, then returns that reply. The state is updated in place.
func (e *Engine) Respond(ctx context.Context, st *State, userText string) (string, error) {
	e.prepareInput(st, userText)

	for cycle := 0; ; cycle++ {
		st.Messages = pruneHistory(st.Messages, e.pruneLimit)

		req := &inference.ChatRequest{
			Messages: append([]inference.Message{systemMessage(st, tools.Now())}, st.Messages...),
		}

		// Past the cycle cap the model must answer in plain text.
		toolsAllowed := cycle < e.maxToolCycles
		if toolsAllowed {
			req.Tools = e.defs
		} else {
			e.logger.Warn("tool cycle cap reached, forcing plain reply", "session", st.SessionID)
		}

		resp, err := e.provider.Chat(ctx, req)
		if err != nil {
			return "", err
		}

		msg := resp.Message
		if len(msg.ToolCalls) == 0 && toolsAllowed {
			msg.ToolCalls = e.coerceToolCalls(msg.Content)
		}

		st.Messages = append(st.Messages, msg)

		if len(msg.ToolCalls) == 0 || !toolsAllowed {
			e.logger.Debug("turn complete", "session", st.SessionID, "cycles", cycle)
			return msg.Content, nil
		}

		e.executeTools(ctx, st, msg.ToolCalls)
	}
}

// prepareInput appends the utterance unless the previous turn ended
// mid-tool-call, in which case the user input is already in history and
// appending again would double it.
func (e *Engine) prepareInput(st *State, userText string) {
	if n := len(st.Messages); n > 0 && st.Messages[n-1].Role == inference.RoleTool {
		return
	}
	st.Messages = append(st.Messages, inference.NewUserMessage(userText))
}

// pruneHistory evicts oldest messages until the history fits the limit.
// The cut never leaves a tool result at the head without the assistant
// message that requested it: if the boundary falls inside a call/result
// pair, the whole pair is dropped.
func pruneHistory(msgs []inference.Message, limit int) []inference.Message {
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}

	cut := len(msgs) - limit
	for cut < len(msgs) && msgs[cut].Role == inference.RoleTool {
		cut++
	}
	return msgs[cut:]
}

// executeTools resolves and runs every pending call, appending one tool
// result per call. Failures become error payloads for the model, never
// turn-level errors.
func (e *Engine) executeTools(ctx context.Context, st *State, calls []inference.ToolCall) {
	for _, call := range calls {
		result := e.invokeTool(ctx, call)
		msg := inference.NewToolMessage(call.ID, result)
		msg.Name = call.Name
		st.Messages = append(st.Messages, msg)
	}
}

func (e *Engine) invokeTool(ctx context.Context, call inference.ToolCall) string {
	tool, ok := e.registry.Lookup(call.Name)
	if !ok {
		e.logger.Warn("model requested unknown tool", "tool", call.Name)
		return tools.ErrorPayload("unknown_tool", "no tool named "+call.Name)
	}

	args := map[string]interface{}{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			e.logger.Warn("invalid tool arguments", "tool", call.Name, "error", err)
			return tools.ErrorPayload("invalid_arguments", err.Error())
		}
	}

	e.logger.Info("executing tool", "tool", call.Name)
	result, err := tool.Handler(ctx, args)
	if err != nil {
		e.logger.Error("tool execution failed", "tool", call.Name, "error", err)
		return tools.ErrorPayload("tool_failed", err.Error())
	}
	return result
}

// coerceToolCalls handles a quirk of smaller local models: instead of a
// structured tool call they sometimes answer with free text that is itself
// a JSON object like {"name": "get_current_datetime", "parameters": {}}.
// This is a compatibility shim, not part of the provider contract; a
// well-behaved model never triggers it.
func (e *Engine) coerceToolCalls(content string) []inference.ToolCall {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}

	var probe struct {
		Name       string         `json:"name"`
		Parameters map[string]any `json:"parameters"`
		Arguments  map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil || probe.Name == "" {
		return nil
	}

	// Only names that resolve to a registered tool are reinterpreted;
	// anything else is treated as an ordinary text reply.
	if _, ok := e.registry.Lookup(probe.Name); !ok {
		return nil
	}

	args := probe.Parameters
	if args == nil {
		args = probe.Arguments
	}
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil
	}

	e.logger.Info("coerced free-text tool call", "tool", probe.Name)
	return []inference.ToolCall{{
		ID:        "call_" + uuid.NewString(),
		Name:      probe.Name,
		Arguments: string(argsJSON),
	}}
}
