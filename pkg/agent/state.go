// Package agent implements the tool-calling reasoning loop and the
// per-session conversation state it operates on.
package agent

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rbegg/go-max/pkg/inference"
)

// State is the mutable conversation record for one session. It is owned by
// exactly one session and must not be shared across sessions.
type State struct {
	// SessionID identifies the owning session.
	SessionID string

	// Username addresses the user in the prompt.
	Username string

	// UserProfile is the opaque key-value bag fetched at startup.
	UserProfile map[string]any

	// Voice is the current TTS voice preference.
	Voice string

	// Messages is the pruned conversation history.
	Messages []inference.Message
}

// NewState creates a fresh conversation state.
func NewState(username, voice string, profile map[string]any) *State {
	return &State{
		SessionID:   uuid.NewString(),
		Username:    username,
		UserProfile: profile,
		Voice:       voice,
	}
}

// Agent binds the shared reasoning engine to one session's state. The agent
// loop and the text-control loop may touch the state from different tasks,
// so every access goes through the mutex.
type Agent struct {
	engine *Engine

	mu    sync.Mutex
	state *State
}

// NewAgent creates an agent for a new session.
func NewAgent(engine *Engine, username, voice string, profile map[string]any) *Agent {
	return &Agent{
		engine: engine,
		state:  NewState(username, voice, profile),
	}
}

// Invoke runs one full reasoning turn for the given utterance and returns
// the assistant's reply text.
func (a *Agent) Invoke(ctx context.Context, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine.Respond(ctx, a.state, text)
}

// SetVoice updates the TTS voice preference.
func (a *Agent) SetVoice(voice string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Voice = voice
}

// Voice returns the current TTS voice preference.
func (a *Agent) Voice() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Voice
}

// SetUsername updates the name used to address the user.
func (a *Agent) SetUsername(username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Username = username
}
