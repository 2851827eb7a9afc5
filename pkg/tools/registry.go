package tools

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbegg/go-max/pkg/graphdb"
	"github.com/rbegg/go-max/pkg/inference"
)

// Deps holds the shared dependencies injected into every tool provider.
// Provider constructors take the whole struct and pick what they need.
type Deps struct {
	DB     *graphdb.Client
	LLM    inference.Provider
	Logger *slog.Logger
}

// Provider groups related tools that share constructor dependencies.
type Provider interface {
	// Tools returns the provider's tool definitions. Called once; the
	// result is cached by the registry.
	Tools() []Tool
}

// Factory constructs a provider from the shared dependencies.
type Factory func(Deps) (Provider, error)

// Registry collects tool providers and exposes their tools as one flat,
// stable list. Providers are constructed lazily and cached; the registry is
// read-only after Init and safe to share across sessions.
type Registry struct {
	deps   Deps
	logger *slog.Logger

	mu        sync.Mutex
	order     []string
	factories map[string]Factory
	instances map[string]Provider

	// Built by Init.
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry creates an empty registry with the given shared dependencies.
func NewRegistry(deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		deps:      deps,
		logger:    logger.With("component", "tools.registry"),
		factories: make(map[string]Factory),
		instances: make(map[string]Provider),
	}
}

// Register records a provider factory under a name. Registering the same
// name twice is a no-op, so providers can be registered from multiple
// call sites safely.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return
	}
	r.factories[name] = f
	r.order = append(r.order, name)
}

// provider returns the cached instance for name, constructing it on first use.
func (r *Registry) provider(name string) (Provider, error) {
	if p, ok := r.instances[name]; ok {
		return p, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("tools: unknown provider %q", name)
	}
	p, err := f(r.deps)
	if err != nil {
		return nil, fmt.Errorf("tools: construct provider %q: %w", name, err)
	}
	r.instances[name] = p
	return p, nil
}

// Init instantiates every registered provider and builds the flat tool list.
// Any constructor failure or duplicate tool name is fatal: the registry must
// be complete or not exist at all.
func (r *Registry) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tools != nil {
		return nil
	}

	var all []Tool
	byName := make(map[string]Tool)
	for _, name := range r.order {
		p, err := r.provider(name)
		if err != nil {
			return err
		}
		ts := p.Tools()
		for _, t := range ts {
			if _, dup := byName[t.Name]; dup {
				return fmt.Errorf("tools: duplicate tool name %q from provider %q", t.Name, name)
			}
			byName[t.Name] = t
		}
		all = append(all, ts...)
		r.logger.Info("registered tool provider", "provider", name, "tools", len(ts))
	}

	r.tools = all
	r.byName = byName
	return nil
}

// All returns every tool in registration order. The order is stable for the
// process lifetime. Init must have succeeded.
func (r *Registry) All() []Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tools
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byName[name]
	return t, ok
}

// Definitions returns the wire-form tool definitions for the model, in the
// same stable order as All.
func (r *Registry) Definitions() []inference.Tool {
	all := r.All()
	defs := make([]inference.Tool, len(all))
	for i, t := range all {
		defs[i] = t.Definition()
	}
	return defs
}
