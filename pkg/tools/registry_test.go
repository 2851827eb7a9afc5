package tools

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	ts []Tool
}

func (f fakeProvider) Tools() []Tool { return f.ts }

func namedTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "test tool " + name,
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return name, nil
		},
	}
}

func TestRegistryStableOrder(t *testing.T) {
	r := NewRegistry(Deps{})
	r.Register("b", func(Deps) (Provider, error) {
		return fakeProvider{ts: []Tool{namedTool("beta"), namedTool("gamma")}}, nil
	})
	r.Register("a", func(Deps) (Provider, error) {
		return fakeProvider{ts: []Tool{namedTool("alpha")}}, nil
	})

	if err := r.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// Registration order, not name order.
	want := []string{"beta", "gamma", "alpha"}
	all := r.All()
	if len(all) != len(want) {
		t.Fatalf("Expected %d tools, got %d", len(want), len(all))
	}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, all[i].Name)
		}
	}

	defs := r.Definitions()
	for i, name := range want {
		if defs[i].Function.Name != name {
			t.Errorf("Definition %d: expected %s, got %s", i, name, defs[i].Function.Name)
		}
	}
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	constructed := 0
	r := NewRegistry(Deps{})
	factory := func(Deps) (Provider, error) {
		constructed++
		return fakeProvider{ts: []Tool{namedTool("only")}}, nil
	}
	r.Register("p", factory)
	r.Register("p", factory)

	if err := r.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if constructed != 1 {
		t.Errorf("Provider constructed %d times, expected 1", constructed)
	}
	if len(r.All()) != 1 {
		t.Errorf("Expected 1 tool, got %d", len(r.All()))
	}
}

func TestRegistryInitFailsOnConstructorError(t *testing.T) {
	boom := errors.New("no database")
	r := NewRegistry(Deps{})
	r.Register("broken", func(Deps) (Provider, error) { return nil, boom })

	err := r.Init()
	if err == nil {
		t.Fatal("Expected Init to fail")
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped constructor error, got %v", err)
	}
}

func TestRegistryInitFailsOnDuplicateToolName(t *testing.T) {
	r := NewRegistry(Deps{})
	r.Register("one", func(Deps) (Provider, error) {
		return fakeProvider{ts: []Tool{namedTool("same")}}, nil
	})
	r.Register("two", func(Deps) (Provider, error) {
		return fakeProvider{ts: []Tool{namedTool("same")}}, nil
	})

	if err := r.Init(); err == nil {
		t.Fatal("Expected Init to fail on duplicate tool name")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(Deps{})
	r.Register("p", func(Deps) (Provider, error) {
		return fakeProvider{ts: []Tool{namedTool("findme")}}, nil
	})
	if err := r.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	tool, ok := r.Lookup("findme")
	if !ok {
		t.Fatal("Lookup failed for registered tool")
	}
	out, err := tool.Handler(context.Background(), nil)
	if err != nil || out != "findme" {
		t.Errorf("Handler returned (%q, %v)", out, err)
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup should fail for unregistered tool")
	}
}
