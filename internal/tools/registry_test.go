package tools

import (
	"context"
	"errors"
	"testing"
)

type fakeTool struct {
	name   string
	schema map[string]interface{}
	fn     func(ctx context.Context, args map[string]interface{}) (string, error)
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake" }
func (f *fakeTool) Schema() map[string]interface{} {
	return f.schema
}
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return f.fn(ctx, args)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	got := r.Execute(context.Background(), "missing", nil)
	want := "Error: Tool 'missing' not found."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExecuteValidationFailure(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "needs_path",
		schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
			"required":   []string{"path"},
		},
		fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "should not run", nil
		},
	})
	got := r.Execute(context.Background(), "needs_path", map[string]interface{}{})
	want := "Invalid parameters: path: required property missing"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExecuteToolError(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "boom",
		fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", errors.New("kaboom")
		},
	})
	got := r.Execute(context.Background(), "boom", nil)
	want := "Error executing boom: kaboom"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExecuteToolPanicIsRecovered(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "panics",
		fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			panic("unexpected")
		},
	})
	got := r.Execute(context.Background(), "panics", nil)
	if got == "" {
		t.Fatal("expected a non-empty error result, not a propagated panic")
	}
}

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "ok",
		fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "all good", nil
		},
	})
	got := r.Execute(context.Background(), "ok", nil)
	if got != "all good" {
		t.Fatalf("got %q", got)
	}
}

func TestRegisterOverwritesKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "a", fn: func(context.Context, map[string]interface{}) (string, error) { return "a1", nil }})
	r.Register(&fakeTool{name: "b", fn: func(context.Context, map[string]interface{}) (string, error) { return "b1", nil }})
	r.Register(&fakeTool{name: "a", fn: func(context.Context, map[string]interface{}) (string, error) { return "a2", nil }})

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(list))
	}
	if list[0].Name() != "a" || list[1].Name() != "b" {
		t.Fatalf("expected registration order preserved, got %v", []string{list[0].Name(), list[1].Name()})
	}
	got := r.Execute(context.Background(), "a", nil)
	if got != "a2" {
		t.Fatalf("expected overwritten tool to run, got %q", got)
	}
}
