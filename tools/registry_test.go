package tools_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/agent-swarm/bridge/tools"
)

func testDef(name string) tools.Definition {
	return tools.Definition{
		Name:        name,
		Description: "test tool: " + name,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{"type": "string"},
			},
		},
	}
}

func echoHandler(_ context.Context, args map[string]any) (any, error) {
	return args, nil
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		def     tools.Definition
		wantErr error
	}{
		{
			name: "valid tool",
			def:  testDef("echo"),
		},
		{
			name:    "empty name",
			def:     tools.Definition{Name: ""},
			wantErr: tools.ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tools.NewRegistry()
			err := r.Register(tt.def, echoHandler)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("Register() unexpected error: %v", err)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := tools.NewRegistry()

	if err := r.Register(testDef("echo"), echoHandler); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}

	err := r.Register(testDef("echo"), echoHandler)
	if !errors.Is(err, tools.ErrAlreadyExists) {
		t.Errorf("second Register() error = %v, want %v", err, tools.ErrAlreadyExists)
	}
}

func TestReplace(t *testing.T) {
	r := tools.NewRegistry()

	if err := r.Register(testDef("echo"), echoHandler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	replacement := func(_ context.Context, _ map[string]any) (any, error) {
		return "replaced", nil
	}
	if err := r.Replace(testDef("echo"), replacement); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	result, err := r.Execute(context.Background(), "echo", nil)
	if err != nil {
		t.Fatalf("Execute() after Replace() failed: %v", err)
	}
	if result != "replaced" {
		t.Errorf("Execute() result = %v, want %q", result, "replaced")
	}
}

func TestReplace_NotFound(t *testing.T) {
	r := tools.NewRegistry()

	err := r.Replace(testDef("missing"), echoHandler)
	if !errors.Is(err, tools.ErrNotFound) {
		t.Errorf("Replace() error = %v, want %v", err, tools.ErrNotFound)
	}
}

func TestReplace_EmptyName(t *testing.T) {
	r := tools.NewRegistry()

	err := r.Replace(tools.Definition{Name: ""}, echoHandler)
	if !errors.Is(err, tools.ErrEmptyName) {
		t.Errorf("Replace() error = %v, want %v", err, tools.ErrEmptyName)
	}
}

func TestGet(t *testing.T) {
	r := tools.NewRegistry()

	if err := r.Register(testDef("echo"), echoHandler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler, exists := r.Get("echo")
	if !exists {
		t.Fatal("Get() returned exists=false, want true")
	}
	if handler == nil {
		t.Fatal("Get() returned nil handler")
	}
}

func TestGet_NotFound(t *testing.T) {
	r := tools.NewRegistry()

	if _, exists := r.Get("missing"); exists {
		t.Error("Get() returned exists=true for nonexistent tool")
	}
}

func TestNames_Sorted(t *testing.T) {
	r := tools.NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(testDef(name), echoHandler); err != nil {
			t.Fatalf("Register(%q) failed: %v", name, err)
		}
	}

	want := []string{"alpha", "mid", "zeta"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestList(t *testing.T) {
	r := tools.NewRegistry()
	r.Register(testDef("list_tool_1"), echoHandler)
	r.Register(testDef("list_tool_2"), echoHandler)

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d definitions, want 2", len(list))
	}
	if list[0].Name != "list_tool_1" || list[1].Name != "list_tool_2" {
		t.Errorf("List() names = %q, %q; want sorted order", list[0].Name, list[1].Name)
	}
}

func TestExecute(t *testing.T) {
	r := tools.NewRegistry()
	handler := func(_ context.Context, args map[string]any) (any, error) {
		input, _ := args["input"].(string)
		return "echo: " + input, nil
	}

	if err := r.Register(testDef("echo"), handler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	result, err := r.Execute(context.Background(), "echo", map[string]any{"input": "hello"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if result != "echo: hello" {
		t.Errorf("Execute() result = %v, want %q", result, "echo: hello")
	}
}

func TestExecute_NotFound(t *testing.T) {
	r := tools.NewRegistry()

	_, err := r.Execute(context.Background(), "missing", nil)
	if !errors.Is(err, tools.ErrNotFound) {
		t.Errorf("Execute() error = %v, want %v", err, tools.ErrNotFound)
	}
}

func TestExecute_HandlerError(t *testing.T) {
	r := tools.NewRegistry()
	handlerErr := errors.New("handler failed")
	handler := func(_ context.Context, _ map[string]any) (any, error) {
		return nil, handlerErr
	}

	if err := r.Register(testDef("broken"), handler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	_, err := r.Execute(context.Background(), "broken", nil)
	if err == nil {
		t.Fatal("Execute() expected error, got nil")
	}
	if !errors.Is(err, handlerErr) {
		t.Errorf("Execute() error chain does not contain handler error: %v", err)
	}
}

func TestExecute_InvalidArgumentsPassThrough(t *testing.T) {
	r := tools.NewRegistry()
	handler := func(_ context.Context, args map[string]any) (any, error) {
		if _, ok := args["input"]; !ok {
			return nil, fmt.Errorf("%w: input is required", tools.ErrInvalidArguments)
		}
		return "ok", nil
	}

	if err := r.Register(testDef("strict"), handler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	_, err := r.Execute(context.Background(), "strict", map[string]any{})
	if !errors.Is(err, tools.ErrInvalidArguments) {
		t.Errorf("Execute() error = %v, want %v", err, tools.ErrInvalidArguments)
	}
}

func TestExecute_RespectsContext(t *testing.T) {
	r := tools.NewRegistry()
	handler := func(ctx context.Context, _ map[string]any) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return "ok", nil
	}

	if err := r.Register(testDef("ctx"), handler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Execute(ctx, "ctx", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}
