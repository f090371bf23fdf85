package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agent-swarm/bridge/swarm"
	"github.com/agent-swarm/bridge/tools"
)

func registerBuiltinTools(a *swarm.Agent) {
	must(a.Tools().Register(tools.Definition{
		Name:        "echo",
		Description: "Returns its input argument unchanged.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{
					"type":        "string",
					"description": "Text to echo back.",
				},
			},
			"required": []string{"input"},
		},
	}, handleEcho))

	must(a.Tools().Register(tools.Definition{
		Name:        "datetime",
		Description: "Returns the current date and time in RFC3339 format.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, handleDatetime))

	must(a.Tools().Register(tools.Definition{
		Name:        "list_directory",
		Description: "Lists files and directories at the given path.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute or relative path to the directory to list.",
				},
			},
		},
	}, handleListDirectory))
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("failed to register tool: %v", err))
	}
}

func handleEcho(_ context.Context, args map[string]any) (any, error) {
	input, ok := args["input"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: input is required", tools.ErrInvalidArguments)
	}
	return input, nil
}

func handleDatetime(_ context.Context, _ map[string]any) (any, error) {
	return time.Now().Format(time.RFC3339), nil
}

func handleListDirectory(_ context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
