// Package tools implements the specialist tools personas may call during a
// run. Every tool satisfies eino's tool.InvokableTool; failures are
// converted into structured results at this boundary so a broken tool
// degrades the answer instead of killing the run.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/jordanmt/career-compass/backend/internal/blob"
)

// failureResult is the payload returned to the model when a tool fails.
type failureResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Registry holds the available tools keyed by name.
type Registry struct {
	tools map[string]tool.InvokableTool
}

// NewRegistry wires the built-in tool set against its collaborators.
func NewRegistry(blobStore blob.Store) *Registry {
	r := &Registry{tools: make(map[string]tool.InvokableTool)}
	r.register(&resumeTool{})
	r.register(&interviewTool{})
	r.register(&jobsTool{listings: seedListings()})
	r.register(&documentTool{blobs: blobStore})
	return r
}

func (r *Registry) register(t tool.InvokableTool) {
	info, err := t.Info(context.Background())
	if err != nil {
		// Built-in tools never fail Info; a failure here is a programming error.
		panic(fmt.Sprintf("tool info: %v", err))
	}
	r.tools[info.Name] = t
}

// Infos returns tool declarations for the named tools, preserving order.
// Unknown names are skipped.
func (r *Registry) Infos(ctx context.Context, names []string) []*schema.ToolInfo {
	var infos []*schema.ToolInfo
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			continue
		}
		info, err := t.Info(ctx)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// Run executes a tool by name. The returned string is always valid JSON for
// the model to consume; errors and unknown tools become {success:false}
// payloads. The second return is an optional client-facing payload (e.g. a
// created document reference) extracted from the result's "display" field.
func (r *Registry) Run(ctx context.Context, name, argsJSON string) (string, json.RawMessage) {
	t, ok := r.tools[name]
	if !ok {
		return failJSON("unknown_tool", fmt.Sprintf("no tool named %q", name)), nil
	}

	out, err := t.InvokableRun(ctx, argsJSON)
	if err != nil {
		log.Printf("[tools] %s failed: %v", name, err)
		return failJSON("tool_error", err.Error()), nil
	}

	var envelope struct {
		Display json.RawMessage `json:"display"`
	}
	if err := json.Unmarshal([]byte(out), &envelope); err == nil && len(envelope.Display) > 0 {
		return out, envelope.Display
	}
	return out, nil
}

func failJSON(code, message string) string {
	data, err := json.Marshal(failureResult{Success: false, Error: code, Message: message})
	if err != nil {
		return `{"success":false,"error":"tool_error"}`
	}
	return string(data)
}
