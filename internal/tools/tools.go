// Package tools provides the callable-tool registry: declaration of
// tools to the model and execution of the calls it issues.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferrule/courier/internal/conversation"
	"github.com/ferrule/courier/internal/openrouter"
	"github.com/ferrule/courier/internal/schema"
)

// Handler runs one tool invocation. The returned value is serialized
// as the tool result; an error becomes an error payload the model can
// read, never a failed conversation.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is a registered callable.
type Tool struct {
	Name        string
	Description string
	Parameters  *schema.Schema
	Handler     Handler
}

const executeTimeout = 60 * time.Second

type Registry struct {
	tools        map[string]Tool
	declarations []openrouter.Tool
	logger       *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{tools: make(map[string]Tool), logger: logger}
}

// Register adds a tool. The wire declaration is built eagerly so a
// broken parameter schema fails at startup, not mid-conversation.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("tool must have a name and a handler")
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	decl, err := openrouter.FormatTool(t.Name, t.Description, t.Parameters)
	if err != nil {
		return err
	}
	r.tools[t.Name] = t
	r.declarations = append(r.declarations, decl)
	return nil
}

// Declarations returns the wire declarations in registration order.
func (r *Registry) Declarations() []openrouter.Tool {
	return r.declarations
}

// Execute runs a model-issued call and always produces a tool-result
// turn: unknown tools and handler failures become error payloads.
func (r *Registry) Execute(ctx context.Context, call conversation.ToolCall) conversation.Turn {
	tool, ok := r.tools[call.Name]
	if !ok {
		r.logger.Warn("model called unknown tool", "tool", call.Name)
		return conversation.ToolResult(call.ID, map[string]any{
			"error": fmt.Sprintf("unknown tool %q", call.Name),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	r.logger.Debug("executing tool", "tool", call.Name, "call_id", call.ID)
	result, err := tool.Handler(ctx, call.Arguments)
	if err != nil {
		r.logger.Warn("tool failed", "tool", call.Name, "error", err)
		return conversation.ToolResult(call.ID, map[string]any{"error": err.Error()})
	}
	return conversation.ToolResult(call.ID, result)
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

// optionalStringArg extracts an optional string argument, tolerating
// the explicit null the strict schema widening permits.
func optionalStringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}
