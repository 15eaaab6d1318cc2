// Package tools holds the tool definitions a worker may offer the model and
// dispatches the calls the model asks for.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/chattutor/core/protocol"
)

// Handler is the function signature for tool implementations.
// Handlers receive the request context and JSON-encoded arguments from the LLM.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Result is the tool execution output that feeds back into the follow-up call.
// IsError signals that the tool invocation failed.
type Result struct {
	Content string
	IsError bool
}

// Executor lists and executes tools. Registry satisfies it; tests
// substitute fakes.
type Executor interface {
	List() []protocol.Tool
	Execute(ctx context.Context, name string, args json.RawMessage) (Result, error)
}

type entry struct {
	tool    protocol.Tool
	handler Handler
}

// Registry is a concurrency-safe set of named tools.
type Registry struct {
	entries map[string]entry
	mu      sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

var global = NewRegistry()

// Global returns the process-wide registry used by the package-level functions.
func Global() *Registry {
	return global
}

// Register adds a new tool. It returns ErrAlreadyExists for a taken name;
// use Replace to swap the handler.
func (r *Registry) Register(tool protocol.Tool, handler Handler) error {
	return r.put(tool, handler, false)
}

// Replace updates a registered tool's definition and handler. It returns
// ErrNotFound when no tool has that name.
func (r *Registry) Replace(tool protocol.Tool, handler Handler) error {
	return r.put(tool, handler, true)
}

func (r *Registry) put(tool protocol.Tool, handler Handler, replace bool) error {
	if tool.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.entries[tool.Name]
	switch {
	case replace && !exists:
		return fmt.Errorf("%w: %s", ErrNotFound, tool.Name)
	case !replace && exists:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, tool.Name)
	}

	r.entries[tool.Name] = entry{tool: tool, handler: handler}
	return nil
}

// Get retrieves a handler by tool name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return nil, false
	}
	return e.handler, true
}

// List returns the definitions of all registered tools sorted by name, so
// the tool block sent to the model is stable across calls.
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]protocol.Tool, 0, len(r.entries))
	for _, e := range r.entries {
		tools = append(tools, e.tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return tools
}

// Execute runs the handler registered under name. A cancelled context is
// returned without dispatching; handler errors are wrapped with the tool
// name.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("tool %s: %w", name, err)
	}

	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	result, err := e.handler(ctx, args)
	if err != nil {
		return Result{}, fmt.Errorf("tool %s execution failed: %w", name, err)
	}

	return result, nil
}

// Register adds a tool to the global registry.
func Register(tool protocol.Tool, handler Handler) error {
	return global.Register(tool, handler)
}

// Replace updates a tool in the global registry.
func Replace(tool protocol.Tool, handler Handler) error {
	return global.Replace(tool, handler)
}

// Get retrieves a handler from the global registry.
func Get(name string) (Handler, bool) {
	return global.Get(name)
}

// List returns the tools of the global registry.
func List() []protocol.Tool {
	return global.List()
}

// Execute dispatches a call through the global registry.
func Execute(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	return global.Execute(ctx, name, args)
}
