// Package agent exposes model capabilities (chat, tool-augmented chat, and
// structured decode) behind a single Agent interface, plus a registry of
// named agent configurations.
package agent

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/chattutor/agent/providers"
	"github.com/tailored-agentic-units/chattutor/core/config"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/core/response"
)

// Agent is a configured model endpoint. Each call is a single synchronous
// request; opts are merged over the configured protocol options.
type Agent interface {
	ID() string
	Chat(ctx context.Context, messages []protocol.Message, opts ...map[string]any) (*response.ChatResponse, error)
	Tools(ctx context.Context, messages []protocol.Message, tools []protocol.Tool, opts ...map[string]any) (*response.ToolsResponse, error)
	Structured(ctx context.Context, messages []protocol.Message, schema map[string]any, opts ...map[string]any) (*response.ChatResponse, error)
}

type agent struct {
	id       string
	name     string
	provider providers.Provider
	model    *config.ModelConfig
}

// New creates an Agent from configuration. The provider is resolved by name.
func New(cfg *config.AgentConfig) (Agent, error) {
	if cfg == nil || cfg.Provider == nil || cfg.Model == nil {
		return nil, fmt.Errorf("%w: provider and model are required", ErrInvalidConfig)
	}
	if cfg.Model.Name == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrInvalidConfig)
	}

	p, err := providers.New(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return NewWithProvider(cfg, p), nil
}

// NewWithProvider creates an Agent over an already constructed provider.
func NewWithProvider(cfg *config.AgentConfig, p providers.Provider) Agent {
	return &agent{
		id:       uuid.Must(uuid.NewV7()).String(),
		name:     cfg.Name,
		provider: p,
		model:    cfg.Model,
	}
}

func (a *agent) ID() string {
	return a.id
}

func (a *agent) Chat(ctx context.Context, messages []protocol.Message, opts ...map[string]any) (*response.ChatResponse, error) {
	if !a.supports(protocol.Chat) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, protocol.Chat)
	}
	return a.provider.Chat(ctx, &providers.ChatData{
		Model:    a.model.Name,
		Messages: messages,
		Options:  a.options(protocol.Chat, opts),
	})
}

func (a *agent) Tools(ctx context.Context, messages []protocol.Message, tools []protocol.Tool, opts ...map[string]any) (*response.ToolsResponse, error) {
	if !a.supports(protocol.Tools) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, protocol.Tools)
	}
	return a.provider.Tools(ctx, &providers.ToolsData{
		Model:    a.model.Name,
		Messages: messages,
		Tools:    tools,
		Options:  a.options(protocol.Tools, opts),
	})
}

func (a *agent) Structured(ctx context.Context, messages []protocol.Message, schema map[string]any, opts ...map[string]any) (*response.ChatResponse, error) {
	if !a.supports(protocol.Structured) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, protocol.Structured)
	}
	return a.provider.Structured(ctx, &providers.StructuredData{
		Model:    a.model.Name,
		Messages: messages,
		Schema:   schema,
		Options:  a.options(protocol.Structured, opts),
	})
}

// supports reports whether the model enables p. A model with no declared
// capabilities supports every protocol.
func (a *agent) supports(p protocol.Protocol) bool {
	if len(a.model.Capabilities) == 0 {
		return true
	}
	_, ok := a.model.Capabilities[string(p)]
	return ok
}

func (a *agent) options(p protocol.Protocol, overrides []map[string]any) map[string]any {
	out := make(map[string]any)
	maps.Copy(out, a.model.Options)
	maps.Copy(out, a.model.Capabilities[string(p)])
	for _, o := range overrides {
		maps.Copy(out, o)
	}
	return out
}
