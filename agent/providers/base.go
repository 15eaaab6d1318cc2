// Package providers implements model provider clients behind the Provider
// interface used by the agent package.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/core/response"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingAPIKey   = errors.New("provider api key is required")
	ErrRequestFailed   = errors.New("provider request failed")
)

// Provider executes protocol requests against a model endpoint.
type Provider interface {
	Name() string
	BaseURL() string
	Chat(ctx context.Context, data *ChatData) (*response.ChatResponse, error)
	Tools(ctx context.Context, data *ToolsData) (*response.ToolsResponse, error)
	Structured(ctx context.Context, data *StructuredData) (*response.ChatResponse, error)
}

// BaseProvider holds the identity shared by all providers and marshals
// OpenAI-style request bodies.
type BaseProvider struct {
	name    string
	baseURL string
}

// NewBaseProvider creates a BaseProvider.
func NewBaseProvider(name, baseURL string) *BaseProvider {
	return &BaseProvider{name: name, baseURL: baseURL}
}

// Name returns the provider name.
func (p *BaseProvider) Name() string {
	return p.name
}

// BaseURL returns the provider base URL.
func (p *BaseProvider) BaseURL() string {
	return p.baseURL
}

type toolFunction struct {
	Type     string        `json:"type"`
	Function protocol.Tool `json:"function"`
}

// Marshal converts protocol data into an OpenAI-compatible request body.
// Options are flattened into the top level of the body.
func (p *BaseProvider) Marshal(proto protocol.Protocol, data any) ([]byte, error) {
	body := make(map[string]any)

	switch proto {
	case protocol.Chat:
		d, ok := data.(*ChatData)
		if !ok {
			return nil, fmt.Errorf("invalid data type for chat: %T", data)
		}
		for k, v := range d.Options {
			body[k] = v
		}
		body["model"] = d.Model
		body["messages"] = d.Messages

	case protocol.Tools:
		d, ok := data.(*ToolsData)
		if !ok {
			return nil, fmt.Errorf("invalid data type for tools: %T", data)
		}
		for k, v := range d.Options {
			body[k] = v
		}
		body["model"] = d.Model
		body["messages"] = d.Messages
		if len(d.Tools) > 0 {
			defs := make([]toolFunction, len(d.Tools))
			for i, t := range d.Tools {
				defs[i] = toolFunction{Type: "function", Function: t}
			}
			body["tools"] = defs
		}

	case protocol.Structured:
		d, ok := data.(*StructuredData)
		if !ok {
			return nil, fmt.Errorf("invalid data type for structured: %T", data)
		}
		for k, v := range d.Options {
			body[k] = v
		}
		messages, err := withSchemaInstruction(d.Messages, d.Schema)
		if err != nil {
			return nil, err
		}
		body["model"] = d.Model
		body["messages"] = messages
		body["response_format"] = map[string]any{"type": "json_object"}

	default:
		return nil, fmt.Errorf("unsupported protocol: %s", proto)
	}

	return json.Marshal(body)
}

// withSchemaInstruction appends a system message carrying the JSON Schema.
// json_object mode requires the word "json" to appear in the prompt.
func withSchemaInstruction(messages []protocol.Message, schema map[string]any) ([]protocol.Message, error) {
	if len(schema) == 0 {
		return messages, nil
	}
	encoded, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	out := make([]protocol.Message, 0, len(messages)+1)
	out = append(out, messages...)
	out = append(out, protocol.NewMessage(
		protocol.RoleSystem,
		"Reply with a single json object that conforms to this JSON Schema:\n"+string(encoded),
	))
	return out, nil
}
