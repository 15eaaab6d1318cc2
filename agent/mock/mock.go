// Package mock provides a configurable agent.Agent for tests.
package mock

import (
	"context"
	"sync"

	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/core/response"
)

// Call records one invocation of the mock.
type Call struct {
	Protocol protocol.Protocol
	Messages []protocol.Message
	Tools    []protocol.Tool
	Schema   map[string]any
}

// MockAgent returns canned responses and records every call.
// Queued responses are consumed in order; once a queue is drained the
// last configured response repeats.
type MockAgent struct {
	id string

	mu         sync.Mutex
	chat       []*response.ChatResponse
	tools      []*response.ToolsResponse
	structured []*response.ChatResponse
	err        error
	calls      []Call
}

// Option configures a MockAgent.
type Option func(*MockAgent)

// WithID sets the agent ID.
func WithID(id string) Option {
	return func(m *MockAgent) { m.id = id }
}

// WithChatResponse queues Chat replies carrying the given contents.
func WithChatResponse(contents ...string) Option {
	return func(m *MockAgent) {
		for _, c := range contents {
			m.chat = append(m.chat, response.NewChatResponse("mock", c))
		}
	}
}

// WithToolsResponse queues Tools replies.
func WithToolsResponse(responses ...*response.ToolsResponse) Option {
	return func(m *MockAgent) { m.tools = append(m.tools, responses...) }
}

// WithStructuredResponse queues Structured replies carrying raw JSON text.
func WithStructuredResponse(contents ...string) Option {
	return func(m *MockAgent) {
		for _, c := range contents {
			m.structured = append(m.structured, response.NewChatResponse("mock", c))
		}
	}
}

// WithError makes every call fail with err.
func WithError(err error) Option {
	return func(m *MockAgent) { m.err = err }
}

// NewMockAgent creates a MockAgent.
func NewMockAgent(opts ...Option) *MockAgent {
	m := &MockAgent{id: "mock-agent"}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockAgent) ID() string {
	return m.id
}

func (m *MockAgent) Chat(ctx context.Context, messages []protocol.Message, opts ...map[string]any) (*response.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Protocol: protocol.Chat, Messages: messages})
	if m.err != nil {
		return nil, m.err
	}
	return next(&m.chat, response.NewChatResponse("mock", "")), nil
}

func (m *MockAgent) Tools(ctx context.Context, messages []protocol.Message, tools []protocol.Tool, opts ...map[string]any) (*response.ToolsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Protocol: protocol.Tools, Messages: messages, Tools: tools})
	if m.err != nil {
		return nil, m.err
	}
	return next(&m.tools, response.NewToolsResponse("mock", "", nil)), nil
}

func (m *MockAgent) Structured(ctx context.Context, messages []protocol.Message, schema map[string]any, opts ...map[string]any) (*response.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Protocol: protocol.Structured, Messages: messages, Schema: schema})
	if m.err != nil {
		return nil, m.err
	}
	return next(&m.structured, response.NewChatResponse("mock", "{}")), nil
}

// Calls returns a copy of the recorded calls.
func (m *MockAgent) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns the number of calls made for a protocol.
func (m *MockAgent) CallCount(p protocol.Protocol) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c.Protocol == p {
			n++
		}
	}
	return n
}

func (m *MockAgent) record(c Call) {
	c.Messages = append([]protocol.Message(nil), c.Messages...)
	m.calls = append(m.calls, c)
}

func next[T any](queue *[]*T, fallback *T) *T {
	q := *queue
	switch len(q) {
	case 0:
		return fallback
	case 1:
		return q[0]
	default:
		*queue = q[1:]
		return q[0]
	}
}
