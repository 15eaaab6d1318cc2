package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tailored-agentic-units/chattutor/core/config"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/core/response"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint
// (DeepSeek, OpenAI, Ollama's /v1 surface).
type OpenAI struct {
	*BaseProvider
	apiKey string
	client *http.Client
}

// NewOpenAI creates an OpenAI-compatible provider from configuration.
func NewOpenAI(cfg *config.ProviderConfig) (*OpenAI, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base_url is required for %s", ErrRequestFailed, cfg.Name)
	}

	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultTimeout)
	}

	return &OpenAI{
		BaseProvider: NewBaseProvider(cfg.Name, strings.TrimRight(cfg.BaseURL, "/")),
		apiKey:       cfg.APIKey,
		client:       &http.Client{Timeout: timeout},
	}, nil
}

// Chat sends a chat completion request.
func (p *OpenAI) Chat(ctx context.Context, data *ChatData) (*response.ChatResponse, error) {
	body, err := p.do(ctx, protocol.Chat, data)
	if err != nil {
		return nil, err
	}
	return response.ParseChat(body)
}

// Tools sends a chat completion request with tool definitions.
func (p *OpenAI) Tools(ctx context.Context, data *ToolsData) (*response.ToolsResponse, error) {
	body, err := p.do(ctx, protocol.Tools, data)
	if err != nil {
		return nil, err
	}
	return response.ParseTools(body)
}

// Structured sends a chat completion request in JSON object mode.
func (p *OpenAI) Structured(ctx context.Context, data *StructuredData) (*response.ChatResponse, error) {
	body, err := p.do(ctx, protocol.Structured, data)
	if err != nil {
		return nil, err
	}
	return response.ParseChat(body)
}

func (p *OpenAI) do(ctx context.Context, proto protocol.Protocol, data any) ([]byte, error) {
	payload, err := p.Marshal(proto, data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL()+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRequestFailed, p.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d: %s", ErrRequestFailed, p.Name(), resp.StatusCode, string(body))
	}

	return body, nil
}
