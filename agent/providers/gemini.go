package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/tailored-agentic-units/chattutor/core/config"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/core/response"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	*BaseProvider
	client *genai.Client
}

// NewGemini creates a Gemini provider. An API key is required.
func NewGemini(ctx context.Context, cfg *config.ProviderConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.Name)
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Gemini{
		BaseProvider: NewBaseProvider(cfg.Name, cfg.BaseURL),
		client:       client,
	}, nil
}

// Chat generates a text reply.
func (p *Gemini) Chat(ctx context.Context, data *ChatData) (*response.ChatResponse, error) {
	system, contents := toContents(data.Messages)
	gc := generationConfig(system, data.Options)

	result, err := p.client.Models.GenerateContent(ctx, data.Model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", ErrRequestFailed, err)
	}

	resp := response.NewChatResponse(data.Model, result.Text())
	resp.Usage = usage(result)
	return resp, nil
}

// Tools generates a reply that may request function calls.
func (p *Gemini) Tools(ctx context.Context, data *ToolsData) (*response.ToolsResponse, error) {
	system, contents := toContents(data.Messages)
	gc := generationConfig(system, data.Options)
	if len(data.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(data.Tools))
		for i, t := range data.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters,
			}
		}
		gc.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	result, err := p.client.Models.GenerateContent(ctx, data.Model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", ErrRequestFailed, err)
	}

	var calls []protocol.ToolCall
	for i, fc := range result.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal function args: %w", err)
		}
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		calls = append(calls, protocol.NewToolCall(id, fc.Name, string(args)))
	}

	resp := response.NewToolsResponse(data.Model, result.Text(), calls)
	resp.Usage = usage(result)
	return resp, nil
}

// Structured generates a JSON reply constrained by the schema.
func (p *Gemini) Structured(ctx context.Context, data *StructuredData) (*response.ChatResponse, error) {
	system, contents := toContents(data.Messages)
	gc := generationConfig(system, data.Options)
	gc.ResponseMIMEType = "application/json"
	if len(data.Schema) > 0 {
		gc.ResponseJsonSchema = data.Schema
	}

	result, err := p.client.Models.GenerateContent(ctx, data.Model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", ErrRequestFailed, err)
	}

	resp := response.NewChatResponse(data.Model, result.Text())
	resp.Usage = usage(result)
	return resp, nil
}

// toContents splits system messages into a system instruction and maps the
// rest onto Gemini roles. Tool results become function responses keyed by
// the name of the call they answer.
func toContents(messages []protocol.Message) (*genai.Content, []*genai.Content) {
	var system []string
	names := make(map[string]string)
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, m.Content)

		case protocol.RoleAssistant:
			c := &genai.Content{Role: string(genai.RoleModel)}
			if m.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				names[tc.ID] = tc.Name
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				c.Parts = append(c.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
				})
			}
			contents = append(contents, c)

		case protocol.RoleTool:
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     names[m.ToolCallID],
						Response: map[string]any{"output": m.Content},
					},
				}},
			})

		default:
			contents = append(contents, &genai.Content{
				Role:  string(genai.RoleUser),
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	if len(system) == 0 {
		return nil, contents
	}
	return &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}, contents
}

func generationConfig(system *genai.Content, options map[string]any) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{SystemInstruction: system}
	if t, ok := options["temperature"].(float64); ok {
		gc.Temperature = genai.Ptr(float32(t))
	}
	switch v := options["max_tokens"].(type) {
	case int:
		gc.MaxOutputTokens = int32(v)
	case float64:
		gc.MaxOutputTokens = int32(v)
	}
	return gc
}

func usage(result *genai.GenerateContentResponse) *response.TokenUsage {
	if result.UsageMetadata == nil {
		return nil
	}
	return &response.TokenUsage{
		PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
	}
}
