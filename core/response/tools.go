package response

import (
	"encoding/json"
	"fmt"

	"github.com/tailored-agentic-units/chattutor/core/protocol"
)

// ToolsMessage is an assistant message that may request tool calls.
type ToolsMessage struct {
	Role      string              `json:"role"`
	Content   string              `json:"content"`
	ToolCalls []protocol.ToolCall `json:"tool_calls,omitempty"`
}

// ToolsChoice is one completion alternative of a tools response.
type ToolsChoice struct {
	Index        int          `json:"index"`
	Message      ToolsMessage `json:"message"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// ToolsResponse represents the response from a tools (function calling) protocol request.
// Contains function calls requested by the model along with metadata and token usage.
type ToolsResponse struct {
	ID      string        `json:"id,omitempty"`
	Object  string        `json:"object,omitempty"`
	Created int64         `json:"created,omitempty"`
	Model   string        `json:"model"`
	Choices []ToolsChoice `json:"choices"`
	Usage   *TokenUsage   `json:"usage,omitempty"`
}

// NewToolsResponse builds a single-choice ToolsResponse. Pass nil toolCalls
// for a plain text answer.
func NewToolsResponse(model, content string, toolCalls []protocol.ToolCall) *ToolsResponse {
	return &ToolsResponse{
		Model: model,
		Choices: []ToolsChoice{{
			Message: ToolsMessage{
				Role:      "assistant",
				Content:   content,
				ToolCalls: toolCalls,
			},
		}},
	}
}

// Content returns the text of the first choice.
func (r *ToolsResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// ToolCalls returns the tool calls requested by the first choice.
func (r *ToolsResponse) ToolCalls() []protocol.ToolCall {
	if r == nil || len(r.Choices) == 0 {
		return nil
	}
	return r.Choices[0].Message.ToolCalls
}

// ParseTools parses a tools response from JSON bytes.
// Returns the parsed ToolsResponse or an error if parsing fails.
func ParseTools(body []byte) (*ToolsResponse, error) {
	var response ToolsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse tools response: %w", err)
	}
	return &response, nil
}
