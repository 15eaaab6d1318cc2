package providers_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/chattutor/agent/providers"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
)

func TestNewBaseProvider(t *testing.T) {
	provider := providers.NewBaseProvider("test-provider", "https://api.example.com")

	if provider == nil {
		t.Fatal("NewBaseProvider returned nil")
	}

	if provider.Name() != "test-provider" {
		t.Errorf("got name %q, want %q", provider.Name(), "test-provider")
	}

	if provider.BaseURL() != "https://api.example.com" {
		t.Errorf("got baseURL %q, want %q", provider.BaseURL(), "https://api.example.com")
	}
}

func TestBaseProvider_Marshal_Chat(t *testing.T) {
	provider := providers.NewBaseProvider("test", "https://api.test.com")

	chatData := &providers.ChatData{
		Model:    "deepseek-chat",
		Messages: protocol.InitMessages(protocol.RoleUser, "Hello"),
		Options: map[string]any{
			"temperature": 0.7,
		},
	}

	body, err := provider.Marshal(protocol.Chat, chatData)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}

	if result["model"] != "deepseek-chat" {
		t.Errorf("got model %v, want deepseek-chat", result["model"])
	}

	if result["temperature"] != 0.7 {
		t.Errorf("got temperature %v, want 0.7", result["temperature"])
	}

	messages, ok := result["messages"].([]any)
	if !ok {
		t.Fatal("messages is not an array")
	}
	if len(messages) != 1 {
		t.Errorf("got %d messages, want 1", len(messages))
	}
}

func TestBaseProvider_Marshal_Tools(t *testing.T) {
	provider := providers.NewBaseProvider("test", "https://api.test.com")

	toolsData := &providers.ToolsData{
		Model:    "deepseek-chat",
		Messages: protocol.InitMessages(protocol.RoleUser, "What is GBDT?"),
		Tools: []protocol.Tool{
			{
				Name:        "web_search",
				Description: "Search the web",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{"type": "string"},
					},
				},
			},
		},
		Options: map[string]any{},
	}

	body, err := provider.Marshal(protocol.Tools, toolsData)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}

	tools, ok := result["tools"].([]any)
	if !ok {
		t.Fatal("tools is not an array")
	}
	if len(tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(tools))
	}

	def := tools[0].(map[string]any)
	if def["type"] != "function" {
		t.Errorf("got tool type %v, want function", def["type"])
	}
	fn := def["function"].(map[string]any)
	if fn["name"] != "web_search" {
		t.Errorf("got function name %v, want web_search", fn["name"])
	}
}

func TestBaseProvider_Marshal_Tools_NoTools(t *testing.T) {
	provider := providers.NewBaseProvider("test", "https://api.test.com")

	body, err := provider.Marshal(protocol.Tools, &providers.ToolsData{Model: "m"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(body), `"tools"`) {
		t.Errorf("expected no tools key, got %s", body)
	}
}

func TestBaseProvider_Marshal_Structured(t *testing.T) {
	provider := providers.NewBaseProvider("test", "https://api.test.com")

	data := &providers.StructuredData{
		Model:    "deepseek-chat",
		Messages: protocol.InitMessages(protocol.RoleUser, "plan"),
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"needs_judge"},
		},
	}

	body, err := provider.Marshal(protocol.Structured, data)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}

	format := result["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("got response_format %v", format)
	}

	messages := result["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	last := messages[1].(map[string]any)
	if last["role"] != "system" || !strings.Contains(last["content"].(string), "needs_judge") {
		t.Errorf("schema instruction missing: %v", last)
	}
}

func TestBaseProvider_Marshal_InvalidData(t *testing.T) {
	provider := providers.NewBaseProvider("test", "https://api.test.com")

	for _, proto := range protocol.ValidProtocols() {
		if _, err := provider.Marshal(proto, "invalid-data"); err == nil {
			t.Errorf("%s: expected error for invalid data type", proto)
		}
	}
}

func TestBaseProvider_Marshal_UnsupportedProtocol(t *testing.T) {
	provider := providers.NewBaseProvider("test", "https://api.test.com")

	_, err := provider.Marshal(protocol.Protocol("unsupported"), nil)
	if err == nil {
		t.Error("expected error for unsupported protocol, got nil")
	}
}
