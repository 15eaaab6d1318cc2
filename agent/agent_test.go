package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tailored-agentic-units/chattutor/agent"
	"github.com/tailored-agentic-units/chattutor/core/config"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
)

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.AgentConfig
	}{
		{"nil", nil},
		{"no provider", &config.AgentConfig{Model: &config.ModelConfig{Name: "m"}}},
		{"no model", &config.AgentConfig{Provider: &config.ProviderConfig{Name: "deepseek"}}},
		{"empty model name", &config.AgentConfig{Provider: &config.ProviderConfig{Name: "deepseek"}, Model: &config.ModelConfig{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agent.New(tt.cfg)
			if !errors.Is(err, agent.ErrInvalidConfig) {
				t.Errorf("got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestAgent_OptionsReachProvider(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &got)
		io.WriteString(w, `{"model":"deepseek-chat","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	cfg := config.DefaultAgentConfig().WithTemperature(0.1)
	cfg.Provider.BaseURL = srv.URL

	a, err := agent.New(&cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := a.Chat(context.Background(), protocol.InitMessages(protocol.RoleUser, "hi"), map[string]any{"max_tokens": 64})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content() != "ok" {
		t.Errorf("got content %q", resp.Content())
	}
	if got["temperature"] != 0.1 {
		t.Errorf("got temperature %v, want 0.1", got["temperature"])
	}
	if got["max_tokens"] != float64(64) {
		t.Errorf("got max_tokens %v, want 64", got["max_tokens"])
	}
}

func TestAgent_UnsupportedProtocol(t *testing.T) {
	cfg := config.AgentConfig{
		Provider: &config.ProviderConfig{Name: "deepseek"},
		Model: &config.ModelConfig{
			Name:         "deepseek-chat",
			Capabilities: map[string]map[string]any{"chat": {}},
		},
	}

	a, err := agent.New(&cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = a.Tools(context.Background(), nil, nil)
	if !errors.Is(err, agent.ErrUnsupported) {
		t.Errorf("got %v, want ErrUnsupported", err)
	}
}
