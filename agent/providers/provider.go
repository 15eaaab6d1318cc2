package providers

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/chattutor/core/config"
)

// Default base URLs for known OpenAI-compatible providers.
var defaultBaseURLs = map[string]string{
	"deepseek": "https://api.deepseek.com",
	"openai":   "https://api.openai.com/v1",
	"ollama":   "http://localhost:11434/v1",
}

// New creates a Provider by configuration name.
func New(cfg *config.ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case "deepseek", "openai", "ollama":
		c := *cfg
		if c.BaseURL == "" {
			c.BaseURL = defaultBaseURLs[c.Name]
		}
		return NewOpenAI(&c)
	case "gemini":
		return NewGemini(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Name)
	}
}
