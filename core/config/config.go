// Package config defines the agent, provider, and model configuration
// shapes shared by the agent registry and the kernel.
package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Duration is a time.Duration that decodes from "30s" style strings.
type Duration time.Duration

// MarshalJSON encodes the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
	return nil
}

// UnmarshalYAML accepts a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*d = Duration(parsed)
	return nil
}

// ProviderConfig describes how to reach a model provider.
type ProviderConfig struct {
	Name    string         `json:"name" yaml:"name"`
	BaseURL string         `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey  string         `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout Duration       `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// ModelConfig names a model and its per-protocol options.
// Capabilities keys are protocol names (chat, tools, structured).
type ModelConfig struct {
	Name         string                    `json:"name" yaml:"name"`
	Capabilities map[string]map[string]any `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Options      map[string]any            `json:"options,omitempty" yaml:"options,omitempty"`
}

// AgentConfig is the full configuration of one agent.
type AgentConfig struct {
	Name     string          `json:"name,omitempty" yaml:"name,omitempty"`
	Provider *ProviderConfig `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    *ModelConfig    `json:"model,omitempty" yaml:"model,omitempty"`
}

const (
	DefaultProvider = "deepseek"
	DefaultBaseURL  = "https://api.deepseek.com"
	DefaultModel    = "deepseek-chat"
	DefaultTimeout  = Duration(60 * time.Second)
)

// DefaultAgentConfig returns a DeepSeek chat agent with all three protocols enabled.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Name: "tutor",
		Provider: &ProviderConfig{
			Name:    DefaultProvider,
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Model: &ModelConfig{
			Name: DefaultModel,
			Capabilities: map[string]map[string]any{
				"chat":       {"temperature": 0.7},
				"tools":      {"temperature": 0.7},
				"structured": {"temperature": 0.7},
			},
		},
	}
}

// Merge applies non-zero values from source into c.
func (c *AgentConfig) Merge(source *AgentConfig) {
	if source == nil {
		return
	}
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Provider != nil {
		if c.Provider == nil {
			c.Provider = &ProviderConfig{}
		}
		c.Provider.Merge(source.Provider)
	}
	if source.Model != nil {
		if c.Model == nil {
			c.Model = &ModelConfig{}
		}
		c.Model.Merge(source.Model)
	}
}

// Merge applies non-zero values from source into c.
func (c *ProviderConfig) Merge(source *ProviderConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
	if len(source.Options) > 0 {
		if c.Options == nil {
			c.Options = make(map[string]any, len(source.Options))
		}
		maps.Copy(c.Options, source.Options)
	}
}

// Merge applies non-zero values from source into c. Capability option maps
// are merged per protocol key.
func (c *ModelConfig) Merge(source *ModelConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if len(source.Capabilities) > 0 {
		if c.Capabilities == nil {
			c.Capabilities = make(map[string]map[string]any, len(source.Capabilities))
		}
		for key, opts := range source.Capabilities {
			existing, ok := c.Capabilities[key]
			if !ok || existing == nil {
				existing = make(map[string]any, len(opts))
			}
			maps.Copy(existing, opts)
			c.Capabilities[key] = existing
		}
	}
	if len(source.Options) > 0 {
		if c.Options == nil {
			c.Options = make(map[string]any, len(source.Options))
		}
		maps.Copy(c.Options, source.Options)
	}
}

// Clone returns a deep copy of c for callers that override per-role settings.
func (c AgentConfig) Clone() AgentConfig {
	out := AgentConfig{Name: c.Name}
	if c.Provider != nil {
		p := *c.Provider
		p.Options = maps.Clone(c.Provider.Options)
		out.Provider = &p
	}
	if c.Model != nil {
		m := ModelConfig{Name: c.Model.Name, Options: maps.Clone(c.Model.Options)}
		if c.Model.Capabilities != nil {
			m.Capabilities = make(map[string]map[string]any, len(c.Model.Capabilities))
			for key, opts := range c.Model.Capabilities {
				m.Capabilities[key] = maps.Clone(opts)
			}
		}
		out.Model = &m
	}
	return out
}

// WithTemperature returns a copy of c with temperature set on every protocol.
func (c AgentConfig) WithTemperature(temperature float64) AgentConfig {
	out := c.Clone()
	if out.Model == nil {
		out.Model = &ModelConfig{}
	}
	if out.Model.Capabilities == nil {
		out.Model.Capabilities = map[string]map[string]any{}
	}
	for key, opts := range out.Model.Capabilities {
		if opts == nil {
			opts = map[string]any{}
		}
		opts["temperature"] = temperature
		out.Model.Capabilities[key] = opts
	}
	return out
}
