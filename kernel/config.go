package kernel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/chattutor/core/config"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/memory"
	"github.com/tailored-agentic-units/chattutor/observability"
	"github.com/tailored-agentic-units/chattutor/session"
	"github.com/tailored-agentic-units/chattutor/tools/search"
)

// Agent roles. Every worker and the aggregator share the tutor agent.
const (
	RoleTutor      = "tutor"
	RolePlanner    = "planner"
	RoleCompressor = "compressor"
)

// Role temperatures applied over the base agent.
var roleTemperatures = map[string]float64{
	RoleTutor:      0.7,
	RolePlanner:    0.1,
	RoleCompressor: 0.3,
}

// roleProtocols are the protocols each role's model must serve. Tools is
// optional for the tutor; without it workers run without tools.
var roleProtocols = map[string][]protocol.Protocol{
	RoleTutor:      {protocol.Chat},
	RolePlanner:    {protocol.Structured},
	RoleCompressor: {protocol.Chat},
}

// Roles lists the agent roles in a stable order.
func Roles() []string {
	return []string{RoleTutor, RolePlanner, RoleCompressor}
}

// CacheConfig controls the in-process session cache. A zero TTL disables it.
type CacheConfig struct {
	TTL     config.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	Cleanup config.Duration `json:"cleanup,omitempty" yaml:"cleanup,omitempty"`
}

// Config holds initialization parameters for all subsystems.
// Each section delegates to that subsystem's config-driven constructor.
type Config struct {
	// Agent is the base agent every role starts from.
	Agent config.AgentConfig `json:"agent" yaml:"agent"`
	// Agents holds per-role overrides merged over the base agent.
	Agents   map[string]config.AgentConfig `json:"agents,omitempty" yaml:"agents,omitempty"`
	Session  session.Config                `json:"session" yaml:"session"`
	Memory   memory.Config                 `json:"memory" yaml:"memory"`
	Search   search.Config                 `json:"search" yaml:"search"`
	Cache    CacheConfig                   `json:"cache" yaml:"cache"`
	Observer string                        `json:"observer,omitempty" yaml:"observer,omitempty"`
	Log      observability.ZapConfig       `json:"log" yaml:"log"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Agent:    config.DefaultAgentConfig(),
		Session:  session.DefaultConfig(),
		Memory:   memory.DefaultConfig(),
		Search:   search.DefaultConfig(),
		Cache:    CacheConfig{TTL: config.Duration(time.Hour), Cleanup: config.Duration(10 * time.Minute)},
		Observer: "slog",
		Log:      observability.DefaultZapConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method. Role overrides are merged per role.
func (c *Config) Merge(source *Config) {
	c.Agent.Merge(&source.Agent)
	c.Session.Merge(&source.Session)
	c.Memory.Merge(&source.Memory)
	c.Search.Merge(&source.Search)
	c.Log.Merge(&source.Log)

	if source.Cache.TTL > 0 {
		c.Cache.TTL = source.Cache.TTL
	}
	if source.Cache.Cleanup > 0 {
		c.Cache.Cleanup = source.Cache.Cleanup
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}

	for role, override := range source.Agents {
		if c.Agents == nil {
			c.Agents = make(map[string]config.AgentConfig, len(source.Agents))
		}
		existing := c.Agents[role]
		existing.Merge(&override)
		c.Agents[role] = existing
	}
}

// RoleConfig resolves the agent config for a role: the base agent with the
// role temperature, then the role override.
func (c *Config) RoleConfig(role string) config.AgentConfig {
	cfg := c.Agent.Clone()
	if t, ok := roleTemperatures[role]; ok {
		cfg = cfg.WithTemperature(t)
	}
	cfg.Name = role
	if override, ok := c.Agents[role]; ok {
		cfg.Merge(&override)
	}
	return cfg
}

// LoadConfig reads a JSON or YAML config file (by extension), merges it
// with defaults, and returns the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
