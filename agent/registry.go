package agent

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/chattutor/core/config"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
)

// AgentInfo describes a registered role and the protocols its model declares.
type AgentInfo struct {
	Name         string
	Model        string
	Capabilities []protocol.Protocol
}

type entry struct {
	cfg   config.AgentConfig
	agent Agent
}

// Registry holds one agent configuration per role and instantiates each
// agent on first Get. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func (r *Registry) lookup(name string) (*entry, error) {
	e, exists := r.entries[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return e, nil
}

// Capabilities returns the protocols declared for a role, sorted. A nil
// result means the model declares none and accepts every protocol.
func (r *Registry) Capabilities(name string) ([]protocol.Protocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return declared(&e.cfg), nil
}

// Supports reports whether the role's model serves p.
func (r *Registry) Supports(name string, p protocol.Protocol) (bool, error) {
	caps, err := r.Capabilities(name)
	if err != nil {
		return false, err
	}
	return caps == nil || slices.Contains(caps, p), nil
}

// Require returns ErrUnsupported naming the first protocol in ps the role's
// model does not serve.
func (r *Registry) Require(name string, ps ...protocol.Protocol) error {
	for _, p := range ps {
		ok, err := r.Supports(name, p)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s needs %s", ErrUnsupported, name, p)
		}
	}
	return nil
}

// Get returns the agent for a role, creating it on first access.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if e.agent != nil {
		return e.agent, nil
	}

	a, err := New(&e.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent %q: %w", name, err)
	}
	e.agent = a
	return a, nil
}

// List describes every registered role, sorted by name.
func (r *Registry) List() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(r.entries))
	for name, e := range r.entries {
		info := AgentInfo{Name: name, Capabilities: declared(&e.cfg)}
		if e.cfg.Model != nil {
			info.Model = e.cfg.Model.Name
		}
		infos = append(infos, info)
	}

	slices.SortFunc(infos, func(a, b AgentInfo) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return infos
}

// Register adds a role configuration. The agent is created by Get.
func (r *Registry) Register(name string, cfg config.AgentConfig) error {
	if name == "" {
		return ErrEmptyAgentName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrAgentExists, name)
	}
	r.entries[name] = &entry{cfg: cfg}
	return nil
}

// Replace swaps a role's configuration and drops its cached agent.
func (r *Registry) Replace(name string, cfg config.AgentConfig) error {
	if name == "" {
		return ErrEmptyAgentName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookup(name); err != nil {
		return err
	}
	r.entries[name] = &entry{cfg: cfg}
	return nil
}

// Unregister removes a role.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookup(name); err != nil {
		return err
	}
	delete(r.entries, name)
	return nil
}

func declared(cfg *config.AgentConfig) []protocol.Protocol {
	if cfg.Model == nil || len(cfg.Model.Capabilities) == 0 {
		return nil
	}

	caps := make([]protocol.Protocol, 0, len(cfg.Model.Capabilities))
	for key := range cfg.Model.Capabilities {
		if protocol.IsValid(key) {
			caps = append(caps, protocol.Protocol(key))
		}
	}
	slices.Sort(caps)
	return caps
}
