package kernel_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tailored-agentic-units/chattutor/core/config"
	"github.com/tailored-agentic-units/chattutor/kernel"
	"github.com/tailored-agentic-units/chattutor/memory"
)

func TestDefaultConfig(t *testing.T) {
	cfg := kernel.DefaultConfig()

	if cfg.Agent.Provider.Name != config.DefaultProvider {
		t.Errorf("got provider %q", cfg.Agent.Provider.Name)
	}
	if cfg.Memory.Backend != memory.BackendFile {
		t.Errorf("got backend %q", cfg.Memory.Backend)
	}
	if cfg.Observer != "slog" {
		t.Errorf("got observer %q", cfg.Observer)
	}
	if time.Duration(cfg.Cache.TTL) != time.Hour {
		t.Errorf("got cache ttl %v", time.Duration(cfg.Cache.TTL))
	}
}

func TestRoleConfig_Temperatures(t *testing.T) {
	cfg := kernel.DefaultConfig()

	tests := []struct {
		role string
		want float64
	}{
		{kernel.RoleTutor, 0.7},
		{kernel.RolePlanner, 0.1},
		{kernel.RoleCompressor, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			rc := cfg.RoleConfig(tt.role)
			if rc.Name != tt.role {
				t.Errorf("got name %q", rc.Name)
			}
			for proto, opts := range rc.Model.Capabilities {
				if opts["temperature"] != tt.want {
					t.Errorf("%s temperature = %v, want %v", proto, opts["temperature"], tt.want)
				}
			}
		})
	}

	// Resolving roles must not leak into the base agent.
	if got := cfg.Agent.Model.Capabilities["chat"]["temperature"]; got != 0.7 {
		t.Errorf("base agent temperature changed to %v", got)
	}
}

func TestRoleConfig_Override(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.Merge(&kernel.Config{Agents: map[string]config.AgentConfig{
		kernel.RolePlanner: {Model: &config.ModelConfig{Name: "deepseek-reasoner"}},
	}})

	planner := cfg.RoleConfig(kernel.RolePlanner)
	if planner.Model.Name != "deepseek-reasoner" {
		t.Errorf("override not applied: %q", planner.Model.Name)
	}
	if planner.Model.Capabilities["structured"]["temperature"] != 0.1 {
		t.Error("override dropped the role temperature")
	}
	if cfg.RoleConfig(kernel.RoleTutor).Model.Name != config.DefaultModel {
		t.Error("override leaked into another role")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "chattutor.json")
	writeFile(t, jsonPath, `{
		"agent": {"model": {"name": "deepseek-reasoner"}},
		"memory": {"backend": "sqlite", "path": "data/chattutor.db"},
		"observer": "zap",
		"cache": {"ttl": "5m"}
	}`)

	yamlPath := filepath.Join(dir, "chattutor.yaml")
	writeFile(t, yamlPath, `
agent:
  provider:
    name: gemini
  model:
    name: gemini-2.5-flash
memory:
  backend: redis
  url: redis://localhost:6379/0
session:
  default_topic: Physics
cache:
  ttl: 30s
search:
  top_k: 5
`)

	t.Run("json", func(t *testing.T) {
		cfg, err := kernel.LoadConfig(jsonPath)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Agent.Model.Name != "deepseek-reasoner" || cfg.Agent.Provider.Name != config.DefaultProvider {
			t.Errorf("unexpected agent %+v", cfg.Agent)
		}
		if cfg.Memory.Backend != memory.BackendSQLite || cfg.Memory.Path != "data/chattutor.db" {
			t.Errorf("unexpected memory %+v", cfg.Memory)
		}
		if cfg.Observer != "zap" || time.Duration(cfg.Cache.TTL) != 5*time.Minute {
			t.Errorf("unexpected observer/cache %q %v", cfg.Observer, time.Duration(cfg.Cache.TTL))
		}
	})

	t.Run("yaml", func(t *testing.T) {
		cfg, err := kernel.LoadConfig(yamlPath)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Agent.Provider.Name != "gemini" || cfg.Agent.Model.Name != "gemini-2.5-flash" {
			t.Errorf("unexpected agent %+v %+v", cfg.Agent.Provider, cfg.Agent.Model)
		}
		if cfg.Memory.Backend != memory.BackendRedis || cfg.Memory.URL != "redis://localhost:6379/0" {
			t.Errorf("unexpected memory %+v", cfg.Memory)
		}
		if cfg.Session.DefaultTopic != "Physics" || cfg.Search.TopK != 5 {
			t.Errorf("unexpected session/search %+v %+v", cfg.Session, cfg.Search)
		}
		if time.Duration(cfg.Cache.TTL) != 30*time.Second {
			t.Errorf("got ttl %v", time.Duration(cfg.Cache.TTL))
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := kernel.LoadConfig(filepath.Join(dir, "none.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		writeFile(t, bad, "{")
		if _, err := kernel.LoadConfig(bad); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		kernel.EnvDeepSeekKey: "sk-deepseek",
		kernel.EnvGeminiKey:   "gm-key",
		kernel.EnvBaiduKey:    "bce-key",
		kernel.EnvModel:       "deepseek-reasoner",
		kernel.EnvStore:       "redis://cache:6379/1",
	}
	getenv := func(k string) string { return env[k] }

	cfg := kernel.DefaultConfig()
	cfg.ApplyEnv(getenv)

	if cfg.Agent.Provider.APIKey != "sk-deepseek" {
		t.Errorf("got api key %q", cfg.Agent.Provider.APIKey)
	}
	if cfg.Agent.Model.Name != "deepseek-reasoner" || cfg.Search.APIKey != "bce-key" {
		t.Errorf("unexpected model/search %q %q", cfg.Agent.Model.Name, cfg.Search.APIKey)
	}
	if cfg.Memory.Backend != memory.BackendRedis || cfg.Memory.URL != "redis://cache:6379/1" {
		t.Errorf("unexpected memory %+v", cfg.Memory)
	}

	gemini := kernel.DefaultConfig()
	gemini.Agent.Provider.Name = "gemini"
	gemini.ApplyEnv(getenv)
	if gemini.Agent.Provider.APIKey != "gm-key" {
		t.Errorf("gemini provider got key %q", gemini.Agent.Provider.APIKey)
	}

	explicit := kernel.DefaultConfig()
	explicit.Agent.Provider.APIKey = "from-file"
	explicit.ApplyEnv(getenv)
	if explicit.Agent.Provider.APIKey != "from-file" {
		t.Error("environment overrode an explicit key")
	}
}

func TestLoadEnv_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, "BAIDU_API_KEY=from-dotenv\n")
	t.Setenv(kernel.EnvBaiduKey, "")
	os.Unsetenv(kernel.EnvBaiduKey)

	cfg := kernel.DefaultConfig()
	if err := kernel.LoadEnv(&cfg, path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if cfg.Search.APIKey != "from-dotenv" {
		t.Errorf("got search key %q", cfg.Search.APIKey)
	}
}

func TestParseStore(t *testing.T) {
	tests := []struct {
		in   string
		want memory.Config
	}{
		{"redis://localhost:6379", memory.Config{Backend: memory.BackendRedis, URL: "redis://localhost:6379"}},
		{"rediss://secure:6380", memory.Config{Backend: memory.BackendRedis, URL: "rediss://secure:6380"}},
		{"sqlite:/var/lib/chattutor/s.sqlite", memory.Config{Backend: memory.BackendSQLite, Path: "/var/lib/chattutor/s.sqlite"}},
		{"data/chattutor.db", memory.Config{Backend: memory.BackendSQLite, Path: "data/chattutor.db"}},
		{"./sessions-root", memory.Config{Backend: memory.BackendFile, Path: "./sessions-root"}},
	}
	for _, tt := range tests {
		if got := *kernel.ParseStore(tt.in); got != tt.want {
			t.Errorf("ParseStore(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
