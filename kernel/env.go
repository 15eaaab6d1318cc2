package kernel

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tailored-agentic-units/chattutor/core/config"
	"github.com/tailored-agentic-units/chattutor/memory"
)

// Environment variables read by LoadEnv.
const (
	EnvDeepSeekKey = "DEEPSEEK_API_KEY"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvBaiduKey    = "BAIDU_API_KEY"
	EnvModel       = "CHATTUTOR_MODEL"
	EnvStore       = "CHATTUTOR_STORE"
)

// LoadEnv loads the given dotenv files (default ".env") without overriding
// variables already set, then applies the environment to c. Missing files
// are ignored.
func LoadEnv(c *Config, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	c.ApplyEnv(os.Getenv)
	return nil
}

// ApplyEnv applies environment overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if c.Agent.Provider == nil {
		c.Agent.Provider = &config.ProviderConfig{Name: config.DefaultProvider}
	}

	key := EnvDeepSeekKey
	if c.Agent.Provider.Name == "gemini" {
		key = EnvGeminiKey
	}
	if v := getenv(key); v != "" && c.Agent.Provider.APIKey == "" {
		c.Agent.Provider.APIKey = v
	}

	if v := getenv(EnvModel); v != "" {
		if c.Agent.Model == nil {
			c.Agent.Model = &config.ModelConfig{}
		}
		c.Agent.Model.Name = v
	}

	if v := getenv(EnvBaiduKey); v != "" && c.Search.APIKey == "" {
		c.Search.APIKey = v
	}

	if v := getenv(EnvStore); v != "" {
		c.Memory.Merge(ParseStore(v))
	}
}

// ParseStore maps a store location to a memory config:
// "redis://…" or "rediss://…" selects Redis, "sqlite:<path>" or a path
// ending in ".db" selects SQLite, anything else is a FileStore root.
func ParseStore(location string) *memory.Config {
	switch {
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		return &memory.Config{Backend: memory.BackendRedis, URL: location}
	case strings.HasPrefix(location, "sqlite:"):
		return &memory.Config{Backend: memory.BackendSQLite, Path: strings.TrimPrefix(location, "sqlite:")}
	case strings.HasSuffix(location, ".db"):
		return &memory.Config{Backend: memory.BackendSQLite, Path: location}
	default:
		return &memory.Config{Backend: memory.BackendFile, Path: location}
	}
}
