package memory

import (
	"fmt"
	"io"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds store initialization parameters.
type Config struct {
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// Path is the FileStore root directory or the SQLite database file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// URL is the Redis connection URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Prefix namespaces Redis keys.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// DefaultConfig stores under ./data on the filesystem.
func DefaultConfig() Config {
	return Config{
		Backend: BackendFile,
		Path:    "data",
		Prefix:  "chattutor",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.URL != "" {
		c.URL = source.URL
	}
	if source.Prefix != "" {
		c.Prefix = source.Prefix
	}
}

// NewStore opens the configured backend. The returned Closer releases
// backend resources and is a no-op for the filesystem.
func NewStore(cfg *Config) (Store, io.Closer, error) {
	switch cfg.Backend {
	case "", BackendFile:
		if cfg.Path == "" {
			return nil, nil, fmt.Errorf("%w: file backend requires a path", ErrUnknownBackend)
		}
		return NewFileStore(cfg.Path), nopCloser{}, nil
	case BackendSQLite:
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendRedis:
		s, err := OpenRedis(cfg.URL, cfg.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
