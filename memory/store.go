// Package memory is the key-value layer under session persistence. Keys
// are /-separated paths ("sessions/<id>.json", "notes/<id>_<topic>.md")
// and values are raw bytes. Backends are interchangeable behind Store.
package memory

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Store translates between external storage and the key namespace.
// Implementations perform I/O on each call without caching.
type Store interface {
	// List returns all available keys in lexical order.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the specified keys.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// ValidateKey rejects keys that are empty, absolute, or escape the namespace.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if clean := path.Clean(key); clean != key || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// WithPrefix filters keys to those under a namespace.
func WithPrefix(keys []string, namespace string) []string {
	prefix := strings.TrimSuffix(namespace, "/") + "/"
	var out []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}
