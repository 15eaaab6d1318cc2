package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/chattutor/memory"
)

// backends returns every Store implementation available in this environment.
// Redis runs only when CHATTUTOR_TEST_REDIS_URL points at a server.
func backends(t *testing.T) map[string]func(t *testing.T) memory.Store {
	t.Helper()
	out := map[string]func(t *testing.T) memory.Store{
		"file": func(t *testing.T) memory.Store {
			return memory.NewFileStore(t.TempDir())
		},
		"sqlite": func(t *testing.T) memory.Store {
			s, err := memory.OpenSQLite(filepath.Join(t.TempDir(), "chattutor.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"sqlite-memory": func(t *testing.T) memory.Store {
			s, err := memory.OpenSQLite(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
	if url := os.Getenv("CHATTUTOR_TEST_REDIS_URL"); url != "" {
		out["redis"] = func(t *testing.T) memory.Store {
			s, err := memory.OpenRedis(url, "chattutor-test-"+t.Name())
			require.NoError(t, err)
			require.NoError(t, s.Ping(context.Background()))
			t.Cleanup(func() {
				keys, _ := s.List(context.Background())
				s.Delete(context.Background(), keys...)
				s.Close()
			})
			return s
		}
	}
	return out
}

func TestStore_Conformance(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("empty", func(t *testing.T) {
				keys, err := open(t).List(ctx)
				require.NoError(t, err)
				assert.Empty(t, keys)
			})

			t.Run("round trip", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Save(ctx,
					memory.Entry{Key: "sessions/b.json", Value: []byte(`{"id":"b"}`)},
					memory.Entry{Key: "notes/b_Physics.md", Value: []byte("# note")},
					memory.Entry{Key: "sessions/a.json", Value: []byte(`{"id":"a"}`)},
				))

				keys, err := s.List(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"notes/b_Physics.md", "sessions/a.json", "sessions/b.json"}, keys)

				entries, err := s.Load(ctx, "sessions/a.json", "notes/b_Physics.md")
				require.NoError(t, err)
				require.Len(t, entries, 2)
				assert.Equal(t, `{"id":"a"}`, string(entries[0].Value))
				assert.Equal(t, "# note", string(entries[1].Value))
			})

			t.Run("overwrite", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Save(ctx, memory.Entry{Key: "sessions/x.json", Value: []byte("v1")}))
				require.NoError(t, s.Save(ctx, memory.Entry{Key: "sessions/x.json", Value: []byte("v2")}))

				entries, err := s.Load(ctx, "sessions/x.json")
				require.NoError(t, err)
				assert.Equal(t, "v2", string(entries[0].Value))
			})

			t.Run("missing key", func(t *testing.T) {
				_, err := open(t).Load(ctx, "sessions/none.json")
				assert.ErrorIs(t, err, memory.ErrKeyNotFound)
			})

			t.Run("delete", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Save(ctx,
					memory.Entry{Key: "sessions/a.json", Value: []byte("a")},
					memory.Entry{Key: "sessions/b.json", Value: []byte("b")},
				))
				require.NoError(t, s.Delete(ctx, "sessions/a.json", "sessions/never.json"))

				keys, err := s.List(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"sessions/b.json"}, keys)
			})

			t.Run("invalid key", func(t *testing.T) {
				s := open(t)
				err := s.Save(ctx, memory.Entry{Key: "../escape", Value: []byte("x")})
				assert.ErrorIs(t, err, memory.ErrInvalidKey)
			})
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"sessions/a.json", true},
		{"notes/a_General_Knowledge.md", true},
		{"", false},
		{"/abs", false},
		{"..", false},
		{"../up", false},
		{"a/../b", false},
		{"a//b", false},
		{`a\b`, false},
	}
	for _, tt := range tests {
		err := memory.ValidateKey(tt.key)
		if tt.valid {
			assert.NoError(t, err, tt.key)
		} else {
			assert.ErrorIs(t, err, memory.ErrInvalidKey, tt.key)
		}
	}
}

func TestWithPrefix(t *testing.T) {
	keys := []string{"notes/a.md", "sessions/a.json", "sessionsx/b.json", "sessions/b.json"}
	assert.Equal(t, []string{"sessions/a.json", "sessions/b.json"}, memory.WithPrefix(keys, memory.NamespaceSessions))
	assert.Equal(t, []string{"notes/a.md"}, memory.WithPrefix(keys, "notes/"))
}
