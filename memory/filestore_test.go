package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tailored-agentic-units/chattutor/memory"
)

func TestFileStore_List_MissingRoot(t *testing.T) {
	store := memory.NewFileStore(filepath.Join(t.TempDir(), "nonexistent"))

	keys, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List() returned %d keys, want 0", len(keys))
	}
}

func TestFileStore_List_SkipsHiddenAndTemp(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "sessions/a.json", "{}")
	writeTestFile(t, root, "sessions/.tmp-123", "partial")
	writeTestFile(t, root, ".git/config", "ignored")

	keys, err := memory.NewFileStore(root).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != "sessions/a.json" {
		t.Errorf("List() = %v, want [sessions/a.json]", keys)
	}
}

func TestFileStore_Save_WritesFiles(t *testing.T) {
	root := t.TempDir()
	store := memory.NewFileStore(root)

	if err := store.Save(context.Background(), memory.Entry{Key: "notes/s1_Physics.md", Value: []byte("body")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "notes", "s1_Physics.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "body" {
		t.Errorf("file content = %q, want %q", string(got), "body")
	}

	matches, _ := filepath.Glob(filepath.Join(root, "notes", ".tmp-*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFileStore_Save_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := memory.NewFileStore(t.TempDir()).Save(ctx, memory.Entry{Key: "sessions/a.json", Value: []byte("{}")})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestFileStore_Delete_PrunesEmptyParents(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "notes/a.md", "content")

	if err := memory.NewFileStore(root).Delete(context.Background(), "notes/a.md"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "notes")); !os.IsNotExist(err) {
		t.Error("empty parent directory should be removed after Delete")
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should survive Delete: %v", err)
	}
}

func TestFileStore_Delete_PreservesParentWithSiblings(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "sessions/a.json", "a")
	writeTestFile(t, root, "sessions/b.json", "b")

	if err := memory.NewFileStore(root).Delete(context.Background(), "sessions/a.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "sessions")); os.IsNotExist(err) {
		t.Error("parent directory should be preserved when sibling files exist")
	}
}

// writeTestFile creates a file with the given content under root.
func writeTestFile(t *testing.T, root, key, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
