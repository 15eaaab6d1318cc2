package memory

// Top-level namespaces of the key hierarchy.
const (
	NamespaceSessions = "sessions"
	NamespaceNotes    = "notes"
)

// Entry is a key-value pair.
type Entry struct {
	Key   string
	Value []byte
}
