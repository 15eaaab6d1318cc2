// Package store persists sessions as two independent artifacts over a
// memory.Store: a JSON snapshot that can be resumed, and on a concluding
// turn a Markdown note derived from the closing summary.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/memory"
	"github.com/tailored-agentic-units/chattutor/session"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrInvalidID = errors.New("invalid session id")
	ErrCorrupt   = errors.New("corrupt session snapshot")
	ErrEmptyNote = errors.New("session has no note content")
)

// SessionStore saves and restores sessions.
type SessionStore interface {
	Save(ctx context.Context, st *session.State) (string, error)
	Load(ctx context.Context, id string) (*session.State, error)
	SaveNote(ctx context.Context, st *session.State) (string, error)
	List(ctx context.Context) ([]Info, error)
}

// Info describes a saved snapshot.
type Info struct {
	ID          string
	Topic       string
	LastUpdated time.Time
	Messages    int
	Location    string
}

type snapshot struct {
	SessionID           string             `json:"session_id"`
	LastUpdated         time.Time          `json:"last_updated"`
	Topic               string             `json:"topic"`
	ConversationSummary string             `json:"conversation_summary"`
	SummarizedCursor    int                `json:"summarized_cursor"`
	Messages            []protocol.Message `json:"messages"`
}

// Store implements SessionStore over a memory.Store.
type Store struct {
	backend  memory.Store
	now      func() time.Time
	location string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the prefix joined to keys when reporting where an
// artifact was written, such as the FileStore root.
func WithLocation(prefix string) Option {
	return func(s *Store) { s.location = prefix }
}

// New creates a Store.
func New(backend memory.Store, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionKey is the snapshot key for id.
func SessionKey(id string) string {
	return memory.NamespaceSessions + "/" + id + ".json"
}

// NoteKey is the note key for a session id and topic.
func NoteKey(id, topic string) string {
	return memory.NamespaceNotes + "/" + id + "_" + SafeTopic(topic) + ".md"
}

// SafeTopic keeps Unicode letters, digits, '-' and '_' and replaces every
// other rune with '_'.
func SafeTopic(topic string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, topic)
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (s *Store) locate(key string) string {
	if s.location == "" {
		return key
	}
	return path.Join(s.location, key)
}

// Save writes the snapshot of st and returns its location.
func (s *Store) Save(ctx context.Context, st *session.State) (string, error) {
	if err := validateID(st.ID); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(snapshot{
		SessionID:           st.ID,
		LastUpdated:         s.now(),
		Topic:               st.CurrentTopic,
		ConversationSummary: st.Summary,
		SummarizedCursor:    st.Cursor,
		Messages:            nonNil(st.Transcript),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encode snapshot: %v", memory.ErrSaveFailed, err)
	}

	key := SessionKey(st.ID)
	if err := s.backend.Save(ctx, memory.Entry{Key: key, Value: data}); err != nil {
		return "", fmt.Errorf("save session %s: %w", st.ID, err)
	}
	return s.locate(key), nil
}

// Load restores the transcript, topic, summary and cursor of a saved
// session. Plan and Outputs start empty.
func (s *Store) Load(ctx context.Context, id string) (*session.State, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	entries, err := s.backend.Load(ctx, SessionKey(id))
	if err != nil {
		if errors.Is(err, memory.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	snap, err := decode(entries[0].Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}

	st := &session.State{
		ID:           snap.SessionID,
		Transcript:   snap.Messages,
		CurrentTopic: snap.Topic,
		Summary:      snap.ConversationSummary,
		Cursor:       snap.SummarizedCursor,
	}
	if st.ID == "" {
		st.ID = id
	}
	if st.CurrentTopic == "" {
		st.CurrentTopic = session.DefaultTopic
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}
	return st, nil
}

// SaveNote writes the closing note held in st.Outputs.Summary.
func (s *Store) SaveNote(ctx context.Context, st *session.State) (string, error) {
	if err := validateID(st.ID); err != nil {
		return "", err
	}
	if st.Outputs.Summary == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyNote, st.ID)
	}

	key := NoteKey(st.ID, st.CurrentTopic)
	body := FormatNote(st.ID, st.CurrentTopic, s.now(), st.Outputs.Summary)
	if err := s.backend.Save(ctx, memory.Entry{Key: key, Value: []byte(body)}); err != nil {
		return "", fmt.Errorf("save note %s: %w", st.ID, err)
	}
	return s.locate(key), nil
}

// FormatNote renders a note document with its front matter.
func FormatNote(id, topic string, date time.Time, body string) string {
	return fmt.Sprintf("---\nsource_session: %s\ndate: %s\ntopic: %s\n---\n\n%s",
		id, date.Format(time.DateOnly), topic, body)
}

// List describes every saved snapshot, most recently updated first.
// Snapshots that fail to decode are skipped.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	keys, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	keys = memory.WithPrefix(keys, memory.NamespaceSessions)
	if len(keys) == 0 {
		return nil, nil
	}

	entries, err := s.backend.Load(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		snap, err := decode(e.Value)
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			ID:          snap.SessionID,
			Topic:       snap.Topic,
			LastUpdated: snap.LastUpdated,
			Messages:    len(snap.Messages),
			Location:    s.locate(e.Key),
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].LastUpdated.After(infos[j].LastUpdated)
	})
	return infos, nil
}

func decode(data []byte) (*snapshot, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func nonNil(msgs []protocol.Message) []protocol.Message {
	if msgs == nil {
		return []protocol.Message{}
	}
	return msgs
}
