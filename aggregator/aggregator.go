// Package aggregator closes a turn: it merges the worker outputs into one
// reply, folds old transcript into the running summary, and persists the
// session.
package aggregator

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/chattutor/agent"
	"github.com/tailored-agentic-units/chattutor/compaction"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/observability"
	"github.com/tailored-agentic-units/chattutor/prompt"
	"github.com/tailored-agentic-units/chattutor/session"
	"github.com/tailored-agentic-units/chattutor/store"
)

// ClarificationReply is sent when no worker produced anything.
const ClarificationReply = "I'm not sure I understood what you meant. Could you be more specific?"

const (
	EventReply      observability.EventType = "aggregator.reply"
	EventSaved      observability.EventType = "aggregator.saved"
	EventNoteSaved  observability.EventType = "aggregator.note.saved"
	EventNoteFailed observability.EventType = "aggregator.note.failed"
)

// Compressor folds a transcript prefix into the summary.
type Compressor interface {
	Compress(ctx context.Context, transcript []protocol.Message, summary string, cursor int) (compaction.Result, error)
}

// Outcome is what the aggregator produced for a turn.
type Outcome struct {
	Delta        session.Delta
	Reply        protocol.Message
	Location     string
	NoteLocation string
	Compressed   bool
}

// Aggregator is the terminal stage of a turn.
type Aggregator struct {
	agent      agent.Agent
	compressor Compressor
	store      store.SessionStore
	observer   observability.Observer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver sets the observer for aggregator events.
func WithObserver(o observability.Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// New creates an Aggregator. The agent synthesizes replies, c maintains the
// summary and s persists each turn.
func New(a agent.Agent, c Compressor, s store.SessionStore, opts ...Option) *Aggregator {
	agg := &Aggregator{
		agent:      a,
		compressor: c,
		store:      s,
		observer:   observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(agg)
	}
	return agg
}

// Run produces the reply for st, compresses and saves a working copy, and
// returns the Delta to apply to st. st itself is not modified. A failed
// snapshot save fails the turn; a failed note save is only reported.
func (a *Aggregator) Run(ctx context.Context, st *session.State) (*Outcome, error) {
	content, mode, err := a.reply(ctx, st)
	if err != nil {
		return nil, err
	}
	reply := protocol.NewMessage(protocol.RoleAssistant, content)

	a.observer.OnEvent(ctx, observability.NewEvent(EventReply, observability.LevelVerbose, "aggregator.Run", map[string]any{
		"mode":   mode,
		"length": len(content),
	}))

	transcript := append(append([]protocol.Message(nil), st.Transcript...), reply)
	res, err := a.compressor.Compress(ctx, transcript, st.Summary, st.Cursor)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}

	out := &Outcome{
		Delta: session.Delta{Append: []protocol.Message{reply}},
		Reply: reply,
	}
	if res.Compressed && (res.Summary != st.Summary || res.Cursor != st.Cursor) {
		out.Delta.ConversationSummary = session.Ptr(res.Summary)
		out.Delta.Cursor = session.Ptr(res.Cursor)
		out.Compressed = true
	}

	working := st.Clone()
	if err := working.Apply(out.Delta); err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}

	loc, err := a.store.Save(ctx, working)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}
	out.Location = loc

	a.observer.OnEvent(ctx, observability.NewEvent(EventSaved, observability.LevelInfo, "aggregator.Run", map[string]any{
		"session":    working.ID,
		"location":   loc,
		"messages":   len(working.Transcript),
		"cursor":     working.Cursor,
		"compressed": out.Compressed,
	}))

	if working.ShouldExit && working.Outputs.Summary != "" {
		out.NoteLocation = a.note(ctx, working)
	}

	return out, nil
}

func (a *Aggregator) reply(ctx context.Context, st *session.State) (string, string, error) {
	switch {
	case st.ShouldExit:
		return st.Outputs.Summary, "concluding", nil
	case st.Outputs.Empty():
		return ClarificationReply, "clarification", nil
	}

	msgs := []protocol.Message{protocol.NewMessage(protocol.RoleSystem, prompt.Aggregate(st.Outputs))}
	if n := len(st.Transcript); n > 0 {
		msgs = append(msgs, st.Transcript[n-1])
	}

	resp, err := a.agent.Chat(ctx, msgs)
	if err != nil {
		return "", "", fmt.Errorf("aggregator: synthesis failed: %w", err)
	}
	return resp.Content(), "synthesis", nil
}

func (a *Aggregator) note(ctx context.Context, st *session.State) string {
	loc, err := a.store.SaveNote(ctx, st)
	if err != nil {
		a.observer.OnEvent(ctx, observability.NewEvent(EventNoteFailed, observability.LevelWarning, "aggregator.Run", map[string]any{
			"session": st.ID,
			"error":   err.Error(),
		}))
		return ""
	}
	a.observer.OnEvent(ctx, observability.NewEvent(EventNoteSaved, observability.LevelInfo, "aggregator.Run", map[string]any{
		"session":  st.ID,
		"location": loc,
	}))
	return loc
}
