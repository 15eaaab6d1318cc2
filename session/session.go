// Package session holds the per-session aggregate threaded through a turn
// and the Delta each stage returns to change it.
package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/plan"
)

// DefaultTopic is the topic of a session started without one.
const DefaultTopic = "General Knowledge"

var (
	ErrCursorRegression = errors.New("summarized cursor cannot move backwards")
	ErrCursorRange      = errors.New("summarized cursor beyond transcript")
	ErrOutputWritten    = errors.New("worker output already written this turn")
	ErrSystemMessage    = errors.New("system messages cannot enter the transcript")
)

// Outputs are the per-turn worker results, cleared when planning begins.
type Outputs struct {
	Tutor   string `json:"tutor,omitempty"`
	Judge   string `json:"judge,omitempty"`
	Inquiry string `json:"inquiry,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Empty reports whether no worker produced output.
func (o Outputs) Empty() bool {
	return o.Tutor == "" && o.Judge == "" && o.Inquiry == "" && o.Summary == ""
}

// State is one tutoring session. The transcript is append-only and Cursor
// marks the prefix already folded into Summary.
type State struct {
	ID           string
	Transcript   []protocol.Message
	CurrentTopic string
	Summary      string
	Cursor       int
	Plan         *plan.Plan
	ShouldExit   bool
	Outputs      Outputs
}

// New starts a session with a fresh UUIDv7 identifier. An empty topic
// becomes DefaultTopic.
func New(topic string) *State {
	if topic == "" {
		topic = DefaultTopic
	}
	return &State{
		ID:           uuid.Must(uuid.NewV7()).String(),
		CurrentTopic: topic,
	}
}

// Clone returns a deep copy, so a failed turn leaves the original untouched.
func (s *State) Clone() *State {
	c := *s
	c.Transcript = make([]protocol.Message, len(s.Transcript))
	for i, msg := range s.Transcript {
		c.Transcript[i] = msg
		c.Transcript[i].ToolCalls = slices.Clone(msg.ToolCalls)
	}
	if s.Plan != nil {
		p := *s.Plan
		c.Plan = &p
	}
	return &c
}

// LastUserMessage returns the most recent user message in the transcript.
func (s *State) LastUserMessage() (protocol.Message, bool) {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == protocol.RoleUser {
			return s.Transcript[i], true
		}
	}
	return protocol.Message{}, false
}

// Unsummarized returns the number of transcript messages past the cursor.
func (s *State) Unsummarized() int {
	return len(s.Transcript) - s.Cursor
}

// Validate checks the cursor invariant.
func (s *State) Validate() error {
	if s.Cursor < 0 || s.Cursor > len(s.Transcript) {
		return fmt.Errorf("%w: cursor %d, transcript %d", ErrCursorRange, s.Cursor, len(s.Transcript))
	}
	return nil
}

// Delta is the change a stage makes to a State. Nil pointers leave the
// corresponding field untouched.
type Delta struct {
	ClearOutputs bool
	Plan         *plan.Plan

	Tutor   *string
	Judge   *string
	Inquiry *string
	Summary *string

	ShouldExit *bool
	Append     []protocol.Message

	ConversationSummary *string
	Cursor              *int
}

// Apply merges d into s. The delta is validated first and either applies
// in full or not at all.
func (s *State) Apply(d Delta) error {
	for _, msg := range d.Append {
		if msg.Role == protocol.RoleSystem {
			return ErrSystemMessage
		}
	}

	outputs := s.Outputs
	if d.ClearOutputs {
		outputs = Outputs{}
	}
	if err := writeOnce(&outputs.Tutor, d.Tutor, "tutor"); err != nil {
		return err
	}
	if err := writeOnce(&outputs.Judge, d.Judge, "judge"); err != nil {
		return err
	}
	if err := writeOnce(&outputs.Inquiry, d.Inquiry, "inquiry"); err != nil {
		return err
	}
	if err := writeOnce(&outputs.Summary, d.Summary, "summary"); err != nil {
		return err
	}

	length := len(s.Transcript) + len(d.Append)
	cursor := s.Cursor
	if d.Cursor != nil {
		if *d.Cursor < s.Cursor {
			return fmt.Errorf("%w: %d to %d", ErrCursorRegression, s.Cursor, *d.Cursor)
		}
		if *d.Cursor > length {
			return fmt.Errorf("%w: cursor %d, transcript %d", ErrCursorRange, *d.Cursor, length)
		}
		cursor = *d.Cursor
	}

	s.Outputs = outputs
	if d.Plan != nil {
		s.Plan = d.Plan
	}
	if d.ShouldExit != nil {
		s.ShouldExit = *d.ShouldExit
	}
	s.Transcript = append(s.Transcript, d.Append...)
	if d.ConversationSummary != nil {
		s.Summary = *d.ConversationSummary
	}
	s.Cursor = cursor
	return nil
}

func writeOnce(dst *string, src *string, name string) error {
	if src == nil {
		return nil
	}
	if *dst != "" {
		return fmt.Errorf("%w: %s", ErrOutputWritten, name)
	}
	*dst = *src
	return nil
}

// Ptr returns a pointer to v for building a Delta.
func Ptr[T any](v T) *T {
	return &v
}
