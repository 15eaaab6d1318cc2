// Package prompt assembles the ordered message list every worker call sees:
// instruction, running summary, recalled excerpts, then the recent window.
package prompt

import (
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/retrieval"
	"github.com/tailored-agentic-units/chattutor/session"
)

const (
	// DisplayWindow is the transcript suffix always passed raw.
	DisplayWindow = 12
	// RecallTopK is the number of recalled pairs.
	RecallTopK = 2
)

// Build returns the messages for one capability call. It does not modify st.
// Recall runs only when the newest transcript entry is a user message.
func Build(st *session.State, instruction string) []protocol.Message {
	msgs := []protocol.Message{protocol.NewMessage(protocol.RoleSystem, instruction)}

	if st.Summary != "" {
		msgs = append(msgs, protocol.NewMessage(protocol.RoleSystem, SummaryEntry(st.Summary)))
	}

	if n := len(st.Transcript); n > 0 && st.Transcript[n-1].Role == protocol.RoleUser {
		recalled := retrieval.Retrieve(st.Transcript, st.Transcript[n-1].Content, DisplayWindow, RecallTopK)
		if recalled != "" {
			msgs = append(msgs, protocol.NewMessage(protocol.RoleSystem, RecallEntry(recalled)))
		}
	}

	return append(msgs, Recent(st.Transcript)...)
}

// Recent returns a copy of the last DisplayWindow transcript messages.
func Recent(transcript []protocol.Message) []protocol.Message {
	window := transcript[max(0, len(transcript)-DisplayWindow):]
	return append([]protocol.Message(nil), window...)
}

// SummaryEntry wraps the running summary as leading context.
func SummaryEntry(summary string) string {
	return "[Summary of the earlier conversation]\n" + summary +
		"\n\n(Use this summary as background knowledge, but focus your reply on the latest messages.)"
}

// RecallEntry wraps recalled excerpts.
func RecallEntry(recalled string) string {
	return "[Related earlier exchanges]\n(Matched automatically from the conversation history to support this reply.)\n" + recalled
}
