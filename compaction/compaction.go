// Package compaction folds aged transcript segments into the running summary.
package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/chattutor/agent"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/observability"
)

const (
	// Threshold is the number of unsummarized messages that triggers a run.
	Threshold = 16
	// KeepWindow is the number of trailing messages always left raw.
	KeepWindow = 5

	EventRun  observability.EventType = "compaction.run"
	EventSkip observability.EventType = "compaction.skip"
)

// Result is the outcome of one Compress call. Cursor never moves backwards.
type Result struct {
	Summary    string
	Cursor     int
	Compressed bool
}

// ShouldCompress reports whether length-cursor has reached threshold.
func ShouldCompress(length, cursor, threshold int) bool {
	return length-cursor >= threshold
}

// Range returns the half-open span [cursor, length-keep) to compress and
// whether it is non-empty.
func Range(length, cursor, keep int) (start, end int, ok bool) {
	end = length - keep
	if end <= cursor {
		return cursor, cursor, false
	}
	return cursor, end, true
}

// Render writes messages as role-tagged plain text lines.
func Render(messages []protocol.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Label(), m.Content)
	}
	return b.String()
}

// Compressor rewrites the running summary with a fusion instruction.
type Compressor struct {
	agent      agent.Agent
	observer   observability.Observer
	threshold  int
	keepWindow int
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithObserver sets the observer for compaction events.
func WithObserver(o observability.Observer) Option {
	return func(c *Compressor) { c.observer = o }
}

// WithThreshold overrides Threshold.
func WithThreshold(n int) Option {
	return func(c *Compressor) { c.threshold = n }
}

// WithKeepWindow overrides KeepWindow.
func WithKeepWindow(n int) Option {
	return func(c *Compressor) { c.keepWindow = n }
}

// New creates a Compressor over a rewrite capability.
func New(a agent.Agent, opts ...Option) *Compressor {
	c := &Compressor{
		agent:      a,
		observer:   observability.NoOpObserver{},
		threshold:  Threshold,
		keepWindow: KeepWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compress folds transcript[cursor:len-keep] into summary when the trigger
// fires. Otherwise it returns summary and cursor unchanged without a call.
func (c *Compressor) Compress(ctx context.Context, transcript []protocol.Message, summary string, cursor int) (Result, error) {
	unchanged := Result{Summary: summary, Cursor: cursor}

	if !ShouldCompress(len(transcript), cursor, c.threshold) {
		return unchanged, nil
	}

	start, end, ok := Range(len(transcript), cursor, c.keepWindow)
	if !ok {
		c.observer.OnEvent(ctx, observability.NewEvent(EventSkip, observability.LevelVerbose, "compaction.Compressor", map[string]any{
			"cursor": cursor,
			"length": len(transcript),
		}))
		return unchanged, nil
	}

	instruction := Instruction(summary, Render(transcript[start:end]))
	resp, err := c.agent.Chat(ctx, protocol.InitMessages(protocol.RoleUser, instruction))
	if err != nil {
		return Result{}, fmt.Errorf("compaction failed: %w", err)
	}

	next := strings.TrimSpace(resp.Content())

	c.observer.OnEvent(ctx, observability.NewEvent(EventRun, observability.LevelInfo, "compaction.Compressor", map[string]any{
		"from":           start,
		"cursor":         end,
		"summary_length": len(next),
	}))

	return Result{Summary: next, Cursor: end, Compressed: true}, nil
}

// Instruction renders the fusion rewrite prompt.
func Instruction(summary, history string) string {
	if summary == "" {
		summary = "(nothing recorded yet)"
	}
	return fmt.Sprintf(`You maintain the working context of a tutoring conversation.
Fuse the cognitive essence of the [New exchanges] into the [Current summary].

This is a short-term memory index for a language model, not a report for a person. Keep information density high and word count low.

[Current summary]
%s

[New exchanges]
%s
Requirements:
1. Show cognitive progression: use cause and effect connectives to trace how the user moved from confusion to understanding to deeper questions.
2. Be minimal: no filler, greetings, or repetition. Grow the text only when new information actually moves the boundary of understanding; otherwise merge or rewrite what is there.
3. Fuse, do not append: work the new material into the old text and drop details that no longer matter.

Output only the updated summary text.`, summary, history)
}
