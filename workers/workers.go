// Package workers holds the response-generating stages of a turn. Each
// worker reads the session, assembles its prompt, makes its capability
// calls and returns the Delta that records its output.
package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/chattutor/agent"
	"github.com/tailored-agentic-units/chattutor/observability"
	"github.com/tailored-agentic-units/chattutor/prompt"
	"github.com/tailored-agentic-units/chattutor/session"
	"github.com/tailored-agentic-units/chattutor/tools"
)

// ErrEmptyResponse is returned when a capability reply has no choices.
var ErrEmptyResponse = errors.New("agent returned empty response")

// Worker event types.
const (
	EventToolCall     observability.EventType = "tool.call"
	EventToolComplete observability.EventType = "tool.complete"
	EventComplete     observability.EventType = "worker.complete"
)

// Worker produces one stage's contribution to a turn.
type Worker interface {
	Name() string
	Run(ctx context.Context, st *session.State) (session.Delta, error)
}

// Option configures a worker.
type Option func(*base)

// WithObserver sets the observer for worker events.
func WithObserver(o observability.Observer) Option {
	return func(b *base) { b.observer = o }
}

// WithTools sets the executor offered during tool augmentation. Only the
// Tutor and Judge workers use it.
func WithTools(e tools.Executor) Option {
	return func(b *base) { b.tools = e }
}

type base struct {
	agent    agent.Agent
	tools    tools.Executor
	observer observability.Observer
}

func newBase(a agent.Agent, opts []Option) base {
	b := base{agent: a, observer: observability.NoOpObserver{}}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) complete(ctx context.Context, name string, data map[string]any) {
	data["worker"] = name
	b.observer.OnEvent(ctx, observability.NewEvent(EventComplete, observability.LevelVerbose, "workers."+name, data))
}

// Tutor explains and answers, with tool augmentation.
type Tutor struct{ base }

func NewTutor(a agent.Agent, opts ...Option) *Tutor {
	return &Tutor{newBase(a, opts)}
}

func (w *Tutor) Name() string { return "tutor" }

func (w *Tutor) Run(ctx context.Context, st *session.State) (session.Delta, error) {
	res, err := Augment(ctx, w.agent, w.tools, w.observer, prompt.Build(st, prompt.Tutor(st.CurrentTopic)))
	if err != nil {
		return session.Delta{}, fmt.Errorf("tutor: %w", err)
	}
	w.complete(ctx, w.Name(), map[string]any{"rounds": res.Rounds, "tool_calls": len(res.ToolCalls)})
	return session.Delta{Tutor: session.Ptr(res.Content)}, nil
}

// Judge evaluates the user's claim, with tool augmentation.
type Judge struct{ base }

func NewJudge(a agent.Agent, opts ...Option) *Judge {
	return &Judge{newBase(a, opts)}
}

func (w *Judge) Name() string { return "judge" }

func (w *Judge) Run(ctx context.Context, st *session.State) (session.Delta, error) {
	res, err := Augment(ctx, w.agent, w.tools, w.observer, prompt.Build(st, prompt.Judge(st.CurrentTopic)))
	if err != nil {
		return session.Delta{}, fmt.Errorf("judge: %w", err)
	}
	w.complete(ctx, w.Name(), map[string]any{"rounds": res.Rounds, "tool_calls": len(res.ToolCalls)})
	return session.Delta{Judge: session.Ptr(res.Content)}, nil
}

// Inquiry asks one follow-up question, informed by the Judge output of the
// same turn when there is one.
type Inquiry struct{ base }

func NewInquiry(a agent.Agent, opts ...Option) *Inquiry {
	return &Inquiry{newBase(a, opts)}
}

func (w *Inquiry) Name() string { return "inquiry" }

func (w *Inquiry) Run(ctx context.Context, st *session.State) (session.Delta, error) {
	resp, err := w.agent.Chat(ctx, prompt.Build(st, prompt.Inquiry(st.CurrentTopic, st.Outputs.Judge)))
	if err != nil {
		return session.Delta{}, fmt.Errorf("inquiry: chat call failed: %w", err)
	}
	w.complete(ctx, w.Name(), map[string]any{"length": len(resp.Content())})
	return session.Delta{Inquiry: session.Ptr(resp.Content())}, nil
}

// Summary writes the closing note on a concluding plan, or a recap when
// one was requested. Only the concluding mode sets ShouldExit.
type Summary struct{ base }

func NewSummary(a agent.Agent, opts ...Option) *Summary {
	return &Summary{newBase(a, opts)}
}

func (w *Summary) Name() string { return "summary" }

func (w *Summary) Run(ctx context.Context, st *session.State) (session.Delta, error) {
	if st.Plan == nil {
		return session.Delta{}, nil
	}

	var instruction string
	switch {
	case st.Plan.IsConcluding:
		instruction = prompt.SummaryNote
	case st.Plan.RequestSummary:
		instruction = prompt.SummaryReview
	default:
		return session.Delta{}, nil
	}

	resp, err := w.agent.Chat(ctx, prompt.Build(st, instruction))
	if err != nil {
		return session.Delta{}, fmt.Errorf("summary: chat call failed: %w", err)
	}

	d := session.Delta{Summary: session.Ptr(resp.Content())}
	if st.Plan.IsConcluding {
		d.ShouldExit = session.Ptr(true)
	}
	w.complete(ctx, w.Name(), map[string]any{"concluding": st.Plan.IsConcluding})
	return d, nil
}
