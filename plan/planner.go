package plan

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/chattutor/agent"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/observability"
)

// RecentWindow is the number of trailing transcript messages the planner sees.
const RecentWindow = 3

const (
	EventDecided  observability.EventType = "plan.decided"
	EventFallback observability.EventType = "plan.fallback"
)

// Instruction is the planner's system instruction.
const Instruction = `You are the planning module of a tutoring assistant. Read the latest conversation turns and decide which response modules should run for the user's newest message.

Modules:
- needs_tutor_answer: explain, answer the question, or clear up confusion.
- needs_judge: the user gave an answer, opinion, or claim; evaluate whether it is correct.
- needs_inquiry: ask one guiding follow-up question that pushes the user to think further.
- request_summary: the user explicitly asks for a recap of the discussion.
- is_concluding: the user says goodbye or wants to finish; a closing study note will be written.

Several modules may be enabled together. Explain your decision briefly in thought_process.`

// Planner asks a structured-decode capability for the turn's Plan.
type Planner struct {
	agent       agent.Agent
	observer    observability.Observer
	instruction string
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithObserver sets the observer for planner events.
func WithObserver(o observability.Observer) PlannerOption {
	return func(p *Planner) { p.observer = o }
}

// WithInstruction replaces the default planner instruction.
func WithInstruction(instruction string) PlannerOption {
	return func(p *Planner) { p.instruction = instruction }
}

// NewPlanner creates a Planner over a with structured decode support.
func NewPlanner(a agent.Agent, opts ...PlannerOption) *Planner {
	p := &Planner{
		agent:       a,
		observer:    observability.NoOpObserver{},
		instruction: Instruction,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan decides the workers for the turn ending in transcript. It returns nil
// for an empty transcript and the Fallback plan when the capability fails or
// its reply does not decode. It never returns an error.
func (p *Planner) Plan(ctx context.Context, transcript []protocol.Message, summary string) *Plan {
	if len(transcript) == 0 {
		return nil
	}

	resp, err := p.agent.Structured(ctx, p.messages(transcript, summary), Schema())
	if err != nil {
		return p.fallback(ctx, fmt.Errorf("%w: %v", ErrDecode, err))
	}

	decided, err := Decode(resp.Content())
	if err != nil {
		return p.fallback(ctx, err)
	}

	p.observer.OnEvent(ctx, observability.NewEvent(EventDecided, observability.LevelInfo, "plan.Planner", map[string]any{
		"modules": decided.Modules(),
		"thought": decided.ThoughtProcess,
	}))
	return decided
}

func (p *Planner) messages(transcript []protocol.Message, summary string) []protocol.Message {
	recent := transcript[max(0, len(transcript)-RecentWindow):]

	msgs := make([]protocol.Message, 0, len(recent)+2)
	msgs = append(msgs, protocol.NewMessage(protocol.RoleSystem, p.instruction))
	if summary != "" {
		msgs = append(msgs, protocol.NewMessage(protocol.RoleSystem, "Context: "+summary))
	}
	return append(msgs, recent...)
}

func (p *Planner) fallback(ctx context.Context, err error) *Plan {
	p.observer.OnEvent(ctx, observability.NewEvent(EventFallback, observability.LevelWarning, "plan.Planner", map[string]any{
		"error": err.Error(),
	}))
	return Fallback()
}
