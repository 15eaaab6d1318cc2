package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tailored-agentic-units/chattutor/agent"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/observability"
	"github.com/tailored-agentic-units/chattutor/tools"
)

// MaxToolRounds bounds tool execution per worker call. After the single
// round the follow-up call runs with tools disabled.
const MaxToolRounds = 1

// ToolCallRecord is one executed tool call.
type ToolCallRecord struct {
	protocol.ToolCall
	Round   int    // Tool round in which the call ran.
	Result  string // Text fed back to the model.
	IsError bool   // Whether the executor failed or flagged the result.
}

// Result is the outcome of an augmented call.
type Result struct {
	Content   string
	Rounds    int
	ToolCalls []ToolCallRecord
}

// Augment runs the two-phase tool protocol. The first call offers the
// executor's tools; if the model asks for any, each is executed in order,
// the requesting message and the tool results are appended to a local copy
// of messages, and one follow-up Chat call produces the content. A nil
// executor degrades to a single Chat call.
func Augment(ctx context.Context, a agent.Agent, exec tools.Executor, obs observability.Observer, messages []protocol.Message) (*Result, error) {
	if obs == nil {
		obs = observability.NoOpObserver{}
	}

	if exec == nil {
		resp, err := a.Chat(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("chat call failed: %w", err)
		}
		return &Result{Content: resp.Content()}, nil
	}

	resp, err := a.Tools(ctx, messages, exec.List())
	if err != nil {
		return nil, fmt.Errorf("tools call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	calls := resp.ToolCalls()
	if len(calls) == 0 {
		return &Result{Content: resp.Content()}, nil
	}

	result := &Result{}
	local := make([]protocol.Message, 0, len(messages)+len(calls)+1)
	local = append(local, messages...)

	for round := 1; round <= MaxToolRounds; round++ {
		local = append(local, protocol.Message{
			Role:      protocol.RoleAssistant,
			Content:   resp.Content(),
			ToolCalls: calls,
		})

		for _, tc := range calls {
			record := execute(ctx, exec, obs, tc, round)
			local = append(local, protocol.Message{
				Role:       protocol.RoleTool,
				Content:    record.Result,
				ToolCallID: tc.ID,
			})
			result.ToolCalls = append(result.ToolCalls, record)
		}
		result.Rounds = round
	}

	final, err := a.Chat(ctx, local)
	if err != nil {
		return nil, fmt.Errorf("follow-up call failed: %w", err)
	}
	result.Content = final.Content()
	return result, nil
}

func execute(ctx context.Context, exec tools.Executor, obs observability.Observer, tc protocol.ToolCall, round int) ToolCallRecord {
	obs.OnEvent(ctx, observability.NewEvent(EventToolCall, observability.LevelVerbose, "workers.Augment", map[string]any{
		"round": round,
		"name":  tc.Name,
	}))

	record := ToolCallRecord{ToolCall: tc, Round: round}

	out, err := exec.Execute(ctx, tc.Name, json.RawMessage(tc.Arguments))
	switch {
	case err != nil:
		record.Result = fmt.Sprintf("error: %s", err)
		record.IsError = true
	case out.IsError:
		record.Result = fmt.Sprintf("error: %s", out.Content)
		record.IsError = true
	default:
		record.Result = out.Content
	}

	obs.OnEvent(ctx, observability.NewEvent(EventToolComplete, observability.LevelVerbose, "workers.Augment", map[string]any{
		"round": round,
		"name":  tc.Name,
		"error": record.IsError,
	}))
	return record
}
