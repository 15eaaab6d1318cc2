package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/chattutor/agent/mock"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/core/response"
	"github.com/tailored-agentic-units/chattutor/observability"
	"github.com/tailored-agentic-units/chattutor/plan"
	"github.com/tailored-agentic-units/chattutor/prompt"
	"github.com/tailored-agentic-units/chattutor/session"
	"github.com/tailored-agentic-units/chattutor/tools"
	"github.com/tailored-agentic-units/chattutor/tools/search"
	"github.com/tailored-agentic-units/chattutor/workers"
)

type fakeExecutor struct {
	results map[string]tools.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeExecutor) List() []protocol.Tool {
	return []protocol.Tool{{Name: "web_search", Description: "search"}}
}

func (f *fakeExecutor) Execute(_ context.Context, name string, args json.RawMessage) (tools.Result, error) {
	f.calls = append(f.calls, name+":"+string(args))
	if err, ok := f.errs[name]; ok {
		return tools.Result{}, err
	}
	return f.results[name], nil
}

type recorder struct {
	mu     sync.Mutex
	events []observability.Event
}

func (r *recorder) OnEvent(_ context.Context, e observability.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(typ observability.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func userState(text string) *session.State {
	st := session.New("Physics")
	st.Transcript = []protocol.Message{protocol.NewMessage(protocol.RoleUser, text)}
	return st
}

func TestAugment_NoToolCalls(t *testing.T) {
	a := mock.NewMockAgent(mock.WithToolsResponse(response.NewToolsResponse("m", "direct answer", nil)))
	exec := &fakeExecutor{}

	res, err := workers.Augment(context.Background(), a, exec, nil, []protocol.Message{protocol.NewMessage(protocol.RoleUser, "q")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "direct answer" || res.Rounds != 0 || len(res.ToolCalls) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if a.CallCount(protocol.Chat) != 0 {
		t.Error("follow-up chat call should not run without tool calls")
	}
}

func TestAugment_OneRound(t *testing.T) {
	calls := []protocol.ToolCall{
		protocol.NewToolCall("c1", "web_search", `{"query":"gravity"}`),
		protocol.NewToolCall("c2", "calc", `{}`),
	}
	a := mock.NewMockAgent(
		mock.WithToolsResponse(response.NewToolsResponse("m", "", calls)),
		mock.WithChatResponse("final"),
	)
	exec := &fakeExecutor{
		results: map[string]tools.Result{"web_search": {Content: "9.8 m/s²"}},
		errs:    map[string]error{"calc": errors.New("boom")},
	}
	obs := &recorder{}

	input := []protocol.Message{
		protocol.NewMessage(protocol.RoleSystem, "sys"),
		protocol.NewMessage(protocol.RoleUser, "q"),
	}
	res, err := workers.Augment(context.Background(), a, exec, obs, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Content != "final" {
		t.Errorf("got content %q", res.Content)
	}
	if res.Rounds != workers.MaxToolRounds {
		t.Errorf("got %d rounds, want %d", res.Rounds, workers.MaxToolRounds)
	}
	if len(res.ToolCalls) != 2 {
		t.Fatalf("got %d records, want 2", len(res.ToolCalls))
	}
	if res.ToolCalls[0].Result != "9.8 m/s²" || res.ToolCalls[0].IsError {
		t.Errorf("record 0: %+v", res.ToolCalls[0])
	}
	if res.ToolCalls[1].Result != "error: boom" || !res.ToolCalls[1].IsError {
		t.Errorf("record 1: %+v", res.ToolCalls[1])
	}
	if len(input) != 2 {
		t.Error("caller messages were modified")
	}

	chats := a.Calls()
	last := chats[len(chats)-1]
	if last.Protocol != protocol.Chat {
		t.Fatalf("last call protocol %s, want chat", last.Protocol)
	}
	// sys, user, assistant tool request, two tool results
	if len(last.Messages) != 5 {
		t.Fatalf("follow-up saw %d messages, want 5", len(last.Messages))
	}
	if last.Messages[2].Role != protocol.RoleAssistant || len(last.Messages[2].ToolCalls) != 2 {
		t.Errorf("tool request message: %+v", last.Messages[2])
	}
	if last.Messages[3].Role != protocol.RoleTool || last.Messages[3].ToolCallID != "c1" {
		t.Errorf("tool result message: %+v", last.Messages[3])
	}
	if a.CallCount(protocol.Tools) != 1 {
		t.Errorf("got %d tools calls, want 1", a.CallCount(protocol.Tools))
	}

	if got := obs.count(workers.EventToolCall); got != 2 {
		t.Errorf("got %d tool.call events, want 2", got)
	}
}

func TestAugment_ErrorResultIsPrefixed(t *testing.T) {
	a := mock.NewMockAgent(
		mock.WithToolsResponse(response.NewToolsResponse("m", "", []protocol.ToolCall{
			protocol.NewToolCall("c1", "web_search", `{"query":"x"}`),
		})),
		mock.WithChatResponse("ok"),
	)
	exec := &fakeExecutor{results: map[string]tools.Result{
		"web_search": {Content: "query is required", IsError: true},
	}}

	res, err := workers.Augment(context.Background(), a, exec, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.ToolCalls[0].Result; got != "error: query is required" {
		t.Errorf("got %q", got)
	}
}

func TestAugment_SearchFailureReachesModelOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := tools.NewRegistry()
	if err := search.New(search.Config{Endpoint: srv.URL}).Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	a := mock.NewMockAgent(
		mock.WithToolsResponse(response.NewToolsResponse("m", "", []protocol.ToolCall{
			protocol.NewToolCall("c1", search.ToolName, `{"query":"x"}`),
		})),
		mock.WithChatResponse("ok"),
	)

	res, err := workers.Augment(context.Background(), a, reg, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := res.ToolCalls[0]
	if got.IsError || !strings.HasPrefix(got.Result, "Error connecting to search: status 502") {
		t.Errorf("got %+v", got)
	}
}

func TestAugment_CapabilityError(t *testing.T) {
	boom := errors.New("unreachable")
	a := mock.NewMockAgent(mock.WithError(boom))

	_, err := workers.Augment(context.Background(), a, &fakeExecutor{}, nil, nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped capability error, got %v", err)
	}
}

func TestAugment_NilExecutorUsesChat(t *testing.T) {
	a := mock.NewMockAgent(mock.WithChatResponse("plain"))

	res, err := workers.Augment(context.Background(), a, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "plain" || a.CallCount(protocol.Tools) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestTutor_WritesTutorOutput(t *testing.T) {
	a := mock.NewMockAgent(mock.WithToolsResponse(response.NewToolsResponse("m", "explained", nil)))
	w := workers.NewTutor(a, workers.WithTools(&fakeExecutor{}))

	d, err := w.Run(context.Background(), userState("why does ice float?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Tutor == nil || *d.Tutor != "explained" {
		t.Fatalf("unexpected delta %+v", d)
	}
	if d.Judge != nil || d.Inquiry != nil || d.Summary != nil || d.ShouldExit != nil {
		t.Error("tutor wrote fields it does not own")
	}

	sys := a.Calls()[0].Messages[0]
	if sys.Role != protocol.RoleSystem || !strings.Contains(sys.Content, `"Physics"`) {
		t.Errorf("unexpected instruction %+v", sys)
	}
}

func TestJudge_WritesJudgeOutput(t *testing.T) {
	a := mock.NewMockAgent(mock.WithToolsResponse(response.NewToolsResponse("m", "partially correct", nil)))

	d, err := workers.NewJudge(a, workers.WithTools(&fakeExecutor{})).Run(context.Background(), userState("ice is denser"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Judge == nil || *d.Judge != "partially correct" || d.Tutor != nil {
		t.Errorf("unexpected delta %+v", d)
	}
}

func TestInquiry_UsesJudgeFeedback(t *testing.T) {
	tests := []struct {
		name  string
		judge string
		want  string
	}{
		{"with feedback", "wrong about density", "wrong about density"},
		{"without feedback", "", "feedback on the user's last answer: none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mock.NewMockAgent(mock.WithChatResponse("What happens at 4°C?"))
			st := userState("ice is denser")
			st.Outputs.Judge = tt.judge

			d, err := workers.NewInquiry(a).Run(context.Background(), st)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Inquiry == nil || *d.Inquiry != "What happens at 4°C?" {
				t.Errorf("unexpected delta %+v", d)
			}
			if sys := a.Calls()[0].Messages[0].Content; !strings.Contains(sys, tt.want) {
				t.Errorf("instruction missing %q: %s", tt.want, sys)
			}
		})
	}
}

func TestSummary_Modes(t *testing.T) {
	tests := []struct {
		name        string
		plan        *plan.Plan
		instruction string
		wantExit    bool
		wantCalls   int
	}{
		{"concluding", &plan.Plan{IsConcluding: true}, prompt.SummaryNote, true, 1},
		{"concluding with review", &plan.Plan{IsConcluding: true, RequestSummary: true}, prompt.SummaryNote, true, 1},
		{"review", &plan.Plan{RequestSummary: true}, prompt.SummaryReview, false, 1},
		{"neither", &plan.Plan{NeedsTutorAnswer: true}, "", false, 0},
		{"no plan", nil, "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mock.NewMockAgent(mock.WithChatResponse("note body"))
			st := userState("bye")
			st.Plan = tt.plan

			d, err := workers.NewSummary(a).Run(context.Background(), st)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := a.CallCount(protocol.Chat); got != tt.wantCalls {
				t.Fatalf("got %d chat calls, want %d", got, tt.wantCalls)
			}
			if tt.wantCalls == 0 {
				if d.Summary != nil || d.ShouldExit != nil {
					t.Errorf("expected empty delta, got %+v", d)
				}
				return
			}
			if d.Summary == nil || *d.Summary != "note body" {
				t.Errorf("unexpected summary %+v", d.Summary)
			}
			if gotExit := d.ShouldExit != nil && *d.ShouldExit; gotExit != tt.wantExit {
				t.Errorf("ShouldExit = %v, want %v", gotExit, tt.wantExit)
			}
			if sys := a.Calls()[0].Messages[0].Content; sys != tt.instruction {
				t.Errorf("unexpected instruction %q", sys)
			}
		})
	}
}

func TestWorkers_PropagateErrors(t *testing.T) {
	boom := errors.New("down")
	st := userState("q")
	st.Plan = &plan.Plan{IsConcluding: true}

	for _, w := range []workers.Worker{
		workers.NewTutor(mock.NewMockAgent(mock.WithError(boom)), workers.WithTools(&fakeExecutor{})),
		workers.NewJudge(mock.NewMockAgent(mock.WithError(boom))),
		workers.NewInquiry(mock.NewMockAgent(mock.WithError(boom))),
		workers.NewSummary(mock.NewMockAgent(mock.WithError(boom))),
	} {
		if _, err := w.Run(context.Background(), st); !errors.Is(err, boom) {
			t.Errorf("%s: expected wrapped error, got %v", w.Name(), err)
		}
	}
}
