package compaction_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/chattutor/agent/mock"
	"github.com/tailored-agentic-units/chattutor/compaction"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
)

func transcript(n int) []protocol.Message {
	msgs := make([]protocol.Message, n)
	for i := range n {
		role := protocol.RoleUser
		if i%2 == 1 {
			role = protocol.RoleAssistant
		}
		msgs[i] = protocol.NewMessage(role, fmt.Sprintf("m%d", i))
	}
	return msgs
}

func TestShouldCompress(t *testing.T) {
	tests := []struct {
		length, cursor int
		want           bool
	}{
		{15, 0, false},
		{16, 0, true},
		{17, 0, true},
		{26, 11, false},
		{27, 11, true},
		{0, 0, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d", tt.length, tt.cursor), func(t *testing.T) {
			if got := compaction.ShouldCompress(tt.length, tt.cursor, compaction.Threshold); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		name               string
		length, cursor     int
		wantStart, wantEnd int
		wantOK             bool
	}{
		{"normal", 16, 0, 0, 11, true},
		{"advanced cursor", 30, 11, 11, 25, true},
		{"empty", 5, 0, 0, 0, false},
		{"inverted", 8, 6, 6, 6, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := compaction.Range(tt.length, tt.cursor, compaction.KeepWindow)
			if start != tt.wantStart || end != tt.wantEnd || ok != tt.wantOK {
				t.Errorf("got (%d, %d, %v), want (%d, %d, %v)", start, end, ok, tt.wantStart, tt.wantEnd, tt.wantOK)
			}
		})
	}
}

func TestRender(t *testing.T) {
	got := compaction.Render([]protocol.Message{
		protocol.NewMessage(protocol.RoleUser, "q"),
		protocol.NewMessage(protocol.RoleAssistant, "a"),
		{Role: protocol.RoleTool, Content: "result", ToolCallID: "c1"},
	})
	if got != "User: q\nAI: a\nTool: result\n" {
		t.Errorf("got %q", got)
	}
}

func TestCompress_BelowThreshold(t *testing.T) {
	a := mock.NewMockAgent(mock.WithChatResponse("should not be used"))
	c := compaction.New(a)

	res, err := c.Compress(context.Background(), transcript(15), "old", 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.Compressed || res.Summary != "old" || res.Cursor != 0 {
		t.Errorf("got %+v, want unchanged", res)
	}
	if a.CallCount(protocol.Chat) != 0 {
		t.Error("capability called below threshold")
	}
}

func TestCompress_Fires(t *testing.T) {
	a := mock.NewMockAgent(mock.WithChatResponse("  fused summary \n"))
	c := compaction.New(a)

	msgs := transcript(16)
	res, err := c.Compress(context.Background(), msgs, "", 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !res.Compressed || res.Summary != "fused summary" {
		t.Errorf("got %+v", res)
	}
	if res.Cursor != len(msgs)-compaction.KeepWindow {
		t.Errorf("got cursor %d, want %d", res.Cursor, len(msgs)-compaction.KeepWindow)
	}

	calls := a.Calls()
	if len(calls) != 1 || len(calls[0].Messages) != 1 || calls[0].Messages[0].Role != protocol.RoleUser {
		t.Fatalf("got calls %+v", calls)
	}
	body := calls[0].Messages[0].Content
	if !strings.Contains(body, "User: m0\n") || !strings.Contains(body, "AI: m9\nUser: m10\n") {
		t.Errorf("range not rendered: %s", body)
	}
	if strings.Contains(body, "m11") {
		t.Errorf("keep window leaked into compression: %s", body)
	}
	if !strings.Contains(body, "(nothing recorded yet)") {
		t.Error("empty summary placeholder missing")
	}
}

func TestCompress_CursorMonotonic(t *testing.T) {
	a := mock.NewMockAgent(mock.WithChatResponse("s1", "s2", "s3"))
	c := compaction.New(a)

	msgs := transcript(2)
	summary, cursor := "", 0
	for range 40 {
		msgs = append(msgs, transcript(1)...)
		res, err := c.Compress(context.Background(), msgs, summary, cursor)
		if err != nil {
			t.Fatalf("Compress: %v", err)
		}
		if res.Cursor < cursor {
			t.Fatalf("cursor regressed from %d to %d", cursor, res.Cursor)
		}
		if res.Cursor > len(msgs) {
			t.Fatalf("cursor %d past transcript %d", res.Cursor, len(msgs))
		}
		if res.Compressed && len(msgs)-res.Cursor != compaction.KeepWindow {
			t.Fatalf("left %d raw messages, want %d", len(msgs)-res.Cursor, compaction.KeepWindow)
		}
		summary, cursor = res.Summary, res.Cursor
	}
	if cursor == 0 {
		t.Error("compression never fired")
	}
}

func TestCompress_EmptyRangeIsNoOp(t *testing.T) {
	a := mock.NewMockAgent()
	c := compaction.New(a, compaction.WithThreshold(2), compaction.WithKeepWindow(5))

	res, err := c.Compress(context.Background(), transcript(4), "kept", 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.Compressed || res.Summary != "kept" || res.Cursor != 0 {
		t.Errorf("got %+v", res)
	}
	if a.CallCount(protocol.Chat) != 0 {
		t.Error("capability called for an empty range")
	}
}

func TestCompress_CapabilityError(t *testing.T) {
	boom := errors.New("provider down")
	c := compaction.New(mock.NewMockAgent(mock.WithError(boom)))

	_, err := c.Compress(context.Background(), transcript(20), "", 0)
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped provider error", err)
	}
}
