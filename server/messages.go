package server

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/chattutor/kernel"
	"github.com/tailored-agentic-units/chattutor/plan"
	"github.com/tailored-agentic-units/chattutor/router"
	"github.com/tailored-agentic-units/chattutor/store"
)

// TurnRequest starts or continues a session. An empty SessionID starts a
// new session on Topic.
type TurnRequest struct {
	SessionID string
	Topic     string
	Utterance string
}

// TurnResponse reports one completed turn.
type TurnResponse struct {
	SessionID    string
	Reply        string
	Path         []string
	Plan         *plan.Plan
	Location     string
	NoteLocation string
	ShouldExit   bool
	Compressed   bool
}

// SessionInfo describes a saved session.
type SessionInfo struct {
	ID          string
	Topic       string
	LastUpdated string
	Messages    int
}

func (r TurnRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"session_id": r.SessionID,
		"topic":      r.Topic,
		"utterance":  r.Utterance,
	})
}

func turnRequestFrom(s *structpb.Struct) TurnRequest {
	f := s.GetFields()
	return TurnRequest{
		SessionID: f["session_id"].GetStringValue(),
		Topic:     f["topic"].GetStringValue(),
		Utterance: f["utterance"].GetStringValue(),
	}
}

func turnResponseFrom(res *kernel.Result) TurnResponse {
	return TurnResponse{
		SessionID:    res.State.ID,
		Reply:        res.Reply(),
		Path:         router.Strings(res.Path),
		Plan:         res.Plan,
		Location:     res.Location,
		NoteLocation: res.NoteLocation,
		ShouldExit:   res.State.ShouldExit,
		Compressed:   res.Compressed,
	}
}

func (r TurnResponse) toStruct() (*structpb.Struct, error) {
	path := make([]any, len(r.Path))
	for i, p := range r.Path {
		path[i] = p
	}
	fields := map[string]any{
		"session_id":    r.SessionID,
		"reply":         r.Reply,
		"path":          path,
		"location":      r.Location,
		"note_location": r.NoteLocation,
		"should_exit":   r.ShouldExit,
		"compressed":    r.Compressed,
	}
	if r.Plan != nil {
		fields["plan"] = map[string]any{
			"needs_tutor_answer": r.Plan.NeedsTutorAnswer,
			"needs_judge":        r.Plan.NeedsJudge,
			"needs_inquiry":      r.Plan.NeedsInquiry,
			"request_summary":    r.Plan.RequestSummary,
			"is_concluding":      r.Plan.IsConcluding,
			"thought_process":    r.Plan.ThoughtProcess,
		}
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode turn response: %w", err)
	}
	return s, nil
}

func turnResponseFromStruct(s *structpb.Struct) TurnResponse {
	f := s.GetFields()
	out := TurnResponse{
		SessionID:    f["session_id"].GetStringValue(),
		Reply:        f["reply"].GetStringValue(),
		Location:     f["location"].GetStringValue(),
		NoteLocation: f["note_location"].GetStringValue(),
		ShouldExit:   f["should_exit"].GetBoolValue(),
		Compressed:   f["compressed"].GetBoolValue(),
	}
	for _, v := range f["path"].GetListValue().GetValues() {
		out.Path = append(out.Path, v.GetStringValue())
	}
	if p := f["plan"].GetStructValue(); p != nil {
		pf := p.GetFields()
		out.Plan = &plan.Plan{
			NeedsTutorAnswer: pf["needs_tutor_answer"].GetBoolValue(),
			NeedsJudge:       pf["needs_judge"].GetBoolValue(),
			NeedsInquiry:     pf["needs_inquiry"].GetBoolValue(),
			RequestSummary:   pf["request_summary"].GetBoolValue(),
			IsConcluding:     pf["is_concluding"].GetBoolValue(),
			ThoughtProcess:   pf["thought_process"].GetStringValue(),
		}
	}
	return out
}

func sessionsToStruct(infos []store.Info) (*structpb.Struct, error) {
	list := make([]any, len(infos))
	for i, info := range infos {
		list[i] = map[string]any{
			"id":           info.ID,
			"topic":        info.Topic,
			"last_updated": info.LastUpdated.Format(time.RFC3339),
			"messages":     info.Messages,
		}
	}
	s, err := structpb.NewStruct(map[string]any{"sessions": list})
	if err != nil {
		return nil, fmt.Errorf("encode sessions: %w", err)
	}
	return s, nil
}

func sessionsFromStruct(s *structpb.Struct) []SessionInfo {
	var out []SessionInfo
	for _, v := range s.GetFields()["sessions"].GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		out = append(out, SessionInfo{
			ID:          f["id"].GetStringValue(),
			Topic:       f["topic"].GetStringValue(),
			LastUpdated: f["last_updated"].GetStringValue(),
			Messages:    int(f["messages"].GetNumberValue()),
		})
	}
	return out
}
