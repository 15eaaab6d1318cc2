// Package plan defines the per-turn decision record produced by the planner
// and the decode boundary that turns model output into one.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDecode marks a structured reply that could not be turned into a Plan.
var ErrDecode = errors.New("plan decode failed")

// FallbackThought is the ThoughtProcess of the fallback plan.
const FallbackThought = "Error in planning, defaulting to simple answer."

// Plan decides which workers run for one turn.
type Plan struct {
	NeedsTutorAnswer bool   `json:"needs_tutor_answer"`
	NeedsJudge       bool   `json:"needs_judge"`
	NeedsInquiry     bool   `json:"needs_inquiry"`
	RequestSummary   bool   `json:"request_summary"`
	IsConcluding     bool   `json:"is_concluding"`
	ThoughtProcess   string `json:"thought_process"`
}

// Fallback is the plan used when decoding fails: answer as a plain question.
func Fallback() *Plan {
	return &Plan{
		NeedsTutorAnswer: true,
		ThoughtProcess:   FallbackThought,
	}
}

// IsFallback reports whether p is the decode fallback.
func (p *Plan) IsFallback() bool {
	return p != nil && *p == *Fallback()
}

// Modules names the flags that are set, in routing order.
func (p *Plan) Modules() []string {
	if p == nil {
		return nil
	}
	var out []string
	if p.RequestSummary || p.IsConcluding {
		out = append(out, "summary")
	}
	if p.NeedsTutorAnswer {
		out = append(out, "tutor")
	}
	if p.NeedsJudge {
		out = append(out, "judge")
	}
	if p.NeedsInquiry {
		out = append(out, "inquiry")
	}
	return out
}

var boolFields = []string{
	"needs_tutor_answer",
	"needs_judge",
	"needs_inquiry",
	"request_summary",
	"is_concluding",
}

var descriptions = map[string]string{
	"needs_tutor_answer": "The user asked a question or is confused and needs an explanation.",
	"needs_judge":        "The user stated an answer or claim that should be evaluated for correctness.",
	"needs_inquiry":      "A guiding follow-up question would deepen the user's understanding.",
	"request_summary":    "The user asked for a recap of what has been covered so far.",
	"is_concluding":      "The user wants to end the session; produce a closing note.",
	"thought_process":    "Brief reasoning behind the decision.",
}

// Schema returns the JSON Schema of Plan for structured decoding.
func Schema() map[string]any {
	props := make(map[string]any, len(boolFields)+1)
	for _, name := range boolFields {
		props[name] = map[string]any{"type": "boolean", "description": descriptions[name]}
	}
	props["thought_process"] = map[string]any{"type": "string", "description": descriptions["thought_process"]}

	required := append(append([]string(nil), boolFields...), "thought_process")
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Decode parses a structured reply into a Plan. Every field is required and
// must have its schema type. A surrounding markdown code fence is tolerated.
func Decode(raw string) (*Plan, error) {
	text := stripFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	flags := make(map[string]bool, len(boolFields))
	for _, name := range boolFields {
		v, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing field %s", ErrDecode, name)
		}
		var b bool
		if isNull(v) || json.Unmarshal(v, &b) != nil {
			return nil, fmt.Errorf("%w: field %s is not a boolean", ErrDecode, name)
		}
		flags[name] = b
	}

	v, ok := fields["thought_process"]
	if !ok {
		return nil, fmt.Errorf("%w: missing field thought_process", ErrDecode)
	}
	var thought string
	if isNull(v) || json.Unmarshal(v, &thought) != nil {
		return nil, fmt.Errorf("%w: field thought_process is not a string", ErrDecode)
	}

	return &Plan{
		NeedsTutorAnswer: flags["needs_tutor_answer"],
		NeedsJudge:       flags["needs_judge"],
		NeedsInquiry:     flags["needs_inquiry"],
		RequestSummary:   flags["request_summary"],
		IsConcluding:     flags["is_concluding"],
		ThoughtProcess:   thought,
	}, nil
}

// isNull reports a JSON null, which Unmarshal accepts as a no-op for
// scalar targets.
func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
