// Package router maps a Plan onto the ordered sequence of worker stages for
// one turn. Transitions are ordered edges with predicates; the first edge
// whose predicate holds wins.
package router

import "github.com/tailored-agentic-units/chattutor/plan"

// Stage is a step of the turn pipeline.
type Stage string

const (
	Planning    Stage = "planning"
	Tutoring    Stage = "tutoring"
	Judging     Stage = "judging"
	Inquiring   Stage = "inquiring"
	Summarizing Stage = "summarizing"
	Aggregating Stage = "aggregating"
)

// Stages lists every stage in pipeline order.
func Stages() []Stage {
	return []Stage{Planning, Summarizing, Tutoring, Judging, Inquiring, Aggregating}
}

// Predicate decides whether an edge is taken. It is never called with a nil plan.
type Predicate func(p *plan.Plan) bool

// Edge is one candidate transition. A nil Predicate always holds.
type Edge struct {
	From      Stage
	To        Stage
	Name      string
	Predicate Predicate
}

func summaryRequested(p *plan.Plan) bool { return p.RequestSummary || p.IsConcluding }
func needsTutor(p *plan.Plan) bool       { return p.NeedsTutorAnswer }
func needsJudge(p *plan.Plan) bool       { return p.NeedsJudge }
func needsInquiry(p *plan.Plan) bool     { return p.NeedsInquiry }

// edges is listed in precedence order per source stage.
var edges = []Edge{
	{Planning, Summarizing, "summaryRequested", summaryRequested},
	{Planning, Tutoring, "needsTutor", needsTutor},
	{Planning, Judging, "needsJudge", needsJudge},
	{Planning, Inquiring, "needsInquiry", needsInquiry},
	{Planning, Aggregating, "otherwise", nil},

	{Tutoring, Judging, "needsJudge", needsJudge},
	{Tutoring, Inquiring, "needsInquiry", needsInquiry},
	{Tutoring, Aggregating, "otherwise", nil},

	{Judging, Inquiring, "needsInquiry", needsInquiry},
	{Judging, Aggregating, "otherwise", nil},

	{Inquiring, Aggregating, "always", nil},
	{Summarizing, Aggregating, "always", nil},
}

// Edges returns a copy of the transition table in precedence order.
func Edges() []Edge {
	return append([]Edge(nil), edges...)
}

// Next returns the stage that follows from under p. A nil plan, and any
// stage without outgoing edges, lead to Aggregating.
func Next(from Stage, p *plan.Plan) Stage {
	next, _ := NextEdge(from, p)
	return next
}

// NextEdge is Next that also reports the name of the edge taken, or "" when
// the nil-plan rule applied.
func NextEdge(from Stage, p *plan.Plan) (Stage, string) {
	if p == nil {
		return Aggregating, ""
	}
	for _, e := range edges {
		if e.From != from {
			continue
		}
		if e.Predicate == nil || e.Predicate(p) {
			return e.To, e.Name
		}
	}
	return Aggregating, ""
}

// Route returns the full stage path for p, from Planning through Aggregating.
func Route(p *plan.Plan) []Stage {
	path := []Stage{Planning}
	for stage := Planning; stage != Aggregating; {
		stage = Next(stage, p)
		path = append(path, stage)
	}
	return path
}

// Strings converts a path to plain names.
func Strings(path []Stage) []string {
	out := make([]string, len(path))
	for i, s := range path {
		out[i] = string(s)
	}
	return out
}
