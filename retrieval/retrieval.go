// Package retrieval recalls earlier question/answer pairs that resemble the
// current query, from the part of the transcript outside the display window.
//
// Similarity is the Jaccard index over lower-cased rune sets, which behaves
// the same for any script and needs no tokenizer.
package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tailored-agentic-units/chattutor/core/protocol"
)

const (
	// DefaultExclude matches the display window: messages already shown raw
	// are never recalled.
	DefaultExclude = 12
	DefaultTopK    = 2

	// MinScore is the exclusive lower bound a candidate must beat.
	MinScore = 0.05
)

// Match is one recalled pair. Position is the transcript index of the user
// message anchoring it.
type Match struct {
	Position int
	Score    float64
	Text     string
}

// Search scores user messages in transcript[:len-exclude] against query and
// returns at most topK matches, best first. Equal scores keep transcript order.
func Search(transcript []protocol.Message, query string, exclude, topK int) []Match {
	if query == "" || len(transcript) <= exclude || topK <= 0 {
		return nil
	}

	queryRunes := runeSet(query)
	if len(queryRunes) == 0 {
		return nil
	}

	searchable := transcript[:len(transcript)-exclude]

	var matches []Match
	for i, msg := range searchable {
		if msg.Role != protocol.RoleUser {
			continue
		}

		score := Jaccard(queryRunes, runeSet(msg.Content))
		if score <= MinScore {
			continue
		}

		text := "User: " + msg.Content
		if i+1 < len(searchable) && searchable[i+1].Role == protocol.RoleAssistant {
			text += "\nAI: " + searchable[i+1].Content
		}
		matches = append(matches, Match{Position: i, Score: score, Text: text})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// Retrieve runs Search and renders the matches as numbered excerpts. It
// returns "" when nothing qualifies.
func Retrieve(transcript []protocol.Message, query string, exclude, topK int) string {
	return Format(Search(transcript, query, exclude, topK))
}

// Format renders matches as numbered excerpts.
func Format(matches []Match) string {
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "--- Related excerpt %d (similarity: %.2f) ---\n%s\n", i+1, m.Score, m.Text)
	}
	return b.String()
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both sets are empty.
func Jaccard(a, b map[rune]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for r := range small {
		if _, ok := large[r]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range strings.ToLower(s) {
		set[r] = struct{}{}
	}
	return set
}
