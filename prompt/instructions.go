package prompt

import (
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/chattutor/session"
)

// NoFeedback stands in for an absent judge output.
const NoFeedback = "none"

// Tutor is the instruction for the explaining worker.
func Tutor(topic string) string {
	return fmt.Sprintf(`You are a patient tutor for the topic "%s".
Answer the user's latest question clearly and accurately. Build on what they already understand, use a short example when it helps, and keep the explanation focused.
If you need current facts or a definition you are unsure of, call the web_search tool.`, topic)
}

// Judge is the instruction for the evaluating worker.
func Judge(topic string) string {
	return fmt.Sprintf(`You are a rigorous reviewer for the topic "%s".
The user has stated an answer or a claim. Decide whether it is correct, partially correct, or wrong, and say exactly why. Point out the specific misconception if there is one. Do not give a full lecture.
Call the web_search tool if a fact must be checked.`, topic)
}

// Inquiry is the instruction for the questioning worker. An empty
// judgeFeedback is rendered as NoFeedback.
func Inquiry(topic, judgeFeedback string) string {
	if judgeFeedback == "" {
		judgeFeedback = NoFeedback
	}
	return fmt.Sprintf(`You are a Socratic guide for the topic "%s".
Ask exactly one thought-provoking follow-up question that moves the user one step deeper. Do not answer it yourself.

Reviewer feedback on the user's last answer: %s`, topic, judgeFeedback)
}

// SummaryNote is the closing-note instruction used on a concluding turn.
const SummaryNote = `The session is ending. Write a structured study note in Markdown for the user covering:
1. Key concepts discussed, each with a one-line explanation.
2. Misconceptions that were corrected.
3. Open questions worth exploring next.
Keep it concise and faithful to the conversation.`

// SummaryReview is the recap instruction used mid-session.
const SummaryReview = `Give the user a short recap of what has been covered so far: the main ideas, how their understanding developed, and where the discussion currently stands. Use a few bullet points.`

// Aggregate is the synthesis instruction embedding the non-empty outputs.
func Aggregate(out session.Outputs) string {
	var b strings.Builder
	b.WriteString(`You are the voice of a tutoring assistant. Several internal modules prepared material for the reply below. Merge it into one natural, coherent answer to the user's latest message. Do not mention the modules. Keep any question from the inquiry material at the end.`)
	section := func(name, text string) {
		if text != "" {
			fmt.Fprintf(&b, "\n\n[%s]\n%s", name, text)
		}
	}
	section("Explanation", out.Tutor)
	section("Evaluation", out.Judge)
	section("Follow-up question", out.Inquiry)
	section("Recap", out.Summary)
	return b.String()
}
