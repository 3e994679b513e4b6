package memory

import (
	"fmt"
	"strings"
)

// FormatHistory renders turns as a prompt block the pipelines prepend to
// their instructions. Empty history renders as an empty string so prompts
// stay clean for fresh sessions.
func FormatHistory(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== PREVIOUS CONVERSATION CONTEXT ===\n")
	for i, t := range turns {
		fmt.Fprintf(&b, "Exchange %d:\n", i+1)
		fmt.Fprintf(&b, "User: %s\n", t.Question)
		fmt.Fprintf(&b, "Assistant: %s\n", t.Answer)
	}
	b.WriteString("=== END CONTEXT ===\n")
	b.WriteString("Use the context above to resolve follow-up references in the current question, ")
	b.WriteString("such as pronouns, \"that model\", or \"the same period\". ")
	b.WriteString("If the current question is self-contained, ignore the context.")
	return b.String()
}
