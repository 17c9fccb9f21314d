package dialogue

import "strings"

// Wire prefixes for the flat transcript format. The HTTP variant carries
// history as this text between requests, so both directions must agree.
const (
	userPrefix      = "User: "
	assistantPrefix = "AI: "
)

// FormatHistory renders turns as "User: ..." / "AI: ..." lines.
func FormatHistory(history History) string {
	var b strings.Builder
	for i, t := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Role == RoleUser {
			b.WriteString(userPrefix)
		} else {
			b.WriteString(assistantPrefix)
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// ParseHistory reads the flat transcript format back into turns. The
// grammar is strict: a line starting with a known prefix opens a new turn,
// any other non-blank line continues the previous turn, and blank lines
// or leading junk before the first prefix are skipped.
func ParseHistory(s string) History {
	var history History
	for _, line := range strings.Split(s, "\n") {
		switch {
		case strings.HasPrefix(line, userPrefix):
			history = append(history, Turn{Role: RoleUser, Text: line[len(userPrefix):]})
		case strings.HasPrefix(line, assistantPrefix):
			history = append(history, Turn{Role: RoleAssistant, Text: line[len(assistantPrefix):]})
		case strings.TrimSpace(line) == "":
			// skip
		case len(history) > 0:
			last := &history[len(history)-1]
			last.Text += "\n" + line
		}
	}
	return history
}
