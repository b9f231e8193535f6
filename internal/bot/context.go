package bot

import (
	"strings"

	"chat-companion/backend/internal/models"
)

// BuildContext renders a bounded conversational transcript: the given
// history (newest first, as the store returns it) reversed to chronological
// order, one "<Bot|User>: <content>" line per turn, followed by the new
// message. The window is bounded by message count, not tokens.
func BuildContext(history []models.Message, newText string) string {
	var b strings.Builder
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IsFromBot {
			b.WriteString("Bot: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(history[i].Content)
		b.WriteByte('\n')
	}
	b.WriteString("User: ")
	b.WriteString(newText)
	b.WriteByte('\n')
	return b.String()
}
