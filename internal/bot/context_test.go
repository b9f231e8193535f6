package bot

import (
	"strings"
	"testing"
	"time"

	"chat-companion/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextRendersChronologicalWindow(t *testing.T) {
	base := time.Now().UTC()
	// Newest first, as the store returns history: 3 user turns and 2 bot
	// turns interleaved.
	history := []models.Message{
		{Content: "any plans today?", IsFromBot: false, Timestamp: base.Add(4 * time.Minute)},
		{Content: "Doing well, thanks for asking!", IsFromBot: true, Timestamp: base.Add(3 * time.Minute)},
		{Content: "how are you?", IsFromBot: false, Timestamp: base.Add(2 * time.Minute)},
		{Content: "Hello! Nice to meet you.", IsFromBot: true, Timestamp: base.Add(time.Minute)},
		{Content: "hi", IsFromBot: false, Timestamp: base},
	}

	prompt := BuildContext(history, "tell me a story")

	lines := strings.Split(strings.TrimRight(prompt, "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "User: hi", lines[0])
	assert.Equal(t, "Bot: Hello! Nice to meet you.", lines[1])
	assert.Equal(t, "User: how are you?", lines[2])
	assert.Equal(t, "Bot: Doing well, thanks for asking!", lines[3])
	assert.Equal(t, "User: any plans today?", lines[4])
	assert.Equal(t, "User: tell me a story", lines[5])
}

func TestBuildContextWithEmptyHistory(t *testing.T) {
	prompt := BuildContext(nil, "hello")
	assert.Equal(t, "User: hello\n", prompt)
}
