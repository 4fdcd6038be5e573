package llm

import (
	"strings"

	"github.com/raphaelgruber/kbchat/internal/models"
)

// turn is one side of the dialogue after merging.
type turn struct {
	role    models.Role
	content string
}

// mergeTurns prepares history for providers that require strictly alternating
// roles starting with the user: leading assistant messages are dropped and
// consecutive messages of the same role are joined.
func mergeTurns(history []models.Message) []turn {
	turns := make([]turn, 0, len(history))
	for _, m := range history {
		if len(turns) == 0 && m.Role != models.RoleUser {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == m.Role {
			turns[n-1].content = strings.Join([]string{turns[n-1].content, m.Content}, "\n\n")
			continue
		}
		turns = append(turns, turn{role: m.Role, content: m.Content})
	}
	return turns
}

// systemPrompt scopes the assistant to the selected knowledge-base folder.
func systemPrompt(folder string) string {
	if folder == "" {
		return `You are a helpful knowledge-base assistant. Answer concisely.`
	}
	return `You are a helpful knowledge-base assistant for the "` + folder + `" folder.
Answer concisely and say so when you do not know.`
}
