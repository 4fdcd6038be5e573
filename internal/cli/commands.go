package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/kbchat/internal/app"
)

// slashResult is the outcome of an in-chat command.
type slashResult struct {
	output string
	quit   bool
}

const chatHelp = `Commands:
  /folder [name]  show or switch the knowledge-base folder
  /stats          show call statistics for this session
  /logout         sign out and leave the chat
  /quit           leave the chat`

// runSlash executes line if it is an in-chat command.
// ok is false for ordinary messages.
func runSlash(ctx context.Context, a *app.App, line string) (res slashResult, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return slashResult{}, false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return slashResult{quit: true}, true

	case "/logout":
		a.Auth.Logout()
		return slashResult{output: "Signed out.", quit: true}, true

	case "/folder":
		if len(fields) == 1 {
			return slashResult{output: fmt.Sprintf("Folder: %s", a.Conversation.SelectedFolder())}, true
		}
		name := strings.Join(fields[1:], " ")
		a.Conversation.SetSelectedFolder(ctx, name)
		return slashResult{output: fmt.Sprintf("Switched to folder %q.", a.Conversation.SelectedFolder())}, true

	case "/stats":
		var buf bytes.Buffer
		printStats(&buf, a.Metrics.Snapshot())
		return slashResult{output: strings.TrimRight(buf.String(), "\n")}, true

	case "/help":
		return slashResult{output: chatHelp}, true

	default:
		return slashResult{output: fmt.Sprintf("Unknown command %s. Type /help for a list.", fields[0])}, true
	}
}
