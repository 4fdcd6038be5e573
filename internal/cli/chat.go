package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/raphaelgruber/kbchat/internal/app"
	"github.com/raphaelgruber/kbchat/internal/chat"
	"github.com/spf13/cobra"
)

var (
	chatFolder string
	chatPlain  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Sign in and chat with the knowledge-base assistant.

On a terminal an interactive UI is shown. When stdin or stdout is not a
terminal (or with --plain) each input line is sent as one message and the
reply is printed as it arrives.

In-chat commands: /folder [name], /stats, /logout, /quit, /help.

Examples:
  kbchat chat
  kbchat chat --folder engineering
  echo "What is our VPN policy?" | kbchat chat --plain`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatFolder, "folder", "f", "", "switch to this folder before chatting")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "line-oriented mode without the interactive UI")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	if err := signIn(ctx, a); err != nil {
		return err
	}
	if chatFolder != "" {
		a.Conversation.SetSelectedFolder(ctx, chatFolder)
	}

	if !chatPlain && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		return runChatUI(ctx, a)
	}
	return runLineChat(ctx, a, os.Stdin, cmd.OutOrStdout())
}

// runLineChat reads one message per line until EOF or /quit.
func runLineChat(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	theme := defaultTheme
	ident := a.Session.Identity()
	fmt.Fprintln(out, theme.statusStyle().Render(
		fmt.Sprintf("Signed in as %s · folder %s", ident.DisplayName, a.Conversation.SelectedFolder())))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()

		if res, ok := runSlash(ctx, a, line); ok {
			if res.output != "" {
				fmt.Fprintln(out, res.output)
			}
			if res.quit {
				return nil
			}
			continue
		}

		streamed := false
		reply, err := a.Chat.SubmitStream(ctx, line, func(tok string) error {
			streamed = true
			_, err := io.WriteString(out, tok)
			return err
		})
		switch {
		case err == nil && reply == nil:
			// blank line
		case err == nil:
			if !streamed {
				fmt.Fprint(out, reply.Content)
			}
			fmt.Fprintln(out)
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, chat.ErrNotAuthenticated):
			return err
		default:
			if streamed {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, theme.errorStyle().Render("Error: "+a.Chat.LastError()))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
