package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	askFolder   string
	askStats    bool
	askNoStream bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Long: `Sign in, send one question to the knowledge-base assistant and print the
reply. The answer is streamed when the completion mode supports it.

Examples:
  kbchat ask "Who owns the billing service?"
  kbchat ask "What changed in the onboarding guide?" --folder hr
  kbchat ask "Summarise the incident runbook" --stats`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askFolder, "folder", "f", "", "folder to ask (also becomes the selected folder)")
	askCmd.Flags().BoolVar(&askStats, "stats", false, "print call statistics after the answer")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "print the answer only once it is complete")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	if err := signIn(ctx, a); err != nil {
		return err
	}
	if askFolder != "" {
		a.Conversation.SetSelectedFolder(ctx, askFolder)
	}

	out := cmd.OutOrStdout()
	var onToken func(string) error
	streamed := false
	if !askNoStream {
		onToken = func(tok string) error {
			streamed = true
			_, err := io.WriteString(out, tok)
			return err
		}
	}

	reply, err := a.Chat.SubmitStream(ctx, args[0], onToken)
	if err != nil {
		if streamed {
			fmt.Fprintln(out)
		}
		return err
	}
	if reply == nil {
		return fmt.Errorf("question must not be empty")
	}
	if !streamed {
		fmt.Fprint(out, reply.Content)
	}
	fmt.Fprintln(out)

	if askStats {
		fmt.Fprintln(out)
		printStats(out, a.Metrics.Snapshot())
	}
	return nil
}
