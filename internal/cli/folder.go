package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var folderCmd = &cobra.Command{
	Use:   "folder [name]",
	Short: "Show or set the selected knowledge-base folder",
	Long: `Show the folder questions are scoped to, or select a new one.

The selection is kept for the current shell session.

Examples:
  kbchat folder
  kbchat folder engineering`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("folder name must not be empty")
			}
			a.Conversation.SetSelectedFolder(cmd.Context(), name)
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.Conversation.SelectedFolder())
		return nil
	},
}
