package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Sign in and print the account identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := signIn(cmd.Context(), a); err != nil {
			return err
		}

		ident := a.Session.Identity()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:    %s\n", ident.ID)
		fmt.Fprintf(out, "Email: %s\n", ident.Email)
		fmt.Fprintf(out, "Name:  %s\n", ident.DisplayName)
		fmt.Fprintf(out, "Token: %s\n", a.Session.Credential())
		return nil
	},
}
