package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raphaelgruber/kbchat/internal/app"
	"github.com/raphaelgruber/kbchat/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	flagEmail    string
	flagPassword string
	flagRemember bool
)

func addCredentialFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&flagEmail, "email", "", "account email (default $KBCHAT_EMAIL)")
	cmd.PersistentFlags().StringVar(&flagPassword, "password", "", "account password (default $KBCHAT_PASSWORD, else prompt)")
	cmd.PersistentFlags().BoolVar(&flagRemember, "remember", false, "accepted for compatibility; sessions are never saved")
}

// credentials resolves email and password from flags, then config, then an
// interactive prompt when stdin is a terminal.
func credentials(in io.Reader, out io.Writer, interactive bool) (string, string, error) {
	email := firstNonEmpty(flagEmail, cfg.Email)
	password := firstNonEmpty(flagPassword, cfg.Password)

	if email != "" && password != "" {
		return email, password, nil
	}
	if !interactive {
		return "", "", errors.New("email and password required: use --email/--password or KBCHAT_EMAIL/KBCHAT_PASSWORD")
	}

	if email == "" {
		fmt.Fprint(out, "Email: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Fprint(out, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}
	return email, password, nil
}

// signIn resolves credentials and runs the login flow.
// The returned error carries the same message a user would see on the form.
func signIn(ctx context.Context, a *app.App) error {
	email, password, err := credentials(os.Stdin, os.Stderr, isTerminal(os.Stdin))
	if err != nil {
		return err
	}
	if err := a.Auth.Submit(ctx, auth.LoginInput{Email: email, Password: password, Remember: flagRemember}); err != nil {
		return fmt.Errorf("sign in: %s", a.Auth.LastError())
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
