// Package cli provides the command-line interface for kbchat.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/kbchat/internal/app"
	"github.com/raphaelgruber/kbchat/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and logger
	cfg         config.Config
	logger      *slog.Logger
	closeLogger func() error

	// Lazy-initialized application state
	application *app.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kbchat",
	Short: "Chat with the knowledge base from the terminal",
	Long: `kbchat signs in to the knowledge-base API and holds a conversation with its
assistant, scoped to a knowledge-base folder.

The session lives as long as the process. Only the selected folder is kept
between runs of the same shell.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level, stderrLevel := logLevels(cfg.LogLevel, verbose)
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level, stderrLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			if err := application.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close session storage: %v\n", err)
			}
			application = nil
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// logLevels returns the file and stderr levels. SetupLogger keeps stderr at or
// above the file level, so verbose lowers both.
func logLevels(configured slog.Level, verbose bool) (level, stderrLevel slog.Level) {
	if verbose {
		return slog.LevelDebug, slog.LevelDebug
	}
	return configured, slog.LevelWarn
}

// getApp builds the application on first use.
func getApp(ctx context.Context) (*app.App, error) {
	if application != nil {
		return application, nil
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	application = a
	return a, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	addCredentialFlags(rootCmd)

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(folderCmd)
	rootCmd.AddCommand(whoamiCmd)
}
