package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/keyscope/keyscope/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes returned by the keyscope binary.
const (
	ExitOK         = 0
	ExitViolations = 1
	ExitError      = 2
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyscope",
		Short: "Track Flutter automation keys",
		Long:  "keyscope finds the widget keys UI tests rely on, measures key coverage, and fails CI when keys are lost, renamed or collide.",

		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug details to stderr")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Only log errors")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newMCPCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the CLI until ctx is cancelled or the command finishes.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// ExitCode maps an Execute error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrViolations):
		return ExitViolations
	default:
		return ExitError
	}
}

// loggerFor builds the command's logger from the persistent verbosity flags.
func loggerFor(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	if q, _ := cmd.Flags().GetBool("quiet"); q {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
