package cli

import (
	"errors"
	"fmt"

	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/spf13/cobra"
)

// ExitError carries the process exit code of a finished command.
// Err is nil when the code only reflects the comparison outcome.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return models.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, models.ErrCanceled) {
		return models.ExitCanceled
	}
	return models.ExitFailure
}

// NewRootCommand assembles the dirdiff command tree
func NewRootCommand() *cobra.Command {
	var global GlobalFlags

	rootCmd := &cobra.Command{
		Use:   "dirdiff",
		Short: "Compare directory trees",
		Long: `dirdiff compares two directory trees, or a tree and a baseline manifest,
and reports which files are equal, different, or present on one side only.
Files are matched by relative path and compared by size and modification
time (quick mode) or by content digests (hash mode).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(rootCmd, &global)

	rootCmd.AddCommand(NewCompareCommand(&global))
	rootCmd.AddCommand(NewSnapshotCommand(&global))
	rootCmd.AddCommand(NewWatchCommand(&global))
	rootCmd.AddCommand(NewConfigCommand(&global))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
