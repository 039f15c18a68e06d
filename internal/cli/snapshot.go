package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/sdejongh/dirdiff/pkg/baseline"
	"github.com/sdejongh/dirdiff/pkg/compare"
	"github.com/sdejongh/dirdiff/pkg/logging"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/sdejongh/dirdiff/pkg/progress"
	"github.com/sdejongh/dirdiff/pkg/storage"
	"github.com/spf13/cobra"
)

// NewSnapshotCommand creates the snapshot command
func NewSnapshotCommand(global *GlobalFlags) *cobra.Command {
	var (
		outputPath     string
		algorithms     []string
		ignore         []string
		followSymlinks bool
		threads        int
	)

	cmd := &cobra.Command{
		Use:   "snapshot ROOT",
		Short: "Capture a baseline manifest of a directory tree",
		Long: `Record the sizes, modification times and digests of every file below
ROOT in a manifest that "compare --baseline" can use as the right side.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}

			verbosity := models.VerbosityNormal
			switch {
			case global.Quiet:
				verbosity = models.VerbosityQuiet
			case global.Verbose:
				verbosity = models.VerbosityVerbose
			}
			logger, err := newLogger(cfg.Logging, verbosity, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Close()

			src, err := storage.NewResolver().Open(args[0], storage.Options{FollowSymlinks: followSymlinks})
			if err != nil {
				return err
			}
			defer src.Close()

			var sink progress.Sink = progress.NullSink{}
			var bar *progress.Bar
			if verbosity != models.VerbosityQuiet && progress.IsTerminal(cmd.ErrOrStderr()) {
				bar = progress.NewBar(cmd.ErrOrStderr())
				sink = bar
			}

			engine, err := compare.NewEngine(compare.Options{
				Ignore:        append(append([]string(nil), cfg.Defaults.Ignore...), ignore...),
				CaseSensitive: true,
				Threads:       threads,
				Logger:        logger,
				Progress:      sink,
			})
			if err != nil {
				return err
			}

			m, err := engine.Capture(ctx, src, algorithms)
			if bar != nil {
				bar.Finish()
			}
			if err != nil {
				if errors.Is(err, models.ErrCanceled) {
					return &ExitError{Code: models.ExitCanceled, Err: err}
				}
				return err
			}

			if err := baseline.Save(m, outputPath); err != nil {
				return err
			}
			logger.Info(ctx, "Baseline written", logging.Fields{"path": outputPath})

			if verbosity != models.VerbosityQuiet {
				summary := models.Summarize(m.Root)
				fmt.Fprintf(cmd.OutOrStdout(), "Captured %d files from %s into %s\n", summary.Total, m.SourcePath, outputPath)
				if summary.Error > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%d entries could not be captured\n", summary.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "baseline.json", "manifest file to write")
	cmd.Flags().StringSliceVarP(&algorithms, "algorithm", "a", []string{"sha256"}, "digests to record")
	cmd.Flags().StringSliceVarP(&ignore, "ignore", "i", nil, "glob patterns to ignore (added to config patterns)")
	cmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", false, "follow symbolic links instead of skipping them")
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "maximum concurrent hashing tasks (default: CPU count)")

	return cmd
}
