package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sdejongh/dirdiff/pkg/compare"
	"github.com/sdejongh/dirdiff/pkg/config"
	"github.com/sdejongh/dirdiff/pkg/logging"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/sdejongh/dirdiff/pkg/output"
	"github.com/sdejongh/dirdiff/pkg/progress"
	"github.com/sdejongh/dirdiff/pkg/storage"
	"github.com/sdejongh/dirdiff/pkg/tree"
	"github.com/spf13/cobra"
)

// NewCompareCommand creates the compare command
func NewCompareCommand(global *GlobalFlags) *cobra.Command {
	var flags compareFlags

	cmd := &cobra.Command{
		Use:   "compare [LEFT] [RIGHT]",
		Short: "Compare two directory trees",
		Long: `Compare LEFT against RIGHT, or against a baseline manifest given with
--baseline, and report the differences. Paths missing from the command line
are taken from the selected profile or the config defaults.

Exit codes: 0 no failure under --fail-on, 1 differences, 2 errors,
3 canceled or timed out, 4 the comparison could not run.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			sess, err := newSession(cmd, global, &flags, args)
			if err != nil {
				return err
			}
			defer sess.close()

			res, err := sess.run(ctx)
			if err != nil {
				return err
			}
			if code := res.ExitCode(sess.settings.FailOn); code != models.ExitOK {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	addCompareFlags(cmd, &flags)
	return cmd
}

// session holds what one compare or watch invocation needs across runs
type session struct {
	settings *models.ResolvedCompareSettings
	logger   logging.Logger
	resolver *storage.Resolver
	stdout   io.Writer
	stderr   io.Writer
}

func newSession(cmd *cobra.Command, global *GlobalFlags, flags *compareFlags, args []string) (*session, error) {
	cfg, err := loadConfig(global)
	if err != nil {
		return nil, err
	}

	settings, err := config.Resolve(flags.input(cmd, global, args), cfg)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Logging, settings.Verbosity, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	sess := &session{
		settings: settings,
		logger:   logger,
		resolver: storage.NewResolver(),
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
	}
	validateSources(cmd.Context(), settings, logger)
	return sess, nil
}

func (s *session) close() {
	s.logger.Close()
}

// run executes one comparison, writes the configured reports and prints
// the console summary
func (s *session) run(ctx context.Context) (*models.ComparisonResult, error) {
	settings := s.settings
	tracker := progress.NewTracker()
	sinks := []progress.Sink{tracker}

	var bar *progress.Bar
	if settings.Verbosity != models.VerbosityQuiet && progress.IsTerminal(s.stderr) {
		bar = progress.NewBar(s.stderr)
		sinks = append(sinks, bar)
	}

	deps := compare.Deps{
		Resolver: s.resolver,
		Logger:   s.logger,
		Progress: progress.Multi(sinks...),
	}
	if settings.Verbosity == models.VerbosityVerbose || settings.Verbosity == models.VerbosityDebug {
		adapter := tree.New(settings.CaseSensitive)
		adapter.Subscribe(tree.ListenerFuncs{Node: func(n *models.ComparisonNode) {
			if n.Status == models.StatusPending {
				return
			}
			s.logger.Info(ctx, "Node updated", logging.Fields{
				"path":   n.RelativePath,
				"type":   n.NodeType,
				"status": n.Status,
			})
		}})
		deps.Tree = adapter
	}

	res, err := compare.Run(ctx, settings, deps)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if errors.Is(err, models.ErrCanceled) {
			return nil, &ExitError{Code: models.ExitCanceled, Err: err}
		}
		return nil, &ExitError{Code: models.ExitFailure, Err: err}
	}

	stats := tracker.Stats()
	s.logger.Info(ctx, "Bytes hashed", logging.Fields{
		"left":  stats.BytesLeft,
		"right": stats.BytesRight,
	})

	if err := s.writeReports(res); err != nil {
		return nil, &ExitError{Code: models.ExitFailure, Err: err}
	}

	if settings.Verbosity != models.VerbosityQuiet {
		if err := output.NewHumanFormatter().Format(s.stdout, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *session) writeReports(res *models.ComparisonResult) error {
	if path := s.settings.JSONReport; path != "" {
		if err := output.WriteReport(path, output.NewJSONFormatter(), res); err != nil {
			return err
		}
	}
	if path := s.settings.TextReport; path != "" {
		f := output.NewDifferencesFormatter(output.Options{DiffTool: s.settings.DiffTool})
		if err := output.WriteReport(path, f, res); err != nil {
			return err
		}
	}
	return nil
}
