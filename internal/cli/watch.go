package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sdejongh/dirdiff/pkg/compare"
	"github.com/sdejongh/dirdiff/pkg/logging"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/sdejongh/dirdiff/pkg/watch"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command
func NewWatchCommand(global *GlobalFlags) *cobra.Command {
	var flags compareFlags

	cmd := &cobra.Command{
		Use:   "watch [LEFT] [RIGHT]",
		Short: "Re-run the comparison whenever either tree changes",
		Long: `Compare once, then watch both local trees and compare again after changes
have been quiet for the debounce period. Stops on interrupt.`,
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

			roots := []string{sess.settings.LeftPath}
			if !sess.settings.UsesBaseline() {
				roots = append(roots, sess.settings.RightPath)
			}
			for _, root := range roots {
				if strings.Contains(root, "://") {
					return fmt.Errorf("watch needs local directories, got %s", root)
				}
			}

			matcher := compare.NewMatcher(sess.settings.Ignore, sess.settings.CaseSensitive)
			w, err := watch.New(watch.Config{
				Roots:    roots,
				Debounce: sess.settings.WatchDebounce,
				Ignore:   matcher.Match,
				Logger:   sess.logger,
			})
			if err != nil {
				return err
			}
			defer w.Close()

			runOnce := func(ctx context.Context) error {
				_, err := sess.run(ctx)
				if errors.Is(err, models.ErrCanceled) && ctx.Err() == nil {
					// a per-run timeout; keep watching
					sess.logger.Warn(ctx, "Comparison timed out", logging.Fields{"timeout": sess.settings.Timeout.String()})
					return nil
				}
				return err
			}

			if err := runOnce(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			sess.logger.Info(ctx, "Watching for changes", logging.Fields{
				"roots":    roots,
				"debounce": sess.settings.WatchDebounce.String(),
			})
			return w.Run(ctx, runOnce)
		},
	}

	addCompareFlags(cmd, &flags)
	return cmd
}
