package compare

import (
	"context"
	"fmt"

	"github.com/sdejongh/dirdiff/pkg/baseline"
	"github.com/sdejongh/dirdiff/pkg/logging"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/sdejongh/dirdiff/pkg/progress"
	"github.com/sdejongh/dirdiff/pkg/storage"
)

// Deps carries the collaborators of a run that do not come from settings
type Deps struct {
	Resolver *storage.Resolver
	Logger   logging.Logger
	Progress progress.Sink
	Tree     TreeSink
}

// Run executes one comparison described by resolved settings. The right
// side is the baseline manifest when one is configured, otherwise the
// right tree.
func Run(ctx context.Context, s *models.ResolvedCompareSettings, deps Deps) (*models.ComparisonResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if deps.Resolver == nil {
		deps.Resolver = storage.NewResolver()
	}
	logger := logging.OrNull(deps.Logger)

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	opts := OptionsFromSettings(s)
	opts.Logger = logger
	opts.Progress = deps.Progress
	opts.Tree = deps.Tree

	engine, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}

	backendOpts := storage.Options{FollowSymlinks: s.FollowSymlinks}
	left, err := deps.Resolver.Open(s.LeftPath, backendOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open left side: %w", err)
	}
	defer left.Close()

	if s.UsesBaseline() {
		if s.RightPath != "" {
			logger.Warn(ctx, "Both a right tree and a baseline were given; using the baseline", logging.Fields{
				"right":    s.RightPath,
				"baseline": s.BaselinePath,
			})
		}
		m, err := baseline.Load(s.BaselinePath)
		if err != nil {
			return nil, err
		}
		return engine.CompareBaseline(ctx, left, m, s.BaselinePath)
	}

	right, err := deps.Resolver.Open(s.RightPath, backendOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open right side: %w", err)
	}
	defer right.Close()

	return engine.Compare(ctx, left, right)
}
