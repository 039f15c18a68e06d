package compare

import (
	"runtime"
	"time"

	"github.com/sdejongh/dirdiff/pkg/logging"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/sdejongh/dirdiff/pkg/progress"
)

// TreeSink receives live tree events while a comparison runs.
// *tree.Adapter implements it.
type TreeSink interface {
	Discovered(relativePath, name string, nodeType models.NodeType)
	Completed(node *models.ComparisonNode)
}

// Options configures an Engine
type Options struct {
	Mode       models.CompareMode
	Algorithms []string
	Ignore     []string

	CaseSensitive bool
	// ModifiedTolerance is nil when modification times are not compared
	ModifiedTolerance *time.Duration

	// Threads caps concurrent hashing tasks (default: number of CPUs)
	Threads int
	// BufferSize is the hashing chunk size (default 8 KiB)
	BufferSize int
	// ReadLimit caps hashing reads in bytes per second, shared by all tasks
	ReadLimit int64

	Logger   logging.Logger
	Progress progress.Sink
	Tree     TreeSink
}

// OptionsFromSettings maps resolved settings onto engine options
func OptionsFromSettings(s *models.ResolvedCompareSettings) Options {
	return Options{
		Mode:              s.Mode,
		Algorithms:        append([]string(nil), s.Algorithms...),
		Ignore:            append([]string(nil), s.Ignore...),
		CaseSensitive:     s.CaseSensitive,
		ModifiedTolerance: s.ModifiedTolerance,
		Threads:           s.Threads,
		ReadLimit:         s.ReadLimit,
	}
}

func (o *Options) applyDefaults() {
	if o.Mode == "" {
		o.Mode = models.ModeQuick
	}
	if o.Threads < 1 {
		o.Threads = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = logging.NewNullLogger()
	}
	if o.Progress == nil {
		o.Progress = progress.NullSink{}
	}
}
