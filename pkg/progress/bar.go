package progress

import (
	"io"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/sdejongh/dirdiff/pkg/models"
	"golang.org/x/term"
)

const barTemplate = `{{string . "label"}} {{counters . }} {{bar . }} {{percent . }} {{etime . }}`

// Bar renders file progress as a terminal progress bar.
// The total grows as files are discovered.
type Bar struct {
	mu      sync.Mutex
	bar     *pb.ProgressBar
	total   int64
	started bool
}

// NewBar creates a bar writing to w
func NewBar(w io.Writer) *Bar {
	bar := pb.New64(0)
	bar.SetTemplateString(barTemplate)
	bar.SetWriter(w)
	bar.Set("label", "comparing")
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			bar.SetWidth(width)
		}
	}
	return &Bar{bar: bar}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// FileDiscovered extends the bar total
func (b *Bar) FileDiscovered(string, *int64, *int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		b.bar.Start()
		b.started = true
	}
	b.total++
	b.bar.SetTotal(b.total)
}

// FileCompleted advances the bar
func (b *Bar) FileCompleted(_ string, status models.Status) {
	b.bar.Increment()
}

// BytesRead is not rendered
func (b *Bar) BytesRead(Side, int64) {}

// Finish stops rendering
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		b.bar.Finish()
	}
}

// Current returns the number of completed files
func (b *Bar) Current() int64 {
	return b.bar.Current()
}
