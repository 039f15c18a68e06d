package progress

import "github.com/sdejongh/dirdiff/pkg/models"

// Side identifies which tree bytes were read from
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Sink receives progress notifications from the comparison engine.
// Methods are called concurrently from hashing workers.
type Sink interface {
	// FileDiscovered is called once per file entry; a nil size means the side is missing
	FileDiscovered(relativePath string, leftSize, rightSize *int64)

	// FileCompleted is called once the file's status is known
	FileCompleted(relativePath string, status models.Status)

	// BytesRead reports content read while hashing
	BytesRead(side Side, n int64)
}

// NullSink discards all progress
type NullSink struct{}

func (NullSink) FileDiscovered(string, *int64, *int64) {}
func (NullSink) FileCompleted(string, models.Status)   {}
func (NullSink) BytesRead(Side, int64)                 {}

// Multi fans notifications out to several sinks
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) FileDiscovered(rel string, leftSize, rightSize *int64) {
	for _, s := range m {
		s.FileDiscovered(rel, leftSize, rightSize)
	}
}

func (m multi) FileCompleted(rel string, status models.Status) {
	for _, s := range m {
		s.FileCompleted(rel, status)
	}
}

func (m multi) BytesRead(side Side, n int64) {
	for _, s := range m {
		s.BytesRead(side, n)
	}
}
