package progress

import (
	"sync/atomic"

	"github.com/sdejongh/dirdiff/pkg/models"
)

// Stats is a point-in-time copy of the tracker counters
type Stats struct {
	Discovered int64
	Completed  int64
	Pending    int64
	BytesLeft  int64
	BytesRight int64
	Different  int64
	Errors     int64
}

// Tracker counts progress with atomic counters
type Tracker struct {
	discovered atomic.Int64
	completed  atomic.Int64
	bytesLeft  atomic.Int64
	bytesRight atomic.Int64
	different  atomic.Int64
	errors     atomic.Int64
}

// NewTracker creates a tracker with zeroed counters
func NewTracker() *Tracker {
	return &Tracker{}
}

// FileDiscovered counts a discovered file
func (t *Tracker) FileDiscovered(string, *int64, *int64) {
	t.discovered.Add(1)
}

// FileCompleted counts a completed file
func (t *Tracker) FileCompleted(_ string, status models.Status) {
	t.completed.Add(1)
	switch status {
	case models.StatusError:
		t.errors.Add(1)
	case models.StatusDifferent, models.StatusLeftOnly, models.StatusRightOnly:
		t.different.Add(1)
	}
}

// BytesRead adds to the per-side byte counter
func (t *Tracker) BytesRead(side Side, n int64) {
	if side == SideRight {
		t.bytesRight.Add(n)
		return
	}
	t.bytesLeft.Add(n)
}

// Stats returns the current counters
func (t *Tracker) Stats() Stats {
	discovered := t.discovered.Load()
	completed := t.completed.Load()
	return Stats{
		Discovered: discovered,
		Completed:  completed,
		Pending:    discovered - completed,
		BytesLeft:  t.bytesLeft.Load(),
		BytesRight: t.bytesRight.Load(),
		Different:  t.different.Load(),
		Errors:     t.errors.Load(),
	}
}
