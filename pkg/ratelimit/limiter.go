package ratelimit

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// minBucket keeps small limits from degrading into byte-sized reads
const minBucket = 64 * 1024

// Limiter is a token bucket shared by every reader it wraps, so the
// limit applies to the sum of their throughput
type Limiter struct {
	bytesPerSecond int64
	bucketSize     int64

	mu         sync.Mutex
	tokens     int64
	lastUpdate time.Time
}

// NewLimiter returns nil when bytesPerSecond is not positive; a nil
// Limiter does not limit
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	bucketSize := bytesPerSecond
	if bucketSize < minBucket {
		bucketSize = minBucket
	}
	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		bucketSize:     bucketSize,
		tokens:         bucketSize,
		lastUpdate:     time.Now(),
	}
}

// Rate returns the configured bytes per second
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return l.bytesPerSecond
}

// Wait blocks until n bytes may be read or ctx is done
func (l *Limiter) Wait(ctx context.Context, n int64) error {
	if n > l.bucketSize {
		n = l.bucketSize
	}
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= n {
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration(float64(n-l.tokens) / float64(l.bytesPerSecond) * float64(time.Second))
		l.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill must be called with mu held
func (l *Limiter) refill() {
	now := time.Now()
	add := int64(now.Sub(l.lastUpdate).Seconds() * float64(l.bytesPerSecond))
	if add > 0 {
		l.tokens += add
		if l.tokens > l.bucketSize {
			l.tokens = l.bucketSize
		}
		l.lastUpdate = now
	}
}

func (l *Limiter) consume(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens -= n
	if l.tokens < 0 {
		l.tokens = 0
	}
}

// Wrap returns rc throttled by l. With a nil Limiter rc is returned as is.
func (l *Limiter) Wrap(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	if l == nil {
		return rc
	}
	return &readCloser{rc: rc, limiter: l, ctx: ctx}
}

type readCloser struct {
	rc      io.ReadCloser
	limiter *Limiter
	ctx     context.Context
}

func (r *readCloser) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > r.limiter.bucketSize {
		p = p[:r.limiter.bucketSize]
	}
	if err := r.limiter.Wait(r.ctx, int64(len(p))); err != nil {
		return 0, err
	}

	n, err := r.rc.Read(p)
	if n > 0 {
		r.limiter.consume(int64(n))
	}
	return n, err
}

func (r *readCloser) Close() error {
	return r.rc.Close()
}

// ParseRate parses a byte rate such as "512K", "10MB" or "1GiB" per second.
// An empty string or "0" means unlimited.
func ParseRate(s string) (int64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/s")
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("rate %q is too large", s)
	}
	return int64(n), nil
}
