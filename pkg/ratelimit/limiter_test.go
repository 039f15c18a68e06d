package ratelimit

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter(t *testing.T) {
	t.Run("Unlimited", func(t *testing.T) {
		assert.Nil(t, NewLimiter(0))
		assert.Nil(t, NewLimiter(-100))
		assert.Equal(t, int64(0), NewLimiter(0).Rate())
	})

	t.Run("SmallRateUsesMinimumBucket", func(t *testing.T) {
		l := NewLimiter(1000)
		require.NotNil(t, l)
		assert.Equal(t, int64(minBucket), l.bucketSize)
		assert.Equal(t, int64(1000), l.Rate())
	})

	t.Run("LargeRateHoldsOneSecond", func(t *testing.T) {
		l := NewLimiter(100 << 20)
		assert.Equal(t, int64(100<<20), l.bucketSize)
	})
}

type closeCounter struct {
	io.Reader
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestWrapNilLimiter(t *testing.T) {
	rc := &closeCounter{Reader: bytes.NewReader([]byte("abc"))}
	var l *Limiter

	wrapped := l.Wrap(context.Background(), rc)
	assert.Same(t, rc, wrapped.(*closeCounter))
}

func TestWrapClosesUnderlying(t *testing.T) {
	rc := &closeCounter{Reader: bytes.NewReader([]byte("abc"))}
	wrapped := NewLimiter(1 << 20).Wrap(context.Background(), rc)

	require.NoError(t, wrapped.Close())
	assert.Equal(t, 1, rc.closed)
}

func TestReadPassesDataThrough(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10000)
	l := NewLimiter(10 << 20)
	rc := l.Wrap(context.Background(), io.NopCloser(bytes.NewReader(data)))

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.NoError(t, rc.Close())
}

func TestReadThrottles(t *testing.T) {
	// the full bucket covers the first minBucket bytes; the rest waits
	l := NewLimiter(minBucket)
	data := bytes.Repeat([]byte("x"), minBucket+minBucket/4)
	rc := l.Wrap(context.Background(), io.NopCloser(bytes.NewReader(data)))

	start := time.Now()
	_, err := io.Copy(io.Discard, rc)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestWaitHonorsCancellation(t *testing.T) {
	l := NewLimiter(1)
	l.consume(l.bucketSize)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, 1024)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"2048", 2048, false},
		{"512K", 512000, false},
		{"10MB", 10000000, false},
		{"1GiB", 1 << 30, false},
		{"5MiB/s", 5 << 20, false},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
