package hash

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// DefaultBufferSize is the chunk size used when streaming file content
const DefaultBufferSize = 8 * 1024

// Reader opens files for reading.
// storage.Backend satisfies it.
type Reader interface {
	Read(ctx context.Context, path string) (io.ReadCloser, error)
}

// Error is returned when a digest cannot be computed
type Error struct {
	Path      string
	Algorithm string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hash %s of %s: %v", e.Algorithm, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Calculator computes content digests by streaming files in fixed-size chunks
type Calculator struct {
	bufferSize int
	bufferPool *sync.Pool
}

// NewCalculator creates a calculator; sizes below 4096 use DefaultBufferSize
func NewCalculator(bufferSize int) *Calculator {
	if bufferSize < 4096 {
		bufferSize = DefaultBufferSize
	}
	return &Calculator{
		bufferSize: bufferSize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// Compute returns the lowercase hex digest of path for every algorithm.
// The file is read once per algorithm. onRead, when set, receives the
// number of bytes of every chunk read. On failure no digests are returned.
func (c *Calculator) Compute(ctx context.Context, src Reader, path string, algorithms []string, onRead func(n int64)) (map[string]string, error) {
	if len(algorithms) == 0 {
		return nil, &Error{Path: path, Algorithm: "", Err: fmt.Errorf("no algorithms requested")}
	}

	digests := make(map[string]string, len(algorithms))
	for _, alg := range algorithms {
		if _, done := digests[alg]; done {
			continue
		}
		digest, err := c.computeOne(ctx, src, path, alg, onRead)
		if err != nil {
			return nil, &Error{Path: path, Algorithm: alg, Err: err}
		}
		digests[alg] = digest
	}
	return digests, nil
}

func (c *Calculator) computeOne(ctx context.Context, src Reader, path, alg string, onRead func(n int64)) (string, error) {
	hasher, err := newHasher(alg)
	if err != nil {
		return "", err
	}

	reader, err := src.Read(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	bufPtr := c.bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer c.bufferPool.Put(bufPtr)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := reader.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
			if onRead != nil {
				onRead(int64(n))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
