package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo represents metadata about a file or directory
type FileInfo struct {
	Name string
	// RelativePath is root-relative with forward slashes
	RelativePath string
	Size         int64
	ModTime      time.Time
	IsDir        bool

	// IsSymlink is set for symbolic links. Followed links describe their
	// target; ResolveErr is set when the target cannot be resolved.
	IsSymlink  bool
	Followed   bool
	ResolveErr error
}

// Backend is the read-only file-system capability consumed by the comparison engine.
// Implementations include the local file system and in-memory trees.
// Paths are root-relative with forward slashes; "" is the root.
type Backend interface {
	// Root returns a display name for the backend root
	Root() string

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the direct children of a directory
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Stat returns file metadata
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Read opens a file for reading
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Close releases any resources held by the backend
	Close() error
}
