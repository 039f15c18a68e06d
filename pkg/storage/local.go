package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sdejongh/dirdiff/internal/platform"
	"github.com/spf13/afero"
)

// ErrSymlinkLoop is set as the ResolveErr of a followed link whose target
// is the directory holding it or one of that directory's ancestors
var ErrSymlinkLoop = errors.New("symbolic link loop")

// FS is a Backend over an afero file system rooted at a directory
type FS struct {
	fs             afero.Fs
	rootPath       string
	displayRoot    string
	followSymlinks bool
	// realPaths is set for OS-backed trees, where links can be resolved
	realPaths bool
}

// NewLocal creates a backend over the operating system file system.
// The root is not required to exist yet; the engine reports a missing root.
func NewLocal(rootPath string, followSymlinks bool) (*FS, error) {
	absPath, err := filepath.Abs(platform.NormalizePath(rootPath))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	return &FS{
		fs:             afero.NewOsFs(),
		rootPath:       absPath,
		displayRoot:    absPath,
		followSymlinks: followSymlinks,
		realPaths:      true,
	}, nil
}

// NewMemory creates a backend over an in-memory (or any other afero) file system
func NewMemory(fs afero.Fs, rootPath string) *FS {
	if rootPath == "" {
		rootPath = "/"
	}
	return &FS{
		fs:          fs,
		rootPath:    filepath.Clean(rootPath),
		displayRoot: "mem://" + filepath.ToSlash(filepath.Clean(rootPath)),
	}
}

// Root returns the backend root
func (b *FS) Root() string {
	return b.displayRoot
}

func (b *FS) full(path string) string {
	rel := platform.NormalizeRel(path)
	if rel == "" {
		return b.rootPath
	}
	return filepath.Join(b.rootPath, filepath.FromSlash(rel))
}

// Exists checks if a file or directory exists
func (b *FS) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := afero.Exists(b.fs, b.full(path))
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return ok, nil
}

// List returns the direct children of a directory, sorted by name
func (b *FS) List(ctx context.Context, path string) ([]FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	parent := platform.NormalizeRel(path)
	entries, err := afero.ReadDir(b.fs, b.full(parent))
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		rel := platform.JoinRel(parent, entry.Name())
		info := fromOS(entry, rel)

		if entry.Mode()&os.ModeSymlink != 0 {
			info.IsSymlink = true
			if b.followSymlinks {
				target, err := b.fs.Stat(b.full(rel))
				switch {
				case err != nil:
					info.ResolveErr = err
				case target.IsDir() && b.reentersAncestor(parent, rel):
					info.ResolveErr = ErrSymlinkLoop
				default:
					info = fromOS(target, rel)
					info.Name = entry.Name()
					info.IsSymlink = true
				}
				info.Followed = true
			}
		}
		files = append(files, info)
	}

	return files, nil
}

// reentersAncestor reports whether the directory link at rel resolves to
// its parent directory or to any directory above it on the walk path.
// Ancestors are resolved too, since they may themselves be followed links.
func (b *FS) reentersAncestor(parent, rel string) bool {
	if !b.realPaths {
		return false
	}
	target, err := filepath.EvalSymlinks(b.full(rel))
	if err != nil {
		return false
	}
	for dir, ok := parent, true; ok; dir, ok = platform.ParentRel(dir) {
		real, err := filepath.EvalSymlinks(b.full(dir))
		if err == nil && real == target {
			return true
		}
	}
	return false
}

// Stat returns file metadata
func (b *FS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	info, err := b.fs.Stat(b.full(path))
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	fi := fromOS(info, platform.NormalizeRel(path))
	return &fi, nil
}

// Read opens a file for reading
func (b *FS) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	file, err := b.fs.Open(b.full(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Close releases resources (no-op for afero file systems)
func (b *FS) Close() error {
	return nil
}

func fromOS(info os.FileInfo, rel string) FileInfo {
	return FileInfo{
		Name:         info.Name(),
		RelativePath: rel,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
	}
}
