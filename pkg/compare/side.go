package compare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/dirdiff/pkg/baseline"
	"github.com/sdejongh/dirdiff/pkg/hash"
	"github.com/sdejongh/dirdiff/pkg/logging"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/sdejongh/dirdiff/pkg/ratelimit"
	"github.com/sdejongh/dirdiff/pkg/storage"
)

// sideEntry is one directory child as seen by a side
type sideEntry struct {
	name    string
	isDir   bool
	size    int64
	modTime time.Time
	// failure is set when the entry exists but cannot be compared
	failure string
}

// side is one half of a comparison: a live tree or a recorded manifest
type side interface {
	list(ctx context.Context, dir string) ([]sideEntry, error)
	digests(ctx context.Context, rel string, algorithms []string, onRead func(int64)) (map[string]string, error)
}

// liveSide reads a storage backend
type liveSide struct {
	backend storage.Backend
	calc    *hash.Calculator
	limiter *ratelimit.Limiter
	logger  logging.Logger
}

func (s *liveSide) list(ctx context.Context, dir string) ([]sideEntry, error) {
	infos, err := s.backend.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	entries := make([]sideEntry, 0, len(infos))
	for _, info := range infos {
		if info.IsSymlink && !info.Followed {
			s.logger.Debug(ctx, "Skipping symbolic link", logging.Fields{
				"root": s.backend.Root(),
				"path": info.RelativePath,
			})
			continue
		}
		if errors.Is(info.ResolveErr, storage.ErrSymlinkLoop) {
			s.logger.Warn(ctx, "Skipping symbolic link that loops back to an ancestor", logging.Fields{
				"root": s.backend.Root(),
				"path": info.RelativePath,
			})
			continue
		}
		e := sideEntry{
			name:    info.Name,
			isDir:   info.IsDir,
			size:    info.Size,
			modTime: info.ModTime,
		}
		if info.ResolveErr != nil {
			e.isDir = false
			e.failure = fmt.Sprintf("dangling symbolic link: %v", info.ResolveErr)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *liveSide) digests(ctx context.Context, rel string, algorithms []string, onRead func(int64)) (map[string]string, error) {
	var src hash.Reader = s.backend
	if s.limiter != nil {
		src = throttled{backend: s.backend, limiter: s.limiter}
	}
	return s.calc.Compute(ctx, src, rel, algorithms, onRead)
}

// throttled opens backend files behind the shared read limiter
type throttled struct {
	backend storage.Backend
	limiter *ratelimit.Limiter
}

func (t throttled) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := t.backend.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return t.limiter.Wrap(ctx, rc), nil
}

// baselineSide replays the metadata recorded in a manifest.
// It never touches a live file system.
type baselineSide struct {
	index *baseline.Index
}

func (s *baselineSide) list(ctx context.Context, dir string) ([]sideEntry, error) {
	node, ok := s.index.Lookup(dir)
	if !ok || node.NodeType != models.NodeDirectory {
		return nil, fmt.Errorf("directory %q is not recorded in the manifest", dir)
	}
	if node.Status == models.StatusError && len(node.Children) == 0 {
		return nil, fmt.Errorf("directory %q could not be enumerated at capture time", dir)
	}

	entries := make([]sideEntry, 0, len(node.Children))
	for _, child := range node.Children {
		e := sideEntry{
			name:  child.Name,
			isDir: child.NodeType == models.NodeDirectory,
		}
		if d := child.Detail; d != nil {
			if d.LeftSize != nil {
				e.size = *d.LeftSize
			}
			if d.LeftModified != nil {
				e.modTime = *d.LeftModified
			}
		}
		if !e.isDir && child.Status == models.StatusError {
			e.failure = "file could not be captured"
			if child.Detail != nil && child.Detail.ErrorMessage != nil {
				e.failure = *child.Detail.ErrorMessage
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *baselineSide) digests(ctx context.Context, rel string, algorithms []string, onRead func(int64)) (map[string]string, error) {
	node, ok := s.index.Lookup(rel)
	if !ok || node.Detail == nil {
		return nil, fmt.Errorf("file %q is not recorded in the manifest", rel)
	}
	out := make(map[string]string, len(algorithms))
	for _, alg := range algorithms {
		digest, ok := node.Detail.LeftHashes[alg]
		if !ok {
			return nil, &hash.Error{Path: rel, Algorithm: alg, Err: fmt.Errorf("digest not recorded in the manifest")}
		}
		out[alg] = digest
	}
	return out, nil
}
