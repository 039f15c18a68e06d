package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrRemoteUnsupported is returned for source schemes that name a remote provider
var ErrRemoteUnsupported = errors.New("remote sources are not supported")

// Options configures backends created by a Resolver
type Options struct {
	FollowSymlinks bool
}

// Resolver selects a Backend from the scheme of a source string:
//   - bare paths and file:// use the local file system
//   - mem://name/path uses an in-memory tree registered under name
//   - ssh://, sftp://, s3:// and smb:// are recognized but not implemented
type Resolver struct {
	mu     sync.RWMutex
	memory map[string]afero.Fs
}

// NewResolver creates a resolver with no registered memory trees
func NewResolver() *Resolver {
	return &Resolver{memory: make(map[string]afero.Fs)}
}

// RegisterMemory makes fs reachable as mem://name
func (r *Resolver) RegisterMemory(name string, fs afero.Fs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memory[name] = fs
}

// Open returns a backend for source
func (r *Resolver) Open(source string, opts Options) (Backend, error) {
	scheme, rest := splitScheme(source)
	switch scheme {
	case "", "file":
		return NewLocal(rest, opts.FollowSymlinks)
	case "mem":
		name, root, _ := strings.Cut(rest, "/")
		r.mu.RLock()
		fs, ok := r.memory[name]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("memory tree %q is not registered", name)
		}
		return NewMemory(fs, "/"+root), nil
	case "ssh", "sftp", "s3", "smb":
		return nil, fmt.Errorf("%w: %s", ErrRemoteUnsupported, source)
	default:
		return nil, fmt.Errorf("unknown source scheme %q", scheme)
	}
}

// IsRemote reports whether source names a remote provider
func IsRemote(source string) bool {
	switch scheme, _ := splitScheme(source); scheme {
	case "ssh", "sftp", "s3", "smb":
		return true
	}
	return false
}

func splitScheme(source string) (string, string) {
	i := strings.Index(source, "://")
	if i <= 0 {
		return "", source
	}
	return strings.ToLower(source[:i]), source[i+3:]
}
