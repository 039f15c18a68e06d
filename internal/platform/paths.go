package platform

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath expands a leading ~ and environment variables and cleans
// the result for the current platform
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	if p[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			if len(p) == 1 {
				p = home
			} else if p[1] == '/' || p[1] == filepath.Separator {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	p = os.ExpandEnv(p)
	normalized := filepath.Clean(p)

	// On Windows, ensure UNC paths are preserved
	if runtime.GOOS == "windows" {
		if strings.HasPrefix(p, `\\`) && !strings.HasPrefix(normalized, `\\`) {
			normalized = `\\` + normalized
		}
	}

	return normalized
}

// NormalizeRel converts a root-relative path to forward-slash form without
// leading or trailing separators. The root itself is the empty string.
func NormalizeRel(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	rel = path.Clean("/" + rel)
	return strings.TrimPrefix(rel, "/")
}

// JoinRel joins a normalized parent path and a child name
func JoinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// ParentRel returns the parent of a normalized relative path.
// The parent of a top-level entry is the root (""); the root has no parent.
func ParentRel(rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	i := strings.LastIndexByte(rel, '/')
	if i < 0 {
		return "", true
	}
	return rel[:i], true
}

// BaseRel returns the last element of a normalized relative path
func BaseRel(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

// FoldKey returns the matching key of a name or path under the given case sensitivity
func FoldKey(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// DefaultCaseSensitive reports whether file names on this platform are
// usually case sensitive
func DefaultCaseSensitive() bool {
	switch runtime.GOOS {
	case "windows", "darwin":
		return false
	default:
		return true
	}
}
