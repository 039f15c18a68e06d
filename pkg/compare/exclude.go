package compare

import (
	"path"
	"strings"
)

// Matcher decides which entries are invisible to a comparison.
// Patterns support:
//   - Simple glob patterns: *.tmp, *.log (matched against the base name)
//   - Directory patterns: .git/, node_modules/ (directories only, any depth)
//   - Path patterns: build/*, docs/*.md (matched against the path or any trailing part of it)
//   - Any-depth patterns: **/cache, **/test/*
type Matcher struct {
	patterns      []string
	caseSensitive bool
}

// NewMatcher creates a matcher; empty patterns are dropped
func NewMatcher(patterns []string, caseSensitive bool) *Matcher {
	m := &Matcher{caseSensitive: caseSensitive}
	for _, p := range patterns {
		p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
		if p == "" {
			continue
		}
		if !caseSensitive {
			p = strings.ToLower(p)
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Match reports whether the entry at relativePath (forward slashes) is excluded
func (m *Matcher) Match(relativePath string, isDir bool) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	rel := relativePath
	if !m.caseSensitive {
		rel = strings.ToLower(rel)
	}
	base := path.Base(rel)

	for _, pattern := range m.patterns {
		// Directory pattern (ends with /)
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			if isDir && (matchGlob(base, dirPattern) || matchGlob(rel, dirPattern)) {
				return true
			}
			continue
		}

		// ** matches any path depth
		if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matchGlob(base, suffix) || matchTrailing(rel, suffix) {
				return true
			}
			continue
		}

		if strings.Contains(pattern, "/") {
			if matchTrailing(rel, pattern) {
				return true
			}
		} else if matchGlob(base, pattern) {
			return true
		}
	}

	return false
}

// matchGlob performs glob matching; malformed patterns never match
func matchGlob(name, pattern string) bool {
	matched, _ := path.Match(pattern, name)
	return matched
}

// matchTrailing checks the pattern against the full path and every trailing part of it
func matchTrailing(rel, pattern string) bool {
	parts := strings.Split(rel, "/")
	for i := range parts {
		if matchGlob(strings.Join(parts[i:], "/"), pattern) {
			return true
		}
	}
	return false
}
