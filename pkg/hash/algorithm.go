package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	gohash "hash"
	"hash/crc32"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/zeebo/blake3"
)

// Algorithm identifiers
const (
	CRC32    = "crc32"
	MD5      = "md5"
	SHA1     = "sha1"
	SHA256   = "sha256"
	SHA512   = "sha512"
	XXHash64 = "xxhash64"
	BLAKE3   = "blake3"
)

var registry = map[string]func() gohash.Hash{
	CRC32:    func() gohash.Hash { return crc32.NewIEEE() },
	MD5:      md5.New,
	SHA1:     sha1.New,
	SHA256:   sha256.New,
	SHA512:   sha512.New,
	XXHash64: func() gohash.Hash { return xxhash.New() },
	BLAKE3:   func() gohash.Hash { return blake3.New() },
}

var aliases = map[string]string{
	"crc":     CRC32,
	"sha-1":   SHA1,
	"sha-256": SHA256,
	"sha-512": SHA512,
	"xxhash":  XXHash64,
	"xxh64":   XXHash64,
	"b3":      BLAKE3,
}

// Canonical returns the registered identifier for name, resolving case and aliases
func Canonical(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if _, ok := registry[key]; !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", models.ErrUnknownAlgorithm, name, strings.Join(Supported(), ", "))
	}
	return key, nil
}

// CanonicalSet canonicalizes names and removes duplicates, keeping first-seen order
func CanonicalSet(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		c, err := Canonical(n)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// Supported returns every registered identifier, sorted
func Supported() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Covers reports whether recorded contains every algorithm in requested
func Covers(recorded, requested []string) bool {
	have := make(map[string]bool, len(recorded))
	for _, r := range recorded {
		have[r] = true
	}
	for _, r := range requested {
		if !have[r] {
			return false
		}
	}
	return true
}

// Match reports whether both digest maps agree on every algorithm.
// A digest missing on either side is a mismatch.
func Match(left, right map[string]string, algorithms []string) bool {
	for _, alg := range algorithms {
		l, okL := left[alg]
		r, okR := right[alg]
		if !okL || !okR || l != r {
			return false
		}
	}
	return true
}

func newHasher(name string) (gohash.Hash, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownAlgorithm, name)
	}
	return ctor(), nil
}
