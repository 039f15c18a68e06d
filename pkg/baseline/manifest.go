package baseline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/sdejongh/dirdiff/pkg/hash"
	"github.com/sdejongh/dirdiff/pkg/models"
)

// Manifest is a captured tree used as the right side of a comparison.
// Every node records its captured metadata in the left* detail fields and
// carries status left_only (or error when it could not be captured).
type Manifest struct {
	CapturedAt time.Time              `json:"capturedAt"`
	SourcePath string                 `json:"sourcePath"`
	Algorithms []string               `json:"algorithms"`
	Root       *models.ComparisonNode `json:"root"`
}

// Validate checks the manifest structure
func (m *Manifest) Validate() error {
	if m.Root == nil || m.Root.NodeType != models.NodeDirectory {
		return &models.ValidationError{Field: "root", Message: "manifest root must be a directory", Err: models.ErrConfigInvalid}
	}
	algs, err := hash.CanonicalSet(m.Algorithms)
	if err != nil {
		return &models.ValidationError{Field: "algorithms", Message: err.Error(), Err: models.ErrConfigInvalid}
	}
	m.Algorithms = algs
	return nil
}

// Covers reports whether the manifest recorded every requested algorithm
func (m *Manifest) Covers(algorithms []string) bool {
	return hash.Covers(m.Algorithms, algorithms)
}

// Metadata describes the manifest for a comparison result
func (m *Manifest) Metadata(manifestPath string) *models.BaselineMetadata {
	return &models.BaselineMetadata{
		ManifestPath: manifestPath,
		SourcePath:   m.SourcePath,
		CreatedAt:    m.CapturedAt,
		Algorithms:   append([]string(nil), m.Algorithms...),
	}
}

// Save writes the manifest as indented JSON
func Save(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// write-then-rename so an interrupted save keeps the previous manifest
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// Load reads and validates a manifest
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: failed to parse manifest %s: %w", models.ErrConfigInvalid, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}
