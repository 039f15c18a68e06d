package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sdejongh/dirdiff/pkg/models"
)

// Formatter renders a comparison result.
// Implementations include the console summary, the JSON report and the
// differences listing.
type Formatter interface {
	// Format writes the rendered result to w
	Format(w io.Writer, result *models.ComparisonResult) error

	// Name returns the formatter name
	Name() string
}

// ForName returns the formatter registered under name
func ForName(name string, opts Options) (Formatter, error) {
	switch name {
	case "human", "":
		return NewHumanFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	case "text":
		return NewDifferencesFormatter(opts), nil
	default:
		return nil, fmt.Errorf("unknown report format '%s' (use human, json, or text)", name)
	}
}

// Options tunes the differences listing
type Options struct {
	// DiffTool is printed as a ready-to-run command for differing local files
	DiffTool string
}

// WriteReport renders result with f into the file at path, creating
// parent directories as needed
func WriteReport(path string, f Formatter, result *models.ComparisonResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s report: %w", f.Name(), err)
	}

	if err := f.Format(file, result); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s report: %w", f.Name(), err)
	}
	return file.Close()
}
