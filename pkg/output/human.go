package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sdejongh/dirdiff/pkg/models"
)

// HumanFormatter prints the console summary of a run
type HumanFormatter struct{}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{}
}

// Format writes the summary block
func (f *HumanFormatter) Format(w io.Writer, result *models.ComparisonResult) error {
	if w == nil {
		w = io.Discard
	}
	s := result.Summary

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Comparison completed in %s\n", formatDuration(result.Duration))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Left:      %s\n", result.LeftPath)
	if result.Baseline != nil {
		fmt.Fprintf(w, "  Baseline:  %s (captured %s from %s)\n",
			result.Baseline.ManifestPath,
			result.Baseline.CreatedAt.Format(time.RFC3339),
			result.Baseline.SourcePath)
	} else {
		fmt.Fprintf(w, "  Right:     %s\n", result.RightPath)
	}
	if len(result.Algorithms) > 0 {
		fmt.Fprintf(w, "  Mode:      %s (%s)\n", result.Mode, strings.Join(result.Algorithms, ", "))
	} else {
		fmt.Fprintf(w, "  Mode:      %s\n", result.Mode)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Files:       %d\n", s.Total)
	fmt.Fprintf(w, "  Equal:       %d\n", s.Equal)
	fmt.Fprintf(w, "  Different:   %d\n", s.Different)
	fmt.Fprintf(w, "  Left only:   %d\n", s.LeftOnly)
	fmt.Fprintf(w, "  Right only:  %d\n", s.RightOnly)
	fmt.Fprintf(w, "  Errors:      %d\n", s.Error)
	fmt.Fprintf(w, "\n")

	status := models.StatusEqual
	if result.Root != nil {
		status = result.Root.Status
	}
	fmt.Fprintf(w, "Status: %s\n", status)

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s: %s\n", displayPath(e.Path), e.Message)
		}
	}
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
