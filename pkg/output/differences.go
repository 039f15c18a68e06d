package output

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sdejongh/dirdiff/pkg/models"
)

// DifferencesFormatter lists every non-equal file grouped by status
type DifferencesFormatter struct {
	opts Options
	now  func() time.Time
}

// NewDifferencesFormatter creates the differences listing formatter
func NewDifferencesFormatter(opts Options) *DifferencesFormatter {
	return &DifferencesFormatter{opts: opts, now: time.Now}
}

// Name returns the formatter name
func (f *DifferencesFormatter) Name() string {
	return "text"
}

var statusOrder = []models.Status{
	models.StatusError,
	models.StatusDifferent,
	models.StatusLeftOnly,
	models.StatusRightOnly,
}

var statusLabels = map[models.Status]string{
	models.StatusError:     "Errors",
	models.StatusDifferent: "Different",
	models.StatusLeftOnly:  "Only in Left",
	models.StatusRightOnly: "Only in Right",
}

// Format writes the differences report
func (f *DifferencesFormatter) Format(w io.Writer, result *models.ComparisonResult) error {
	fmt.Fprintf(w, "Differences Report\n")
	fmt.Fprintf(w, "==================\n\n")
	fmt.Fprintf(w, "Generated: %s\n", f.now().Format(time.RFC3339))
	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Left: %s\n", result.LeftPath)
	if result.Baseline != nil {
		fmt.Fprintf(w, "Baseline: %s\n", result.Baseline.ManifestPath)
	} else {
		fmt.Fprintf(w, "Right: %s\n", result.RightPath)
	}
	fmt.Fprintf(w, "Mode: %s\n\n", result.Mode)

	byStatus := groupByStatus(result.Root)
	total := 0
	for _, nodes := range byStatus {
		total += len(nodes)
	}
	fmt.Fprintf(w, "Total Differences: %d\n\n", total)

	messages := make(map[string]string, len(result.Errors))
	for _, e := range result.Errors {
		messages[e.Path] = e.Message
	}

	for _, status := range statusOrder {
		nodes := byStatus[status]
		if len(nodes) == 0 {
			continue
		}

		label := fmt.Sprintf("%s (%d)", statusLabels[status], len(nodes))
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))

		for _, n := range nodes {
			if n.IsDir() {
				fmt.Fprintf(w, "  %s/\n", n.RelativePath)
			} else {
				fmt.Fprintf(w, "  %s\n", n.RelativePath)
			}
			if msg, ok := messages[n.RelativePath]; ok {
				fmt.Fprintf(w, "    Error:   %s\n", msg)
			}
			if d := n.Detail; d != nil {
				if line := sideLine(d.LeftSize, d.LeftModified, d.LeftHashes); line != "" {
					fmt.Fprintf(w, "    Left:    %s\n", line)
				}
				if line := sideLine(d.RightSize, d.RightModified, d.RightHashes); line != "" {
					fmt.Fprintf(w, "    Right:   %s\n", line)
				}
			}
			if status == models.StatusDifferent {
				if cmd := f.diffCommand(result, n); cmd != "" {
					fmt.Fprintf(w, "    Diff:    %s\n", cmd)
				}
			}
		}
		fmt.Fprintf(w, "\n")
	}
	return nil
}

// groupByStatus collects non-equal files, plus error directories whose
// subtree could not be enumerated
func groupByStatus(root *models.ComparisonNode) map[models.Status][]*models.ComparisonNode {
	out := make(map[models.Status][]*models.ComparisonNode)
	root.Walk(func(n *models.ComparisonNode) {
		switch {
		case n.NodeType == models.NodeFile:
			if n.Status != models.StatusEqual && n.Status != models.StatusPending {
				out[n.Status] = append(out[n.Status], n)
			}
		case n.Status == models.StatusError && len(n.Children) == 0:
			out[n.Status] = append(out[n.Status], n)
		}
	})
	return out
}

func sideLine(size *int64, modified *time.Time, hashes map[string]string) string {
	var parts []string
	if size != nil {
		parts = append(parts, formatBytes(*size))
	}
	if modified != nil {
		parts = append(parts, "modified "+modified.Format(time.RFC3339))
	}
	for _, alg := range sortedKeys(hashes) {
		digest := hashes[alg]
		if len(digest) > 12 {
			digest = digest[:12]
		}
		parts = append(parts, alg+": "+digest)
	}
	return strings.Join(parts, ", ")
}

// diffCommand builds the configured diff tool invocation when both sides
// are local trees
func (f *DifferencesFormatter) diffCommand(result *models.ComparisonResult, n *models.ComparisonNode) string {
	if f.opts.DiffTool == "" || result.Baseline != nil || n.IsDir() {
		return ""
	}
	if !isLocal(result.LeftPath) || !isLocal(result.RightPath) {
		return ""
	}
	rel := filepath.FromSlash(n.RelativePath)
	return fmt.Sprintf("%s %s %s", f.opts.DiffTool,
		quote(filepath.Join(result.LeftPath, rel)),
		quote(filepath.Join(result.RightPath, rel)))
}

func isLocal(root string) bool {
	return root != "" && !strings.Contains(root, "://")
}

func quote(p string) string {
	if strings.ContainsAny(p, " \t'\"") {
		return fmt.Sprintf("%q", p)
	}
	return p
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
