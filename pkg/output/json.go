package output

import (
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/sdejongh/dirdiff/pkg/models"
)

// JSONFormatter formats the result as JSON for automation and scripting
type JSONFormatter struct {
	now func() time.Time
}

// JSONReport is the document written by JSONFormatter
type JSONReport struct {
	Generated  time.Time                `json:"generated"`
	Status     models.Status            `json:"status"`
	DurationMs int64                    `json:"durationMs"`
	Result     *models.ComparisonResult `json:"result"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{now: time.Now}
}

// Format writes the full result tree with its summary
func (f *JSONFormatter) Format(w io.Writer, result *models.ComparisonResult) error {
	if w == nil {
		w = os.Stdout
	}

	report := JSONReport{
		Generated:  f.now().UTC(),
		Status:     models.StatusEqual,
		DurationMs: result.Duration.Milliseconds(),
		Result:     result,
	}
	if result.Root != nil {
		report.Status = result.Root.Status
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
