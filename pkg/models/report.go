package models

import (
	"time"
)

// ComparisonSummary holds aggregate counts over file nodes
type ComparisonSummary struct {
	Total     int `json:"total"`
	Equal     int `json:"equal"`
	Different int `json:"different"`
	LeftOnly  int `json:"leftOnly"`
	RightOnly int `json:"rightOnly"`
	Error     int `json:"error"`
}

// Summarize counts file nodes by status. Directories are traversed but
// never counted.
func Summarize(root *ComparisonNode) ComparisonSummary {
	var s ComparisonSummary
	root.Walk(func(n *ComparisonNode) {
		if n.NodeType != NodeFile {
			return
		}
		switch n.Status {
		case StatusEqual:
			s.Equal++
		case StatusDifferent:
			s.Different++
		case StatusLeftOnly:
			s.LeftOnly++
		case StatusRightOnly:
			s.RightOnly++
		case StatusError:
			s.Error++
		default:
			return
		}
		s.Total++
	})
	return s
}

// HasDifferences reports whether any file is not equal
func (s ComparisonSummary) HasDifferences() bool {
	return s.Different+s.LeftOnly+s.RightOnly > 0
}

// BaselineMetadata describes the manifest used as the right side
type BaselineMetadata struct {
	ManifestPath string    `json:"manifestPath"`
	SourcePath   string    `json:"sourcePath"`
	CreatedAt    time.Time `json:"createdAt"`
	Algorithms   []string  `json:"algorithms"`
}

// ComparisonResult is the outcome of one comparison run
type ComparisonResult struct {
	RunID string `json:"runId"`

	LeftPath string `json:"leftPath"`
	// RightPath is empty when the right side is a baseline manifest
	RightPath string `json:"rightPath,omitempty"`

	Mode       CompareMode `json:"mode"`
	Algorithms []string    `json:"algorithms,omitempty"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`

	Root     *ComparisonNode   `json:"root"`
	Summary  ComparisonSummary `json:"summary"`
	Baseline *BaselineMetadata `json:"baseline,omitempty"`

	// Errors lists every node that failed to compare, sorted by path
	Errors []NodeError `json:"errors,omitempty"`
}

// NodeError describes a node-scoped failure
type NodeError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Process exit codes
const (
	ExitOK          = 0
	ExitDifferences = 1
	ExitErrors      = 2
	ExitCanceled    = 3
	ExitFailure     = 4
)

// FailPolicy selects which outcomes produce a non-zero exit code
type FailPolicy string

const (
	// FailNone never fails on results
	FailNone FailPolicy = "none"
	// FailDifferent fails on any difference or error
	FailDifferent FailPolicy = "different"
	// FailError fails only on errors
	FailError FailPolicy = "error"
)

// Valid reports whether p is a known policy
func (p FailPolicy) Valid() bool {
	switch p {
	case FailNone, FailDifferent, FailError:
		return true
	}
	return false
}

// ExitCode returns the exit code for the result under the given policy
func (r *ComparisonResult) ExitCode(policy FailPolicy) int {
	switch policy {
	case FailNone:
		return ExitOK
	case FailError:
		if r.Summary.Error > 0 {
			return ExitErrors
		}
		return ExitOK
	default:
		if r.Summary.Error > 0 {
			return ExitErrors
		}
		if r.Summary.HasDifferences() {
			return ExitDifferences
		}
		return ExitOK
	}
}
