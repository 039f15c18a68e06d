package models

import (
	"sort"
	"strings"
	"time"
)

// Status is the comparison outcome of a single node
type Status string

const (
	// StatusEqual indicates both sides match
	StatusEqual Status = "equal"
	// StatusDifferent indicates both sides exist but differ
	StatusDifferent Status = "different"
	// StatusLeftOnly indicates the entry exists on the left side only
	StatusLeftOnly Status = "left_only"
	// StatusRightOnly indicates the entry exists on the right side only
	StatusRightOnly Status = "right_only"
	// StatusError indicates the entry could not be compared
	StatusError Status = "error"
	// StatusPending marks an entry that was discovered but has not completed yet.
	// It only appears in live snapshots and never in a final result.
	StatusPending Status = "pending"
)

// NodeType distinguishes files from directories
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// ComparisonNode is a file or directory entry in the result tree
type ComparisonNode struct {
	// Name is the last path element (empty for the root)
	Name string `json:"name"`

	// RelativePath is root-relative and always uses forward slashes
	RelativePath string `json:"relativePath"`

	NodeType NodeType `json:"nodeType"`
	Status   Status   `json:"status"`

	// Detail is only set on file nodes
	Detail *FileComparisonDetail `json:"detail,omitempty"`

	// Children are sorted by name, empty for files
	Children []*ComparisonNode `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory
func (n *ComparisonNode) IsDir() bool {
	return n.NodeType == NodeDirectory
}

// Walk visits the node and all of its descendants depth-first
func (n *ComparisonNode) Walk(fn func(node *ComparisonNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Find returns the descendant with the given relative path, or nil
func (n *ComparisonNode) Find(relativePath string) *ComparisonNode {
	var found *ComparisonNode
	n.Walk(func(node *ComparisonNode) {
		if found == nil && node.RelativePath == relativePath {
			found = node
		}
	})
	return found
}

// FileComparisonDetail holds per-side metadata of a file node
type FileComparisonDetail struct {
	LeftSize      *int64            `json:"leftSize,omitempty"`
	RightSize     *int64            `json:"rightSize,omitempty"`
	LeftModified  *time.Time        `json:"leftModified,omitempty"`
	RightModified *time.Time        `json:"rightModified,omitempty"`
	LeftHashes    map[string]string `json:"leftHashes,omitempty"`
	RightHashes   map[string]string `json:"rightHashes,omitempty"`
	ErrorMessage  *string           `json:"errorMessage,omitempty"`
}

// Rollup derives a directory status from the statuses of its children.
// Precedence: Error, then Different (including a mix of LeftOnly and
// RightOnly), then LeftOnly, then RightOnly, then Equal. Pending children
// are ignored.
func Rollup(children []Status) Status {
	var hasLeft, hasRight, hasDifferent bool
	for _, s := range children {
		switch s {
		case StatusError:
			return StatusError
		case StatusDifferent:
			hasDifferent = true
		case StatusLeftOnly:
			hasLeft = true
		case StatusRightOnly:
			hasRight = true
		}
	}

	switch {
	case hasDifferent || (hasLeft && hasRight):
		return StatusDifferent
	case hasLeft:
		return StatusLeftOnly
	case hasRight:
		return StatusRightOnly
	default:
		return StatusEqual
	}
}

// RollupNodes applies Rollup to the statuses of the given nodes
func RollupNodes(children []*ComparisonNode) Status {
	statuses := make([]Status, 0, len(children))
	for _, c := range children {
		statuses = append(statuses, c.Status)
	}
	return Rollup(statuses)
}

// NameLess orders names, folding case when caseSensitive is false.
// Names that fold to the same key fall back to a byte-wise comparison so
// the order stays total.
func NameLess(a, b string, caseSensitive bool) bool {
	if !caseSensitive {
		la, lb := strings.ToLower(a), strings.ToLower(b)
		if la != lb {
			return la < lb
		}
	}
	return a < b
}

// SortNodes sorts nodes by name in place
func SortNodes(nodes []*ComparisonNode, caseSensitive bool) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return NameLess(nodes[i].Name, nodes[j].Name, caseSensitive)
	})
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 {
	return &v
}

// TimePtr returns a pointer to t
func TimePtr(t time.Time) *time.Time {
	return &t
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
