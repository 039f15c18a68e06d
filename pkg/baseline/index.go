package baseline

import (
	"github.com/sdejongh/dirdiff/internal/platform"
	"github.com/sdejongh/dirdiff/pkg/models"
)

// Index gives path lookup over a manifest tree
type Index struct {
	nodes map[string]*models.ComparisonNode
}

// NewIndex indexes every node below root by normalized relative path
func NewIndex(root *models.ComparisonNode) *Index {
	ix := &Index{nodes: make(map[string]*models.ComparisonNode)}
	root.Walk(func(n *models.ComparisonNode) {
		ix.nodes[platform.NormalizeRel(n.RelativePath)] = n
	})
	return ix
}

// Lookup returns the recorded node at rel
func (ix *Index) Lookup(rel string) (*models.ComparisonNode, bool) {
	n, ok := ix.nodes[platform.NormalizeRel(rel)]
	return n, ok
}

// Len returns the number of recorded nodes, root included
func (ix *Index) Len() int {
	return len(ix.nodes)
}
