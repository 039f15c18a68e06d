package tree

import (
	"sync"

	"github.com/sdejongh/dirdiff/internal/platform"
	"github.com/sdejongh/dirdiff/pkg/models"
)

// Listener receives snapshots published by an Adapter.
// Both methods run while the adapter lock is held, so they must not call
// back into the adapter.
type Listener interface {
	// OnTreeUpdated receives the complete snapshot after every event
	OnTreeUpdated(root *models.ComparisonNode)

	// OnNodeUpdated receives the node that the event changed
	OnNodeUpdated(node *models.ComparisonNode)
}

// ListenerFuncs adapts plain functions to Listener; nil functions are skipped
type ListenerFuncs struct {
	Tree func(root *models.ComparisonNode)
	Node func(node *models.ComparisonNode)
}

func (f ListenerFuncs) OnTreeUpdated(root *models.ComparisonNode) {
	if f.Tree != nil {
		f.Tree(root)
	}
}

func (f ListenerFuncs) OnNodeUpdated(node *models.ComparisonNode) {
	if f.Node != nil {
		f.Node(node)
	}
}

// entry is the mutable working state of one path
type entry struct {
	path     string
	name     string
	nodeType models.NodeType
	// status is nil until an explicit status arrives
	status   *models.Status
	detail   *models.FileComparisonDetail
	children map[string]struct{}
}

// Adapter accumulates discovery and completion events from concurrent
// workers into a tree keyed by normalized relative path, and publishes an
// immutable snapshot after every event.
type Adapter struct {
	mu            sync.Mutex
	caseSensitive bool
	entries       map[string]*entry
	listeners     []Listener
	snapshot      *models.ComparisonNode
}

// New creates an adapter holding only the root directory
func New(caseSensitive bool) *Adapter {
	a := &Adapter{
		caseSensitive: caseSensitive,
		entries:       make(map[string]*entry),
	}
	a.entries[""] = &entry{nodeType: models.NodeDirectory, children: make(map[string]struct{})}
	a.snapshot, _ = a.build("")
	return a
}

// Subscribe registers a listener for subsequent events
func (a *Adapter) Subscribe(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

// Snapshot returns the latest published tree
func (a *Adapter) Snapshot() *models.ComparisonNode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Discovered records that an entry exists. It never clears a status that
// already arrived through Completed.
func (a *Adapter) Discovered(relativePath, name string, nodeType models.NodeType) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rel := platform.NormalizeRel(relativePath)
	e := a.ensure(rel)
	if name != "" {
		e.name = name
	}
	if e.status == nil {
		e.nodeType = nodeType
	}
	a.publish(rel)
}

// Completed records the final state of a node. A directory node carries
// its subtree, which replaces whatever was recorded below it.
func (a *Adapter) Completed(node *models.ComparisonNode) {
	if node == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	rel := platform.NormalizeRel(node.RelativePath)
	a.apply(rel, node)
	a.publish(rel)
}

func (a *Adapter) apply(rel string, node *models.ComparisonNode) {
	e := a.ensure(rel)
	if node.Name != "" {
		e.name = node.Name
	}
	status := node.Status
	e.nodeType = node.NodeType
	e.status = &status
	e.detail = copyDetail(node.Detail)

	if node.NodeType != models.NodeDirectory {
		a.dropChildren(e)
		return
	}
	if len(node.Children) > 0 || len(e.children) > 0 {
		a.dropChildren(e)
		for _, child := range node.Children {
			a.apply(platform.JoinRel(rel, child.Name), child)
		}
	}
}

// ensure returns the entry for rel, creating it and its ancestors as needed
func (a *Adapter) ensure(rel string) *entry {
	key := a.key(rel)
	if e, ok := a.entries[key]; ok {
		return e
	}

	e := &entry{
		path:     rel,
		name:     platform.BaseRel(rel),
		nodeType: models.NodeFile,
		children: make(map[string]struct{}),
	}
	a.entries[key] = e

	parentRel, _ := platform.ParentRel(rel)
	parent := a.ensure(parentRel)
	if parent.status == nil {
		parent.nodeType = models.NodeDirectory
	}
	parent.children[key] = struct{}{}
	return e
}

func (a *Adapter) dropChildren(e *entry) {
	for key := range e.children {
		if child, ok := a.entries[key]; ok {
			a.dropChildren(child)
			delete(a.entries, key)
		}
	}
	e.children = make(map[string]struct{})
}

func (a *Adapter) key(rel string) string {
	return platform.FoldKey(rel, a.caseSensitive)
}

// publish rebuilds the snapshot and notifies listeners
func (a *Adapter) publish(changed string) {
	root, nodes := a.build("")
	a.snapshot = root

	changedNode := nodes[a.key(changed)]
	for _, l := range a.listeners {
		l.OnTreeUpdated(root)
		if changedNode != nil {
			l.OnNodeUpdated(changedNode)
		}
	}
}

// build creates a fresh immutable tree below key and indexes its nodes by key
func (a *Adapter) build(key string) (*models.ComparisonNode, map[string]*models.ComparisonNode) {
	index := make(map[string]*models.ComparisonNode, len(a.entries))
	return a.buildNode(key, index), index
}

func (a *Adapter) buildNode(key string, index map[string]*models.ComparisonNode) *models.ComparisonNode {
	e := a.entries[key]
	node := &models.ComparisonNode{
		Name:         e.name,
		RelativePath: e.path,
		NodeType:     e.nodeType,
		Detail:       copyDetail(e.detail),
	}
	index[key] = node

	if e.nodeType == models.NodeDirectory {
		node.Detail = nil
		node.Children = make([]*models.ComparisonNode, 0, len(e.children))
		for childKey := range e.children {
			node.Children = append(node.Children, a.buildNode(childKey, index))
		}
		models.SortNodes(node.Children, a.caseSensitive)
	}

	switch {
	case e.status != nil:
		node.Status = *e.status
	case e.nodeType == models.NodeDirectory:
		node.Status = derive(node.Children)
	default:
		node.Status = models.StatusPending
	}
	return node
}

// derive rolls up completed children; a directory with none is still pending
func derive(children []*models.ComparisonNode) models.Status {
	statuses := make([]models.Status, 0, len(children))
	for _, c := range children {
		if c.Status != models.StatusPending {
			statuses = append(statuses, c.Status)
		}
	}
	if len(statuses) == 0 {
		return models.StatusPending
	}
	return models.Rollup(statuses)
}

func copyDetail(d *models.FileComparisonDetail) *models.FileComparisonDetail {
	if d == nil {
		return nil
	}
	c := *d
	c.LeftHashes = copyMap(d.LeftHashes)
	c.RightHashes = copyMap(d.RightHashes)
	return &c
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
