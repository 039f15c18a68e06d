package compare

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sdejongh/dirdiff/internal/platform"
	"github.com/sdejongh/dirdiff/pkg/baseline"
	"github.com/sdejongh/dirdiff/pkg/hash"
	"github.com/sdejongh/dirdiff/pkg/logging"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/sdejongh/dirdiff/pkg/progress"
	"github.com/sdejongh/dirdiff/pkg/ratelimit"
	"github.com/sdejongh/dirdiff/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// Engine compares directory trees
type Engine struct {
	opts    Options
	matcher *Matcher
	calc    *hash.Calculator
	limiter *ratelimit.Limiter
}

// NewEngine validates options and creates an engine
func NewEngine(opts Options) (*Engine, error) {
	opts.applyDefaults()

	if !opts.Mode.Valid() {
		return nil, &models.ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("unknown mode '%s' (use quick or hash)", opts.Mode),
			Err:     models.ErrUnknownMode,
		}
	}
	if len(opts.Algorithms) == 0 {
		opts.Algorithms = []string{hash.SHA256}
	}
	algorithms, err := hash.CanonicalSet(opts.Algorithms)
	if err != nil {
		return nil, &models.ValidationError{Field: "algorithm", Message: err.Error(), Err: models.ErrUnknownAlgorithm}
	}
	opts.Algorithms = algorithms

	return &Engine{
		opts:    opts,
		matcher: NewMatcher(opts.Ignore, opts.CaseSensitive),
		calc:    hash.NewCalculator(opts.BufferSize),
		limiter: ratelimit.NewLimiter(opts.ReadLimit),
	}, nil
}

// Compare walks two live trees and returns the comparison result.
// A missing or unreadable root aborts the run; every other failure is
// recorded as an error node. On cancellation no result is returned.
func (e *Engine) Compare(ctx context.Context, left, right storage.Backend) (*models.ComparisonResult, error) {
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	if err := checkRoot(ctx, left, "left"); err != nil {
		return nil, err
	}
	if err := checkRoot(ctx, right, "right"); err != nil {
		return nil, err
	}

	r := e.newRun(e.live(left), e.live(right))
	res, err := r.execute(ctx, left.Root(), right.Root())
	if err != nil {
		return nil, err
	}
	res.LeftPath = left.Root()
	res.RightPath = right.Root()
	return res, nil
}

// CompareBaseline compares a live tree against a captured manifest.
// In hash mode the manifest must have recorded every requested algorithm.
func (e *Engine) CompareBaseline(ctx context.Context, left storage.Backend, m *baseline.Manifest, manifestPath string) (*models.ComparisonResult, error) {
	if m == nil {
		return nil, &models.ValidationError{Field: "baseline", Message: "no manifest given", Err: models.ErrMissingRightSide}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if e.opts.Mode == models.ModeHash && !m.Covers(e.opts.Algorithms) {
		return nil, &models.ValidationError{
			Field: "baseline",
			Message: fmt.Sprintf("manifest %s recorded algorithms %v but %v were requested; recapture the baseline with these algorithms",
				manifestPath, m.Algorithms, e.opts.Algorithms),
			Err: models.ErrBaselineAlgorithms,
		}
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	if err := checkRoot(ctx, left, "left"); err != nil {
		return nil, err
	}

	r := e.newRun(e.live(left), &baselineSide{index: baseline.NewIndex(m.Root)})
	res, err := r.execute(ctx, left.Root(), manifestPath)
	if err != nil {
		return nil, err
	}
	res.LeftPath = left.Root()
	res.Baseline = m.Metadata(manifestPath)
	return res, nil
}

// Capture walks a single tree and records its metadata, plus digests for
// every algorithm given, as a baseline manifest
func (e *Engine) Capture(ctx context.Context, root storage.Backend, algorithms []string) (*baseline.Manifest, error) {
	algs, err := hash.CanonicalSet(algorithms)
	if err != nil {
		return nil, &models.ValidationError{Field: "algorithm", Message: err.Error(), Err: models.ErrUnknownAlgorithm}
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	if err := checkRoot(ctx, root, "source"); err != nil {
		return nil, err
	}

	started := time.Now()
	r := e.newRun(e.live(root), nil)
	r.capture = true
	r.captureAlgorithms = algs

	entries, err := r.left.list(ctx, "")
	if err != nil {
		if cerr := canceled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: %s: %w", models.ErrRootUnreadable, root.Root(), err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Threads)
	r.group = g

	rootItem := &item{nodeType: models.NodeDirectory, base: models.StatusLeftOnly}
	walkErr := r.walkOneSided(gctx, rootItem, entries, models.StatusLeftOnly)
	if err := r.wait(ctx, walkErr); err != nil {
		return nil, err
	}

	m := &baseline.Manifest{
		CapturedAt: started.UTC(),
		SourcePath: root.Root(),
		Algorithms: algs,
		Root:       r.freeze(rootItem),
	}
	e.opts.Logger.Info(ctx, "Baseline captured", logging.Fields{
		"source":     root.Root(),
		"algorithms": algs,
		"files":      models.Summarize(m.Root).Total,
		"duration":   time.Since(started).String(),
	})
	return m, nil
}

func (e *Engine) live(b storage.Backend) *liveSide {
	return &liveSide{backend: b, calc: e.calc, limiter: e.limiter, logger: e.opts.Logger}
}

func checkRoot(ctx context.Context, b storage.Backend, label string) error {
	ok, err := b.Exists(ctx, "")
	if err != nil {
		return fmt.Errorf("%w: %s root %s: %w", models.ErrRootUnreadable, label, b.Root(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s root %s does not exist", models.ErrRootNotFound, label, b.Root())
	}
	info, err := b.Stat(ctx, "")
	if err != nil {
		return fmt.Errorf("%w: %s root %s: %w", models.ErrRootUnreadable, label, b.Root(), err)
	}
	if !info.IsDir {
		return fmt.Errorf("%w: %s root %s is not a directory", models.ErrRootNotFound, label, b.Root())
	}
	return nil
}

// item is the mutable working node of one run. File items handed to a
// hashing task are written only by that task until the run's Wait returns.
type item struct {
	name string
	rel  string
	// leftRel and rightRel are the paths as spelled on each side; they
	// differ from rel only under case-insensitive matching
	leftRel  string
	rightRel string
	nodeType models.NodeType
	status   models.Status
	// explicit marks a directory whose status is not derived from children
	explicit bool
	// base is the one-sided status of a directory present on one side only
	base     models.Status
	detail   *models.FileComparisonDetail
	message  string
	children []*item
}

// run holds the state of one comparison
type run struct {
	e     *Engine
	left  side
	right side
	group *errgroup.Group

	// capture runs walk the left side only and hash captureAlgorithms
	capture           bool
	captureAlgorithms []string
}

func (e *Engine) newRun(left, right side) *run {
	return &run{e: e, left: left, right: right}
}

func (r *run) logger() logging.Logger { return r.e.opts.Logger }

func (r *run) sink() progress.Sink { return r.e.opts.Progress }

func (r *run) algorithms() []string { return r.e.opts.Algorithms }

func (r *run) caseSensitive() bool { return r.e.opts.CaseSensitive }

func (r *run) hashMode() bool { return r.e.opts.Mode == models.ModeHash }

func (r *run) treeSink() TreeSink { return r.e.opts.Tree }

func (r *run) execute(ctx context.Context, leftName, rightName string) (*models.ComparisonResult, error) {
	started := time.Now()
	runID := uuid.NewString()

	leftEntries, err := r.left.list(ctx, "")
	if err != nil {
		if cerr := canceled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: left root %s: %w", models.ErrRootUnreadable, leftName, err)
	}
	rightEntries, err := r.right.list(ctx, "")
	if err != nil {
		if cerr := canceled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: right root %s: %w", models.ErrRootUnreadable, rightName, err)
	}

	r.logger().Info(ctx, "Starting comparison", logging.Fields{
		"run_id":  runID,
		"left":    leftName,
		"right":   rightName,
		"mode":    r.e.opts.Mode,
		"threads": r.e.opts.Threads,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.e.opts.Threads)
	r.group = g

	rootItem := &item{nodeType: models.NodeDirectory}
	walkErr := r.walkMatched(gctx, rootItem, leftEntries, rightEntries)
	if err := r.wait(ctx, walkErr); err != nil {
		r.logger().Warn(ctx, "Comparison canceled", logging.Fields{"run_id": runID})
		return nil, err
	}

	root := r.freeze(rootItem)
	if t := r.treeSink(); t != nil {
		t.Completed(root)
	}

	res := &models.ComparisonResult{
		RunID:     runID,
		Mode:      r.e.opts.Mode,
		StartedAt: started,
		Duration:  time.Since(started),
		Root:      root,
		Summary:   models.Summarize(root),
		Errors:    collectErrors(rootItem),
	}
	if r.hashMode() {
		res.Algorithms = append([]string(nil), r.algorithms()...)
	}

	r.logger().Info(ctx, "Comparison finished", logging.Fields{
		"run_id":     runID,
		"total":      res.Summary.Total,
		"equal":      res.Summary.Equal,
		"different":  res.Summary.Different,
		"left_only":  res.Summary.LeftOnly,
		"right_only": res.Summary.RightOnly,
		"errors":     res.Summary.Error,
		"duration":   res.Duration.String(),
	})
	return res, nil
}

// wait blocks until every dispatched task finished and maps cancellation
func (r *run) wait(ctx context.Context, walkErr error) error {
	groupErr := r.group.Wait()
	if err := canceled(ctx); err != nil {
		return err
	}
	for _, err := range []error{walkErr, groupErr} {
		if err != nil {
			if isCancellation(err) {
				return fmt.Errorf("%w: %w", models.ErrCanceled, err)
			}
			return err
		}
	}
	return nil
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrCanceled, err)
	}
	return nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// slot is a keyed directory child; collision names a second entry whose
// name folds to the same key
type slot struct {
	entry     sideEntry
	collision string
}

// index filters ignored entries and keys the rest by name
func (r *run) index(parent string, entries []sideEntry) ([]string, map[string]*slot) {
	keys := make([]string, 0, len(entries))
	slots := make(map[string]*slot, len(entries))
	for _, e := range entries {
		if r.e.matcher.Match(platform.JoinRel(parent, e.name), e.isDir) {
			continue
		}
		key := platform.FoldKey(e.name, r.caseSensitive())
		if existing, ok := slots[key]; ok {
			existing.collision = e.name
			continue
		}
		slots[key] = &slot{entry: e}
		keys = append(keys, key)
	}
	return keys, slots
}

// walkMatched matches the children of a directory present on both sides
func (r *run) walkMatched(ctx context.Context, dir *item, leftEntries, rightEntries []sideEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	leftKeys, leftSlots := r.index(dir.rel, leftEntries)
	rightKeys, rightSlots := r.index(dir.rel, rightEntries)

	keys := append([]string(nil), leftKeys...)
	for _, k := range rightKeys {
		if _, ok := leftSlots[k]; !ok {
			keys = append(keys, k)
		}
	}

	for _, key := range keys {
		l, inLeft := leftSlots[key]
		rr, inRight := rightSlots[key]

		var err error
		switch {
		case inLeft && inRight:
			err = r.matchPair(ctx, dir, l, rr)
		case inLeft:
			err = r.oneSided(ctx, dir, l, models.StatusLeftOnly)
		default:
			err = r.oneSided(ctx, dir, rr, models.StatusRightOnly)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// matchPair classifies an entry present on both sides
func (r *run) matchPair(ctx context.Context, dir *item, l, rr *slot) error {
	le, re := l.entry, rr.entry

	switch {
	case l.collision != "" || rr.collision != "":
		other := l.collision
		if other == "" {
			other = rr.collision
		}
		nodeType := models.NodeFile
		if le.isDir {
			nodeType = models.NodeDirectory
		}
		it := r.add(dir, le.name, nodeType)
		r.collide(ctx, it, le.name, other)
		return nil

	case le.failure != "" || re.failure != "":
		it := r.addPair(dir, le.name, re.name, models.NodeFile)
		it.detail = pairDetail(le, re)
		msg := le.failure
		if msg == "" {
			msg = re.failure
		}
		r.discoverFile(it)
		r.fail(ctx, it, msg)
		return nil

	case le.isDir && re.isDir:
		it := r.addPair(dir, le.name, re.name, models.NodeDirectory)
		leftChildren, err := r.left.list(ctx, it.leftRel)
		if err != nil {
			return r.failDir(ctx, it, "left", err)
		}
		rightChildren, err := r.right.list(ctx, it.rightRel)
		if err != nil {
			return r.failDir(ctx, it, "right", err)
		}
		return r.walkMatched(ctx, it, leftChildren, rightChildren)

	case le.isDir != re.isDir:
		it := r.addPair(dir, le.name, re.name, models.NodeFile)
		it.detail = &models.FileComparisonDetail{}
		if le.isDir {
			it.detail.RightSize = models.Int64Ptr(re.size)
			it.detail.RightModified = models.TimePtr(re.modTime)
		} else {
			it.detail.LeftSize = models.Int64Ptr(le.size)
			it.detail.LeftModified = models.TimePtr(le.modTime)
		}
		r.discoverFile(it)
		r.logger().Debug(ctx, "Entry is a file on one side and a directory on the other", logging.Fields{"path": it.rel})
		r.finish(it, models.StatusDifferent)
		return nil

	default:
		it := r.addPair(dir, le.name, re.name, models.NodeFile)
		it.detail = pairDetail(le, re)
		r.discoverFile(it)

		if !r.hashMode() {
			r.finish(it, quickStatus(le, re, r.e.opts.ModifiedTolerance))
			return nil
		}
		if le.size != re.size {
			r.finish(it, models.StatusDifferent)
			return nil
		}
		r.dispatchPair(ctx, it)
		return nil
	}
}

// oneSided records an entry, and for directories its whole subtree, as
// present on one side only
func (r *run) oneSided(ctx context.Context, dir *item, s *slot, status models.Status) error {
	e := s.entry

	if s.collision != "" {
		nodeType := models.NodeFile
		if e.isDir {
			nodeType = models.NodeDirectory
		}
		it := r.add(dir, e.name, nodeType)
		r.collide(ctx, it, e.name, s.collision)
		return nil
	}

	if !e.isDir {
		it := r.add(dir, e.name, models.NodeFile)
		it.detail = sideDetail(e, status)
		r.discoverFile(it)
		if e.failure != "" {
			r.fail(ctx, it, e.failure)
			return nil
		}
		if r.capture && len(r.captureAlgorithms) > 0 {
			r.dispatchCapture(ctx, it)
			return nil
		}
		r.finish(it, status)
		return nil
	}

	it := r.add(dir, e.name, models.NodeDirectory)
	it.base = status
	src, srcRel := r.left, it.leftRel
	if status == models.StatusRightOnly {
		src, srcRel = r.right, it.rightRel
	}
	children, err := src.list(ctx, srcRel)
	if err != nil {
		return r.failDir(ctx, it, string(sideOf(status)), err)
	}
	if err := r.walkOneSided(ctx, it, children, status); err != nil {
		return err
	}
	// capture tasks may still be writing below it
	if t := r.treeSink(); t != nil && !r.capture {
		t.Completed(r.freeze(it))
	}
	return nil
}

func (r *run) walkOneSided(ctx context.Context, dir *item, entries []sideEntry, status models.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys, slots := r.index(dir.rel, entries)
	for _, key := range keys {
		if err := r.oneSided(ctx, dir, slots[key], status); err != nil {
			return err
		}
	}
	return nil
}

// add appends a new child item to dir and announces it
func (r *run) add(dir *item, name string, nodeType models.NodeType) *item {
	return r.addPair(dir, name, name, nodeType)
}

// addPair is add for an entry whose right name may differ in case
func (r *run) addPair(dir *item, name, rightName string, nodeType models.NodeType) *item {
	it := &item{
		name:     name,
		rel:      platform.JoinRel(dir.rel, name),
		leftRel:  platform.JoinRel(dir.leftRel, name),
		rightRel: platform.JoinRel(dir.rightRel, rightName),
		nodeType: nodeType,
	}
	dir.children = append(dir.children, it)
	if t := r.treeSink(); t != nil {
		t.Discovered(it.rel, it.name, it.nodeType)
	}
	return it
}

func (r *run) discoverFile(it *item) {
	var leftSize, rightSize *int64
	if it.detail != nil {
		leftSize, rightSize = it.detail.LeftSize, it.detail.RightSize
	}
	r.sink().FileDiscovered(it.rel, leftSize, rightSize)
}

// finish sets the final status of a file item and publishes it
func (r *run) finish(it *item, status models.Status) {
	it.status = status
	if it.nodeType != models.NodeFile {
		return
	}
	r.sink().FileCompleted(it.rel, status)
	if t := r.treeSink(); t != nil {
		t.Completed(r.freeze(it))
	}
}

func (r *run) collide(ctx context.Context, it *item, name, other string) {
	if it.nodeType == models.NodeFile {
		r.discoverFile(it)
	}
	r.fail(ctx, it, fmt.Sprintf("names %q and %q collide under case-insensitive matching", name, other))
}

// fail records a node-scoped failure
func (r *run) fail(ctx context.Context, it *item, message string) {
	r.logger().Warn(ctx, "Entry could not be compared", logging.Fields{
		"path":  it.rel,
		"error": message,
	})

	it.message = message
	if it.nodeType == models.NodeDirectory {
		it.explicit = true
		it.status = models.StatusError
		it.children = nil
		if t := r.treeSink(); t != nil {
			t.Completed(r.freeze(it))
		}
		return
	}
	if it.detail == nil {
		it.detail = &models.FileComparisonDetail{}
	}
	it.detail.ErrorMessage = models.StringPtr(message)
	r.finish(it, models.StatusError)
}

// failDir converts a listing failure into an error node unless the run was canceled
func (r *run) failDir(ctx context.Context, it *item, sideName string, err error) error {
	if ctx.Err() != nil || isCancellation(err) {
		return err
	}
	r.fail(ctx, it, fmt.Sprintf("cannot enumerate %s directory: %v", sideName, err))
	return nil
}

// dispatchPair hashes both sides of a matched file on the worker pool
func (r *run) dispatchPair(ctx context.Context, it *item) {
	algorithms := r.algorithms()
	r.group.Go(func() error {
		leftHashes, err := r.left.digests(ctx, it.leftRel, algorithms, func(n int64) {
			r.sink().BytesRead(progress.SideLeft, n)
		})
		if err != nil {
			return r.hashFailed(ctx, it, "left", err)
		}
		rightHashes, err := r.right.digests(ctx, it.rightRel, algorithms, func(n int64) {
			r.sink().BytesRead(progress.SideRight, n)
		})
		if err != nil {
			return r.hashFailed(ctx, it, "right", err)
		}

		it.detail.LeftHashes = leftHashes
		it.detail.RightHashes = rightHashes
		status := models.StatusDifferent
		if hash.Match(leftHashes, rightHashes, algorithms) {
			status = models.StatusEqual
		}
		r.finish(it, status)
		return nil
	})
}

// dispatchCapture hashes one file of a captured tree on the worker pool
func (r *run) dispatchCapture(ctx context.Context, it *item) {
	algorithms := r.captureAlgorithms
	r.group.Go(func() error {
		digests, err := r.left.digests(ctx, it.leftRel, algorithms, func(n int64) {
			r.sink().BytesRead(progress.SideLeft, n)
		})
		if err != nil {
			return r.hashFailed(ctx, it, "source", err)
		}
		it.detail.LeftHashes = digests
		r.finish(it, models.StatusLeftOnly)
		return nil
	})
}

func (r *run) hashFailed(ctx context.Context, it *item, sideName string, err error) error {
	if ctx.Err() != nil || isCancellation(err) {
		return err
	}
	r.fail(ctx, it, fmt.Sprintf("%s: %v", sideName, err))
	return nil
}

// freeze builds the immutable node for an item: children sorted by name,
// directory statuses rolled up unless set explicitly
func (r *run) freeze(it *item) *models.ComparisonNode {
	node := &models.ComparisonNode{
		Name:         it.name,
		RelativePath: it.rel,
		NodeType:     it.nodeType,
	}

	if it.nodeType == models.NodeFile {
		node.Status = it.status
		node.Detail = copyDetail(it.detail)
		return node
	}

	node.Children = make([]*models.ComparisonNode, 0, len(it.children))
	for _, child := range it.children {
		node.Children = append(node.Children, r.freeze(child))
	}
	models.SortNodes(node.Children, r.caseSensitive())

	switch {
	case it.explicit:
		node.Status = it.status
	case it.base != "":
		statuses := []models.Status{it.base}
		for _, c := range node.Children {
			statuses = append(statuses, c.Status)
		}
		node.Status = models.Rollup(statuses)
	default:
		node.Status = models.RollupNodes(node.Children)
	}
	return node
}

func collectErrors(root *item) []models.NodeError {
	var out []models.NodeError
	var visit func(it *item)
	visit = func(it *item) {
		if it.message != "" {
			out = append(out, models.NodeError{Path: it.rel, Message: it.message})
		}
		for _, c := range it.children {
			visit(c)
		}
	}
	visit(root)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func quickStatus(l, r sideEntry, tolerance *time.Duration) models.Status {
	if l.size != r.size {
		return models.StatusDifferent
	}
	if tolerance == nil {
		return models.StatusEqual
	}
	delta := l.modTime.Sub(r.modTime)
	if delta < 0 {
		delta = -delta
	}
	if delta <= *tolerance {
		return models.StatusEqual
	}
	return models.StatusDifferent
}

func pairDetail(l, r sideEntry) *models.FileComparisonDetail {
	return &models.FileComparisonDetail{
		LeftSize:      models.Int64Ptr(l.size),
		RightSize:     models.Int64Ptr(r.size),
		LeftModified:  models.TimePtr(l.modTime),
		RightModified: models.TimePtr(r.modTime),
	}
}

func sideDetail(e sideEntry, status models.Status) *models.FileComparisonDetail {
	if status == models.StatusRightOnly {
		return &models.FileComparisonDetail{
			RightSize:     models.Int64Ptr(e.size),
			RightModified: models.TimePtr(e.modTime),
		}
	}
	return &models.FileComparisonDetail{
		LeftSize:     models.Int64Ptr(e.size),
		LeftModified: models.TimePtr(e.modTime),
	}
}

func sideOf(status models.Status) progress.Side {
	if status == models.StatusRightOnly {
		return progress.SideRight
	}
	return progress.SideLeft
}

func copyDetail(d *models.FileComparisonDetail) *models.FileComparisonDetail {
	if d == nil {
		return nil
	}
	c := *d
	c.LeftHashes = copyDigests(d.LeftHashes)
	c.RightHashes = copyDigests(d.RightHashes)
	return &c
}

func copyDigests(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
