package compare

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sdejongh/dirdiff/pkg/baseline"
	"github.com/sdejongh/dirdiff/pkg/hash"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/sdejongh/dirdiff/pkg/progress"
	"github.com/sdejongh/dirdiff/pkg/storage"
	"github.com/sdejongh/dirdiff/pkg/tree"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTree builds an in-memory tree; keys ending in "/" are empty directories
func memTree(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/", 0755))
	for name, content := range files {
		full := "/" + name
		if strings.HasSuffix(name, "/") {
			require.NoError(t, fs.MkdirAll(full, 0755))
			continue
		}
		require.NoError(t, fs.MkdirAll(path.Dir(full), 0755))
		require.NoError(t, afero.WriteFile(fs, full, []byte(content), 0644))
	}
	return fs
}

func memBackend(t *testing.T, files map[string]string) *storage.FS {
	return storage.NewMemory(memTree(t, files), "/")
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(opts)
	require.NoError(t, err)
	return e
}

// faultyBackend injects failures into an underlying backend
type faultyBackend struct {
	storage.Backend
	readErr map[string]error
	listErr map[string]error
	onRead  func(rel string)
}

func (b *faultyBackend) List(ctx context.Context, rel string) ([]storage.FileInfo, error) {
	if err, ok := b.listErr[rel]; ok {
		return nil, err
	}
	return b.Backend.List(ctx, rel)
}

func (b *faultyBackend) Read(ctx context.Context, rel string) (io.ReadCloser, error) {
	if b.onRead != nil {
		b.onRead(rel)
	}
	if err, ok := b.readErr[rel]; ok {
		return nil, err
	}
	return b.Backend.Read(ctx, rel)
}

func child(t *testing.T, root *models.ComparisonNode, rel string) *models.ComparisonNode {
	t.Helper()
	n := root.Find(rel)
	require.NotNil(t, n, "node %q not found", rel)
	return n
}

func TestCompareQuickMode(t *testing.T) {
	left := memBackend(t, map[string]string{
		"a.txt":         "x",
		"same.txt":      "hello",
		"only/left.txt": "l",
		"docs/":         "",
	})
	right := memBackend(t, map[string]string{
		"a.txt":     "yy",
		"same.txt":  "hello",
		"extra.txt": "r",
	})

	res, err := newEngine(t, Options{Mode: models.ModeQuick}).Compare(context.Background(), left, right)
	require.NoError(t, err)

	root := res.Root
	assert.Equal(t, "", root.RelativePath)
	assert.Equal(t, models.StatusDifferent, root.Status)

	names := make([]string, 0, len(root.Children))
	for _, c := range root.Children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a.txt", "docs", "extra.txt", "only", "same.txt"}, names)

	a := child(t, root, "a.txt")
	assert.Equal(t, models.StatusDifferent, a.Status)
	assert.Equal(t, int64(1), *a.Detail.LeftSize)
	assert.Equal(t, int64(2), *a.Detail.RightSize)
	assert.Nil(t, a.Detail.LeftHashes, "quick mode never hashes")

	assert.Equal(t, models.StatusEqual, child(t, root, "same.txt").Status)
	assert.Equal(t, models.StatusRightOnly, child(t, root, "extra.txt").Status)
	assert.Nil(t, child(t, root, "extra.txt").Detail.LeftSize)

	only := child(t, root, "only")
	assert.Equal(t, models.NodeDirectory, only.NodeType)
	assert.Equal(t, models.StatusLeftOnly, only.Status)
	assert.Nil(t, only.Detail)
	assert.Equal(t, models.StatusLeftOnly, child(t, root, "only/left.txt").Status)

	docs := child(t, root, "docs")
	assert.Equal(t, models.StatusLeftOnly, docs.Status, "an empty one-sided directory keeps its side")
	assert.Empty(t, docs.Children)

	assert.Equal(t, models.ComparisonSummary{Total: 4, Equal: 1, Different: 1, LeftOnly: 1, RightOnly: 1}, res.Summary)
	assert.Empty(t, res.Algorithms)
	assert.Empty(t, res.Errors)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "mem:///", res.LeftPath)
}

func TestCompareHashModeDetectsContent(t *testing.T) {
	files := func(content string) map[string]string {
		return map[string]string{"a.txt": content}
	}

	quick, err := newEngine(t, Options{Mode: models.ModeQuick}).
		Compare(context.Background(), memBackend(t, files("x")), memBackend(t, files("y")))
	require.NoError(t, err)
	assert.Equal(t, models.StatusEqual, child(t, quick.Root, "a.txt").Status, "same size passes quick mode")

	res, err := newEngine(t, Options{Mode: models.ModeHash, Algorithms: []string{"sha256", "xxhash"}}).
		Compare(context.Background(), memBackend(t, files("x")), memBackend(t, files("y")))
	require.NoError(t, err)

	a := child(t, res.Root, "a.txt")
	assert.Equal(t, models.StatusDifferent, a.Status)
	assert.Equal(t, "2d711642b726b04401627ca9fbac32f5c8530fb1903cc4db02258717921a4881", a.Detail.LeftHashes[hash.SHA256])
	assert.Equal(t, "a1fce4363854ff888cff4b8e7875d600c2682390412a8cf79b37d0b11148b0fa", a.Detail.RightHashes[hash.SHA256])
	assert.Contains(t, a.Detail.LeftHashes, hash.XXHash64)
	assert.Equal(t, []string{hash.SHA256, hash.XXHash64}, res.Algorithms)
}

func TestCompareHashModeWithReadLimit(t *testing.T) {
	files := map[string]string{"a.txt": "same", "sub/b.txt": "content"}

	res, err := newEngine(t, Options{Mode: models.ModeHash, ReadLimit: 1 << 20}).
		Compare(context.Background(), memBackend(t, files), memBackend(t, files))
	require.NoError(t, err)
	assert.Equal(t, models.StatusEqual, res.Root.Status)
	assert.Equal(t, 2, res.Summary.Equal)
}

func TestCompareHashModeSkipsDifferentSizes(t *testing.T) {
	reads := 0
	left := &faultyBackend{
		Backend: memBackend(t, map[string]string{"a.txt": "short"}),
		onRead:  func(string) { reads++ },
	}
	right := memBackend(t, map[string]string{"a.txt": "much longer"})

	res, err := newEngine(t, Options{Mode: models.ModeHash, Threads: 1}).Compare(context.Background(), left, right)
	require.NoError(t, err)

	a := child(t, res.Root, "a.txt")
	assert.Equal(t, models.StatusDifferent, a.Status)
	assert.Nil(t, a.Detail.LeftHashes)
	assert.Zero(t, reads)
}

func TestCompareModifiedTolerance(t *testing.T) {
	leftFs := memTree(t, map[string]string{"a.txt": "same"})
	rightFs := memTree(t, map[string]string{"a.txt": "same"})

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, leftFs.Chtimes("/a.txt", base, base))
	require.NoError(t, rightFs.Chtimes("/a.txt", base.Add(5*time.Second), base.Add(5*time.Second)))

	tests := []struct {
		name      string
		tolerance *time.Duration
		want      models.Status
	}{
		{"NoTolerance", nil, models.StatusEqual},
		{"WithinTolerance", durationPtr(10 * time.Second), models.StatusEqual},
		{"ExactTolerance", durationPtr(5 * time.Second), models.StatusEqual},
		{"OutsideTolerance", durationPtr(2 * time.Second), models.StatusDifferent},
		{"ZeroTolerance", durationPtr(0), models.StatusDifferent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, Options{Mode: models.ModeQuick, ModifiedTolerance: tt.tolerance})
			res, err := e.Compare(context.Background(), storage.NewMemory(leftFs, "/"), storage.NewMemory(rightFs, "/"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, child(t, res.Root, "a.txt").Status)
		})
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func TestCompareIgnore(t *testing.T) {
	left := memBackend(t, map[string]string{
		".git/HEAD":   "ref",
		"keep.txt":    "k",
		"build/x.tmp": "t",
	})
	right := memBackend(t, map[string]string{
		"keep.txt": "k",
		"new.tmp":  "n",
	})

	e := newEngine(t, Options{Ignore: []string{".git/", "*.tmp"}})
	res, err := e.Compare(context.Background(), left, right)
	require.NoError(t, err)

	assert.Nil(t, res.Root.Find(".git"))
	assert.Nil(t, res.Root.Find("new.tmp"))
	assert.Nil(t, res.Root.Find("build/x.tmp"))

	build := child(t, res.Root, "build")
	assert.Empty(t, build.Children)
	assert.Equal(t, models.StatusLeftOnly, build.Status)
	assert.Equal(t, 1, res.Summary.Total)
	assert.Equal(t, 1, res.Summary.Equal)
}

func TestCompareCaseSensitivity(t *testing.T) {
	leftFiles := map[string]string{"Docs/Readme.md": "same"}
	rightFiles := map[string]string{"docs/README.md": "same"}

	insensitive, err := newEngine(t, Options{CaseSensitive: false}).
		Compare(context.Background(), memBackend(t, leftFiles), memBackend(t, rightFiles))
	require.NoError(t, err)
	require.Len(t, insensitive.Root.Children, 1)
	docs := insensitive.Root.Children[0]
	assert.Equal(t, "Docs", docs.Name, "matched nodes take the left name")
	require.Len(t, docs.Children, 1)
	assert.Equal(t, "Docs/Readme.md", docs.Children[0].RelativePath)
	assert.Equal(t, models.StatusEqual, docs.Children[0].Status)

	sensitive, err := newEngine(t, Options{CaseSensitive: true}).
		Compare(context.Background(), memBackend(t, leftFiles), memBackend(t, rightFiles))
	require.NoError(t, err)
	require.Len(t, sensitive.Root.Children, 2)
	assert.Equal(t, "Docs", sensitive.Root.Children[0].Name)
	assert.Equal(t, models.StatusLeftOnly, sensitive.Root.Children[0].Status)
	assert.Equal(t, "docs", sensitive.Root.Children[1].Name)
	assert.Equal(t, models.StatusRightOnly, sensitive.Root.Children[1].Status)
}

func TestCompareCaseCollision(t *testing.T) {
	left := memBackend(t, map[string]string{"A.txt": "1", "a.txt": "2", "b.txt": "b"})
	right := memBackend(t, map[string]string{"a.txt": "2", "b.txt": "b"})

	res, err := newEngine(t, Options{CaseSensitive: false}).Compare(context.Background(), left, right)
	require.NoError(t, err)

	require.Len(t, res.Root.Children, 2)
	collided := res.Root.Children[0]
	assert.Equal(t, models.StatusError, collided.Status)
	require.NotNil(t, collided.Detail.ErrorMessage)
	assert.Contains(t, *collided.Detail.ErrorMessage, `"A.txt"`)
	assert.Contains(t, *collided.Detail.ErrorMessage, `"a.txt"`)

	assert.Equal(t, models.StatusEqual, child(t, res.Root, "b.txt").Status)
	assert.Equal(t, 1, res.Summary.Error)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, collided.RelativePath, res.Errors[0].Path)
}

func TestCompareTypeConflict(t *testing.T) {
	left := memBackend(t, map[string]string{"thing": "file"})
	right := memBackend(t, map[string]string{"thing/inner.txt": "x"})

	res, err := newEngine(t, Options{}).Compare(context.Background(), left, right)
	require.NoError(t, err)

	thing := child(t, res.Root, "thing")
	assert.Equal(t, models.NodeFile, thing.NodeType)
	assert.Equal(t, models.StatusDifferent, thing.Status)
	assert.Equal(t, int64(4), *thing.Detail.LeftSize)
	assert.Nil(t, thing.Detail.RightSize)
}

func TestCompareErrorIsolation(t *testing.T) {
	leftMem := memBackend(t, map[string]string{
		"bad.txt":     "same",
		"good.txt":    "same",
		"sub/one.txt": "1",
	})
	right := memBackend(t, map[string]string{
		"bad.txt":     "same",
		"good.txt":    "same",
		"sub/one.txt": "1",
	})
	left := &faultyBackend{
		Backend: leftMem,
		readErr: map[string]error{"bad.txt": errors.New("permission denied")},
		listErr: map[string]error{"sub": errors.New("input/output error")},
	}

	res, err := newEngine(t, Options{Mode: models.ModeHash, Threads: 4}).Compare(context.Background(), left, right)
	require.NoError(t, err)

	bad := child(t, res.Root, "bad.txt")
	assert.Equal(t, models.StatusError, bad.Status)
	require.NotNil(t, bad.Detail.ErrorMessage)
	assert.Contains(t, *bad.Detail.ErrorMessage, "permission denied")
	assert.Equal(t, int64(4), *bad.Detail.LeftSize, "metadata survives a hashing failure")

	assert.Equal(t, models.StatusEqual, child(t, res.Root, "good.txt").Status)

	sub := child(t, res.Root, "sub")
	assert.Equal(t, models.StatusError, sub.Status)
	assert.Empty(t, sub.Children)

	assert.Equal(t, models.StatusError, res.Root.Status)
	assert.Equal(t, 2, res.Summary.Total)
	assert.Equal(t, 1, res.Summary.Error)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "bad.txt", res.Errors[0].Path)
	assert.Equal(t, "sub", res.Errors[1].Path)
	assert.Contains(t, res.Errors[1].Message, "input/output error")
}

func TestCompareRollupMixed(t *testing.T) {
	left := memBackend(t, map[string]string{"dir/l.txt": "l", "lonly/a.txt": "a", "eq/x": "x"})
	right := memBackend(t, map[string]string{"dir/r.txt": "r", "eq/x": "x"})

	res, err := newEngine(t, Options{}).Compare(context.Background(), left, right)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDifferent, child(t, res.Root, "dir").Status)
	assert.Equal(t, models.StatusLeftOnly, child(t, res.Root, "lonly").Status)
	assert.Equal(t, models.StatusEqual, child(t, res.Root, "eq").Status)
	assert.Equal(t, models.StatusDifferent, res.Root.Status)
}

func TestCompareRootErrors(t *testing.T) {
	present := memBackend(t, map[string]string{"a": "a"})

	missing := storage.NewMemory(afero.NewMemMapFs(), "/nowhere")
	_, err := newEngine(t, Options{}).Compare(context.Background(), present, missing)
	assert.ErrorIs(t, err, models.ErrRootNotFound)

	fileRoot := storage.NewMemory(memTree(t, map[string]string{"file": "x"}), "/file")
	_, err = newEngine(t, Options{}).Compare(context.Background(), fileRoot, present)
	assert.ErrorIs(t, err, models.ErrRootNotFound)

	unreadable := &faultyBackend{Backend: present, listErr: map[string]error{"": errors.New("denied")}}
	_, err = newEngine(t, Options{}).Compare(context.Background(), unreadable, present)
	assert.ErrorIs(t, err, models.ErrRootUnreadable)
}

func TestCompareCancellation(t *testing.T) {
	files := map[string]string{"a": "1", "b": "2", "c/d": "3", "c/e": "4"}

	t.Run("BeforeStart", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := newEngine(t, Options{}).Compare(ctx, memBackend(t, files), memBackend(t, files))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, models.ErrCanceled)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("WhileHashing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		left := &faultyBackend{
			Backend: memBackend(t, files),
			onRead:  func(string) { cancel() },
		}

		res, err := newEngine(t, Options{Mode: models.ModeHash, Threads: 1}).Compare(ctx, left, memBackend(t, files))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, models.ErrCanceled)
	})

	t.Run("Timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		_, err := newEngine(t, Options{}).Compare(ctx, memBackend(t, files), memBackend(t, files))
		assert.ErrorIs(t, err, models.ErrCanceled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCompareDeterministic(t *testing.T) {
	leftFiles := map[string]string{}
	rightFiles := map[string]string{}
	for _, dir := range []string{"a", "b", "c/d", "c/e"} {
		for _, name := range []string{"1.txt", "2.txt", "3.txt"} {
			leftFiles[dir+"/"+name] = dir + name
			rightFiles[dir+"/"+name] = dir + name
		}
	}
	rightFiles["c/d/2.txt"] = "changed!"
	delete(rightFiles, "b/3.txt")
	rightFiles["new/x"] = "x"

	left, right := memBackend(t, leftFiles), memBackend(t, rightFiles)

	var roots []*models.ComparisonNode
	for _, threads := range []int{1, 2, 8, 32} {
		res, err := newEngine(t, Options{Mode: models.ModeHash, Threads: threads}).
			Compare(context.Background(), left, right)
		require.NoError(t, err)
		roots = append(roots, res.Root)
	}
	for i := 1; i < len(roots); i++ {
		assert.Equal(t, roots[0], roots[i])
	}
}

func TestCompareLiveTreeMatchesResult(t *testing.T) {
	left := memBackend(t, map[string]string{"a/1": "1", "a/2": "2", "only/x": "x", "bad": "b"})
	right := memBackend(t, map[string]string{"a/1": "1", "a/2": "22", "other": "o", "bad": "b"})
	faulty := &faultyBackend{Backend: left, readErr: map[string]error{"bad": errors.New("boom")}}

	adapter := tree.New(true)
	var updates int
	adapter.Subscribe(tree.ListenerFuncs{Node: func(*models.ComparisonNode) { updates++ }})

	tracker := progress.NewTracker()
	e := newEngine(t, Options{Mode: models.ModeHash, Threads: 3, Tree: adapter, Progress: tracker})
	res, err := e.Compare(context.Background(), faulty, right)
	require.NoError(t, err)

	assert.Equal(t, res.Root, adapter.Snapshot())
	assert.Positive(t, updates)

	stats := tracker.Stats()
	assert.Equal(t, int64(res.Summary.Total), stats.Discovered)
	assert.Equal(t, int64(res.Summary.Total), stats.Completed)
	assert.Zero(t, stats.Pending)
	assert.Equal(t, int64(1), stats.Errors)
}

func TestCaptureAndCompareBaseline(t *testing.T) {
	original := map[string]string{
		"config.ini":   "0123456789",
		"docs/a.md":    "alpha",
		"docs/b.md":    "beta",
		"removed.txt":  "gone soon",
		"empty/":       "",
		"keep/one.bin": "1",
	}
	e := newEngine(t, Options{Mode: models.ModeHash, Algorithms: []string{"sha256"}})

	m, err := e.Capture(context.Background(), memBackend(t, original), []string{"sha256", "md5"})
	require.NoError(t, err)
	assert.Equal(t, []string{hash.SHA256, hash.MD5}, m.Algorithms)
	assert.Equal(t, "mem:///", m.SourcePath)
	assert.Equal(t, models.StatusLeftOnly, m.Root.Status)

	cfg := child(t, m.Root, "config.ini")
	assert.Equal(t, int64(10), *cfg.Detail.LeftSize)
	assert.Len(t, cfg.Detail.LeftHashes, 2)

	manifestPath := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, baseline.Save(m, manifestPath))
	loaded, err := baseline.Load(manifestPath)
	require.NoError(t, err)

	unchanged, err := e.CompareBaseline(context.Background(), memBackend(t, original), loaded, manifestPath)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEqual, unchanged.Root.Status)
	assert.Equal(t, 5, unchanged.Summary.Equal)
	assert.Empty(t, unchanged.RightPath)
	require.NotNil(t, unchanged.Baseline)
	assert.Equal(t, manifestPath, unchanged.Baseline.ManifestPath)
	assert.Equal(t, "mem:///", unchanged.Baseline.SourcePath)

	changed := map[string]string{
		"config.ini":   "0123456789AB",
		"docs/a.md":    "alpha",
		"docs/b.md":    "BETA",
		"added.txt":    "new",
		"empty/":       "",
		"keep/one.bin": "1",
	}
	res, err := e.CompareBaseline(context.Background(), memBackend(t, changed), loaded, manifestPath)
	require.NoError(t, err)

	config := child(t, res.Root, "config.ini")
	assert.Equal(t, models.StatusDifferent, config.Status)
	assert.Equal(t, int64(12), *config.Detail.LeftSize)
	assert.Equal(t, int64(10), *config.Detail.RightSize)

	assert.Equal(t, models.StatusDifferent, child(t, res.Root, "docs/b.md").Status, "same size, different digest")
	assert.Equal(t, models.StatusEqual, child(t, res.Root, "docs/a.md").Status)
	assert.Equal(t, models.StatusLeftOnly, child(t, res.Root, "added.txt").Status)
	assert.Equal(t, models.StatusRightOnly, child(t, res.Root, "removed.txt").Status)
	assert.Equal(t, models.StatusEqual, child(t, res.Root, "empty").Status)
	assert.Equal(t, models.ComparisonSummary{Total: 6, Equal: 2, Different: 2, LeftOnly: 1, RightOnly: 1}, res.Summary)
}

func TestCompareBaselineAlgorithmMismatch(t *testing.T) {
	files := map[string]string{"a": "a"}
	capturer := newEngine(t, Options{})
	m, err := capturer.Capture(context.Background(), memBackend(t, files), []string{"sha256"})
	require.NoError(t, err)

	hashing := newEngine(t, Options{Mode: models.ModeHash, Algorithms: []string{"blake3"}})
	_, err = hashing.CompareBaseline(context.Background(), memBackend(t, files), m, "base.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrBaselineAlgorithms)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "baseline", verr.Field)

	quick := newEngine(t, Options{Mode: models.ModeQuick, Algorithms: []string{"blake3"}})
	res, err := quick.CompareBaseline(context.Background(), memBackend(t, files), m, "base.json")
	require.NoError(t, err)
	assert.Equal(t, models.StatusEqual, res.Root.Status, "quick mode needs no digests")
}

func TestCaptureWithoutDigests(t *testing.T) {
	m, err := newEngine(t, Options{}).Capture(context.Background(), memBackend(t, map[string]string{"x/y": "yy"}), nil)
	require.NoError(t, err)

	y := child(t, m.Root, "x/y")
	assert.Equal(t, int64(2), *y.Detail.LeftSize)
	assert.Nil(t, y.Detail.LeftHashes)
	assert.Empty(t, m.Algorithms)
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(Options{Mode: "fuzzy"})
	assert.ErrorIs(t, err, models.ErrUnknownMode)

	_, err = NewEngine(Options{Mode: models.ModeHash, Algorithms: []string{"rot13"}})
	assert.ErrorIs(t, err, models.ErrUnknownAlgorithm)

	e, err := NewEngine(Options{})
	require.NoError(t, err)
	assert.Equal(t, models.ModeQuick, e.opts.Mode)
	assert.Equal(t, []string{hash.SHA256}, e.opts.Algorithms)
	assert.Positive(t, e.opts.Threads)
}

func TestRun(t *testing.T) {
	resolver := storage.NewResolver()
	resolver.RegisterMemory("left", memTree(t, map[string]string{"a": "1", "b": "2"}))
	resolver.RegisterMemory("right", memTree(t, map[string]string{"a": "1", "b": "3"}))

	settings := &models.ResolvedCompareSettings{
		LeftPath:   "mem://left",
		RightPath:  "mem://right",
		Mode:       models.ModeHash,
		Algorithms: []string{"sha1"},
		Threads:    2,
		Verbosity:  models.VerbosityNormal,
		FailOn:     models.FailDifferent,
	}
	res, err := Run(context.Background(), settings, Deps{Resolver: resolver})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Equal)
	assert.Equal(t, 1, res.Summary.Different)
	assert.Equal(t, models.ExitDifferences, res.ExitCode(settings.FailOn))

	settings.RightPath = ""
	_, err = Run(context.Background(), settings, Deps{Resolver: resolver})
	assert.ErrorIs(t, err, models.ErrMissingRightSide)

	settings.RightPath = "ssh://host/dir"
	_, err = Run(context.Background(), settings, Deps{Resolver: resolver})
	assert.ErrorIs(t, err, storage.ErrRemoteUnsupported)
}

// loopTree creates f.txt and a sub/up link whose target depends on the root
func loopTree(t *testing.T, target func(root string) string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("same"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.Symlink(target(root), filepath.Join(root, "sub", "up")))
	return root
}

func parentLink(string) string { return ".." }

func TestCompareFollowedSymlinkLoop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	tests := []struct {
		name   string
		target func(root string) string
	}{
		{"RelativeParent", parentLink},
		{"AbsoluteRoot", func(root string) string { return root }},
		{"SelfDirectory", func(root string) string { return filepath.Join(root, "sub") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := func() storage.Backend {
				b, err := storage.NewLocal(loopTree(t, tt.target), true)
				require.NoError(t, err)
				return b
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			res, err := newEngine(t, Options{Mode: models.ModeHash}).Compare(ctx, backend(), backend())
			require.NoError(t, err)

			assert.Equal(t, models.StatusEqual, res.Root.Status)
			assert.Equal(t, 1, res.Summary.Total)
			assert.Empty(t, res.Errors)
			sub := child(t, res.Root, "sub")
			assert.Empty(t, sub.Children)
		})
	}
}

func TestCompareFollowedSymlinkOutsideLoop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	// a link to a sibling directory is not a loop and is walked once
	left := loopTree(t, parentLink)
	right := loopTree(t, parentLink)
	for _, root := range []string{left, right} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "data", "d.txt"), []byte("d"), 0644))
		require.NoError(t, os.Symlink(filepath.Join(root, "data"), filepath.Join(root, "sub", "data")))
	}

	lb, err := storage.NewLocal(left, true)
	require.NoError(t, err)
	rb, err := storage.NewLocal(right, true)
	require.NoError(t, err)

	res, err := newEngine(t, Options{}).Compare(context.Background(), lb, rb)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEqual, res.Root.Status)
	assert.Equal(t, 3, res.Summary.Total, "f.txt, data/d.txt and sub/data/d.txt")
}
