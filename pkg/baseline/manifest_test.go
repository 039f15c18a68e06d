package baseline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifest() *Manifest {
	captured := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	return &Manifest{
		CapturedAt: captured,
		SourcePath: "/srv/data",
		Algorithms: []string{"SHA-256", "md5"},
		Root: &models.ComparisonNode{
			NodeType: models.NodeDirectory,
			Status:   models.StatusLeftOnly,
			Children: []*models.ComparisonNode{
				{
					Name:         "etc",
					RelativePath: "etc",
					NodeType:     models.NodeDirectory,
					Status:       models.StatusLeftOnly,
					Children: []*models.ComparisonNode{{
						Name:         "app.conf",
						RelativePath: "etc/app.conf",
						NodeType:     models.NodeFile,
						Status:       models.StatusLeftOnly,
						Detail: &models.FileComparisonDetail{
							LeftSize:     models.Int64Ptr(10),
							LeftModified: models.TimePtr(captured),
							LeftHashes:   map[string]string{"sha256": "abc", "md5": "def"},
						},
					}},
				},
			},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "baseline.json")
	require.NoError(t, Save(sampleManifest(), path))

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"sha256", "md5"}, m.Algorithms, "algorithm names are canonicalized on load")
	assert.Equal(t, "/srv/data", m.SourcePath)
	assert.True(t, m.CapturedAt.Equal(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)))

	f := m.Root.Find("etc/app.conf")
	require.NotNil(t, f)
	assert.Equal(t, int64(10), *f.Detail.LeftSize)
	assert.Equal(t, "abc", f.Detail.LeftHashes["sha256"])
}

func TestSaveReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, Save(sampleManifest(), path))
	_, err := Load(path)
	require.NoError(t, err)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "no temporary file is left behind")
}

func TestSaveFailureKeepsNoTempFile(t *testing.T) {
	dir := t.TempDir()
	// a non-empty directory cannot be replaced by a file
	path := filepath.Join(dir, "baseline.json")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "keep"), 0755))

	assert.Error(t, Save(sampleManifest(), path))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "the existing entry is untouched")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0644))
	_, err = Load(garbage)
	assert.ErrorIs(t, err, models.ErrConfigInvalid)

	noRoot := filepath.Join(dir, "noroot.json")
	require.NoError(t, os.WriteFile(noRoot, []byte(`{"algorithms":["sha256"]}`), 0644))
	_, err = Load(noRoot)
	assert.ErrorIs(t, err, models.ErrConfigInvalid)

	badAlg := filepath.Join(dir, "badalg.json")
	require.NoError(t, os.WriteFile(badAlg, []byte(`{"algorithms":["rot13"],"root":{"nodeType":"directory"}}`), 0644))
	_, err = Load(badAlg)
	assert.ErrorIs(t, err, models.ErrConfigInvalid)
}

func TestCoversAndMetadata(t *testing.T) {
	m := sampleManifest()
	require.NoError(t, m.Validate())

	assert.True(t, m.Covers([]string{"sha256"}))
	assert.True(t, m.Covers([]string{"md5", "sha256"}))
	assert.False(t, m.Covers([]string{"blake3"}))

	meta := m.Metadata("/tmp/b.json")
	assert.Equal(t, "/tmp/b.json", meta.ManifestPath)
	assert.Equal(t, "/srv/data", meta.SourcePath)
	assert.Equal(t, m.CapturedAt, meta.CreatedAt)
	assert.Equal(t, m.Algorithms, meta.Algorithms)
}

func TestIndex(t *testing.T) {
	ix := NewIndex(sampleManifest().Root)
	assert.Equal(t, 3, ix.Len())

	root, ok := ix.Lookup("")
	require.True(t, ok)
	assert.Equal(t, models.NodeDirectory, root.NodeType)

	f, ok := ix.Lookup(`etc\app.conf`)
	require.True(t, ok)
	assert.Equal(t, "app.conf", f.Name)

	_, ok = ix.Lookup("etc/other")
	assert.False(t, ok)
}
