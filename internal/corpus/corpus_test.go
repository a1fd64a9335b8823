package corpus

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoaudit/internal/catalog"
	"cryptoaudit/internal/policy"
)

func emptyCatalogAndPolicy(t *testing.T) (*catalog.Catalog, *policy.CompiledPolicy) {
	t.Helper()
	cat := &catalog.Catalog{}
	cat.Normalize()

	pol := &policy.Policy{PolicyId: "test"}
	pol.Normalize()
	cp, err := policy.Compile(pol)
	require.NoError(t, err)

	return cat, cp
}

func TestEnumerate_DirWalksLexicographicallyAndFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "B.class"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.class"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("irrelevant"), 0o644))

	entries, err := Enumerate(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, filepath.Join(dir, "A.class"), entries[0].Source)
	assert.Equal(t, filepath.Join(dir, "B.class"), entries[1].Source)
	assert.Equal(t, []byte("a"), entries[0].Data)
}

func TestEnumerate_NestedDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "com", "example")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "App.class"), []byte("x"), 0o644))

	entries, err := Enumerate(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(sub, "App.class"), entries[0].Source)
}

func TestEnumerate_MissingPathReturnsErrCorpusIo(t *testing.T) {
	_, err := Enumerate("/nonexistent/path/at/all")
	require.Error(t, err)

	var ioErr *ErrCorpusIo
	require.ErrorAs(t, err, &ioErr)
}

func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestEnumerate_ArchiveFiltersAndLabelsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.jar")
	writeZip(t, path, map[string][]byte{
		"com/example/App.class":  []byte("app"),
		"META-INF/MANIFEST.MF":   []byte("manifest"),
		"com/example/Util.class": []byte("util"),
	})

	entries, err := Enumerate(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Contains(t, e.Source, path+"!")
	}
}

func TestRun_MalformedEntryIsSkippedNotAborted(t *testing.T) {
	cat, pol := emptyCatalogAndPolicy(t)
	entries := []Entry{
		{Source: "bad.class", Data: []byte("not a class file")},
	}

	results, skipped := Run(context.Background(), entries, cat, pol, 1)
	assert.Empty(t, results)
	require.Len(t, skipped, 1)
	assert.Equal(t, "bad.class", skipped[0].Source)
}

func TestRun_EmptyEntriesProducesEmptyResults(t *testing.T) {
	cat, pol := emptyCatalogAndPolicy(t)

	results, skipped := Run(context.Background(), nil, cat, pol, 1)
	assert.Empty(t, results)
	assert.Empty(t, skipped)
}

func TestRun_CancelledContextStopsFeedingNewJobs(t *testing.T) {
	cat, pol := emptyCatalogAndPolicy(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var entries []Entry
	for i := 0; i < 50; i++ {
		entries = append(entries, Entry{Source: "bad.class", Data: []byte("x")})
	}

	results, skipped := Run(ctx, entries, cat, pol, 2)
	assert.Empty(t, results)
	assert.Less(t, len(skipped), len(entries))
}

func TestSortedClassNames_ReturnsLexicographicOrder(t *testing.T) {
	results := map[string][]policy.Analysis{
		"com.example.Zebra": nil,
		"com.example.Alpha": nil,
		"com.example.Mango": nil,
	}

	names := SortedClassNames(results)
	assert.Equal(t, []string{"com.example.Alpha", "com.example.Mango", "com.example.Zebra"}, names)
}
