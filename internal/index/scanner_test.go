package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/phpref/internal/config"
	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/phptree"
)

func scannerFixture(t *testing.T) (*Scanner, *Index, string) {
	t.Helper()
	dir := t.TempDir()

	write := func(rel, content string) {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	write("src/A.php", "<?php\nnamespace App;\nclass A {}\n")
	write("src/B.php", "<?php\nnamespace App;\nclass B {}\n")
	write("src/broken.php", "<?php class {")
	write("vendor/dep/C.php", "<?php\nclass C {}\n")

	cfg := config.Default()
	cfg.Project.Root = dir

	files := core.NewFileService()
	ix := NewIndex(phptree.NewParser())
	return NewScanner(files, ix, cfg), ix, dir
}

func TestScanIndexesWorkspace(t *testing.T) {
	scanner, ix, _ := scannerFixture(t)

	result, err := scanner.Scan(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesScanned)
	assert.Len(t, result.ParseFailures, 1)

	files, symbols := ix.Stats()
	assert.Equal(t, 2, files)
	assert.Equal(t, 2, symbols)
	assert.Empty(t, ix.LookupDefinitions("C"), "vendor is excluded")
}

func TestScanReportsProgress(t *testing.T) {
	scanner, _, _ := scannerFixture(t)

	var calls int
	var lastDone, lastTotal int
	_, err := scanner.Scan(context.Background(), func(done, total int, _ string) {
		calls++
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)
	require.Positive(t, calls)
	assert.Equal(t, lastTotal, lastDone, "final report covers the whole pass")
}

func TestScanSkipsUnchangedContent(t *testing.T) {
	scanner, ix, _ := scannerFixture(t)

	_, err := scanner.Scan(context.Background(), nil)
	require.NoError(t, err)
	filesBefore, symbolsBefore := ix.Stats()

	result, err := scanner.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesScanned)

	files, symbols := ix.Stats()
	assert.Equal(t, filesBefore, files)
	assert.Equal(t, symbolsBefore, symbols)
}

func TestScanHonorsCancellation(t *testing.T) {
	scanner, _, _ := scannerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scanner.Scan(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRebuildDropsDeletedFiles(t *testing.T) {
	scanner, ix, dir := scannerFixture(t)

	_, err := scanner.Scan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, ix.LookupDefinitions("B"), 1)

	// A plain rescan would never learn about the deletion.
	require.NoError(t, os.Remove(filepath.Join(dir, "src", "B.php")))

	result, err := scanner.Rebuild(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesScanned)
	assert.Empty(t, ix.LookupDefinitions("B"))
	assert.Len(t, ix.LookupDefinitions("A"), 1)
}

func TestScanPathAndRemove(t *testing.T) {
	scanner, ix, dir := scannerFixture(t)

	path := filepath.Join(dir, "src", "A.php")
	require.NoError(t, scanner.ScanPath(path))
	assert.Len(t, ix.LookupDefinitions("A"), 1)

	scanner.Remove(path)
	assert.Empty(t, ix.LookupDefinitions("A"))
}
