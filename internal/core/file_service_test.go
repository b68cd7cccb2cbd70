package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetContent(t *testing.T) {
	s := NewFileService()

	id := s.SetContent("/tmp/a.php", []byte("<?php"))
	id2 := s.SetContent("/tmp/a.php", []byte("<?php // changed"))
	assert.Equal(t, id, id2, "same path keeps its FileID")

	content, ok := s.GetFileContent(id)
	require.True(t, ok)
	assert.Equal(t, "<?php // changed", string(content))

	path, ok := s.PathFor(id)
	require.True(t, ok)
	assert.Equal(t, "/tmp/a.php", path)
}

func TestFastHashTracksContent(t *testing.T) {
	s := NewFileService()

	s.SetContent("/tmp/a.php", []byte("one"))
	h1, ok := s.FastHash("/tmp/a.php")
	require.True(t, ok)

	s.SetContent("/tmp/a.php", []byte("two"))
	h2, _ := s.FastHash("/tmp/a.php")
	assert.NotEqual(t, h1, h2)

	s.SetContent("/tmp/a.php", []byte("one"))
	h3, _ := s.FastHash("/tmp/a.php")
	assert.Equal(t, h1, h3)

	_, ok = s.FastHash("/tmp/never-loaded.php")
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	s := NewFileService()
	id := s.SetContent("/tmp/a.php", []byte("x"))

	s.Invalidate("/tmp/a.php")

	_, ok := s.GetFileContent(id)
	assert.False(t, ok)
	_, ok = s.FastHash("/tmp/a.php")
	assert.False(t, ok)
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.php")

	s := NewFileService()
	require.NoError(t, s.WriteFile(path, []byte("<?php echo 1;")))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<?php echo 1;", string(onDisk))

	stored, ok := s.GetContent(path)
	require.True(t, ok)
	assert.Equal(t, onDisk, stored)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestEnumerate(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(rel, content string) {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	mustWrite("src/App.php", "<?php")
	mustWrite("src/deep/Thing.php", "<?php")
	mustWrite("src/readme.md", "docs")
	mustWrite("vendor/lib/Dep.php", "<?php")

	s := NewFileService()
	paths, err := s.Enumerate(dir, []string{"**/*.php"}, []string{"**/vendor/**", "vendor/**"}, false)
	require.NoError(t, err)

	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.ElementsMatch(t, []string{"src/App.php", "src/deep/Thing.php"}, rels)
}

func TestEnumerateFollowSymlinks(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "Linked.php"), []byte("<?php"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "App.php"), []byte("<?php"), 0644))
	if err := os.Symlink(outside, filepath.Join(dir, "src", "ext")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	s := NewFileService()

	paths, err := s.Enumerate(dir, []string{"**/*.php"}, nil, false)
	require.NoError(t, err)
	require.Len(t, paths, 1, "symlinked directories are not descended by default")

	paths, err = s.Enumerate(dir, []string{"**/*.php"}, nil, true)
	require.NoError(t, err)
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.ElementsMatch(t, []string{"src/App.php", "src/ext/Linked.php"}, rels)
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single no newline", "abc", []string{"abc"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb", []string{"a", "b"}},
		{"blank middle", "a\n\nb", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines([]byte(tt.input)))
		})
	}
}
