package refactor

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/errors"
	"github.com/standardbeagle/phpref/internal/types"
)

// RenderPreview formats a normalized edit set as a unified diff without
// touching the disk.
func RenderPreview(files *core.FileService, root string, edits []types.EditOperation) (string, error) {
	grouped := GroupByFile(edits)

	paths := make([]string, 0, len(grouped))
	for path := range grouped {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var out strings.Builder
	for _, path := range paths {
		content, ok := files.GetContent(path)
		if !ok {
			return "", errors.NewRefactorError("preview", "cannot read "+path)
		}
		updated, err := ApplyToContent(content, grouped[path])
		if err != nil {
			return "", err
		}
		if bytes.Equal(content, updated) {
			continue
		}

		rel := path
		if r, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(r, "..") {
			rel = filepath.ToSlash(r)
		}
		rendered, err := fileDiff(rel, content, updated)
		if err != nil {
			return "", err
		}
		out.Write(rendered)
	}
	return out.String(), nil
}

// fileDiff emits one hunk covering the changed region, bounded by the
// common line prefix and suffix of the two versions.
func fileDiff(rel string, oldContent, newContent []byte) ([]byte, error) {
	oldLines := splitKeepAll(oldContent)
	newLines := splitKeepAll(newContent)

	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	var body bytes.Buffer
	for _, line := range oldLines[prefix : len(oldLines)-suffix] {
		body.WriteString("-" + line + "\n")
	}
	for _, line := range newLines[prefix : len(newLines)-suffix] {
		body.WriteString("+" + line + "\n")
	}

	hunk := &diff.Hunk{
		OrigStartLine: int32(prefix + 1),
		OrigLines:     int32(len(oldLines) - prefix - suffix),
		NewStartLine:  int32(prefix + 1),
		NewLines:      int32(len(newLines) - prefix - suffix),
		Body:          body.Bytes(),
	}
	fd := &diff.FileDiff{
		OrigName: "a/" + rel,
		NewName:  "b/" + rel,
		Hunks:    []*diff.Hunk{hunk},
	}
	return diff.PrintFileDiff(fd)
}

func splitKeepAll(content []byte) []string {
	lines := core.SplitLines(content)
	if lines == nil {
		return []string{}
	}
	return lines
}
