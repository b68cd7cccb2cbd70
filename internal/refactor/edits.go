// Package refactor computes and applies the text edit sets for method
// rename, file move, and import insertion. Planners return ordered,
// deduplicated, non-overlapping edit batches; application is all-or-nothing
// per invocation from the caller's point of view.
package refactor

import (
	"fmt"
	"sort"

	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/errors"
	"github.com/standardbeagle/phpref/internal/types"
)

// NormalizeEdits sorts edits by file and position, removes exact
// duplicates, and rejects overlapping spans within a file. Every planner
// passes its output through here before returning.
func NormalizeEdits(edits []types.EditOperation) ([]types.EditOperation, error) {
	if len(edits) == 0 {
		return nil, nil
	}

	sorted := append([]types.EditOperation(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FilePath != sorted[j].FilePath {
			return sorted[i].FilePath < sorted[j].FilePath
		}
		return sorted[i].Span.Start.Before(sorted[j].Span.Start)
	})

	out := sorted[:0]
	for _, e := range sorted {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if prev == e {
				continue
			}
			if prev.FilePath == e.FilePath && prev.Span.Overlaps(e.Span) {
				return nil, errors.NewRefactorError("edit-set",
					fmt.Sprintf("overlapping edits in %s at %s and %s", e.FilePath, prev.Span, e.Span))
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// GroupByFile splits a normalized edit set per target file, preserving
// order.
func GroupByFile(edits []types.EditOperation) map[string][]types.EditOperation {
	grouped := make(map[string][]types.EditOperation)
	for _, e := range edits {
		grouped[e.FilePath] = append(grouped[e.FilePath], e)
	}
	return grouped
}

// ApplyToContent applies position-sorted edits to one file's content.
// Edits are applied last-to-first so earlier spans keep their offsets.
func ApplyToContent(content []byte, edits []types.EditOperation) ([]byte, error) {
	starts := lineStarts(content)
	result := content
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		startOff, ok1 := byteOffset(starts, len(content), e.Span.Start)
		endOff, ok2 := byteOffset(starts, len(content), e.Span.End)
		if !ok1 || !ok2 || startOff > endOff {
			return nil, errors.NewRefactorError("apply",
				fmt.Sprintf("edit span %s out of bounds in %s", e.Span, e.FilePath))
		}
		next := make([]byte, 0, len(result)-(endOff-startOff)+len(e.NewText))
		next = append(next, result[:startOff]...)
		next = append(next, e.NewText...)
		next = append(next, result[endOff:]...)
		result = next
	}
	return result, nil
}

// Apply writes a normalized edit set to disk through the file service and
// returns the touched paths.
func Apply(files *core.FileService, edits []types.EditOperation) ([]string, error) {
	grouped := GroupByFile(edits)

	paths := make([]string, 0, len(grouped))
	for path := range grouped {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		content, ok := files.GetContent(path)
		if !ok {
			return nil, errors.NewRefactorError("apply", "cannot read "+path)
		}
		updated, err := ApplyToContent(content, grouped[path])
		if err != nil {
			return nil, err
		}
		if err := files.WriteFile(path, updated); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// lineStarts returns the byte offset of each line start, 0-based lines.
func lineStarts(content []byte) []int {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// byteOffset maps a 1-based line / 0-based column position to a byte
// offset. A position one line past the end maps to len(content), which is
// how an insertion at EOF is expressed.
func byteOffset(starts []int, size int, pos types.Position) (int, bool) {
	line := pos.Line - 1
	if line < 0 || line > len(starts) {
		return 0, false
	}
	if line == len(starts) {
		if pos.Column == 0 {
			return size, true
		}
		return 0, false
	}
	off := starts[line] + pos.Column
	if off > size {
		return 0, false
	}
	return off, true
}
