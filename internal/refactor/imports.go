package refactor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/types"
)

var (
	useLineRe       = regexp.MustCompile(`^\s*use\s+`)
	namespaceLineRe = regexp.MustCompile(`^\s*namespace\s+`)
	typeDeclRe      = regexp.MustCompile(`^\s*(?:final\s+|abstract\s+|readonly\s+)*(?:class|interface|trait|enum)\b`)
	openTagRe       = regexp.MustCompile(`^\s*<\?php`)
)

// ImportBlock is the contiguous leading run of use statements in a file.
// Lines are 0-based indices into the file's line slice; End is exclusive.
type ImportBlock struct {
	Start int
	End   int
	// NamespaceLine is the first namespace declaration line, or -1.
	NamespaceLine int
	// OpenTagLine is the <?php line, or -1.
	OpenTagLine int
	// Uses holds the literal use lines inside the block, blanks excluded.
	Uses []string
}

// Found reports whether the file has any use statement.
func (b ImportBlock) Found() bool { return b.End > b.Start }

// DetectImportBlock scans lines top-down. The block is the maximal run
// starting at the first use line, extending through later use lines and
// interstitial blanks, and ending when a type declaration is reached after
// at least one use was seen. Trailing blank lines are not part of the
// block.
func DetectImportBlock(lines []string) ImportBlock {
	block := ImportBlock{Start: -1, NamespaceLine: -1, OpenTagLine: -1}
	for i, line := range lines {
		if block.OpenTagLine < 0 && openTagRe.MatchString(line) {
			block.OpenTagLine = i
		}
		if block.NamespaceLine < 0 && namespaceLineRe.MatchString(line) {
			block.NamespaceLine = i
		}

		switch {
		case useLineRe.MatchString(line):
			if block.Start < 0 {
				block.Start = i
			}
			block.End = i + 1
			block.Uses = append(block.Uses, strings.TrimRight(line, " \t"))
		case strings.TrimSpace(line) == "":
			// Interstitial blanks extend nothing by themselves.
		case typeDeclRe.MatchString(line):
			if block.Start >= 0 {
				return block
			}
		}
	}
	if block.Start < 0 {
		block.Start, block.End = 0, 0
	}
	return block
}

// PlanAddImport produces the single edit that merges `use fqn;` into the
// file's import block, re-sorted alphabetically by literal statement text.
// Returns no edit when the import is already present.
func PlanAddImport(path string, content []byte, fqn string) []types.EditOperation {
	return PlanAddImports(path, content, []string{fqn})
}

// PlanAddImports merges several imports at once. The block is rewritten by
// one edit, so the result always composes into a non-overlapping edit set.
func PlanAddImports(path string, content []byte, fqns []string) []types.EditOperation {
	lines := core.SplitLines(content)
	block := DetectImportBlock(lines)

	present := make(map[string]bool, len(block.Uses))
	for _, existing := range block.Uses {
		present[strings.TrimSpace(existing)] = true
	}

	var added []string
	for _, fqn := range fqns {
		stmt := "use " + strings.TrimPrefix(fqn, "\\") + ";"
		if !present[stmt] {
			present[stmt] = true
			added = append(added, stmt)
		}
	}
	if len(added) == 0 {
		return nil
	}
	sort.Strings(added)

	if block.Found() {
		merged := append(append([]string(nil), block.Uses...), added...)
		sort.Strings(merged)
		return []types.EditOperation{{
			FilePath: path,
			Span: types.Span{
				Start: types.Position{Line: block.Start + 1, Column: 0},
				End:   types.Position{Line: block.End + 1, Column: 0},
			},
			NewText: strings.Join(merged, "\n") + "\n",
		}}
	}

	return []types.EditOperation{planFreshImportBlock(path, lines, block, strings.Join(added, "\n"))}
}

// planFreshImportBlock inserts a new use statement where none existed:
// after the namespace declaration, or after the open tag, with blank-line
// spacing normalized to exactly one blank line against non-blank neighbors.
func planFreshImportBlock(path string, lines []string, block ImportBlock, stmt string) types.EditOperation {
	after := block.NamespaceLine
	if after < 0 {
		after = block.OpenTagLine
	}
	insertAt := after + 1 // 0-based line index the new text lands on

	text := stmt + "\n"
	if after >= 0 {
		// One blank line between the anchor line and the import.
		text = "\n" + text
		if insertAt < len(lines) && strings.TrimSpace(lines[insertAt]) != "" {
			text += "\n"
		}
	} else if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		text += "\n"
	}

	pos := types.Position{Line: insertAt + 1, Column: 0}
	return types.EditOperation{
		FilePath: path,
		Span:     types.Span{Start: pos, End: pos},
		NewText:  text,
	}
}
