package refactor

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/standardbeagle/phpref/internal/composer"
	"github.com/standardbeagle/phpref/internal/config"
	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/debug"
	"github.com/standardbeagle/phpref/internal/errors"
	"github.com/standardbeagle/phpref/internal/phptree"
	"github.com/standardbeagle/phpref/internal/types"
)

var namespaceDeclRe = regexp.MustCompile(`^(\s*namespace\s+)([A-Za-z0-9_\\]+)(\s*;)`)

// Mover plans the edit set for a file move or rename. The physical move is
// expected to have happened already: the moved file's current content is
// read from the new path.
type Mover struct {
	files    *core.FileService
	resolver *composer.Resolver
	parser   *phptree.Parser
	cfg      *config.Config
}

func NewMover(files *core.FileService, resolver *composer.Resolver, parser *phptree.Parser, cfg *config.Config) *Mover {
	return &Mover{files: files, resolver: resolver, parser: parser, cfg: cfg}
}

// MovePlan is the outcome of planning one move.
type MovePlan struct {
	Edits       []types.EditOperation
	OldFQN      string
	NewFQN      string
	TypeRenamed bool
}

// PlanMove computes every edit a move from oldPath to newPath requires:
// the moved file's namespace declaration, a filename-driven type rename,
// and import or reference rewrites across the workspace. Moving a
// non-source file plans nothing.
func (m *Mover) PlanMove(oldPath, newPath string) (*MovePlan, error) {
	if !strings.EqualFold(filepath.Ext(newPath), ".php") {
		return &MovePlan{}, nil
	}

	content, ok := m.files.GetContent(newPath)
	if !ok {
		return nil, errors.NewRefactorError("move", "cannot read moved file "+newPath)
	}

	oldNS, oldResolved := m.resolver.Resolve(oldPath)
	newNS, newResolved := m.resolver.Resolve(newPath)
	nsEditable := oldResolved && newResolved

	tree, parseErr := m.parser.Parse(content, newPath)
	if parseErr != nil {
		// The moved file itself failed to parse: fall back to a narrow
		// textual namespace replacement and plan nothing else.
		debug.LogRefactor("move: %s unparseable, regex namespace fallback: %v", newPath, parseErr)
		if !nsEditable || oldNS == newNS {
			return &MovePlan{}, nil
		}
		edits, err := NormalizeEdits(regexNamespaceEdits(newPath, content, newNS))
		return &MovePlan{Edits: edits}, err
	}

	declaredNS := tree.DeclaredNamespace()
	primary := primaryType(tree)
	if primary == nil {
		return &MovePlan{}, nil
	}

	plan := &MovePlan{}
	var edits []types.EditOperation

	// Namespace declaration in the moved file.
	if nsEditable && declaredNS != newNS {
		if tree.Namespace != nil {
			edits = append(edits, types.EditOperation{FilePath: newPath, Span: tree.Namespace.NameSpan, NewText: newNS})
		} else {
			edits = append(edits, insertNamespace(newPath, content, newNS))
		}
	}

	// Filename-driven type rename.
	oldName := primary.Name
	newName := oldName
	oldStem := stem(oldPath)
	newStem := stem(newPath)
	if oldName == oldStem && newStem != oldStem && methodNameRe.MatchString(newStem) {
		newName = newStem
		plan.TypeRenamed = true
		edits = append(edits, types.EditOperation{FilePath: newPath, Span: primary.NameSpan, NewText: newName})
		edits = append(edits, localTypeRefEdits(newPath, tree, oldName, newName)...)
	}

	// FQNs as referencing files knew them and as they will be. The old
	// side comes from the declared namespace, which is what references
	// were written against.
	plan.OldFQN = joinNS(declaredNS, oldName)
	effectiveNS := declaredNS
	if nsEditable {
		effectiveNS = newNS
	}
	plan.NewFQN = joinNS(effectiveNS, newName)

	if plan.OldFQN != plan.NewFQN {
		refEdits, err := m.propagate(newPath, declaredNS, plan, oldName, newName)
		if err != nil {
			return nil, err
		}
		edits = append(edits, refEdits...)
	}

	normalized, err := NormalizeEdits(edits)
	if err != nil {
		return nil, err
	}
	plan.Edits = normalized
	return plan, nil
}

// propagate rewrites references to the moved type across the workspace.
// Vendored directories are excluded by the configured exclude globs; files
// that fail to parse are dropped from the candidate set with a log line.
func (m *Mover) propagate(movedPath, oldNS string, plan *MovePlan, oldName, newName string) ([]types.EditOperation, error) {
	paths, err := m.files.Enumerate(m.cfg.Project.Root, m.cfg.Include, m.cfg.Exclude, m.cfg.Index.FollowSymlinks)
	if err != nil {
		return nil, errors.NewIndexingError("enumerate", err)
	}

	var edits []types.EditOperation
	for _, path := range paths {
		if sameFile(path, movedPath) {
			continue
		}
		content, ok := m.files.GetContent(path)
		if !ok {
			continue
		}
		if !bytesContain(content, oldName) {
			continue
		}
		tree, err := m.parser.Parse(content, path)
		if err != nil {
			debug.LogRefactor("move: excluding unparseable %s: %v", path, err)
			continue
		}
		edits = append(edits, m.fileEdits(path, content, tree, oldNS, plan, oldName, newName)...)
	}
	return edits, nil
}

func (m *Mover) fileEdits(path string, content []byte, tree *phptree.Tree, oldNS string, plan *MovePlan, oldName, newName string) []types.EditOperation {
	var edits []types.EditOperation
	lines := core.SplitLines(content)
	fileNS := tree.DeclaredNamespace()

	importedOld := false
	rewritten := make(map[int]bool)
	for _, use := range tree.Uses {
		matched := false
		for _, clause := range use.Clauses {
			if clause.FQN == plan.OldFQN {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		importedOld = true
		edits = append(edits, rewriteUseStatement(path, lines, use, plan, fileNS))
		for line := use.Span.Start.Line; line <= use.Span.End.Line; line++ {
			rewritten[line-1] = true
		}
	}

	for lineIdx, line := range lines {
		if rewritten[lineIdx] {
			continue
		}
		edits = append(edits, bareFQNEdits(path, lineIdx, line, plan.OldFQN, plan.NewFQN)...)
	}

	// A file in the moved type's old namespace referenced it implicitly;
	// that visibility is gone, so an import is inserted.
	if fileNS == oldNS && namespaceOf(plan.NewFQN) != fileNS && !importedOld && usesShortName(tree, oldName) {
		edits = append(edits, PlanAddImport(path, content, plan.NewFQN)...)
	}

	if plan.TypeRenamed && (importedOld || fileNS == oldNS) {
		edits = append(edits, localTypeRefEdits(path, tree, oldName, newName)...)
	}
	return edits
}

// rewriteUseStatement regenerates one use declaration so the moved type's
// clause carries its new FQN. Grouped declarations expand into single-name
// statements, since the moved member no longer shares the group's prefix.
// Custom aliases survive; a rewritten import that would name the file's own
// namespace is dropped.
func rewriteUseStatement(path string, lines []string, use *phptree.Node, plan *MovePlan, fileNS string) types.EditOperation {
	var stmts []string
	for _, clause := range use.Clauses {
		fqn := clause.FQN
		aliased := clause.Alias != phptree.ShortName(clause.FQN)
		if fqn == plan.OldFQN {
			if namespaceOf(plan.NewFQN) == fileNS && !aliased {
				continue
			}
			fqn = plan.NewFQN
		}
		stmt := "use " + fqn
		if aliased {
			stmt += " as " + clause.Alias
		}
		stmts = append(stmts, stmt+";")
	}

	if len(stmts) == 0 {
		return deleteLines(path, use.Span.Start.Line, use.Span.End.Line, lines)
	}
	return types.EditOperation{
		FilePath: path,
		Span:     types.Span{Start: use.Span.Start, End: use.Span.End},
		NewText:  strings.Join(stmts, "\n"),
	}
}

// localTypeRefEdits rewrites unqualified references to the renamed type:
// instantiations, type hints, return types, static lookups, and
// inheritance clauses. Qualified references are handled by the textual FQN
// rewrite instead.
func localTypeRefEdits(path string, tree *phptree.Tree, oldName, newName string) []types.EditOperation {
	var edits []types.EditOperation
	for _, ref := range phptree.CollectTypeRefs(tree.Root) {
		if ref.Name == oldName && !strings.Contains(ref.Name, "\\") {
			edits = append(edits, types.EditOperation{FilePath: path, Span: ref.Span, NewText: newName})
		}
	}
	return edits
}

// bareFQNEdits rewrites fully qualified textual references on one line.
// Token boundaries keep Foo\BarBaz from matching a search for Foo\Bar.
func bareFQNEdits(path string, lineIdx int, line, oldFQN, newFQN string) []types.EditOperation {
	var edits []types.EditOperation
	for from := 0; ; {
		i := strings.Index(line[from:], oldFQN)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(oldFQN)
		from = end

		if start > 0 && isNameByte(line[start-1]) {
			continue
		}
		if end < len(line) && (isNameByte(line[end]) || line[end] == '\\') {
			continue
		}
		edits = append(edits, types.EditOperation{
			FilePath: path,
			Span: types.Span{
				Start: types.Position{Line: lineIdx + 1, Column: start},
				End:   types.Position{Line: lineIdx + 1, Column: end},
			},
			NewText: newFQN,
		})
	}
	return edits
}

// usesShortName reports whether the file references name unqualified in a
// type position, with no import resolving it elsewhere.
func usesShortName(tree *phptree.Tree, name string) bool {
	if _, imported := tree.ImportTable()[name]; imported {
		return false
	}
	for _, ref := range phptree.CollectTypeRefs(tree.Root) {
		if ref.Name == name {
			return true
		}
	}
	return false
}

// insertNamespace adds a namespace declaration to a file that never had
// one, creating the open tag too when the file lacks it.
func insertNamespace(path string, content []byte, ns string) types.EditOperation {
	lines := core.SplitLines(content)
	block := DetectImportBlock(lines)

	if block.OpenTagLine >= 0 {
		insertAt := block.OpenTagLine + 2 // 1-based line after the tag
		text := "\nnamespace " + ns + ";\n"
		if block.OpenTagLine+1 < len(lines) && strings.TrimSpace(lines[block.OpenTagLine+1]) != "" {
			text += "\n"
		}
		pos := types.Position{Line: insertAt, Column: 0}
		return types.EditOperation{FilePath: path, Span: types.Span{Start: pos, End: pos}, NewText: text}
	}

	pos := types.Position{Line: 1, Column: 0}
	return types.EditOperation{
		FilePath: path,
		Span:     types.Span{Start: pos, End: pos},
		NewText:  "<?php\n\nnamespace " + ns + ";\n\n",
	}
}

// regexNamespaceEdits is the fallback for an unparseable moved file: only
// its namespace declaration line is rewritten, nothing else is touched.
func regexNamespaceEdits(path string, content []byte, newNS string) []types.EditOperation {
	for lineIdx, line := range core.SplitLines(content) {
		match := namespaceDeclRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		col := len(match[1])
		return []types.EditOperation{{
			FilePath: path,
			Span: types.Span{
				Start: types.Position{Line: lineIdx + 1, Column: col},
				End:   types.Position{Line: lineIdx + 1, Column: col + len(match[2])},
			},
			NewText: newNS,
		}}
	}
	return nil
}

// deleteLines removes the 1-based line range [firstLine, lastLine] including
// the trailing newline.
func deleteLines(path string, firstLine, lastLine int, lines []string) types.EditOperation {
	start := types.Position{Line: firstLine, Column: 0}
	end := types.Position{Line: lastLine + 1, Column: 0}
	if lastLine >= len(lines) {
		// Last line: there is no following line start to extend to.
		end = types.Position{Line: lastLine, Column: len(lines[lastLine-1])}
	}
	return types.EditOperation{FilePath: path, Span: types.Span{Start: start, End: end}}
}

// primaryType returns the file's first class, interface, or trait.
func primaryType(tree *phptree.Tree) *phptree.Node {
	var primary *phptree.Node
	phptree.Walk(tree.Root, func(n *phptree.Node) bool {
		if primary != nil {
			return false
		}
		switch n.Kind {
		case phptree.KindClass, phptree.KindInterface, phptree.KindTrait:
			primary = n
			return false
		}
		return true
	})
	return primary
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func joinNS(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "\\" + name
}

func namespaceOf(fqn string) string {
	if i := strings.LastIndex(fqn, "\\"); i >= 0 {
		return fqn[:i]
	}
	return ""
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return aa == bb
}

func isNameByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
