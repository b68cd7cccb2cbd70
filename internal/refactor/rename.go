package refactor

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/debug"
	"github.com/standardbeagle/phpref/internal/errors"
	"github.com/standardbeagle/phpref/internal/index"
	"github.com/standardbeagle/phpref/internal/phptree"
	"github.com/standardbeagle/phpref/internal/scope"
	"github.com/standardbeagle/phpref/internal/types"
)

var methodNameRe = regexp.MustCompile(`^[A-Za-z_\x80-\xff][A-Za-z0-9_\x80-\xff]*$`)

// Renamer plans method renames. Positions come from live re-parses at
// request time, never from index entries, so a save racing the request
// cannot shift an edit onto the wrong range.
type Renamer struct {
	files  *core.FileService
	idx    *index.Index
	parser *phptree.Parser
}

func NewRenamer(files *core.FileService, idx *index.Index, parser *phptree.Parser) *Renamer {
	return &Renamer{files: files, idx: idx, parser: parser}
}

// PlanRename computes the edit set that renames the method at the cursor.
// The cursor must sit on a method definition or a call inside a class,
// interface, or trait; renaming an interface method fans out to every
// registered implementor.
func (r *Renamer) PlanRename(path string, cursor types.Position, newName string) ([]types.EditOperation, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" || !methodNameRe.MatchString(newName) {
		return nil, errors.NewRefactorError("rename", "new method name is empty or not a valid identifier")
	}

	content, ok := r.files.GetContent(path)
	if !ok {
		return nil, errors.NewRefactorError("rename", "cannot read "+path)
	}
	tree, err := r.parser.Parse(content, path)
	if err != nil {
		return nil, err
	}

	class, oldName := findRenameTarget(tree, cursor)
	if class == nil {
		return nil, errors.NewRefactorError("rename", "no enclosing class, interface, or trait at cursor")
	}
	if oldName == newName {
		return nil, nil
	}

	target := scope.Target{
		ClassName:   class.Name,
		ClassFQN:    qualified(tree.DeclaredNamespace(), class.Name),
		IsInterface: class.Kind == phptree.KindInterface,
		Method:      oldName,
	}

	// defSites maps file → class names whose method definition is renamed
	// in that file.
	defSites := map[string][]string{path: {class.Name}}
	if target.IsInterface {
		target.Implementors = make(map[string]string)
		for _, edge := range r.idx.ImplementationsOf(class.Name) {
			ns, _ := r.idx.Namespace(edge.FilePath)
			target.Implementors[edge.ClassName] = qualified(ns, edge.ClassName)
			defSites[edge.FilePath] = append(defSites[edge.FilePath], edge.ClassName)
		}
	}

	var edits []types.EditOperation

	for file, classNames := range defSites {
		defEdits, err := r.definitionEdits(file, classNames, oldName, newName)
		if err != nil {
			debug.LogRefactor("rename: skipping definitions in %s: %v", file, err)
			continue
		}
		edits = append(edits, defEdits...)
	}

	for _, file := range r.candidateFiles(oldName, defSites) {
		content, ok := r.files.GetContent(file)
		if !ok {
			continue
		}
		// Cheap textual pre-filter before the expensive parse.
		if !bytesContain(content, "->"+oldName) && !bytesContain(content, "::"+oldName) {
			continue
		}
		fileTree, err := r.parser.Parse(content, file)
		if err != nil {
			debug.LogRefactor("rename: skipping unparseable %s: %v", file, err)
			continue
		}
		for _, site := range scope.FindCallSites(fileTree, target) {
			edits = append(edits, types.EditOperation{FilePath: file, Span: site.Span, NewText: newName})
		}
	}

	return NormalizeEdits(edits)
}

// findRenameTarget locates the enclosing class-like node and the method
// name under the cursor, from either a definition or a call site.
func findRenameTarget(tree *phptree.Tree, cursor types.Position) (*phptree.Node, string) {
	var class *phptree.Node
	var name string

	var walkIn func(n *phptree.Node, enclosing *phptree.Node)
	walkIn = func(n *phptree.Node, enclosing *phptree.Node) {
		phptree.Walk(n, func(c *phptree.Node) bool {
			switch c.Kind {
			case phptree.KindClass, phptree.KindInterface, phptree.KindTrait:
				if c != n {
					if c.Span.Contains(cursor) {
						walkIn(c, c)
					}
					return false
				}
			case phptree.KindMethod:
				if c.NameSpan.Contains(cursor) && enclosing != nil {
					class, name = enclosing, c.Name
				}
			case phptree.KindMemberCall, phptree.KindScopedCall:
				if c.NameSpan.Contains(cursor) && enclosing != nil {
					class, name = enclosing, c.Name
				}
			}
			return true
		})
	}
	walkIn(tree.Root, nil)
	return class, name
}

// definitionEdits re-parses file and renames the definitions of oldName in
// the named classes.
func (r *Renamer) definitionEdits(file string, classNames []string, oldName, newName string) ([]types.EditOperation, error) {
	content, ok := r.files.GetContent(file)
	if !ok {
		return nil, errors.NewRefactorError("rename", "cannot read "+file)
	}
	tree, err := r.parser.Parse(content, file)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(classNames))
	for _, cn := range classNames {
		wanted[cn] = true
	}

	var edits []types.EditOperation
	phptree.Walk(tree.Root, func(n *phptree.Node) bool {
		switch n.Kind {
		case phptree.KindClass, phptree.KindInterface, phptree.KindTrait:
			if !wanted[n.Name] {
				return false
			}
			for _, member := range n.Body {
				if member.Kind == phptree.KindMethod && member.Name == oldName {
					edits = append(edits, types.EditOperation{FilePath: file, Span: member.NameSpan, NewText: newName})
				}
			}
			return false
		}
		return true
	})
	return edits, nil
}

// candidateFiles unions the usage pre-filter with the files already known
// to hold definitions.
func (r *Renamer) candidateFiles(oldName string, defSites map[string][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, file := range r.idx.FilesUsing(oldName) {
		if !seen[file] {
			seen[file] = true
			out = append(out, file)
		}
	}
	for file := range defSites {
		if !seen[file] {
			seen[file] = true
			out = append(out, file)
		}
	}
	return out
}

func qualified(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "\\" + name
}

func bytesContain(content []byte, needle string) bool {
	return bytes.Contains(content, []byte(needle))
}
