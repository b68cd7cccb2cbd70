// Package index maintains the in-memory symbol tables for a PHP workspace:
// definitions, methods keyed by owning class, inheritance edges, and a
// short-name usage pre-filter for multi-file refactors.
package index

import (
	"sync"

	"github.com/standardbeagle/phpref/internal/debug"
	"github.com/standardbeagle/phpref/internal/phptree"
	"github.com/standardbeagle/phpref/internal/types"
)

// fileFacts is everything extracted from one parsed file. Facts are replaced
// wholesale on rescan: remove old, add new, so repeated scans of unchanged
// content are idempotent.
type fileFacts struct {
	path      string
	namespace string
	defs      []types.SymbolDefinition
	methods   []types.MethodDefinition
	edges     []types.InheritanceEdge
	usedNames map[string]struct{}
}

// Index is the workspace symbol index. Reads take the shared lock so the
// watcher goroutine can rescan while tools query.
type Index struct {
	mu     sync.RWMutex
	parser *phptree.Parser
	facts  map[string]*fileFacts

	defsByShort   map[string][]types.SymbolDefinition
	methodsByName map[string][]types.MethodDefinition
}

func NewIndex(parser *phptree.Parser) *Index {
	return &Index{
		parser:        parser,
		facts:         make(map[string]*fileFacts),
		defsByShort:   make(map[string][]types.SymbolDefinition),
		methodsByName: make(map[string][]types.MethodDefinition),
	}
}

// ScanFile parses content and replaces the file's index entries. On parse
// failure the previous entries are kept and the error is returned; a file
// mid-edit keeps its last good symbols.
func (ix *Index) ScanFile(path string, content []byte) error {
	tree, err := ix.parser.Parse(content, path)
	if err != nil {
		debug.LogIndexing("keeping stale facts for %s: %v", path, err)
		return err
	}

	facts := extractFacts(path, tree)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(path)
	ix.addLocked(facts)
	return nil
}

// Clear empties the index. Used by full rebuilds before replaying the scan.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.facts = make(map[string]*fileFacts)
	ix.defsByShort = make(map[string][]types.SymbolDefinition)
	ix.methodsByName = make(map[string][]types.MethodDefinition)
}

// RemoveFile drops all entries for a deleted or moved file.
func (ix *Index) RemoveFile(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(path)
}

func (ix *Index) removeLocked(path string) {
	old, ok := ix.facts[path]
	if !ok {
		return
	}
	delete(ix.facts, path)
	for _, def := range old.defs {
		short := phptree.ShortName(def.Name)
		ix.defsByShort[short] = withoutFile(ix.defsByShort[short], path)
		if len(ix.defsByShort[short]) == 0 {
			delete(ix.defsByShort, short)
		}
	}
	for _, m := range old.methods {
		ix.methodsByName[m.Name] = withoutMethodFile(ix.methodsByName[m.Name], path)
		if len(ix.methodsByName[m.Name]) == 0 {
			delete(ix.methodsByName, m.Name)
		}
	}
}

func (ix *Index) addLocked(facts *fileFacts) {
	ix.facts[facts.path] = facts
	for _, def := range facts.defs {
		short := phptree.ShortName(def.Name)
		ix.defsByShort[short] = append(ix.defsByShort[short], def)
	}
	for _, m := range facts.methods {
		ix.methodsByName[m.Name] = append(ix.methodsByName[m.Name], m)
	}
}

func withoutFile(defs []types.SymbolDefinition, path string) []types.SymbolDefinition {
	out := defs[:0]
	for _, d := range defs {
		if d.FilePath != path {
			out = append(out, d)
		}
	}
	return out
}

func withoutMethodFile(methods []types.MethodDefinition, path string) []types.MethodDefinition {
	out := methods[:0]
	for _, m := range methods {
		if m.FilePath != path {
			out = append(out, m)
		}
	}
	return out
}

// LookupDefinitions returns definitions matching name. A leading-backslash
// or embedded-backslash name matches on FQN; a bare name matches on short
// name across all namespaces.
func (ix *Index) LookupDefinitions(name string) []types.SymbolDefinition {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if isQualified(name) {
		want := canonical(name)
		var out []types.SymbolDefinition
		for _, def := range ix.defsByShort[phptree.ShortName(name)] {
			if def.FQN == want {
				out = append(out, def)
			}
		}
		return out
	}
	return append([]types.SymbolDefinition(nil), ix.defsByShort[name]...)
}

// LookupMethod returns method definitions for className::methodName.
// className may be a short name or an FQN; an empty className returns every
// method with that name regardless of owner.
func (ix *Index) LookupMethod(className, methodName string) []types.MethodDefinition {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	candidates := ix.methodsByName[methodName]
	if className == "" {
		return append([]types.MethodDefinition(nil), candidates...)
	}

	var out []types.MethodDefinition
	qualified := isQualified(className)
	want := canonical(className)
	for _, m := range candidates {
		if qualified {
			if m.ClassFQN == want {
				out = append(out, m)
			}
		} else if m.ClassName == className {
			out = append(out, m)
		}
	}
	return out
}

// ImplementationsOf returns the classes that implement the named interface,
// following interface extension transitively. The scan is linear over all
// inheritance edges; workspaces are small enough that no reverse map is
// kept.
func (ix *Index) ImplementationsOf(interfaceName string) []types.InheritanceEdge {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	// Close over interfaces that extend the target first.
	wanted := map[string]bool{phptree.ShortName(interfaceName): true}
	for grew := true; grew; {
		grew = false
		for _, facts := range ix.facts {
			for _, edge := range facts.edges {
				if !edge.IsInterface || wanted[edge.ClassName] {
					continue
				}
				for _, impl := range edge.Implements {
					if wanted[phptree.ShortName(impl)] {
						wanted[edge.ClassName] = true
						grew = true
					}
				}
			}
		}
	}

	var out []types.InheritanceEdge
	for _, facts := range ix.facts {
		for _, edge := range facts.edges {
			if edge.IsInterface {
				continue
			}
			for _, impl := range edge.Implements {
				if wanted[phptree.ShortName(impl)] {
					out = append(out, edge)
					break
				}
			}
		}
	}
	return out
}

// FilesUsing returns files whose source mentions shortName anywhere. It is
// a pre-filter only: a listed file may not contain a true usage, but a file
// not listed definitely does not.
func (ix *Index) FilesUsing(shortName string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []string
	for path, facts := range ix.facts {
		if _, ok := facts.usedNames[shortName]; ok {
			out = append(out, path)
		}
	}
	return out
}

// ShortNames returns every distinct short definition name in the index.
func (ix *Index) ShortNames() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.defsByShort))
	for name := range ix.defsByShort {
		out = append(out, name)
	}
	return out
}

// DefinitionsIn returns the definitions declared in one file.
func (ix *Index) DefinitionsIn(path string) []types.SymbolDefinition {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if facts, ok := ix.facts[path]; ok {
		return append([]types.SymbolDefinition(nil), facts.defs...)
	}
	return nil
}

// Namespace returns the namespace declared by a file.
func (ix *Index) Namespace(path string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if facts, ok := ix.facts[path]; ok {
		return facts.namespace, true
	}
	return "", false
}

// Stats reports indexed file and symbol counts.
func (ix *Index) Stats() (files, symbols int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	files = len(ix.facts)
	for _, facts := range ix.facts {
		symbols += len(facts.defs)
	}
	return files, symbols
}

func isQualified(name string) bool {
	for i := 0; i < len(name); i++ {
		if name[i] == '\\' {
			return true
		}
	}
	return false
}

func canonical(name string) string {
	for len(name) > 0 && name[0] == '\\' {
		name = name[1:]
	}
	return name
}
