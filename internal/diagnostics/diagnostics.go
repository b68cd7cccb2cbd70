// Package diagnostics flags type references that resolve to nothing: not a
// builtin, not imported, not defined in the file's own namespace. Each flag
// carries ranked FQN suggestions for the import quick-fix.
package diagnostics

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/phpref/internal/index"
	"github.com/standardbeagle/phpref/internal/phptree"
	"github.com/standardbeagle/phpref/internal/types"
)

// builtinTypes are names that never need an import.
var builtinTypes = map[string]bool{
	"string": true, "int": true, "float": true, "bool": true, "array": true,
	"object": true, "callable": true, "iterable": true, "mixed": true,
	"void": true, "never": true, "null": true, "false": true, "true": true,
	"self": true, "static": true, "parent": true,

	"Closure": true, "Generator": true, "Throwable": true, "Exception": true,
	"Error": true, "TypeError": true, "ValueError": true, "ArgumentCountError": true,
	"RuntimeException": true, "LogicException": true, "InvalidArgumentException": true,
	"ArrayAccess": true, "ArrayObject": true, "ArrayIterator": true,
	"Countable": true, "Iterator": true, "IteratorAggregate": true,
	"Traversable": true, "Stringable": true, "JsonSerializable": true,
	"DateTime": true, "DateTimeImmutable": true, "DateTimeInterface": true,
	"DateTimeZone": true, "DateInterval": true, "stdClass": true,
	"SplObjectStorage": true, "SplQueue": true, "SplStack": true,
	"WeakMap": true, "WeakReference": true, "Attribute": true,
}

const maxSuggestions = 5

// Checker produces missing-import diagnostics for single files.
type Checker struct {
	idx    *index.Index
	parser *phptree.Parser
}

func NewChecker(idx *index.Index, parser *phptree.Parser) *Checker {
	return &Checker{idx: idx, parser: parser}
}

// Check re-parses content and returns one diagnostic per unresolved type
// reference. A file that fails to parse gets an empty result, not an
// error: diagnostics clear while the user is mid-edit.
func (c *Checker) Check(path string, content []byte) []types.Diagnostic {
	tree, err := c.parser.Parse(content, path)
	if err != nil {
		return nil
	}

	imports := tree.ImportTable()
	ns := tree.DeclaredNamespace()

	var out []types.Diagnostic
	for _, ref := range phptree.CollectTypeRefs(tree.Root) {
		if c.resolves(ref.Name, ns, imports) {
			continue
		}
		out = append(out, types.Diagnostic{
			FilePath:    path,
			Span:        ref.Span,
			Message:     "cannot resolve type " + ref.Name + ": no matching import",
			Code:        types.DiagnosticMissingImport,
			Suggestions: c.suggestions(ref.Name, ns),
		})
	}
	return out
}

// resolves applies the visibility rules: builtins, fully qualified names,
// imported short names, and same-namespace definitions all pass. Names
// written relative-qualified are conservatively accepted; flagging them
// risks false positives.
func (c *Checker) resolves(name, ns string, imports map[string]phptree.UseClause) bool {
	if name == "" {
		return true
	}
	if builtinTypes[name] {
		return true
	}
	if strings.Contains(name, "\\") {
		// Fully or relative-qualified names are accepted as written.
		return true
	}
	if _, ok := imports[name]; ok {
		return true
	}
	for _, def := range c.idx.LookupDefinitions(name) {
		if ns == "" && def.FQN == name {
			return true
		}
		if ns != "" && def.FQN == ns+"\\"+name {
			return true
		}
	}
	return false
}

// suggestions ranks candidate FQNs for a quick-fix import. Exact short-name
// matches come first, ordered by namespace proximity to the current file;
// with no exact match, similarly spelled names from the index are offered.
func (c *Checker) suggestions(name, ns string) []string {
	defs := c.idx.LookupDefinitions(name)
	if len(defs) > 0 {
		fqns := make([]string, 0, len(defs))
		seen := make(map[string]bool)
		for _, def := range defs {
			if def.Kind == types.SymbolMethod || seen[def.FQN] {
				continue
			}
			seen[def.FQN] = true
			fqns = append(fqns, def.FQN)
		}
		reference := name
		if ns != "" {
			reference = ns + "\\" + name
		}
		sort.SliceStable(fqns, func(i, j int) bool {
			return similarity(fqns[i], reference) > similarity(fqns[j], reference)
		})
		return truncate(fqns)
	}

	// Typo path: closest short names known to the index.
	matches, err := edlib.FuzzySearchSetThreshold(name, c.idx.ShortNames(), maxSuggestions, 0.7, edlib.Levenshtein)
	if err != nil {
		return nil
	}
	var out []string
	for _, match := range matches {
		if match == "" {
			continue
		}
		for _, def := range c.idx.LookupDefinitions(match) {
			if def.Kind != types.SymbolMethod {
				out = append(out, def.FQN)
			}
		}
	}
	return truncate(out)
}

func similarity(a, b string) float32 {
	score, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return score
}

func truncate(fqns []string) []string {
	if len(fqns) > maxSuggestions {
		return fqns[:maxSuggestions]
	}
	return fqns
}
