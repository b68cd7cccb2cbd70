package index

import (
	"github.com/standardbeagle/phpref/internal/phptree"
	"github.com/standardbeagle/phpref/internal/types"
)

// extractFacts flattens a parsed tree into index entries. FQNs are built
// from the file's declared namespace at scan time; an externally moved file
// carries stale FQNs until rescanned, and lookups tolerate that.
func extractFacts(path string, tree *phptree.Tree) *fileFacts {
	facts := &fileFacts{
		path:      path,
		namespace: tree.DeclaredNamespace(),
		usedNames: make(map[string]struct{}),
	}

	qualify := func(name string) string {
		if facts.namespace == "" {
			return name
		}
		return facts.namespace + "\\" + name
	}

	phptree.Walk(tree.Root, func(n *phptree.Node) bool {
		switch n.Kind {
		case phptree.KindClass, phptree.KindInterface, phptree.KindTrait:
			facts.defs = append(facts.defs, types.SymbolDefinition{
				Name:     n.Name,
				FQN:      qualify(n.Name),
				Kind:     symbolKind(n.Kind),
				FilePath: path,
				Span:     n.Span,
			})
			if n.Extends != "" || len(n.Implements) > 0 {
				facts.edges = append(facts.edges, types.InheritanceEdge{
					ClassName:   n.Name,
					FilePath:    path,
					Extends:     n.Extends,
					Implements:  append([]string(nil), n.Implements...),
					IsInterface: n.Kind == phptree.KindInterface,
				})
			}
			for _, member := range n.Body {
				if member.Kind != phptree.KindMethod {
					continue
				}
				facts.methods = append(facts.methods, types.MethodDefinition{
					ClassName: n.Name,
					ClassFQN:  qualify(n.Name),
					Name:      member.Name,
					FilePath:  path,
					NameSpan:  member.NameSpan,
					Span:      member.Span,
					IsStatic:  member.Static,
				})
				facts.defs = append(facts.defs, types.SymbolDefinition{
					Name:     member.Name,
					FQN:      qualify(n.Name) + "::" + member.Name,
					Kind:     types.SymbolMethod,
					FilePath: path,
					Span:     member.Span,
					Parent:   qualify(n.Name),
				})
			}
		case phptree.KindFunction:
			facts.defs = append(facts.defs, types.SymbolDefinition{
				Name:     n.Name,
				FQN:      qualify(n.Name),
				Kind:     types.SymbolFunction,
				FilePath: path,
				Span:     n.Span,
			})
		}
		collectUsedName(facts.usedNames, n)
		return true
	})
	return facts
}

// collectUsedName feeds the short-name pre-filter. Over-collection is fine;
// the filter only has to guarantee that absent names mean absent usages.
func collectUsedName(used map[string]struct{}, n *phptree.Node) {
	switch n.Kind {
	case phptree.KindName, phptree.KindQualifiedName, phptree.KindNew:
		if n.Name != "" {
			used[phptree.ShortName(n.Name)] = struct{}{}
		}
	case phptree.KindMemberCall, phptree.KindScopedCall, phptree.KindMemberAccess:
		if n.Name != "" {
			used[n.Name] = struct{}{}
		}
	case phptree.KindUse:
		for _, clause := range n.Clauses {
			used[clause.Alias] = struct{}{}
		}
	case phptree.KindParameter, phptree.KindProperty:
		if n.TypeHint != "" {
			used[phptree.ShortName(n.TypeHint)] = struct{}{}
		}
	case phptree.KindClass, phptree.KindInterface, phptree.KindTrait:
		if n.Extends != "" {
			used[phptree.ShortName(n.Extends)] = struct{}{}
		}
		for _, impl := range n.Implements {
			used[phptree.ShortName(impl)] = struct{}{}
		}
	case phptree.KindMethod, phptree.KindFunction:
		if n.ReturnType != "" {
			used[phptree.ShortName(n.ReturnType)] = struct{}{}
		}
	}
}

func symbolKind(k phptree.Kind) types.SymbolKind {
	switch k {
	case phptree.KindInterface:
		return types.SymbolInterface
	case phptree.KindTrait:
		return types.SymbolTrait
	default:
		return types.SymbolClass
	}
}
