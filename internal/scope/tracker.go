// Package scope implements the local type inference pass that decides which
// method call sites are provably bound to a target class. The pass is
// heuristic and deliberately conservative: an ambiguous receiver is skipped,
// never guessed, so missed renames beat wrong renames.
package scope

import (
	"strings"

	"github.com/standardbeagle/phpref/internal/phptree"
	"github.com/standardbeagle/phpref/internal/types"
)

// Target identifies the class (or interface) and method a rename is bound
// to. For interface targets, Implementors holds the registered implementing
// classes so calls through interface-typed receivers fan out correctly.
type Target struct {
	ClassName   string
	ClassFQN    string
	IsInterface bool
	Method      string

	// Implementors maps short class name to FQN for interface targets.
	Implementors map[string]string
}

// CallSite is one accepted call with the exact range of the method name.
type CallSite struct {
	Span   types.Span
	Static bool
}

// FindCallSites runs a forward pass over every function and method body in
// the file and returns the call sites bound to the target.
func FindCallSites(tree *phptree.Tree, target Target) []CallSite {
	t := &tracker{
		target:  target,
		imports: tree.ImportTable(),
	}

	var sites []CallSite
	phptree.Walk(tree.Root, func(n *phptree.Node) bool {
		switch n.Kind {
		case phptree.KindClass, phptree.KindInterface, phptree.KindTrait:
			sites = append(sites, t.walkClass(n)...)
			return false
		case phptree.KindFunction:
			sites = append(sites, t.walkBody(n, enclosing{}, nil)...)
			return false
		}
		return true
	})
	return sites
}

type tracker struct {
	target  Target
	imports map[string]phptree.UseClause
}

// enclosing carries the lexical class context for $this and self/static.
type enclosing struct {
	name      string
	isMatch   bool // class is the target, or implements an interface target
	isLiteral bool // class name equals the target class name exactly
}

func (t *tracker) walkClass(class *phptree.Node) []CallSite {
	enc := enclosing{name: class.Name}
	enc.isLiteral = class.Name == t.target.ClassName
	enc.isMatch = enc.isLiteral
	if t.target.IsInterface && !enc.isMatch {
		if _, ok := t.target.Implementors[class.Name]; ok {
			enc.isMatch = true
		}
		// Declared implements clauses count even before the index has
		// caught up with this file.
		for _, impl := range class.Implements {
			if phptree.ShortName(impl) == t.target.ClassName {
				enc.isMatch = true
			}
		}
	}

	props := propertyTypes(class)

	var sites []CallSite
	for _, member := range class.Body {
		if member.Kind == phptree.KindMethod {
			sites = append(sites, t.walkBody(member, enc, props)...)
		}
	}
	return sites
}

// propertyTypes builds the declared property hint table for rule 4:
// $x = $this->prop propagates prop's declared type.
func propertyTypes(class *phptree.Node) map[string]string {
	props := make(map[string]string)
	for _, member := range class.Body {
		switch member.Kind {
		case phptree.KindProperty:
			if member.TypeHint != "" {
				props[strings.TrimPrefix(member.Name, "$")] = member.TypeHint
			}
		case phptree.KindMethod:
			// Promoted constructor parameters declare properties too.
			for _, param := range member.Params {
				if param.TypeHint != "" {
					props[strings.TrimPrefix(param.Name, "$")] = param.TypeHint
				}
			}
		}
	}
	return props
}

// walkBody seeds a fresh scope from parameter hints and runs the forward
// pass over the body. Nested functions get their own scope.
func (t *tracker) walkBody(fn *phptree.Node, enc enclosing, props map[string]string) []CallSite {
	vars := make(map[string]bool) // var name (no $) → bound to target type
	for _, param := range fn.Params {
		if t.typeMatches(param.TypeHint) {
			vars[strings.TrimPrefix(param.Name, "$")] = true
		}
	}

	var sites []CallSite
	var visit func(n *phptree.Node) bool
	visit = func(n *phptree.Node) bool {
		switch n.Kind {
		case phptree.KindFunction, phptree.KindMethod:
			if n != fn {
				sites = append(sites, t.walkBody(n, enc, props)...)
				return false
			}
		case phptree.KindAssignment:
			t.recordAssignment(n, vars, props)
		case phptree.KindMemberCall:
			if site, ok := t.acceptMemberCall(n, enc, vars); ok {
				sites = append(sites, site)
			}
		case phptree.KindScopedCall:
			if site, ok := t.acceptScopedCall(n, enc); ok {
				sites = append(sites, site)
			}
		}
		return true
	}
	phptree.Walk(fn, visit)
	return sites
}

func (t *tracker) recordAssignment(n *phptree.Node, vars map[string]bool, props map[string]string) {
	left := n.Object
	if left == nil || left.Kind != phptree.KindVariable {
		return
	}
	name := strings.TrimPrefix(left.Name, "$")

	right := n.Value
	if right == nil {
		return
	}
	switch right.Kind {
	case phptree.KindNew:
		vars[name] = t.typeMatches(right.Name)
	case phptree.KindVariable:
		vars[name] = vars[strings.TrimPrefix(right.Name, "$")]
	case phptree.KindMemberAccess:
		if obj := right.Object; obj != nil && obj.Kind == phptree.KindVariable && obj.Name == "$this" {
			vars[name] = t.typeMatches(props[right.Name])
		} else {
			vars[name] = false
		}
	default:
		// Any other right-hand side invalidates a previous binding.
		vars[name] = false
	}
}

func (t *tracker) acceptMemberCall(n *phptree.Node, enc enclosing, vars map[string]bool) (CallSite, bool) {
	if n.Name != t.target.Method || n.Object == nil {
		return CallSite{}, false
	}
	recv := n.Object
	switch recv.Kind {
	case phptree.KindVariable:
		name := strings.TrimPrefix(recv.Name, "$")
		if name == "this" {
			if enc.isMatch {
				return CallSite{Span: n.NameSpan}, true
			}
			return CallSite{}, false
		}
		if vars[name] {
			return CallSite{Span: n.NameSpan}, true
		}
	case phptree.KindNew:
		if t.typeMatches(recv.Name) {
			return CallSite{Span: n.NameSpan}, true
		}
	}
	// Chained receivers carry no return-type information; skip them.
	return CallSite{}, false
}

func (t *tracker) acceptScopedCall(n *phptree.Node, enc enclosing) (CallSite, bool) {
	if n.Name != t.target.Method || n.Object == nil {
		return CallSite{}, false
	}
	scope := n.Object
	if scope.Kind != phptree.KindName && scope.Kind != phptree.KindQualifiedName {
		return CallSite{}, false
	}
	if phptree.IsRelativeScope(scope.Name) {
		if scope.Name != "parent" && enc.isLiteral {
			return CallSite{Span: n.NameSpan, Static: true}, true
		}
		return CallSite{}, false
	}
	if t.classNameMatches(scope.Name) {
		return CallSite{Span: n.NameSpan, Static: true}, true
	}
	return CallSite{}, false
}

// typeMatches decides whether a type name as written denotes the target
// class, resolving through the file's import table. An import binding the
// short name to a different FQN rejects the match even when short names
// collide.
func (t *tracker) typeMatches(name string) bool {
	if name == "" || phptree.IsRelativeScope(name) {
		return false
	}
	if t.classNameMatches(name) {
		return true
	}
	if t.target.IsInterface {
		short := t.resolveShort(name)
		if short == "" {
			return false
		}
		if fqn, ok := t.target.Implementors[short]; ok {
			if clause, imported := t.imports[short]; imported {
				return clause.FQN == fqn || strings.HasSuffix(fqn, "\\"+clause.FQN)
			}
			return true
		}
	}
	return false
}

// classNameMatches matches name against the target class itself.
func (t *tracker) classNameMatches(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "\\") {
		return strings.TrimPrefix(name, "\\") == t.target.ClassFQN
	}
	short := phptree.ShortName(name)
	if clause, ok := t.imports[short]; ok && strings.Contains(name, "\\") == false {
		return clause.FQN == t.target.ClassFQN
	}
	if short != t.target.ClassName {
		return false
	}
	// No import: accept the bare short name, or a qualified suffix of the
	// target FQN.
	if strings.Contains(name, "\\") {
		return strings.HasSuffix(t.target.ClassFQN, "\\"+name) || t.target.ClassFQN == name
	}
	return true
}

// resolveShort returns the short name a written type binds to in this file,
// or "" when the written form is qualified in a way we do not resolve.
func (t *tracker) resolveShort(name string) string {
	if strings.Contains(name, "\\") {
		return phptree.ShortName(name)
	}
	return name
}
