package phptree

import (
	"strings"

	"github.com/standardbeagle/phpref/internal/types"
)

// Kind is the closed set of node variants the engine consumes. Anything the
// grammar produces outside this set becomes KindOther, which still carries
// its raw children for generic recursion.
type Kind uint8

const (
	KindOther Kind = iota
	KindNamespace
	KindUse
	KindClass
	KindInterface
	KindTrait
	KindMethod
	KindFunction
	KindParameter
	KindProperty
	KindNew
	KindMemberCall
	KindScopedCall
	KindMemberAccess
	KindAssignment
	KindVariable
	KindName
	KindQualifiedName
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindUse:
		return "use"
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	case KindMethod:
		return "method"
	case KindFunction:
		return "function"
	case KindParameter:
		return "parameter"
	case KindProperty:
		return "property"
	case KindNew:
		return "new"
	case KindMemberCall:
		return "member_call"
	case KindScopedCall:
		return "scoped_call"
	case KindMemberAccess:
		return "member_access"
	case KindAssignment:
		return "assignment"
	case KindVariable:
		return "variable"
	case KindName:
		return "name"
	case KindQualifiedName:
		return "qualified_name"
	default:
		return "other"
	}
}

// UseClause is one binding introduced by a use declaration.
type UseClause struct {
	FQN   string
	Alias string // short name visible in the file (explicit alias or last segment)
	Span  types.Span
}

// Node is the normalized tree node. Field validity depends on Kind:
//
//	KindNamespace     Name = declared namespace, NameSpan = name identifier
//	KindUse           Clauses = bindings of this declaration
//	KindClass/Interface/Trait
//	                  Name, NameSpan, Extends(+Span), Implements(+Spans), Body = members
//	KindMethod/Function
//	                  Name, NameSpan, Params, ReturnType(+Span), Static, Body = statements
//	KindParameter     Name = "$var", TypeHint(+Span)
//	KindProperty      Name = "$var", TypeHint(+Span)
//	KindNew           Name = instantiated type as written, NameSpan
//	KindMemberCall    Object = receiver, Name = method, NameSpan
//	KindScopedCall    Object = scope (name/variable), Name = method, NameSpan
//	KindMemberAccess  Object = receiver, Name = property, NameSpan
//	KindAssignment    Object = left, Value = right
//	KindVariable      Name = "$var"
//	KindName/QualifiedName
//	                  Name = text as written
type Node struct {
	Kind Kind
	Name string
	Span types.Span

	NameSpan types.Span

	Clauses []UseClause

	Extends         string
	ExtendsSpan     types.Span
	Implements      []string
	ImplementsSpans []types.Span

	TypeHint     string
	TypeHintSpan types.Span

	ReturnType     string
	ReturnTypeSpan types.Span

	Static bool

	Object *Node
	Value  *Node
	Params []*Node

	// Body holds class members or function statements; Children holds the
	// remaining structural children (arguments, nested expressions).
	Body     []*Node
	Children []*Node
}

// Tree is a parsed file.
type Tree struct {
	Root *Node
	// Namespace is the first namespace declaration, or nil.
	Namespace *Node
	// Uses lists use declarations in document order.
	Uses []*Node
}

// DeclaredNamespace returns the namespace declared in the file, or "".
func (t *Tree) DeclaredNamespace() string {
	if t.Namespace == nil {
		return ""
	}
	return t.Namespace.Name
}

// ImportTable maps each short name bound by a use declaration to its clause.
// Aliases are honored; later declarations of the same alias win, matching
// PHP's fatal-error-in-practice behavior with a forgiving reading.
func (t *Tree) ImportTable() map[string]UseClause {
	table := make(map[string]UseClause)
	for _, use := range t.Uses {
		for _, clause := range use.Clauses {
			table[clause.Alias] = clause
		}
	}
	return table
}

// childSlots declares, per kind, exactly which child slots Walk recurses
// into. Kinds not listed recurse into Children only.
var childSlots = map[Kind]func(*Node) []*Node{
	KindClass:     func(n *Node) []*Node { return n.Body },
	KindInterface: func(n *Node) []*Node { return n.Body },
	KindTrait:     func(n *Node) []*Node { return n.Body },
	KindMethod: func(n *Node) []*Node {
		return appendSlots(n.Params, n.Body)
	},
	KindFunction: func(n *Node) []*Node {
		return appendSlots(n.Params, n.Body)
	},
	KindMemberCall: func(n *Node) []*Node {
		return appendSlot(n.Object, n.Children)
	},
	KindScopedCall: func(n *Node) []*Node {
		return appendSlot(n.Object, n.Children)
	},
	KindMemberAccess: func(n *Node) []*Node {
		return appendSlot(n.Object, n.Children)
	},
	KindAssignment: func(n *Node) []*Node {
		out := make([]*Node, 0, 2)
		if n.Object != nil {
			out = append(out, n.Object)
		}
		if n.Value != nil {
			out = append(out, n.Value)
		}
		return out
	},
	KindNamespace: func(n *Node) []*Node { return n.Children },
}

func appendSlots(a, b []*Node) []*Node {
	out := make([]*Node, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func appendSlot(head *Node, rest []*Node) []*Node {
	out := make([]*Node, 0, len(rest)+1)
	if head != nil {
		out = append(out, head)
	}
	return append(out, rest...)
}

// Walk visits n depth-first. The visitor returns false to prune the subtree.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	if slots, ok := childSlots[n.Kind]; ok {
		for _, child := range slots(n) {
			Walk(child, visit)
		}
		return
	}
	for _, child := range n.Children {
		Walk(child, visit)
	}
}

// ShortName returns the last segment of a possibly qualified PHP name.
func ShortName(name string) string {
	name = strings.TrimPrefix(name, "\\")
	if i := strings.LastIndex(name, "\\"); i >= 0 {
		return name[i+1:]
	}
	return name
}
