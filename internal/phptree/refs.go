package phptree

import "github.com/standardbeagle/phpref/internal/types"

// RefContext classifies where a type name appeared.
type RefContext uint8

const (
	RefParamHint RefContext = iota
	RefPropertyHint
	RefReturnHint
	RefNew
	RefStaticLookup
	RefExtends
	RefImplements
)

// TypeRef is one occurrence of a class-like name in a position where it
// denotes a type. Name is the text as written, possibly qualified.
type TypeRef struct {
	Name    string
	Span    types.Span
	Context RefContext
}

// relativeScopes never resolve through imports.
var relativeScopes = map[string]bool{
	"self":   true,
	"static": true,
	"parent": true,
}

// IsRelativeScope reports whether name is one of the in-class relative
// scope keywords.
func IsRelativeScope(name string) bool {
	return relativeScopes[name]
}

// CollectTypeRefs walks root and returns every occurrence of a name used as
// a type: parameter and property hints, return hints, instantiations,
// static lookups, and inheritance clauses. Relative scope keywords are
// excluded.
func CollectTypeRefs(root *Node) []TypeRef {
	var refs []TypeRef
	add := func(name string, span types.Span, ctx RefContext) {
		if name == "" || IsRelativeScope(name) {
			return
		}
		refs = append(refs, TypeRef{Name: name, Span: span, Context: ctx})
	}

	Walk(root, func(n *Node) bool {
		switch n.Kind {
		case KindClass, KindInterface, KindTrait:
			add(n.Extends, n.ExtendsSpan, RefExtends)
			for i, impl := range n.Implements {
				add(impl, n.ImplementsSpans[i], RefImplements)
			}
		case KindMethod, KindFunction:
			for _, param := range n.Params {
				add(param.TypeHint, param.TypeHintSpan, RefParamHint)
			}
			add(n.ReturnType, n.ReturnTypeSpan, RefReturnHint)
		case KindProperty:
			add(n.TypeHint, n.TypeHintSpan, RefPropertyHint)
		case KindNew:
			add(n.Name, n.NameSpan, RefNew)
		case KindScopedCall:
			if obj := n.Object; obj != nil && (obj.Kind == KindName || obj.Kind == KindQualifiedName) {
				add(obj.Name, obj.NameSpan, RefStaticLookup)
			}
		}
		return true
	})
	return refs
}
