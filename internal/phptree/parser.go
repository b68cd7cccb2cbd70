package phptree

import (
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"github.com/standardbeagle/phpref/internal/debug"
	"github.com/standardbeagle/phpref/internal/errors"
	"github.com/standardbeagle/phpref/internal/types"
)

// Parser turns PHP source into the normalized Tree. Underlying grammar
// parsers are pooled because language setup is not free and parse calls
// happen on every file change.
type Parser struct {
	pool sync.Pool
}

func NewParser() *Parser {
	return &Parser{
		pool: sync.Pool{
			New: func() any {
				p := tree_sitter.NewParser()
				lang := tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())
				if err := p.SetLanguage(lang); err != nil {
					return nil
				}
				return p
			},
		},
	}
}

// Parse parses content and returns the normalized tree. Malformed source
// returns a ParseError; callers keep the file's previous index entries in
// that case. pathHint is only for diagnostics output.
func (p *Parser) Parse(content []byte, pathHint string) (tree *Tree, err error) {
	raw := p.pool.Get()
	if raw == nil {
		return nil, errors.NewParseError(pathHint, nil)
	}
	tsParser := raw.(*tree_sitter.Parser)
	defer p.pool.Put(tsParser)

	// The C library mutates input buffers via CGO; parse a defensive copy
	// so stored file content stays immutable.
	buf := make([]byte, len(content))
	copy(buf, content)

	defer func() {
		if r := recover(); r != nil {
			debug.LogIndexing("tree-sitter panic in %s: %v", pathHint, r)
			tree = nil
			err = errors.NewParseError(pathHint, nil)
		}
	}()

	tsTree := tsParser.Parse(buf, nil)
	if tsTree == nil {
		return nil, errors.NewParseError(pathHint, nil)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.HasError() {
		return nil, errors.NewParseError(pathHint, nil)
	}

	c := &converter{src: buf}
	rootNode := &Node{Kind: KindOther, Span: c.span(root)}
	rootNode.Children = c.convertChildren(root)

	out := &Tree{Root: rootNode}
	Walk(rootNode, func(n *Node) bool {
		switch n.Kind {
		case KindNamespace:
			if out.Namespace == nil {
				out.Namespace = n
			}
		case KindUse:
			out.Uses = append(out.Uses, n)
		}
		return true
	})
	return out, nil
}

type converter struct {
	src []byte
}

func (c *converter) span(n *tree_sitter.Node) types.Span {
	start := n.StartPosition()
	end := n.EndPosition()
	return types.Span{
		Start: types.Position{Line: int(start.Row) + 1, Column: int(start.Column)},
		End:   types.Position{Line: int(end.Row) + 1, Column: int(end.Column)},
	}
}

func (c *converter) text(n *tree_sitter.Node) string {
	return n.Utf8Text(c.src)
}

func (c *converter) convertChildren(n *tree_sitter.Node) []*Node {
	count := n.ChildCount()
	if count == 0 {
		return nil
	}
	out := make([]*Node, 0, count)
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		out = append(out, c.convert(child)...)
	}
	return out
}

// convert maps one grammar node to zero or more normalized nodes. Property
// declarations fan out to one node per declared property; everything else
// maps one to one.
func (c *converter) convert(n *tree_sitter.Node) []*Node {
	switch n.Kind() {
	case "namespace_definition":
		return one(c.convertNamespace(n))
	case "namespace_use_declaration":
		return one(c.convertUse(n))
	case "class_declaration":
		return one(c.convertClassLike(n, KindClass))
	case "interface_declaration":
		return one(c.convertClassLike(n, KindInterface))
	case "trait_declaration":
		return one(c.convertClassLike(n, KindTrait))
	case "method_declaration":
		return one(c.convertFunctionLike(n, KindMethod))
	case "function_definition":
		return one(c.convertFunctionLike(n, KindFunction))
	case "property_declaration":
		return c.convertProperties(n)
	case "object_creation_expression":
		return one(c.convertNew(n))
	case "member_call_expression":
		return one(c.convertCall(n, KindMemberCall, "object"))
	case "scoped_call_expression":
		return one(c.convertCall(n, KindScopedCall, "scope"))
	case "member_access_expression":
		return one(c.convertCall(n, KindMemberAccess, "object"))
	case "nullsafe_member_call_expression":
		return one(c.convertCall(n, KindMemberCall, "object"))
	case "assignment_expression":
		return one(c.convertAssignment(n))
	case "parenthesized_expression":
		// (new X())->m() reaches the receiver through the parens.
		return c.convertChildren(n)
	case "variable_name":
		return one(&Node{Kind: KindVariable, Name: c.text(n), Span: c.span(n), NameSpan: c.span(n)})
	case "name", "relative_scope":
		// self::, static:: and parent:: receivers arrive as relative_scope.
		return one(&Node{Kind: KindName, Name: c.text(n), Span: c.span(n), NameSpan: c.span(n)})
	case "qualified_name":
		return one(&Node{Kind: KindQualifiedName, Name: c.text(n), Span: c.span(n), NameSpan: c.span(n)})
	default:
		node := &Node{Kind: KindOther, Span: c.span(n)}
		node.Children = c.convertChildren(n)
		return one(node)
	}
}

func one(n *Node) []*Node {
	return []*Node{n}
}

func (c *converter) convertNamespace(n *tree_sitter.Node) *Node {
	node := &Node{Kind: KindNamespace, Span: c.span(n)}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "namespace_name":
			node.Name = c.text(child)
			node.NameSpan = c.span(child)
		case "compound_statement":
			// Braced form: namespace Foo { ... }
			node.Children = c.convertChildren(child)
		}
	}
	return node
}

func (c *converter) convertUse(n *tree_sitter.Node) *Node {
	node := &Node{Kind: KindUse, Span: c.span(n)}
	var groupPrefix string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "namespace_use_clause":
			node.Clauses = append(node.Clauses, c.useClause(child, ""))
		case "namespace_name":
			groupPrefix = c.text(child)
		case "namespace_use_group":
			for j := uint(0); j < child.ChildCount(); j++ {
				gc := child.Child(j)
				if gc == nil {
					continue
				}
				switch gc.Kind() {
				case "namespace_use_group_clause", "namespace_use_clause":
					node.Clauses = append(node.Clauses, c.useClause(gc, groupPrefix))
				}
			}
		}
	}
	return node
}

func (c *converter) useClause(n *tree_sitter.Node, prefix string) UseClause {
	clause := UseClause{Span: c.span(n)}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "qualified_name", "namespace_name", "name":
			if clause.FQN == "" {
				clause.FQN = c.text(child)
			} else if child.Kind() == "name" {
				// The aliasing clause is inlined by the grammar, so the
				// alias shows up as a second bare name child.
				clause.Alias = c.text(child)
			}
		}
	}
	if prefix != "" {
		clause.FQN = prefix + "\\" + clause.FQN
	}
	clause.FQN = canonicalFQN(clause.FQN)
	if clause.Alias == "" {
		clause.Alias = ShortName(clause.FQN)
	}
	return clause
}

func canonicalFQN(fqn string) string {
	for len(fqn) > 0 && fqn[0] == '\\' {
		fqn = fqn[1:]
	}
	return fqn
}

func (c *converter) convertClassLike(n *tree_sitter.Node, kind Kind) *Node {
	node := &Node{Kind: kind, Span: c.span(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		node.Name = c.text(name)
		node.NameSpan = c.span(name)
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "base_clause":
			names := c.clauseNames(child)
			if kind == KindInterface {
				// Interface extension carries multiple parents; record them
				// as implements edges so fan-out treats them uniformly.
				for _, cn := range names {
					node.Implements = append(node.Implements, cn.name)
					node.ImplementsSpans = append(node.ImplementsSpans, cn.span)
				}
			} else if len(names) > 0 {
				node.Extends = names[0].name
				node.ExtendsSpan = names[0].span
			}
		case "class_interface_clause":
			for _, cn := range c.clauseNames(child) {
				node.Implements = append(node.Implements, cn.name)
				node.ImplementsSpans = append(node.ImplementsSpans, cn.span)
			}
		case "declaration_list":
			node.Body = c.convertChildren(child)
		}
	}
	return node
}

type clauseName struct {
	name string
	span types.Span
}

func (c *converter) clauseNames(n *tree_sitter.Node) []clauseName {
	var out []clauseName
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "name", "qualified_name":
			out = append(out, clauseName{name: c.text(child), span: c.span(child)})
		}
	}
	return out
}

func (c *converter) convertFunctionLike(n *tree_sitter.Node, kind Kind) *Node {
	node := &Node{Kind: kind, Span: c.span(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		node.Name = c.text(name)
		node.NameSpan = c.span(name)
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "static_modifier":
			node.Static = true
		case "formal_parameters":
			node.Params = c.convertParameters(child)
		case "compound_statement":
			node.Body = c.convertChildren(child)
		}
	}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		node.ReturnType, node.ReturnTypeSpan = c.typeHint(rt)
	}
	return node
}

func (c *converter) convertParameters(n *tree_sitter.Node) []*Node {
	var params []*Node
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "simple_parameter", "property_promotion_parameter", "variadic_parameter":
			param := &Node{Kind: KindParameter, Span: c.span(child)}
			if name := child.ChildByFieldName("name"); name != nil {
				param.Name = c.text(name)
				param.NameSpan = c.span(name)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				param.TypeHint, param.TypeHintSpan = c.typeHint(t)
			}
			params = append(params, param)
		}
	}
	return params
}

// typeHint extracts a simple named hint. Union, intersection, and primitive
// hints yield an empty name: inference only trusts plain class names.
func (c *converter) typeHint(n *tree_sitter.Node) (string, types.Span) {
	switch n.Kind() {
	case "named_type", "optional_type", "type":
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "name", "qualified_name":
				return c.text(child), c.span(child)
			case "named_type":
				return c.typeHint(child)
			}
		}
		return "", types.Span{}
	case "name", "qualified_name":
		return c.text(n), c.span(n)
	default:
		return "", types.Span{}
	}
}

func (c *converter) convertProperties(n *tree_sitter.Node) []*Node {
	var hint string
	var hintSpan types.Span
	if t := n.ChildByFieldName("type"); t != nil {
		hint, hintSpan = c.typeHint(t)
	}

	var out []*Node
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || child.Kind() != "property_element" {
			continue
		}
		prop := &Node{Kind: KindProperty, Span: c.span(n), TypeHint: hint, TypeHintSpan: hintSpan}
		for j := uint(0); j < child.ChildCount(); j++ {
			pc := child.Child(j)
			if pc != nil && pc.Kind() == "variable_name" {
				prop.Name = c.text(pc)
				prop.NameSpan = c.span(pc)
			}
		}
		out = append(out, prop)
	}
	return out
}

func (c *converter) convertNew(n *tree_sitter.Node) *Node {
	node := &Node{Kind: KindNew, Span: c.span(n)}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "name", "qualified_name":
			if node.Name == "" {
				node.Name = c.text(child)
				node.NameSpan = c.span(child)
			}
		case "arguments":
			node.Children = append(node.Children, c.convertChildren(child)...)
		}
	}
	// new $var(...) or new (expr)(...) leaves Name empty: untracked.
	return node
}

func (c *converter) convertCall(n *tree_sitter.Node, kind Kind, receiverField string) *Node {
	node := &Node{Kind: kind, Span: c.span(n)}
	if recv := n.ChildByFieldName(receiverField); recv != nil {
		converted := c.convert(recv)
		if len(converted) > 0 {
			node.Object = converted[0]
		}
	}
	if name := n.ChildByFieldName("name"); name != nil {
		node.Name = c.text(name)
		node.NameSpan = c.span(name)
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		node.Children = c.convertChildren(args)
	}
	return node
}

func (c *converter) convertAssignment(n *tree_sitter.Node) *Node {
	node := &Node{Kind: KindAssignment, Span: c.span(n)}
	if left := n.ChildByFieldName("left"); left != nil {
		if converted := c.convert(left); len(converted) > 0 {
			node.Object = converted[0]
		}
	}
	if right := n.ChildByFieldName("right"); right != nil {
		if converted := c.convert(right); len(converted) > 0 {
			node.Value = converted[0]
		}
	}
	return node
}
