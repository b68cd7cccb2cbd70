package types

import "fmt"

// FileID is a dense identifier for indexed files, issued by the content store.
// IDs are stable for the lifetime of a FileService instance.
type FileID uint32

// Position is a source position with 1-based line and 0-based column,
// matching the host editor convention.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Before reports whether p comes strictly before o in document order.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// Span is a half-open source range [Start, End).
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether pos falls inside the span.
func (s Span) Contains(pos Position) bool {
	return !pos.Before(s.Start) && pos.Before(s.End)
}

// Overlaps reports whether two spans share at least one position.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// SymbolKind classifies an indexed definition.
type SymbolKind uint8

const (
	SymbolClass SymbolKind = iota
	SymbolInterface
	SymbolTrait
	SymbolMethod
	SymbolFunction
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolClass:
		return "class"
	case SymbolInterface:
		return "interface"
	case SymbolTrait:
		return "trait"
	case SymbolMethod:
		return "method"
	case SymbolFunction:
		return "function"
	default:
		return "unknown"
	}
}

// SymbolDefinition is one definition recorded by the symbol index.
// FQN is consistent with the owning file's declared namespace at the time of
// the last scan; it goes stale after an external move until the file is
// re-scanned.
type SymbolDefinition struct {
	Name     string     `json:"name"`
	FQN      string     `json:"fqn"`
	Kind     SymbolKind `json:"kind"`
	FilePath string     `json:"file"`
	Span     Span       `json:"span"`
	// Parent is the enclosing type's FQN for methods, empty otherwise.
	Parent string `json:"parent,omitempty"`
}

// MethodKey identifies a method as ClassName::methodName.
type MethodKey struct {
	Class  string
	Method string
}

func (k MethodKey) String() string { return k.Class + "::" + k.Method }

// MethodDefinition records a member function definition.
// NameSpan covers exactly the method name identifier, which is the range a
// rename replaces.
type MethodDefinition struct {
	ClassName string `json:"class"`
	ClassFQN  string `json:"classFqn"`
	Name      string `json:"name"`
	FilePath  string `json:"file"`
	NameSpan  Span   `json:"nameSpan"`
	Span      Span   `json:"span"`
	IsStatic  bool   `json:"static,omitempty"`
}

// InheritanceEdge records extends/implements targets as written in source,
// not FQN-resolved. Rebuilt whenever the owning file is re-scanned.
type InheritanceEdge struct {
	ClassName  string   `json:"class"`
	FilePath   string   `json:"file"`
	Extends    string   `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`
	// IsInterface marks interface-extends-interface edges, whose Implements
	// list holds the extended interfaces.
	IsInterface bool `json:"isInterface,omitempty"`
}

// EditOperation is a single text replacement. A planner invocation never
// produces two operations with overlapping spans in the same file.
type EditOperation struct {
	FilePath string `json:"file"`
	Span     Span   `json:"range"`
	NewText  string `json:"replacement"`
}

// Diagnostic is one reported problem with an exact source range.
type Diagnostic struct {
	FilePath string `json:"file"`
	Span     Span   `json:"range"`
	Message  string `json:"message"`
	Code     string `json:"code"`
	// Suggestions holds candidate FQNs for the quick-fix import insertion,
	// best match first. Ambiguity is surfaced, never silently resolved.
	Suggestions []string `json:"suggestions,omitempty"`
}

// DiagnosticMissingImport is the code attached to unresolved type references.
const DiagnosticMissingImport = "missing-import"
