// Package ast defines the abstract syntax tree produced by core/parser and
// consumed by core/eval. Nodes are immutable once built and share
// substructure freely (spec.md §9: "The expression AST should be immutable
// and cheaply clonable").
package ast

import "github.com/hashicorp/hcl/v2"

// Node is implemented by every AST node.
type Node interface {
	Range() hcl.Range
	exprNode()
}

// Expr is an alias for Node, kept distinct for readability at call sites that
// only ever handle expressions (every T node is an expression; statements are
// just assignments or bare expressions).
type Expr = Node

type Base struct {
	Rng hcl.Range
}

func (b Base) Range() hcl.Range { return b.Rng }
func (b Base) exprNode()        {}

// IntLit is an integer literal.
type IntLit struct {
	Base
	Value int64
}

// FloatLit is a floating point literal.
type FloatLit struct {
	Base
	Value float64
}

// StringLit is a string literal.
type StringLit struct {
	Base
	Value string
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Base
	Value bool
}

// NullLit is the `null` literal.
type NullLit struct{ Base }

// NALit is the `NA` literal.
type NALit struct{ Base }

// Ident is a variable reference.
type Ident struct {
	Base
	Name string
}

// ColumnRef is the `$name` syntactic form (spec.md §4.1/§4.3).
type ColumnRef struct {
	Base
	Name string
}

// Unary is a prefix operator: `-x`, `!x`.
type Unary struct {
	Base
	Op string // "-" or "!"
	X  Expr
}

// Binary is an infix arithmetic/comparison/logical/broadcast operator.
type Binary struct {
	Base
	Op   string
	X, Y Expr
}

// Pipe is `x |> f(...)` or `x ?|> f(...)`.
type Pipe struct {
	Base
	Safe bool
	X    Expr
	Call *Call // the right-hand side, always a Call (bare idents are wrapped with no args)
}

// Arg is a single call argument, named or positional.
type Arg struct {
	Name *string // nil for positional
	Expr Expr
}

// Call is a function call or data-verb invocation. Dot is true when the call
// was written as `x.name(...)` / `x.name` postfix sugar rather than
// `name(x, ...)` directly — the two parse to the same Fn/Args shape, but a
// dot-call against a Pipeline receiver means "read node `name`", not "call
// function `name`" (spec.md §4.5 point 5, `p.z`).
type Call struct {
	Base
	Fn   Expr
	Args []Arg
	Dot  bool
}

// IfExpr is `if (cond) then else other`.
type IfExpr struct {
	Base
	Cond, Then, Else Expr
}

// Lambda is `\(params) body`.
type Lambda struct {
	Base
	Params   []string
	Variadic bool
	Body     Expr
}

// ListEntry is one (optional-name, value) pair inside a list literal.
type ListEntry struct {
	Name *string
	Expr Expr
}

// ListLit is a `[a, b, name: c]` literal.
type ListLit struct {
	Base
	Entries []ListEntry
}

// DictEntry is one key-value pair inside a dict literal.
type DictEntry struct {
	Key   string
	Value Expr
}

// DictLit is a `{key: value, ...}` literal used outside pipeline/intent
// context.
type DictLit struct {
	Base
	Entries []DictEntry
}

// Formula is `lhs ~ rhs`, captured without evaluating either side.
type Formula struct {
	Base
	Lhs, Rhs Expr
}

// Assign is `name = expr` or `name := expr`.
type Assign struct {
	Base
	Name     string
	Rebind   bool // true for `:=`
	Value    Expr
	Doc      string
}

// PipelineNode is one `name = expr` statement inside a pipeline block.
type PipelineNode struct {
	Name  string
	Value Expr
}

// PipelineBlock is `pipeline { stmt* }`.
type PipelineBlock struct {
	Base
	Nodes []PipelineNode
}

// IntentField is one key-value pair inside an `intent { ... }` block.
type IntentField struct {
	Key   string
	Value Expr
}

// IntentBlock is `intent { key: value, ... }`.
type IntentBlock struct {
	Base
	Fields []IntentField
}

// Program is a sequence of top-level statements (assignments or bare
// expressions).
type Program struct {
	Base
	Statements []Expr
}

// Block is `{ stmt* }`, a bare lexical block (used for grouping, not a
// pipeline/intent).
type Block struct {
	Base
	Statements []Expr
}
