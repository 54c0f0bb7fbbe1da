// Package value defines the T runtime value model: a single tagged-union
// Value type covering scalars, NA variants, vectors, dataframes, functions,
// and the language's first-class Error/Formula/Pipeline/Intent/ColumnRef
// values (spec.md §3). It imports only core/ast and core/table, never
// core/env, to keep the env<->value dependency one-directional: env depends
// on value, not the reverse.
package value

import (
	"fmt"
	"strings"
	"sync"

	"tlang/core/ast"
	"tlang/core/table"
)

// Kind discriminates the tagged union.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindNull
	KindNA
	KindVector
	KindNDArray
	KindList
	KindDict
	KindDataFrame
	KindFunction
	KindError
	KindFormula
	KindPipeline
	KindIntent
	KindColumnRef
	KindGrouped
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindNull:
		return "Null"
	case KindNA:
		return "NA"
	case KindVector:
		return "Vector"
	case KindNDArray:
		return "NDArray"
	case KindList:
		return "List"
	case KindDict:
		return "Dict"
	case KindDataFrame:
		return "DataFrame"
	case KindFunction:
		return "Function"
	case KindError:
		return "Error"
	case KindFormula:
		return "Formula"
	case KindPipeline:
		return "Pipeline"
	case KindIntent:
		return "Intent"
	case KindColumnRef:
		return "ColumnRef"
	case KindGrouped:
		return "Grouped"
	default:
		return "Unknown"
	}
}

// NAKind distinguishes the typed NA subvariants (spec.md §3.2: NA carries
// the type it would otherwise have held, so NA-propagation can preserve
// vector element types).
type NAKind int

const (
	NAGeneric NAKind = iota
	NABool
	NAInt
	NAFloat
	NAString
)

func (n NAKind) String() string {
	switch n {
	case NABool:
		return "NA_bool"
	case NAInt:
		return "NA_int"
	case NAFloat:
		return "NA_float"
	case NAString:
		return "NA_string"
	default:
		return "NA"
	}
}

// ErrorCode is the closed set of structured error tags a T Error value may
// carry (spec.md §7, mirrored by internal/errors.Type at the Go boundary).
type ErrorCode string

const (
	ErrType        ErrorCode = "TypeError"
	ErrArity       ErrorCode = "ArityError"
	ErrName        ErrorCode = "NameError"
	ErrDivByZero   ErrorCode = "DivisionByZero"
	ErrKey         ErrorCode = "KeyError"
	ErrIndex       ErrorCode = "IndexError"
	ErrAssertion   ErrorCode = "AssertionError"
	ErrFile        ErrorCode = "FileError"
	ErrValue       ErrorCode = "ValueError"
	ErrSyntax      ErrorCode = "SyntaxError"
	ErrMatch       ErrorCode = "MatchError"
	ErrGeneric     ErrorCode = "GenericError"
)

// Environment is the subset of core/env.Env a closure needs to carry and
// later resume evaluation in. Defining it here (rather than importing
// core/env) lets env depend on value without creating a cycle back.
type Environment interface {
	Lookup(name string) (Value, bool)
	Define(name string, v Value) error
	Child() Environment
}

// ErrorValue is the payload of a KindError Value.
type ErrorValue struct {
	Code    ErrorCode
	Message string
	Context map[string]Value
}

// FunctionValue is either a user-defined lambda closure or a builtin.
type FunctionValue struct {
	Name     string // empty for anonymous lambdas
	Params   []string
	Variadic bool
	Body     ast.Expr    // nil for builtins
	Env      Environment // capturing environment; nil for builtins
	Builtin  BuiltinFunc // nil for lambdas
}

// RawArg is one unevaluated call argument, paired with its optional name,
// as handed to a builtin that needs NSE (e.g. data verbs receiving
// ColumnRef-shaped lambdas) or lazy evaluation (if/and/or short-circuit
// helpers exposed as builtins).
type RawArg struct {
	Name *string
	Expr ast.Expr
}

// CallSite bundles everything a BuiltinFunc needs: already-evaluated
// positional/named arguments, the raw (unevaluated) argument expressions for
// builtins that require NSE, the calling environment, and the call's source
// range for diagnostics.
type CallSite struct {
	Args    []Value
	Named   map[string]Value
	Raw     []RawArg
	Env     Environment
	Range   ast.Expr // call expression, for Range()
	Apply   func(fn Value, args []Value) (Value, error)
}

// BuiltinFunc is the Go-side implementation of a builtin function.
type BuiltinFunc func(cs *CallSite) (Value, error)

// FormulaValue captures `lhs ~ rhs` without evaluating either side
// (spec.md §3: formulas are inert data until passed to a modeling verb).
type FormulaValue struct {
	Lhs, Rhs ast.Expr
	Env      Environment
}

// PipelineValue is the compiled, not-yet-executed form of a `pipeline{}`
// block: an ordered list of named node expressions plus the environment
// they close over. cache holds each node's resolved value (Error values for
// failed nodes), computed lazily on first access and reused thereafter
// (spec.md §3 "cached values are computed lazily on first .name access or on
// pipeline_run, and can be re-run idempotently"). The cache lives on this
// pointer so every copy of the Value sharing it observes the same memoized
// result.
type PipelineValue struct {
	Name  string
	Nodes []PipelineNodeDef
	Env   Environment

	cacheMu sync.Mutex
	cache   map[string]Value
	cached  bool
}

// Cached returns the pipeline's memoized per-node results, if evaluation has
// already run once.
func (p *PipelineValue) Cached() (map[string]Value, bool) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	return p.cache, p.cached
}

// FillCache stores the pipeline's per-node results the first time it is
// computed. A second call is a no-op: re-running the same PipelineValue
// returns the already-cached result rather than re-evaluating (idempotent
// per spec.md §3).
func (p *PipelineValue) FillCache(results map[string]Value) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if p.cached {
		return
	}
	p.cache = results
	p.cached = true
}

// String prints a pipeline's declared nodes and, once it has been run, any
// per-node failures, matching spec.md §7's `Pipeline(N nodes: [...])` /
// `Errors:` user-surfacing format.
func (p *PipelineValue) String() string {
	names := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		names[i] = n.Name
	}
	s := fmt.Sprintf("Pipeline(%d nodes: [%s])", len(p.Nodes), strings.Join(names, ", "))

	cache, ok := p.Cached()
	if !ok {
		return s
	}
	var failed []string
	for _, name := range names {
		if v, ok := cache[name]; ok && v.IsError() {
			failed = append(failed, fmt.Sprintf("  - `%s` failed: %s.", name, v.Error.Message))
		}
	}
	if len(failed) == 0 {
		return s
	}
	return s + "\nErrors:\n" + strings.Join(failed, "\n")
}

// PipelineNodeDef is one named node inside a PipelineValue.
type PipelineNodeDef struct {
	Name  string
	Expr  ast.Expr
}

// IntentValue is the evaluated field map of an `intent{}` block.
type IntentValue struct {
	Fields map[string]Value
	Order  []string
}

// GroupedValue is the result of `group_by()`: a DataFrame partitioned by one
// or more key columns, awaiting `summarize()` (spec.md §4.3 data verbs).
type GroupedValue struct {
	Source  table.Table
	Grouping table.Grouping
	Keys    []string
}

// Value is the single tagged-union runtime value. Zero value is Null.
type Value struct {
	Kind Kind

	I int64
	F float64
	B bool
	S string

	NAKind NAKind

	Vector   []Value
	NDArray  *NDArrayValue
	List     *ListValue
	Dict     *DictValue
	DataFrame table.Table

	Function *FunctionValue
	Error    *ErrorValue
	Formula  *FormulaValue
	Pipeline *PipelineValue
	Intent   *IntentValue

	ColumnRef string

	Grouped *GroupedValue
}

// NDArrayValue is a dense n-dimensional float64 array (spec.md §4.2 linear
// algebra support), row-major.
type NDArrayValue struct {
	Shape []int
	Data  []float64
}

// ListValue is an ordered, optionally-named heterogeneous sequence.
type ListValue struct {
	Names  []*string // nil entry = unnamed
	Values []Value
}

// DictValue is an insertion-ordered string-keyed map.
type DictValue struct {
	Keys   []string
	Values map[string]Value
}

// Constructors

func Int(i int64) Value     { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }
func Bool(b bool) Value     { return Value{Kind: KindBool, B: b} }
func Str(s string) Value    { return Value{Kind: KindString, S: s} }
func Null() Value           { return Value{Kind: KindNull} }

// NA constructs a typed NA value. Use NAGeneric for an untyped NA literal.
func NA(kind NAKind) Value { return Value{Kind: KindNA, NAKind: kind} }

func Vector(elems []Value) Value { return Value{Kind: KindVector, Vector: elems} }

func NDArray(shape []int, data []float64) Value {
	return Value{Kind: KindNDArray, NDArray: &NDArrayValue{Shape: shape, Data: data}}
}

func List(names []*string, values []Value) Value {
	return Value{Kind: KindList, List: &ListValue{Names: names, Values: values}}
}

func Dict(keys []string, values map[string]Value) Value {
	return Value{Kind: KindDict, Dict: &DictValue{Keys: keys, Values: values}}
}

func DataFrame(t table.Table) Value {
	return Value{Kind: KindDataFrame, DataFrame: t}
}

func Func(f *FunctionValue) Value { return Value{Kind: KindFunction, Function: f} }

// Err constructs a first-class Error value.
func Err(code ErrorCode, message string) Value {
	return Value{Kind: KindError, Error: &ErrorValue{Code: code, Message: message}}
}

func ErrWithContext(code ErrorCode, message string, ctx map[string]Value) Value {
	return Value{Kind: KindError, Error: &ErrorValue{Code: code, Message: message, Context: ctx}}
}

func Formula(lhs, rhs ast.Expr, env Environment) Value {
	return Value{Kind: KindFormula, Formula: &FormulaValue{Lhs: lhs, Rhs: rhs, Env: env}}
}

func Pipeline(name string, nodes []PipelineNodeDef, env Environment) Value {
	return Value{Kind: KindPipeline, Pipeline: &PipelineValue{Name: name, Nodes: nodes, Env: env}}
}

func Intent(order []string, fields map[string]Value) Value {
	return Value{Kind: KindIntent, Intent: &IntentValue{Order: order, Fields: fields}}
}

func ColumnRef(name string) Value { return Value{Kind: KindColumnRef, ColumnRef: name} }

func Grouped(g *GroupedValue) Value { return Value{Kind: KindGrouped, Grouped: g} }

// Predicates

func (v Value) IsNA() bool    { return v.Kind == KindNA }
func (v Value) IsNull() bool  { return v.Kind == KindNull }
func (v Value) IsError() bool { return v.Kind == KindError }

// Truthy implements T's boolean coercion rule for `if`/`and`/`or`
// (spec.md §4.1): only Bool(true)/Bool(false) are valid conditions; anything
// else is a caller error, so Truthy returns ok=false for non-bool values.
func (v Value) Truthy() (b bool, ok bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// TypeName returns the name used in TypeError messages and `class()`.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindNA:
		switch v.NAKind {
		case NABool:
			return "bool"
		case NAInt:
			return "int"
		case NAFloat:
			return "float"
		case NAString:
			return "string"
		default:
			return "NA"
		}
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return v.Kind.String()
	}
}

// String renders a value the way the REPL/print() builtin does.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindString:
		return v.S
	case KindNull:
		return "null"
	case KindNA:
		return "NA"
	case KindVector:
		parts := make([]string, len(v.Vector))
		for i, e := range v.Vector {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindList:
		parts := make([]string, len(v.List.Values))
		for i, e := range v.List.Values {
			if v.List.Names[i] != nil {
				parts[i] = *v.List.Names[i] + ": " + e.String()
			} else {
				parts[i] = e.String()
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDict:
		parts := make([]string, len(v.Dict.Keys))
		for i, k := range v.Dict.Keys {
			parts[i] = k + ": " + v.Dict.Values[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindDataFrame:
		return fmt.Sprintf("<DataFrame %dx%d>", v.DataFrame.NumRows(), v.DataFrame.NumColumns())
	case KindFunction:
		if v.Function.Name != "" {
			return fmt.Sprintf("<function %s>", v.Function.Name)
		}
		return "<function>"
	case KindError:
		return fmt.Sprintf("Error(%s: %q)", v.Error.Code, v.Error.Message)
	case KindFormula:
		return "<Formula>"
	case KindPipeline:
		return v.Pipeline.String()
	case KindIntent:
		return "<Intent>"
	case KindColumnRef:
		return "$" + v.ColumnRef
	case KindNDArray:
		return fmt.Sprintf("<NDArray %v>", v.NDArray.Shape)
	case KindGrouped:
		return fmt.Sprintf("<Grouped by %v>", v.Grouped.Keys)
	default:
		return "<unknown>"
	}
}

// CellFromScalar converts a scalar Value to a table.Cell, used by
// core/column when materializing DataFrame columns from vector literals.
// Non-scalar kinds return ok=false.
func CellFromScalar(v Value) (table.Cell, bool) {
	switch v.Kind {
	case KindInt:
		return table.Cell{Type: table.Int64, I: v.I}, true
	case KindFloat:
		return table.Cell{Type: table.Float64Type, F: v.F}, true
	case KindBool:
		return table.Cell{Type: table.BoolType, B: v.B}, true
	case KindString:
		return table.Cell{Type: table.StringType, S: v.S}, true
	case KindNA:
		t := table.NullType
		switch v.NAKind {
		case NAInt:
			t = table.Int64
		case NAFloat:
			t = table.Float64Type
		case NABool:
			t = table.BoolType
		case NAString:
			t = table.StringType
		}
		return table.Cell{Null: true, Type: t}, true
	default:
		return table.Cell{}, false
	}
}

// ScalarFromCell converts a table.Cell back to a scalar Value, used when
// reading DataFrame rows/columns back into the evaluator.
func ScalarFromCell(c table.Cell) Value {
	if c.Null {
		switch c.Type {
		case table.Int64:
			return NA(NAInt)
		case table.Float64Type:
			return NA(NAFloat)
		case table.BoolType:
			return NA(NABool)
		case table.StringType:
			return NA(NAString)
		default:
			return NA(NAGeneric)
		}
	}
	switch c.Type {
	case table.Int64:
		return Int(c.I)
	case table.Float64Type:
		return Float(c.F)
	case table.BoolType:
		return Bool(c.B)
	case table.StringType:
		return Str(c.S)
	default:
		return Null()
	}
}
