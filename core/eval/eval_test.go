package eval

import (
	"math"
	"testing"

	"tlang/core/builtin"
	"tlang/core/builtins"
	"tlang/core/env"
	"tlang/core/parser"
	"tlang/core/registry"
	"tlang/core/table"
	"tlang/core/value"
)

func run(t *testing.T, src string) value.Value {
	t.Helper()
	prog, diags := parser.Parse("t", src)
	if diags.HasErrors() {
		t.Fatalf("parse error for %q: %s", src, diags.Error())
	}
	root, reg := registry.Root()
	ev := New(reg)
	child := root.ChildEnv()
	v, err := ev.EvalProgram(prog, child)
	if err != nil {
		t.Fatalf("eval error for %q: %v", src, err)
	}
	return v
}

func TestEvalArithmeticIntPromotion(t *testing.T) {
	v := run(t, "1 + 2 * 3")
	if v.Kind != value.KindInt || v.I != 7 {
		t.Fatalf("got %#v, want Int(7)", v)
	}
}

func TestEvalFloatPromotion(t *testing.T) {
	v := run(t, "1 + 2.5")
	if v.Kind != value.KindFloat || v.F != 3.5 {
		t.Fatalf("got %#v, want Float(3.5)", v)
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	v := run(t, "1 / 0")
	if !v.IsError() || v.Error.Code != value.ErrDivByZero {
		t.Fatalf("got %#v, want a DivisionByZero error", v)
	}
}

func TestEvalNAArithmeticIsTypeError(t *testing.T) {
	v := run(t, "1 + NA")
	if !v.IsError() || v.Error.Code != value.ErrType {
		t.Fatalf("got %#v, want a TypeError for an NA operand", v)
	}
}

func TestEvalNAComparisonIsTypeError(t *testing.T) {
	v := run(t, "NA == 1")
	if !v.IsError() || v.Error.Code != value.ErrType {
		t.Fatalf("got %#v, want a TypeError for an NA operand", v)
	}
}

func TestEvalShortCircuitAndSkipsRHSOnFalse(t *testing.T) {
	// false && <rhs> must short-circuit to false without evaluating the division by zero.
	v := run(t, "false && (1/0 == 1)")
	b, ok := v.Truthy()
	if !ok || b {
		t.Fatalf("got %#v, want Bool(false)", v)
	}
}

func TestEvalShortCircuitOrSkipsRHSOnTrue(t *testing.T) {
	v := run(t, "true || (1/0 == 1)")
	b, ok := v.Truthy()
	if !ok || !b {
		t.Fatalf("got %#v, want Bool(true)", v)
	}
}

func TestEvalStringConcatenationWithPlusIsTypeError(t *testing.T) {
	v := run(t, `"foo" + "bar"`)
	if !v.IsError() || v.Error.Code != value.ErrType {
		t.Fatalf("got %#v, want a TypeError for string `+`", v)
	}
}

func TestEvalDefineThenRedefineIsNameError(t *testing.T) {
	v := run(t, "x = 1\nx = 2")
	if !v.IsError() || v.Error.Code != value.ErrName {
		t.Fatalf("got %#v, want a NameError from redefining a frozen binding", v)
	}
}

func TestEvalRebindOverwritesBinding(t *testing.T) {
	v := run(t, "x = 1\nx := 2\nx")
	if v.Kind != value.KindInt || v.I != 2 {
		t.Fatalf("got %#v, want Int(2)", v)
	}
}

func TestEvalUndefinedNameIsNameError(t *testing.T) {
	v := run(t, "nonexistent_name_zzz")
	if !v.IsError() || v.Error.Code != value.ErrName {
		t.Fatalf("got %#v, want a NameError", v)
	}
}

func TestEvalIfTruthyBranches(t *testing.T) {
	v := run(t, "if (true) 1 else 2")
	if v.Kind != value.KindInt || v.I != 1 {
		t.Fatalf("got %#v, want Int(1)", v)
	}
	v = run(t, "if (false) 1 else 2")
	if v.Kind != value.KindInt || v.I != 2 {
		t.Fatalf("got %#v, want Int(2)", v)
	}
}

func TestEvalIfOnNAConditionIsTypeError(t *testing.T) {
	v := run(t, "if (NA) 1 else 2")
	if !v.IsError() || v.Error.Code != value.ErrType {
		t.Fatalf("got %#v, want a TypeError", v)
	}
}

func TestEvalIfOnNonBoolConditionIsTypeError(t *testing.T) {
	v := run(t, "if (1) 1 else 2")
	if !v.IsError() || v.Error.Code != value.ErrType {
		t.Fatalf("got %#v, want a TypeError", v)
	}
}

func TestEvalLambdaNestedClosure(t *testing.T) {
	v := run(t, `f = \(x) \(y) x + y
g = f(10)
g(5)`)
	if v.Kind != value.KindInt || v.I != 15 {
		t.Fatalf("got %#v, want Int(15)", v)
	}
}

func TestEvalLambdaArityErrorOnMissingArg(t *testing.T) {
	v := run(t, `f = \(x, y) x + y
f(1)`)
	if !v.IsError() || v.Error.Code != value.ErrArity {
		t.Fatalf("got %#v, want an ArityError", v)
	}
}

func TestEvalPipeDesugarsToFirstArg(t *testing.T) {
	v := run(t, `double = \(x) x * 2
5 |> double()`)
	if v.Kind != value.KindInt || v.I != 10 {
		t.Fatalf("got %#v, want Int(10)", v)
	}
}

func TestEvalSafePipeShortCircuitsOnNA(t *testing.T) {
	v := run(t, `crash = \(x) 1 / 0
NA ?|> crash()`)
	if !v.IsNA() {
		t.Fatalf("got %#v, want the NA to pass through untouched", v)
	}
}

func TestEvalErrorsAreAbsorbedNotPanics(t *testing.T) {
	v := run(t, "(1 / 0) + 1")
	if !v.IsError() || v.Error.Code != value.ErrDivByZero {
		t.Fatalf("got %#v, want the original DivisionByZero error to propagate through +", v)
	}
}

func TestEvalAssignOfErrorValueDoesNotBindName(t *testing.T) {
	v := run(t, "crashed = 1 / 0\ncrashed")
	if !v.IsError() || v.Error.Code != value.ErrName {
		t.Fatalf("got %#v, want a NameError: assigning an error value must not define the name", v)
	}
}

func TestEvalPipelineLiteralDeclaresItsNodes(t *testing.T) {
	v := run(t, `p = pipeline { x = 1
y = 2
z = x + y }
p`)
	if v.Kind != value.KindPipeline {
		t.Fatalf("got %#v, want a Pipeline value", v)
	}
	if len(v.Pipeline.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(v.Pipeline.Nodes))
	}
}

func TestEvalPipelineDotAccessResolvesNode(t *testing.T) {
	v := run(t, `p = pipeline { x = 1
y = 2
z = x + y }
p.z`)
	if v.Kind != value.KindInt || v.I != 3 {
		t.Fatalf("got %#v, want Int(3) from p.z", v)
	}
}

// withCountingBuiltin builds a root env/registry identical to registry.Root()
// but with an extra zero-arg builtin "tick" that increments *calls on every
// invocation, for tests that need to observe how many times an expression
// was actually evaluated.
func withCountingBuiltin(t *testing.T) (*env.Env, *builtin.Registry, *int) {
	t.Helper()
	reg := builtin.NewRegistry()
	builtins.Register(reg)
	calls := 0
	reg.Register(&builtin.Spec{
		Name: "tick",
		Fn: func(cs *value.CallSite) (value.Value, error) {
			calls++
			return value.Int(calls), nil
		},
	})
	root := env.New()
	for _, name := range reg.Names() {
		spec, _ := reg.Lookup(name)
		if err := root.Define(name, builtins.AsFunctionValue(spec)); err != nil {
			t.Fatalf("defining builtin %q: %v", name, err)
		}
	}
	root.Seal()
	return root, reg, &calls
}

func TestEvalPipelineDotAccessIsIdempotent(t *testing.T) {
	root, reg, calls := withCountingBuiltin(t)
	prog, diags := parser.Parse("t", "p = pipeline { a = tick() }\nfirst = p.a\nsecond = p.a\nfirst == second")
	if diags.HasErrors() {
		t.Fatalf("parse error: %s", diags.Error())
	}
	ev := New(reg)
	v, err := ev.EvalProgram(prog, root.ChildEnv())
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	b, ok := v.Truthy()
	if !ok || !b {
		t.Fatalf("got %#v, want true: re-accessing p.a must reuse the cached result", v)
	}
	if *calls != 1 {
		t.Fatalf("got %d evaluations of node `a`, want exactly 1 across both p.a accesses", *calls)
	}
}

func TestEvalPipelineDotAccessUnknownNodeIsNameError(t *testing.T) {
	v := run(t, `p = pipeline { x = 1 }
p.nope`)
	if !v.IsError() || v.Error.Code != value.ErrName {
		t.Fatalf("got %#v, want a NameError for an unknown pipeline node", v)
	}
}

func TestEvalDotCallWithArgsPassesReceiverFirst(t *testing.T) {
	v := run(t, `add = \(x, y) x + y
5.add(3)`)
	if v.Kind != value.KindInt || v.I != 8 {
		t.Fatalf("got %#v, want Int(8) from 5.add(3) desugaring to add(5, 3)", v)
	}
}

func TestEvalDotCallReceiverEvaluatedOnlyOnce(t *testing.T) {
	root, reg, calls := withCountingBuiltin(t)
	prog, diags := parser.Parse("t", "identity = \\(x) x\ntick().identity()")
	if diags.HasErrors() {
		t.Fatalf("parse error: %s", diags.Error())
	}
	ev := New(reg)
	v, err := ev.EvalProgram(prog, root.ChildEnv())
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v.Kind != value.KindInt || v.I != 1 {
		t.Fatalf("got %#v, want Int(1)", v)
	}
	if *calls != 1 {
		t.Fatalf("got %d calls to the receiver builtin, want exactly 1 (dot-call must not double-evaluate its receiver)", *calls)
	}
}

func TestEvalBuiltinCallWithUnknownNamedArgIsArityError(t *testing.T) {
	v := run(t, `mean([1, 2, 3], bogus=true)`)
	if !v.IsError() || v.Error.Code != value.ErrArity {
		t.Fatalf("got %#v, want an ArityError for an unknown named argument", v)
	}
}

func buildTestFrame(t *testing.T) value.Value {
	t.Helper()
	ageCol := table.NewColumn(table.Int64, []table.Cell{
		{Type: table.Int64, I: 25},
		{Type: table.Int64, I: 30},
		{Type: table.Int64, I: 35},
	})
	tbl, err := table.New([]string{"age"}, []table.ColumnView{ageCol})
	if err != nil {
		t.Fatalf("building test frame: %v", err)
	}
	return value.DataFrame(tbl)
}

func TestEvalFilterKeepsMatchingRows(t *testing.T) {
	root, reg := registry.Root()
	ev := New(reg)
	child := root.ChildEnv()
	child.Define("df", buildTestFrame(t))

	prog, diags := parser.Parse("t", "filter(df, $age > 28)")
	if diags.HasErrors() {
		t.Fatalf("parse error: %s", diags.Error())
	}
	v, err := ev.EvalProgram(prog, child)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v.Kind != value.KindDataFrame {
		t.Fatalf("got %#v, want a DataFrame", v)
	}
	if v.DataFrame.NumRows() != 2 {
		t.Fatalf("got %d rows, want 2 (ages 30 and 35)", v.DataFrame.NumRows())
	}
}

func TestEvalColumnRefOutsideRowContextIsDeferred(t *testing.T) {
	v := run(t, "$age")
	if v.Kind != value.KindColumnRef || v.ColumnRef != "age" {
		t.Fatalf("got %#v, want a deferred ColumnRef(age)", v)
	}
}

func TestEvalFormulaCapturesWithoutEvaluating(t *testing.T) {
	prog, diags := parser.Parse("t", "weight ~ $height")
	if diags.HasErrors() {
		t.Fatalf("parse error: %s", diags.Error())
	}
	root, reg := registry.Root()
	ev := New(reg)
	v, err := ev.EvalProgram(prog, root.ChildEnv())
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v.Kind != value.KindFormula {
		t.Fatalf("got %#v, want a Formula value", v)
	}
}

func TestEvalStringConcatIsTypeError(t *testing.T) {
	v := run(t, `"a" + "b"`)
	if !v.IsError() || v.Error.Code != value.ErrType {
		t.Fatalf("got %#v, want a TypeError for string `+`", v)
	}
}

func TestEvalFloatDivisionByZeroYieldsInf(t *testing.T) {
	v := run(t, "4.0 / 0.0")
	if v.Kind != value.KindFloat || !math.IsInf(v.F, 1) {
		t.Fatalf("got %#v, want +Inf", v)
	}
}

func TestEvalIntDivisionByZeroStillYieldsDivisionByZero(t *testing.T) {
	v := run(t, "4 / 0")
	if !v.IsError() || v.Error.Code != value.ErrDivByZero {
		t.Fatalf("got %#v, want DivisionByZero for integer division", v)
	}
}

func TestEvalIsErrorReceivesTheErrorInsteadOfAbsorbingIt(t *testing.T) {
	v := run(t, "is_error(1 / 0)")
	b, ok := v.Truthy()
	if !ok || !b {
		t.Fatalf("got %#v, want true: is_error must receive the DivisionByZero error", v)
	}
}

func TestEvalErrorCodeReceivesTheError(t *testing.T) {
	v := run(t, "error_code(1 / 0)")
	if v.Kind != value.KindString || v.S != string(value.ErrDivByZero) {
		t.Fatalf("got %#v, want the string %q", v, value.ErrDivByZero)
	}
}

func TestEvalErrorMessageReceivesTheError(t *testing.T) {
	v := run(t, `error_message(stop("boom"))`)
	if v.Kind != value.KindString || v.S != "boom" {
		t.Fatalf("got %#v, want \"boom\"", v)
	}
}

func TestEvalErrorContextReturnsDict(t *testing.T) {
	v := run(t, `error_context(stop("boom"))`)
	if v.Kind != value.KindDict {
		t.Fatalf("got %#v, want an (empty) Dict", v)
	}
	if len(v.Dict.Keys) != 0 {
		t.Fatalf("got %#v, want no context entries for a plain stop()", v)
	}
}

func TestEvalErrorContextOnNonErrorIsTypeError(t *testing.T) {
	v := run(t, "error_context(1)")
	if !v.IsError() || v.Error.Code != value.ErrType {
		t.Fatalf("got %#v, want a TypeError", v)
	}
}

func TestEvalFilterUsesBareLambdaWithoutRowBinding(t *testing.T) {
	root, reg := registry.Root()
	ev := New(reg)
	child := root.ChildEnv()
	child.Define("df", buildTestFrame(t))

	// No ColumnRef appears in the lambda body, so it must be applied as-is
	// to the row Dict (spec.md §4.3), rather than going through the
	// `$row`-scoped rewrite used for `$col` predicates.
	prog, diags := parser.Parse("t", `filter(df, \(row) length(row) == 1)`)
	if diags.HasErrors() {
		t.Fatalf("parse error: %s", diags.Error())
	}
	v, err := ev.EvalProgram(prog, child)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v.Kind != value.KindDataFrame {
		t.Fatalf("got %#v, want a DataFrame", v)
	}
	if v.DataFrame.NumRows() != 3 {
		t.Fatalf("got %d rows, want all 3 rows kept (the bare lambda runs against each row Dict)", v.DataFrame.NumRows())
	}
}
