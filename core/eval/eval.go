// Package eval is the tree-walking evaluator: operator semantics, pipes,
// lambda application, `$col` non-standard evaluation for data verbs, and
// formula/pipeline/intent construction (spec.md §4.3). It is grounded on
// core/engine/engine.go and core/engine/orchestrator.go's eval-loop shape
// and core/expression/context.go's reference-resolution pattern, adapted
// from Terraform expression evaluation to T's expression language.
package eval

import (
	"fmt"
	"math"
	"sort"

	"tlang/core/ast"
	"tlang/core/builtin"
	"tlang/core/column"
	"tlang/core/env"
	"tlang/core/pipeline"
	"tlang/core/table"
	"tlang/core/value"
)

// Evaluator walks an AST against an environment, dispatching calls to
// builtins registered in Registry and handling the small set of data-verb
// special forms that need non-standard evaluation.
type Evaluator struct {
	Registry *builtin.Registry
}

// New creates an Evaluator bound to reg.
func New(reg *builtin.Registry) *Evaluator {
	return &Evaluator{Registry: reg}
}

// rowBinding is the reserved environment key under which the current row's
// Dict is stored while evaluating a data-verb's NSE argument. It cannot
// collide with a user identifier because '$' never starts an IDENT token.
const rowBinding = "$row"

// EvalProgram evaluates every statement in prog in order, returning the
// value of the last statement (spec.md §4.3: a program's result is its
// final expression's value, mirroring a script's last line).
func (e *Evaluator) EvalProgram(prog *ast.Program, en *env.Env) (value.Value, error) {
	result := value.Null()
	for _, stmt := range prog.Statements {
		v, err := e.Eval(stmt, en)
		if err != nil {
			return value.Value{}, err
		}
		result = v
	}
	return result, nil
}

// Eval evaluates a single expression node. Errors returned are Go errors
// for malformed programs the parser let through (should be rare); runtime
// failures the language itself can catch/inspect are KindError Values
// returned with a nil error, per spec.md §7's two-tier error model.
func (e *Evaluator) Eval(n ast.Expr, en *env.Env) (value.Value, error) {
	switch node := n.(type) {
	case *ast.IntLit:
		return value.Int(node.Value), nil
	case *ast.FloatLit:
		return value.Float(node.Value), nil
	case *ast.StringLit:
		return value.Str(node.Value), nil
	case *ast.BoolLit:
		return value.Bool(node.Value), nil
	case *ast.NullLit:
		return value.Null(), nil
	case *ast.NALit:
		return value.NA(value.NAGeneric), nil
	case *ast.Ident:
		return e.evalIdent(node, en)
	case *ast.ColumnRef:
		return e.evalColumnRef(node, en)
	case *ast.Unary:
		return e.evalUnary(node, en)
	case *ast.Binary:
		return e.evalBinary(node, en)
	case *ast.IfExpr:
		return e.evalIf(node, en)
	case *ast.Lambda:
		return e.evalLambda(node, en), nil
	case *ast.ListLit:
		return e.evalListLit(node, en)
	case *ast.DictLit:
		return e.evalDictLit(node, en)
	case *ast.Formula:
		return value.Formula(node.Lhs, node.Rhs, en), nil
	case *ast.PipelineBlock:
		return e.evalPipelineBlock(node, en)
	case *ast.IntentBlock:
		return e.evalIntentBlock(node, en)
	case *ast.Call:
		return e.evalCall(node, en)
	case *ast.Pipe:
		return e.evalPipe(node, en)
	case *ast.Assign:
		return e.evalAssign(node, en)
	case *ast.Block:
		return e.evalBlock(node, en)
	default:
		return value.Value{}, fmt.Errorf("eval: unhandled node type %T", n)
	}
}

func (e *Evaluator) evalIdent(node *ast.Ident, en *env.Env) (value.Value, error) {
	if v, ok := en.Lookup(node.Name); ok {
		return v, nil
	}
	return value.Err(value.ErrName, fmt.Sprintf("name %q is not defined", node.Name)), nil
}

func (e *Evaluator) evalColumnRef(node *ast.ColumnRef, en *env.Env) (value.Value, error) {
	if row, ok := en.Lookup(rowBinding); ok && row.Kind == value.KindDict {
		if v, ok := row.Dict.Values[node.Name]; ok {
			return v, nil
		}
		return value.Err(value.ErrKey, fmt.Sprintf("no such column %q", node.Name)), nil
	}
	// Outside row context, $col is itself a first-class ColumnRef value
	// (spec.md §3: formulas and deferred column expressions carry it as
	// data rather than resolving it immediately).
	return value.ColumnRef(node.Name), nil
}

func (e *Evaluator) evalAssign(node *ast.Assign, en *env.Env) (value.Value, error) {
	v, err := e.Eval(node.Value, en)
	if err != nil {
		return value.Value{}, err
	}
	if v.IsError() {
		return v, nil
	}
	if node.Rebind {
		if err := en.Rebind(node.Name, v); err != nil {
			return value.Err(value.ErrName, err.Error()), nil
		}
	} else {
		if err := en.Define(node.Name, v); err != nil {
			return value.Err(value.ErrName, err.Error()), nil
		}
	}
	return v, nil
}

func (e *Evaluator) evalBlock(node *ast.Block, en *env.Env) (value.Value, error) {
	child := en.ChildEnv()
	result := value.Null()
	for _, stmt := range node.Statements {
		v, err := e.Eval(stmt, child)
		if err != nil {
			return value.Value{}, err
		}
		result = v
	}
	return result, nil
}

func (e *Evaluator) evalIf(node *ast.IfExpr, en *env.Env) (value.Value, error) {
	cond, err := e.Eval(node.Cond, en)
	if err != nil {
		return value.Value{}, err
	}
	if cond.IsError() {
		return cond, nil
	}
	if cond.IsNA() {
		return value.Err(value.ErrType, "if: condition is NA"), nil
	}
	b, ok := cond.Truthy()
	if !ok {
		return value.Err(value.ErrType, fmt.Sprintf("if: condition must be bool, got %s", cond.TypeName())), nil
	}
	if b {
		return e.Eval(node.Then, en)
	}
	return e.Eval(node.Else, en)
}

func (e *Evaluator) evalLambda(node *ast.Lambda, en *env.Env) value.Value {
	return value.Func(&value.FunctionValue{
		Params:   node.Params,
		Variadic: node.Variadic,
		Body:     node.Body,
		Env:      en,
	})
}

func (e *Evaluator) evalListLit(node *ast.ListLit, en *env.Env) (value.Value, error) {
	names := make([]*string, len(node.Entries))
	vals := make([]value.Value, len(node.Entries))
	for i, entry := range node.Entries {
		v, err := e.Eval(entry.Expr, en)
		if err != nil {
			return value.Value{}, err
		}
		if v.IsError() {
			return v, nil
		}
		names[i] = entry.Name
		vals[i] = v
	}
	return value.List(names, vals), nil
}

func (e *Evaluator) evalDictLit(node *ast.DictLit, en *env.Env) (value.Value, error) {
	keys := make([]string, len(node.Entries))
	vals := make(map[string]value.Value, len(node.Entries))
	for i, entry := range node.Entries {
		v, err := e.Eval(entry.Value, en)
		if err != nil {
			return value.Value{}, err
		}
		if v.IsError() {
			return v, nil
		}
		keys[i] = entry.Key
		vals[entry.Key] = v
	}
	return value.Dict(keys, vals), nil
}

func (e *Evaluator) evalPipelineBlock(node *ast.PipelineBlock, en *env.Env) (value.Value, error) {
	defs := make([]value.PipelineNodeDef, len(node.Nodes))
	for i, n := range node.Nodes {
		defs[i] = value.PipelineNodeDef{Name: n.Name, Expr: n.Value}
	}
	return value.Pipeline("", defs, en), nil
}

func (e *Evaluator) evalIntentBlock(node *ast.IntentBlock, en *env.Env) (value.Value, error) {
	order := make([]string, len(node.Fields))
	fields := make(map[string]value.Value, len(node.Fields))
	for i, f := range node.Fields {
		v, err := e.Eval(f.Value, en)
		if err != nil {
			return value.Value{}, err
		}
		if v.IsError() {
			return v, nil
		}
		order[i] = f.Key
		fields[f.Key] = v
	}
	return value.Intent(order, fields), nil
}

func (e *Evaluator) evalPipe(node *ast.Pipe, en *env.Env) (value.Value, error) {
	lhs, err := e.Eval(node.X, en)
	if err != nil {
		return value.Value{}, err
	}
	if lhs.IsError() {
		return lhs, nil
	}
	if node.Safe && lhs.IsNA() {
		return lhs, nil
	}
	// x |> f(args...) becomes f(x, args...): splice lhs as the first
	// positional argument of the call.
	call := *node.Call
	call.Args = append([]ast.Arg{{Expr: &valueLiteral{Base: ast.Base{}, v: lhs}}}, call.Args...)
	return e.evalCall(&call, en)
}

// valueLiteral wraps an already-evaluated Value so it can be spliced back
// into an ast.Arg list (used by pipe desugaring, which must splice a value,
// not a new sub-expression, as the call's first argument).
type valueLiteral struct {
	ast.Base
	v value.Value
}

func (vl *valueLiteral) exprNode() {}

var dataVerbs = map[string]bool{
	"select": true, "filter": true, "mutate": true,
	"arrange": true, "group_by": true, "summarize": true, "ungroup": true,
}

func (e *Evaluator) evalCall(node *ast.Call, en *env.Env) (value.Value, error) {
	ident, isIdent := node.Fn.(*ast.Ident)
	if isIdent {
		if dataVerbs[ident.Name] {
			return e.evalDataVerb(ident.Name, node, en)
		}
	}

	// absorbsError marks the spec.md §3 error-absorption exceptions
	// (is_error, error_code, error_message, error_context): these builtins
	// must receive an Error argument rather than have it short-circuited
	// back around the call.
	absorbsError := false
	if isIdent {
		if spec, ok := e.Registry.Lookup(ident.Name); ok {
			absorbsError = spec.AbsorbsError
		}
	}

	var recv value.Value
	haveRecv := node.Dot && isIdent && len(node.Args) > 0 && node.Args[0].Name == nil
	if haveRecv {
		var err error
		recv, err = e.evalArgValue(node.Args[0].Expr, en)
		if err != nil {
			return value.Value{}, err
		}
		if recv.IsError() && !absorbsError {
			return recv, nil
		}
		if recv.Kind == value.KindPipeline {
			return e.evalPipelineNodeAccess(recv.Pipeline, ident.Name, en)
		}
	}

	fn, err := e.Eval(node.Fn, en)
	if err != nil {
		return value.Value{}, err
	}
	if fn.IsError() {
		return fn, nil
	}

	args := make([]value.Value, 0, len(node.Args))
	named := make(map[string]value.Value)
	raw := make([]value.RawArg, len(node.Args))
	for i, a := range node.Args {
		raw[i] = value.RawArg{Name: a.Name, Expr: a.Expr}
		var v value.Value
		if i == 0 && haveRecv {
			v = recv
		} else {
			var err error
			v, err = e.evalArgValue(a.Expr, en)
			if err != nil {
				return value.Value{}, err
			}
		}
		if v.IsError() && !absorbsError {
			return v, nil
		}
		if a.Name != nil {
			named[*a.Name] = v
		} else {
			args = append(args, v)
		}
	}

	return e.Apply(fn, args, named, raw, en)
}

// evalPipelineNodeAccess resolves `p.name` (spec.md §4.5 point 5): the whole
// pipeline is run (or its cached result reused, spec.md §3) and the named
// node's value is returned. An unknown node name is a NameError.
func (e *Evaluator) evalPipelineNodeAccess(p *value.PipelineValue, name string, en *env.Env) (value.Value, error) {
	found := false
	for _, n := range p.Nodes {
		if n.Name == name {
			found = true
			break
		}
	}
	if !found {
		return value.Err(value.ErrName, fmt.Sprintf("pipeline %q has no node named `%s`", p.Name, name)), nil
	}

	res, errv := pipeline.Execute(p, func(fn value.Value, args []value.Value) (value.Value, error) {
		return e.Apply(fn, args, nil, nil, en)
	})
	if res == nil {
		return errv, nil
	}
	nr, ok := res.Nodes[name]
	if !ok {
		return value.Err(value.ErrName, fmt.Sprintf("pipeline %q has no node named `%s`", p.Name, name)), nil
	}
	return nr.Value, nil
}

// evalArgValue evaluates an argument, recognizing the synthetic valueLiteral
// node pipe-desugaring produces instead of re-walking it as an expression.
func (e *Evaluator) evalArgValue(x ast.Expr, en *env.Env) (value.Value, error) {
	if vl, ok := x.(*valueLiteral); ok {
		return vl.v, nil
	}
	return e.Eval(x, en)
}

// Apply invokes fn (a Function value, either a user lambda or a registered
// builtin) with already-evaluated positional/named arguments plus the raw
// argument expressions, for builtins that need them.
func (e *Evaluator) Apply(fn value.Value, args []value.Value, named map[string]value.Value, raw []value.RawArg, en *env.Env) (value.Value, error) {
	if fn.Kind != value.KindFunction {
		return value.Err(value.ErrType, fmt.Sprintf("attempt to call a value of type %s", fn.TypeName())), nil
	}
	f := fn.Function

	if f.Builtin != nil {
		if spec, ok := e.Registry.Lookup(f.Name); ok {
			if _, errv, ok := builtin.BindArgs(spec, &value.CallSite{Args: args, Named: named}); !ok {
				return errv, nil
			}
		}
		cs := &value.CallSite{
			Args:  args,
			Named: named,
			Raw:   raw,
			Env:   en,
			Apply: func(callee value.Value, callArgs []value.Value) (value.Value, error) {
				return e.Apply(callee, callArgs, nil, nil, en)
			},
		}
		return f.Builtin(cs)
	}

	closureEnv, ok := f.Env.(*env.Env)
	if !ok {
		return value.Value{}, fmt.Errorf("eval: function closure environment has unexpected type %T", f.Env)
	}
	call := closureEnv.ChildEnv()

	pi := 0
	for _, pname := range f.Params {
		var v value.Value
		if pi < len(args) {
			v = args[pi]
			pi++
		} else if nv, ok := named[pname]; ok {
			v = nv
		} else {
			return value.Err(value.ErrArity, fmt.Sprintf("missing argument %q", pname)), nil
		}
		if err := call.Define(pname, v); err != nil {
			return value.Value{}, err
		}
	}
	if f.Variadic {
		rest := args[pi:]
		if err := call.Define("...", value.Vector(rest)); err != nil {
			return value.Value{}, err
		}
	} else if pi < len(args) {
		return value.Err(value.ErrArity, fmt.Sprintf("too many arguments: expected %d, got %d", len(f.Params), len(args))), nil
	}

	return e.Eval(f.Body, call)
}

// ---- operators ----

func (e *Evaluator) evalUnary(node *ast.Unary, en *env.Env) (value.Value, error) {
	x, err := e.Eval(node.X, en)
	if err != nil {
		return value.Value{}, err
	}
	if x.IsError() {
		return x, nil
	}
	switch node.Op {
	case "-":
		if x.IsNA() {
			return value.Err(value.ErrType, "Operation on NA: unary -"), nil
		}
		switch x.Kind {
		case value.KindInt:
			return value.Int(-x.I), nil
		case value.KindFloat:
			return value.Float(-x.F), nil
		default:
			return value.Err(value.ErrType, fmt.Sprintf("unary -: expected numeric, got %s", x.TypeName())), nil
		}
	case "!":
		if x.IsNA() {
			return value.Err(value.ErrType, "Operation on NA: unary !"), nil
		}
		b, ok := x.Truthy()
		if !ok {
			return value.Err(value.ErrType, fmt.Sprintf("unary !: expected bool, got %s", x.TypeName())), nil
		}
		return value.Bool(!b), nil
	}
	return value.Value{}, fmt.Errorf("eval: unknown unary operator %q", node.Op)
}

var broadcastOps = map[string]string{
	".+": "+", ".-": "-", ".*": "*", "./": "/",
	".==": "==", ".<=": "<=", ".>=": ">=", ".<": "<", ".>": ">",
	".&": "&&", ".|": "||",
}

func (e *Evaluator) evalBinary(node *ast.Binary, en *env.Env) (value.Value, error) {
	x, err := e.Eval(node.X, en)
	if err != nil {
		return value.Value{}, err
	}
	if x.IsError() {
		return x, nil
	}

	// && and || short-circuit before evaluating the right-hand side
	// (spec.md §4.3), except their broadcast forms, which are elementwise
	// and must evaluate both sides. Neither operator tolerates an NA
	// operand: spec.md's "no silent NA propagation" invariant applies to
	// && and || exactly as it does to arithmetic and comparison.
	if node.Op == "&&" {
		if x.IsNA() {
			return value.Err(value.ErrType, "Operation on NA: &&"), nil
		}
		b, ok := x.Truthy()
		if !ok {
			return value.Err(value.ErrType, fmt.Sprintf("&&: expected bool, got %s", x.TypeName())), nil
		}
		if !b {
			return value.Bool(false), nil
		}
		y, err := e.Eval(node.Y, en)
		if err != nil {
			return value.Value{}, err
		}
		if y.IsError() {
			return y, nil
		}
		if y.IsNA() {
			return value.Err(value.ErrType, "Operation on NA: &&"), nil
		}
		yb, ok := y.Truthy()
		if !ok {
			return value.Err(value.ErrType, fmt.Sprintf("&&: expected bool, got %s", y.TypeName())), nil
		}
		return value.Bool(yb), nil
	}
	if node.Op == "||" {
		if x.IsNA() {
			return value.Err(value.ErrType, "Operation on NA: ||"), nil
		}
		b, ok := x.Truthy()
		if !ok {
			return value.Err(value.ErrType, fmt.Sprintf("||: expected bool, got %s", x.TypeName())), nil
		}
		if b {
			return value.Bool(true), nil
		}
		y, err := e.Eval(node.Y, en)
		if err != nil {
			return value.Value{}, err
		}
		if y.IsError() {
			return y, nil
		}
		if y.IsNA() {
			return value.Err(value.ErrType, "Operation on NA: ||"), nil
		}
		yb, ok := y.Truthy()
		if !ok {
			return value.Err(value.ErrType, fmt.Sprintf("||: expected bool, got %s", y.TypeName())), nil
		}
		return value.Bool(yb), nil
	}

	y, err := e.Eval(node.Y, en)
	if err != nil {
		return value.Value{}, err
	}
	if y.IsError() {
		return y, nil
	}

	if scalarOp, isBroadcast := broadcastOps[node.Op]; isBroadcast {
		return e.evalBroadcast(scalarOp, x, y)
	}
	return applyScalarOp(node.Op, x, y)
}

func (e *Evaluator) evalBroadcast(scalarOp string, x, y value.Value) (value.Value, error) {
	xv, xIsVec := asVector(x)
	yv, yIsVec := asVector(y)
	switch {
	case xIsVec && yIsVec:
		if len(xv) != len(yv) {
			return value.Err(value.ErrValue, "broadcast: vectors have different lengths"), nil
		}
		out := make([]value.Value, len(xv))
		for i := range xv {
			r, err := applyScalarOp(scalarOp, xv[i], yv[i])
			if err != nil {
				return value.Value{}, err
			}
			out[i] = r
		}
		return value.Vector(out), nil
	case xIsVec:
		out := make([]value.Value, len(xv))
		for i := range xv {
			r, err := applyScalarOp(scalarOp, xv[i], y)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = r
		}
		return value.Vector(out), nil
	case yIsVec:
		out := make([]value.Value, len(yv))
		for i := range yv {
			r, err := applyScalarOp(scalarOp, x, yv[i])
			if err != nil {
				return value.Value{}, err
			}
			out[i] = r
		}
		return value.Vector(out), nil
	default:
		return applyScalarOp(scalarOp, x, y)
	}
}

func asVector(v value.Value) ([]value.Value, bool) {
	if v.Kind == value.KindVector {
		return v.Vector, true
	}
	return nil, false
}

func toFloat(v value.Value) (float64, bool) {
	switch v.Kind {
	case value.KindInt:
		return float64(v.I), true
	case value.KindFloat:
		return v.F, true
	}
	return 0, false
}

func bothInt(x, y value.Value) bool { return x.Kind == value.KindInt && y.Kind == value.KindInt }

// applyScalarOp implements arithmetic/comparison/logical operators over
// scalar values. spec.md's "no silent NA propagation" invariant makes every
// one of these operators reject an NA operand outright with a TypeError;
// only a builtin's explicit na_rm=true option may skip an NA (evalBinary
// handles && / || short-circuiting before this is reached).
func applyScalarOp(op string, x, y value.Value) (value.Value, error) {
	if x.IsNA() || y.IsNA() {
		return value.Err(value.ErrType, fmt.Sprintf("Operation on NA: %s", op)), nil
	}

	switch op {
	case "+", "-", "*", "/", "%":
		if op == "+" && (x.Kind == value.KindString || y.Kind == value.KindString) {
			return value.Err(value.ErrType, "string `+` is disallowed; use `join` or `paste` to concatenate strings"), nil
		}
		xf, xok := toFloat(x)
		yf, yok := toFloat(y)
		if !xok || !yok {
			return value.Err(value.ErrType, fmt.Sprintf("%s: expected numeric operands, got %s and %s", op, x.TypeName(), y.TypeName())), nil
		}
		if op == "/" && yf == 0 && bothInt(x, y) {
			return value.Err(value.ErrDivByZero, "division by zero"), nil
		}
		if op == "%" && yf == 0 && bothInt(x, y) {
			return value.Err(value.ErrDivByZero, "modulo by zero"), nil
		}
		if bothInt(x, y) && op != "/" {
			switch op {
			case "+":
				return value.Int(x.I + y.I), nil
			case "-":
				return value.Int(x.I - y.I), nil
			case "*":
				return value.Int(x.I * y.I), nil
			case "%":
				return value.Int(x.I % y.I), nil
			}
		}
		switch op {
		case "+":
			return value.Float(xf + yf), nil
		case "-":
			return value.Float(xf - yf), nil
		case "*":
			return value.Float(xf * yf), nil
		case "/":
			return value.Float(xf / yf), nil
		case "%":
			return value.Float(math.Mod(xf, yf)), nil
		}
	case "==", "!=":
		eq := valuesEqual(x, y)
		if op == "==" {
			return value.Bool(eq), nil
		}
		return value.Bool(!eq), nil
	case "<", ">", "<=", ">=":
		return compareOp(op, x, y)
	case "&&":
		xb, xok := x.Truthy()
		yb, yok := y.Truthy()
		if !xok || !yok {
			return value.Err(value.ErrType, "&&: expected bool operands"), nil
		}
		return value.Bool(xb && yb), nil
	case "||":
		xb, xok := x.Truthy()
		yb, yok := y.Truthy()
		if !xok || !yok {
			return value.Err(value.ErrType, "||: expected bool operands"), nil
		}
		return value.Bool(xb || yb), nil
	}
	return value.Value{}, fmt.Errorf("eval: unknown binary operator %q", op)
}

func compareOp(op string, x, y value.Value) (value.Value, error) {
	var cmp int
	switch {
	case x.Kind == value.KindString && y.Kind == value.KindString:
		switch {
		case x.S < y.S:
			cmp = -1
		case x.S > y.S:
			cmp = 1
		}
	default:
		xf, xok := toFloat(x)
		yf, yok := toFloat(y)
		if !xok || !yok {
			return value.Err(value.ErrType, fmt.Sprintf("%s: expected comparable operands, got %s and %s", op, x.TypeName(), y.TypeName())), nil
		}
		switch {
		case xf < yf:
			cmp = -1
		case xf > yf:
			cmp = 1
		}
	}
	switch op {
	case "<":
		return value.Bool(cmp < 0), nil
	case ">":
		return value.Bool(cmp > 0), nil
	case "<=":
		return value.Bool(cmp <= 0), nil
	case ">=":
		return value.Bool(cmp >= 0), nil
	}
	return value.Value{}, fmt.Errorf("eval: unknown comparison operator %q", op)
}

func valuesEqual(x, y value.Value) bool {
	if x.Kind != y.Kind {
		xf, xok := toFloat(x)
		yf, yok := toFloat(y)
		if xok && yok {
			return xf == yf
		}
		return false
	}
	switch x.Kind {
	case value.KindInt:
		return x.I == y.I
	case value.KindFloat:
		return x.F == y.F
	case value.KindBool:
		return x.B == y.B
	case value.KindString:
		return x.S == y.S
	case value.KindNull:
		return true
	default:
		return false
	}
}

// ---- data verbs (NSE) ----

func rowDict(t table.Table, names []string, r int) value.Value {
	vals := make(map[string]value.Value, len(names))
	for _, name := range names {
		col, _ := t.Column(name)
		vals[name] = column.CellToValue(col.GetValueAt(r))
	}
	return value.Dict(append([]string{}, names...), vals)
}

func (e *Evaluator) evalDataVerb(name string, node *ast.Call, en *env.Env) (value.Value, error) {
	switch name {
	case "select":
		return e.verbSelect(node, en)
	case "filter":
		return e.verbFilter(node, en)
	case "mutate":
		return e.verbMutate(node, en)
	case "arrange":
		return e.verbArrange(node, en)
	case "group_by":
		return e.verbGroupBy(node, en)
	case "summarize":
		return e.verbSummarize(node, en)
	case "ungroup":
		return e.verbUngroup(node, en)
	}
	return value.Value{}, fmt.Errorf("eval: unknown data verb %q", name)
}

func (e *Evaluator) evalFrameArg(node *ast.Call, en *env.Env) (value.Value, table.Table, error) {
	if len(node.Args) == 0 {
		return value.Err(value.ErrArity, fmt.Sprintf("%s: missing data frame argument", identName(node.Fn))), nil, nil
	}
	first, err := e.evalArgValue(node.Args[0].Expr, en)
	if err != nil {
		return value.Value{}, nil, err
	}
	if first.IsError() {
		return first, nil, nil
	}
	if first.Kind != value.KindDataFrame {
		return value.Err(value.ErrType, fmt.Sprintf("%s: expected a DataFrame, got %s", identName(node.Fn), first.TypeName())), nil, nil
	}
	return value.Value{}, first.DataFrame, nil
}

func identName(x ast.Expr) string {
	if id, ok := x.(*ast.Ident); ok {
		return id.Name
	}
	return "<verb>"
}

func columnRefName(x ast.Expr) (string, bool) {
	cr, ok := x.(*ast.ColumnRef)
	if !ok {
		return "", false
	}
	return cr.Name, true
}

// containsColumnRef walks x looking for a `$col` reference, to decide
// whether a data-verb argument uses the row-scoped NSE form or is a plain
// expression (spec.md §4.3).
func containsColumnRef(x ast.Expr) bool {
	switch n := x.(type) {
	case nil:
		return false
	case *ast.ColumnRef:
		return true
	case *ast.Unary:
		return containsColumnRef(n.X)
	case *ast.Binary:
		return containsColumnRef(n.X) || containsColumnRef(n.Y)
	case *ast.Pipe:
		return containsColumnRef(n.X) || containsColumnRef(n.Call)
	case *ast.Call:
		if containsColumnRef(n.Fn) {
			return true
		}
		for _, a := range n.Args {
			if containsColumnRef(a.Expr) {
				return true
			}
		}
		return false
	case *ast.IfExpr:
		return containsColumnRef(n.Cond) || containsColumnRef(n.Then) || containsColumnRef(n.Else)
	case *ast.Lambda:
		return containsColumnRef(n.Body)
	case *ast.ListLit:
		for _, e := range n.Entries {
			if containsColumnRef(e.Expr) {
				return true
			}
		}
		return false
	case *ast.DictLit:
		for _, e := range n.Entries {
			if containsColumnRef(e.Value) {
				return true
			}
		}
		return false
	case *ast.Formula:
		return containsColumnRef(n.Lhs) || containsColumnRef(n.Rhs)
	case *ast.Block:
		for _, s := range n.Statements {
			if containsColumnRef(s) {
				return true
			}
		}
		return false
	case *ast.Assign:
		return containsColumnRef(n.Value)
	default:
		return false
	}
}

// verbPredicateLambda reports whether arg is already a lambda with no
// `$col` reference in its body (spec.md §4.3: "If no ColumnRef appears and
// the argument is already a lambda, it is used as-is"), in which case the
// row-scoped `$row` NSE binding is skipped and the lambda is applied to the
// row Dict directly.
func verbPredicateLambda(arg ast.Expr) (*ast.Lambda, bool) {
	lam, ok := arg.(*ast.Lambda)
	if !ok || containsColumnRef(lam) {
		return nil, false
	}
	return lam, true
}

func (e *Evaluator) verbSelect(node *ast.Call, en *env.Env) (value.Value, error) {
	errv, t, err := e.evalFrameArg(node, en)
	if err != nil {
		return value.Value{}, err
	}
	if t == nil {
		return errv, nil
	}
	var names []string
	for _, a := range node.Args[1:] {
		nm, ok := columnRefName(a.Expr)
		if !ok {
			return value.Err(value.ErrType, "select: arguments after the first must be $column references"), nil
		}
		names = append(names, nm)
	}
	out, err := t.Project(names)
	if err != nil {
		return value.Err(value.ErrValue, err.Error()), nil
	}
	return value.DataFrame(out), nil
}

func (e *Evaluator) verbFilter(node *ast.Call, en *env.Env) (value.Value, error) {
	errv, t, err := e.evalFrameArg(node, en)
	if err != nil {
		return value.Value{}, err
	}
	if t == nil {
		return errv, nil
	}
	if len(node.Args) < 2 {
		return value.Err(value.ErrArity, "filter: expected a predicate argument"), nil
	}
	pred := node.Args[1].Expr
	names := t.ColumnNames()
	mask := make([]bool, t.NumRows())

	if lam, ok := verbPredicateLambda(pred); ok {
		fn, err := e.Eval(lam, en)
		if err != nil {
			return value.Value{}, err
		}
		for r := 0; r < t.NumRows(); r++ {
			v, err := e.Apply(fn, []value.Value{rowDict(t, names, r)}, nil, nil, en)
			if err != nil {
				return value.Value{}, err
			}
			if v.IsError() {
				return v, nil
			}
			b, ok := v.Truthy()
			mask[r] = ok && b
		}
		out, err := t.Filter(mask)
		if err != nil {
			return value.Err(value.ErrValue, err.Error()), nil
		}
		return value.DataFrame(out), nil
	}

	for r := 0; r < t.NumRows(); r++ {
		rowEnv := en.ChildEnv()
		rowEnv.Define(rowBinding, rowDict(t, names, r))
		v, err := e.Eval(pred, rowEnv)
		if err != nil {
			return value.Value{}, err
		}
		if v.IsError() {
			return v, nil
		}
		b, ok := v.Truthy()
		mask[r] = ok && b
	}
	out, err := t.Filter(mask)
	if err != nil {
		return value.Err(value.ErrValue, err.Error()), nil
	}
	return value.DataFrame(out), nil
}

func (e *Evaluator) verbMutate(node *ast.Call, en *env.Env) (value.Value, error) {
	errv, t, err := e.evalFrameArg(node, en)
	if err != nil {
		return value.Value{}, err
	}
	if t == nil {
		return errv, nil
	}
	for _, a := range node.Args[1:] {
		if a.Name == nil {
			return value.Err(value.ErrType, "mutate: expected name = expr arguments"), nil
		}
		names := t.ColumnNames()
		vals := make([]value.Value, t.NumRows())
		if lam, ok := verbPredicateLambda(a.Expr); ok {
			fn, err := e.Eval(lam, en)
			if err != nil {
				return value.Value{}, err
			}
			for r := 0; r < t.NumRows(); r++ {
				v, err := e.Apply(fn, []value.Value{rowDict(t, names, r)}, nil, nil, en)
				if err != nil {
					return value.Value{}, err
				}
				if v.IsError() {
					return v, nil
				}
				vals[r] = v
			}
		} else {
			for r := 0; r < t.NumRows(); r++ {
				rowEnv := en.ChildEnv()
				rowEnv.Define(rowBinding, rowDict(t, names, r))
				v, err := e.Eval(a.Expr, rowEnv)
				if err != nil {
					return value.Value{}, err
				}
				if v.IsError() {
					return v, nil
				}
				vals[r] = v
			}
		}
		typ := column.InferColumnType(vals)
		col, err := column.BuildColumn(typ, vals)
		if err != nil {
			return value.Err(value.ErrType, err.Error()), nil
		}
		t, err = t.AddColumn(*a.Name, col)
		if err != nil {
			return value.Err(value.ErrValue, err.Error()), nil
		}
	}
	return value.DataFrame(t), nil
}

func (e *Evaluator) verbArrange(node *ast.Call, en *env.Env) (value.Value, error) {
	errv, t, err := e.evalFrameArg(node, en)
	if err != nil {
		return value.Value{}, err
	}
	if t == nil {
		return errv, nil
	}
	type key struct {
		name string
		desc bool
	}
	var keys []key
	for _, a := range node.Args[1:] {
		expr := a.Expr
		desc := false
		if u, ok := expr.(*ast.Unary); ok && u.Op == "-" {
			desc = true
			expr = u.X
		}
		nm, ok := columnRefName(expr)
		if !ok {
			return value.Err(value.ErrType, "arrange: arguments must be $column references"), nil
		}
		keys = append(keys, key{name: nm, desc: desc})
	}
	idx := make([]int, t.NumRows())
	for i := range idx {
		idx[i] = i
	}
	cols := make([]table.ColumnView, len(keys))
	for i, k := range keys {
		c, ok := t.Column(k.name)
		if !ok {
			return value.Err(value.ErrKey, fmt.Sprintf("arrange: no such column %q", k.name)), nil
		}
		cols[i] = c
	}
	sort.SliceStable(idx, func(i, j int) bool {
		for ki, k := range keys {
			a := cols[ki].GetValueAt(idx[i])
			b := cols[ki].GetValueAt(idx[j])
			c := compareCellsForSort(a, b)
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	out, err := t.SortByIndices(idx)
	if err != nil {
		return value.Err(value.ErrValue, err.Error()), nil
	}
	return value.DataFrame(out), nil
}

func compareCellsForSort(a, b table.Cell) int {
	if a.Null && b.Null {
		return 0
	}
	if a.Null {
		return 1
	}
	if b.Null {
		return -1
	}
	switch a.Type {
	case table.Int64:
		switch {
		case a.I < b.I:
			return -1
		case a.I > b.I:
			return 1
		}
	case table.Float64Type:
		switch {
		case a.F < b.F:
			return -1
		case a.F > b.F:
			return 1
		}
	case table.StringType:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		}
	case table.BoolType:
		if a.B != b.B {
			if !a.B {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (e *Evaluator) verbGroupBy(node *ast.Call, en *env.Env) (value.Value, error) {
	errv, t, err := e.evalFrameArg(node, en)
	if err != nil {
		return value.Value{}, err
	}
	if t == nil {
		return errv, nil
	}
	var names []string
	for _, a := range node.Args[1:] {
		nm, ok := columnRefName(a.Expr)
		if !ok {
			return value.Err(value.ErrType, "group_by: arguments must be $column references"), nil
		}
		names = append(names, nm)
	}
	g, err := t.GroupBy(names)
	if err != nil {
		return value.Err(value.ErrValue, err.Error()), nil
	}
	return value.Grouped(&value.GroupedValue{Source: t, Grouping: g, Keys: names}), nil
}

func (e *Evaluator) verbUngroup(node *ast.Call, en *env.Env) (value.Value, error) {
	if len(node.Args) == 0 {
		return value.Err(value.ErrArity, "ungroup: missing argument"), nil
	}
	v, err := e.evalArgValue(node.Args[0].Expr, en)
	if err != nil {
		return value.Value{}, err
	}
	if v.IsError() {
		return v, nil
	}
	if v.Kind != value.KindGrouped {
		return value.Err(value.ErrType, fmt.Sprintf("ungroup: expected a grouped frame, got %s", v.TypeName())), nil
	}
	return value.DataFrame(v.Grouped.Source), nil
}

var aggFuncs = map[string]table.AggOp{
	"sum": table.Sum, "mean": table.Mean, "count": table.Count, "min": table.Min, "max": table.Max,
}

func (e *Evaluator) verbSummarize(node *ast.Call, en *env.Env) (value.Value, error) {
	if len(node.Args) == 0 {
		return value.Err(value.ErrArity, "summarize: missing argument"), nil
	}
	gv, err := e.evalArgValue(node.Args[0].Expr, en)
	if err != nil {
		return value.Value{}, err
	}
	if gv.IsError() {
		return gv, nil
	}
	if gv.Kind != value.KindGrouped {
		return value.Err(value.ErrType, fmt.Sprintf("summarize: expected a grouped frame, got %s", gv.TypeName())), nil
	}

	var result table.Table
	for _, a := range node.Args[1:] {
		if a.Name == nil {
			return value.Err(value.ErrValue, "summarize: expected name = agg(...) arguments"), nil
		}
		call, ok := a.Expr.(*ast.Call)
		if !ok {
			return value.Err(value.ErrValue, "summarize: expected an aggregate call like mean($col)"), nil
		}
		fnIdent, ok := call.Fn.(*ast.Ident)
		if !ok {
			return value.Err(value.ErrValue, "summarize: expected an aggregate function name"), nil
		}
		op, ok := aggFuncs[fnIdent.Name]
		if !ok {
			return value.Err(value.ErrName, fmt.Sprintf("summarize: unknown aggregate function %q", fnIdent.Name)), nil
		}
		colName := ""
		if len(call.Args) > 0 {
			if nm, ok := columnRefName(call.Args[0].Expr); ok {
				colName = nm
			}
		}
		aggTable, err := gv.Grouped.Grouping.Aggregate(op, colName)
		if err != nil {
			return value.Err(value.ErrValue, err.Error()), nil
		}
		srcName := colName
		if op == table.Count {
			srcName = "n"
		}
		userName := *a.Name
		if result == nil {
			result = aggTable
			if userName != srcName {
				col, _ := result.Column(srcName)
				result, err = result.AddColumn(userName, col)
				if err != nil {
					return value.Err(value.ErrValue, err.Error()), nil
				}
			}
			continue
		}
		// Merge an additional aggregate column computed against the same
		// grouping; group-key columns are identical and already present.
		col, ok := aggTable.Column(srcName)
		if !ok {
			continue
		}
		result, err = result.AddColumn(userName, col)
		if err != nil {
			return value.Err(value.ErrValue, err.Error()), nil
		}
	}
	if result == nil {
		return value.Err(value.ErrValue, "summarize: no aggregate expressions given"), nil
	}
	return value.DataFrame(result), nil
}
