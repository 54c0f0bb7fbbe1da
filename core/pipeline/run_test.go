package pipeline

import (
	"testing"

	"tlang/core/eval"
	"tlang/core/parser"
	"tlang/core/registry"
	"tlang/core/value"
)

func buildPipelineValue(t *testing.T, src string) (*value.PipelineValue, *eval.Evaluator) {
	t.Helper()
	prog, diags := parser.Parse("t", src)
	if diags.HasErrors() {
		t.Fatalf("parse error for %q: %s", src, diags.Error())
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("expected exactly one statement, got %d", len(prog.Statements))
	}
	root, reg := registry.Root()
	ev := eval.New(reg)
	v, err := ev.EvalProgram(prog, root.ChildEnv())
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v.Kind != value.KindPipeline {
		t.Fatalf("got %#v, want a Pipeline value", v)
	}
	return v.Pipeline, ev
}

func TestExecuteRunsNodesInDependencyOrder(t *testing.T) {
	pv, ev := buildPipelineValue(t, "pipeline { x = 1\ny = 2\nz = x + y }")
	res, errv := Execute(pv, func(fn value.Value, args []value.Value) (value.Value, error) {
		return ev.Apply(fn, args, nil, nil, nil)
	})
	if errv.Kind == value.KindError {
		t.Fatalf("unexpected pipeline-level error: %v", errv.Error)
	}
	z := res.Nodes["z"]
	if z == nil || z.Status != StatusSuccess {
		t.Fatalf("got %#v, want node z to succeed", z)
	}
	if z.Value.Kind != value.KindInt || z.Value.I != 3 {
		t.Fatalf("got %#v, want Int(3)", z.Value)
	}
}

func TestExecuteReportsCycleAsValueError(t *testing.T) {
	pv, ev := buildPipelineValue(t, "pipeline { a = b\nb = a }")
	_, errv := Execute(pv, func(fn value.Value, args []value.Value) (value.Value, error) {
		return ev.Apply(fn, args, nil, nil, nil)
	})
	if errv.Kind != value.KindError || errv.Error.Code != value.ErrValue {
		t.Fatalf("got %#v, want a ValueError for a dependency cycle", errv)
	}
}

func TestExecutePropagatesUpstreamFailure(t *testing.T) {
	pv, ev := buildPipelineValue(t, "pipeline { a = 1 / 0\nb = a + 1 }")
	res, errv := Execute(pv, func(fn value.Value, args []value.Value) (value.Value, error) {
		return ev.Apply(fn, args, nil, nil, nil)
	})
	if errv.Kind == value.KindError {
		t.Fatalf("unexpected pipeline-level error: %v", errv.Error)
	}
	a := res.Nodes["a"]
	if a == nil || a.Status != StatusFailed {
		t.Fatalf("got %#v, want node a to fail on division by zero", a)
	}
	b := res.Nodes["b"]
	if b == nil || b.Status != StatusFailed {
		t.Fatalf("got %#v, want node b to fail due to upstream failure", b)
	}
}
