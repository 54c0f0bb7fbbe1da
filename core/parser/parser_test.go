package parser

import (
	"testing"

	"tlang/core/ast"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, diags := Parse("t", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected parse errors for %q: %s", src, diags.Error())
	}
	return prog
}

func TestParseAssignAndRebind(t *testing.T) {
	prog := mustParse(t, "x = 1\nx := 2")
	if len(prog.Statements) != 2 {
		t.Fatalf("got %d statements, want 2", len(prog.Statements))
	}
	a1, ok := prog.Statements[0].(*ast.Assign)
	if !ok || a1.Rebind {
		t.Fatalf("statement 0: want a non-rebind Assign, got %#v", prog.Statements[0])
	}
	a2, ok := prog.Statements[1].(*ast.Assign)
	if !ok || !a2.Rebind {
		t.Fatalf("statement 1: want a rebind Assign, got %#v", prog.Statements[1])
	}
}

func TestParseBinaryPrecedence(t *testing.T) {
	// 1 + 2 * 3 must parse as 1 + (2 * 3), not (1 + 2) * 3.
	prog := mustParse(t, "1 + 2 * 3")
	bin, ok := prog.Statements[0].(*ast.Binary)
	if !ok || bin.Op != "+" {
		t.Fatalf("want top-level '+', got %#v", prog.Statements[0])
	}
	rhs, ok := bin.Y.(*ast.Binary)
	if !ok || rhs.Op != "*" {
		t.Fatalf("want '*' nested under '+', got %#v", bin.Y)
	}
}

func TestParsePipeDesugarsAsCallWrapper(t *testing.T) {
	prog := mustParse(t, "x |> f(1)")
	pipe, ok := prog.Statements[0].(*ast.Pipe)
	if !ok {
		t.Fatalf("want *ast.Pipe, got %#v", prog.Statements[0])
	}
	if pipe.Safe {
		t.Errorf("plain |> must not be marked Safe")
	}
	if len(pipe.Call.Args) != 1 {
		t.Fatalf("want the call's own explicit arg preserved, got %d args", len(pipe.Call.Args))
	}
}

func TestParseSafePipe(t *testing.T) {
	prog := mustParse(t, "x ?|> f()")
	pipe, ok := prog.Statements[0].(*ast.Pipe)
	if !ok || !pipe.Safe {
		t.Fatalf("want a Safe *ast.Pipe, got %#v", prog.Statements[0])
	}
}

func TestParseColumnRefAndFormula(t *testing.T) {
	prog := mustParse(t, "age ~ $weight")
	f, ok := prog.Statements[0].(*ast.Formula)
	if !ok {
		t.Fatalf("want *ast.Formula, got %#v", prog.Statements[0])
	}
	if _, ok := f.Lhs.(*ast.Ident); !ok {
		t.Errorf("want Lhs to be an Ident, got %#v", f.Lhs)
	}
	cr, ok := f.Rhs.(*ast.ColumnRef)
	if !ok || cr.Name != "weight" {
		t.Fatalf("want Rhs to be ColumnRef(weight), got %#v", f.Rhs)
	}
}

func TestParseLambda(t *testing.T) {
	prog := mustParse(t, `f = \(x, y) x + y`)
	a := prog.Statements[0].(*ast.Assign)
	lam, ok := a.Value.(*ast.Lambda)
	if !ok {
		t.Fatalf("want *ast.Lambda, got %#v", a.Value)
	}
	if len(lam.Params) != 2 || lam.Params[0] != "x" || lam.Params[1] != "y" {
		t.Errorf("got params %v, want [x y]", lam.Params)
	}
}

func TestParseIfElse(t *testing.T) {
	prog := mustParse(t, "if (true) 1 else 2")
	ifx, ok := prog.Statements[0].(*ast.IfExpr)
	if !ok {
		t.Fatalf("want *ast.IfExpr, got %#v", prog.Statements[0])
	}
	if _, ok := ifx.Cond.(*ast.BoolLit); !ok {
		t.Errorf("want Cond to be a BoolLit, got %#v", ifx.Cond)
	}
}

func TestParseListLiteralTrailingComma(t *testing.T) {
	prog := mustParse(t, "[1, 2, 3,]")
	lst, ok := prog.Statements[0].(*ast.ListLit)
	if !ok {
		t.Fatalf("want *ast.ListLit, got %#v", prog.Statements[0])
	}
	if len(lst.Entries) != 3 {
		t.Fatalf("got %d entries, want 3 (trailing comma must not add a 4th)", len(lst.Entries))
	}
}

func TestParsePipelineBlock(t *testing.T) {
	prog := mustParse(t, "pipeline { x = 1\ny = 2\nz = x + y }")
	pb, ok := prog.Statements[0].(*ast.PipelineBlock)
	if !ok {
		t.Fatalf("want *ast.PipelineBlock, got %#v", prog.Statements[0])
	}
	if len(pb.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(pb.Nodes))
	}
	names := []string{pb.Nodes[0].Name, pb.Nodes[1].Name, pb.Nodes[2].Name}
	want := []string{"x", "y", "z"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("node %d: got name %q, want %q", i, names[i], want[i])
		}
	}
}

func TestParseNewlinesInsideParensAreWhitespace(t *testing.T) {
	prog := mustParse(t, "f(\n  1,\n  2\n)")
	call, ok := prog.Statements[0].(*ast.Call)
	if !ok {
		t.Fatalf("want *ast.Call, got %#v", prog.Statements[0])
	}
	if len(call.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(call.Args))
	}
}

func TestParseNamedArg(t *testing.T) {
	prog := mustParse(t, "f(x = 1, y: 2)")
	call := prog.Statements[0].(*ast.Call)
	if len(call.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(call.Args))
	}
	for i, want := range []string{"x", "y"} {
		if call.Args[i].Name == nil || *call.Args[i].Name != want {
			t.Errorf("arg %d: want name %q, got %#v", i, want, call.Args[i].Name)
		}
	}
}

func TestParseSyntaxErrorOnUnexpectedToken(t *testing.T) {
	_, diags := Parse("t", "x = ;")
	if !diags.HasErrors() {
		t.Fatalf("expected a parse diagnostic for a value-less assignment")
	}
}

func TestParseSyntaxErrorOnUnclosedCall(t *testing.T) {
	_, diags := Parse("t", "f(1, 2")
	if !diags.HasErrors() {
		t.Fatalf("expected a parse diagnostic for an unclosed call")
	}
}
