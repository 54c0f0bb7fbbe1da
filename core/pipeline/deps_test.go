package pipeline

import (
	"sort"
	"testing"

	"tlang/core/ast"
	"tlang/core/parser"
)

func parseExprOrFatal(t *testing.T, src string) ast.Expr {
	t.Helper()
	prog, diags := parser.Parse("t", src)
	if diags.HasErrors() {
		t.Fatalf("parse error for %q: %s", src, diags.Error())
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("expected exactly one statement, got %d", len(prog.Statements))
	}
	return prog.Statements[0]
}

func TestExtractDependenciesFindsReferencedNodes(t *testing.T) {
	nodeNames := map[string]bool{"x": true, "y": true, "z": true}
	expr := parseExprOrFatal(t, "x + y")
	deps := extractDependencies(expr, "z", nodeNames, []string{"x", "y", "z"})
	sort.Strings(deps)
	if len(deps) != 2 || deps[0] != "x" || deps[1] != "y" {
		t.Fatalf("got %v, want [x y]", deps)
	}
}

func TestExtractDependenciesIgnoresSelfReference(t *testing.T) {
	nodeNames := map[string]bool{"x": true}
	expr := parseExprOrFatal(t, "x + 1")
	deps := extractDependencies(expr, "x", nodeNames, []string{"x"})
	if len(deps) != 0 {
		t.Fatalf("got %v, want no dependencies (self-reference excluded)", deps)
	}
}

func TestExtractDependenciesIgnoresNamesOutsideTheBlock(t *testing.T) {
	nodeNames := map[string]bool{"x": true}
	expr := parseExprOrFatal(t, "x + some_external_builtin")
	deps := extractDependencies(expr, "z", nodeNames, []string{"x"})
	if len(deps) != 1 || deps[0] != "x" {
		t.Fatalf("got %v, want [x] (external names are not pipeline dependencies)", deps)
	}
}

func TestExtractDependenciesIgnoresColumnRefs(t *testing.T) {
	nodeNames := map[string]bool{"age": true}
	expr := parseExprOrFatal(t, "$age + 1")
	deps := extractDependencies(expr, "z", nodeNames, []string{"age"})
	if len(deps) != 0 {
		t.Fatalf("got %v, want no dependencies: $col must never be treated as a node reference", deps)
	}
}

func TestExtractDependenciesWalksNestedCalls(t *testing.T) {
	nodeNames := map[string]bool{"x": true, "y": true}
	expr := parseExprOrFatal(t, "f(x, g(y))")
	deps := extractDependencies(expr, "z", nodeNames, []string{"x", "y"})
	sort.Strings(deps)
	if len(deps) != 2 || deps[0] != "x" || deps[1] != "y" {
		t.Fatalf("got %v, want [x y]", deps)
	}
}
