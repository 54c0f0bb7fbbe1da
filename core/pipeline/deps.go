package pipeline

import "tlang/core/ast"

// freeIdents walks an expression tree and collects every Ident name
// referenced anywhere inside it. ColumnRef ($col) nodes are deliberately not
// collected: those resolve against a row binding at evaluation time, never
// against another pipeline node.
func freeIdents(n ast.Expr, out map[string]bool) {
	if n == nil {
		return
	}
	switch x := n.(type) {
	case *ast.Ident:
		out[x.Name] = true
	case *ast.Unary:
		freeIdents(x.X, out)
	case *ast.Binary:
		freeIdents(x.X, out)
		freeIdents(x.Y, out)
	case *ast.Pipe:
		freeIdents(x.X, out)
		freeIdents(x.Call, out)
	case *ast.Call:
		freeIdents(x.Fn, out)
		for _, a := range x.Args {
			freeIdents(a.Expr, out)
		}
	case *ast.IfExpr:
		freeIdents(x.Cond, out)
		freeIdents(x.Then, out)
		freeIdents(x.Else, out)
	case *ast.Lambda:
		// A lambda's body may reference a node name as a free variable (the
		// lambda closes over the pipeline's node environment), so it is
		// walked like any other subexpression; NSE inside data verbs still
		// only resolves $col, not bare idents, so this stays safe.
		freeIdents(x.Body, out)
	case *ast.ListLit:
		for _, e := range x.Entries {
			freeIdents(e.Expr, out)
		}
	case *ast.DictLit:
		for _, e := range x.Entries {
			freeIdents(e.Value, out)
		}
	case *ast.Formula:
		freeIdents(x.Lhs, out)
		freeIdents(x.Rhs, out)
	case *ast.Block:
		for _, s := range x.Statements {
			freeIdents(s, out)
		}
	case *ast.Assign:
		freeIdents(x.Value, out)
	}
}

// extractDependencies returns every otherNodeName referenced by expr's free
// identifiers, restricted to names present in nodeNames (spec.md §4.5 point
// 1: "collect every free variable name that matches another node in the
// same block"). declOrder fixes the result's iteration order to declaration
// order rather than Go's randomized map order, so two Compile calls over
// the same pipeline always produce identical edge lists (spec.md §8/§9's
// determinism requirements extend to pipeline_deps(), not just artifacts).
func extractDependencies(expr ast.Expr, self string, nodeNames map[string]bool, declOrder []string) []string {
	found := make(map[string]bool)
	freeIdents(expr, found)
	var deps []string
	for _, name := range declOrder {
		if name != self && found[name] && nodeNames[name] {
			deps = append(deps, name)
		}
	}
	return deps
}
