package pipeline

import "testing"

func buildLinearGraph() *Graph {
	g := NewGraph()
	g.AddNode("x")
	g.AddNode("y")
	g.AddNode("z")
	g.AddEdge("x", "z")
	g.AddEdge("y", "z")
	g.Seal()
	return g
}

func TestGraphTopoOrderRespectsDependencies(t *testing.T) {
	g := buildLinearGraph()
	order, err := g.TopoOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := make(map[NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["z"] <= pos["x"] || pos["z"] <= pos["y"] {
		t.Fatalf("got order %v, want x and y before z", order)
	}
}

func TestGraphTopoOrderBreaksTiesByDeclarationOrder(t *testing.T) {
	g := NewGraph()
	g.AddNode("b")
	g.AddNode("a")
	g.Seal()
	order, err := g.TopoOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("got %v, want [b a] (declaration order, since neither depends on the other)", order)
	}
}

func TestGraphFindCycleOnDirectCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")
	g.AddNode("b")
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.Seal()
	cyc, ok := g.FindCycle()
	if !ok {
		t.Fatalf("expected a cycle to be detected")
	}
	if cyc != "a" {
		t.Errorf("got cycle node %q, want %q (lexically/declaration first)", cyc, "a")
	}
}

func TestGraphFindCycleOnSelfEdge(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")
	g.AddEdge("a", "a")
	g.Seal()
	if _, ok := g.FindCycle(); !ok {
		t.Fatalf("expected a self-edge to be reported as a cycle")
	}
}

func TestGraphFindCycleAcyclicReturnsFalse(t *testing.T) {
	g := buildLinearGraph()
	if _, ok := g.FindCycle(); ok {
		t.Fatalf("did not expect a cycle in an acyclic graph")
	}
}

func TestGraphTopoOrderErrorsOnCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")
	g.AddNode("b")
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.Seal()
	if _, err := g.TopoOrder(); err == nil {
		t.Fatalf("expected TopoOrder to error on a cyclic graph")
	}
}

func TestGraphTopoOrderCycleMessageMatchesSpecWording(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")
	g.AddNode("b")
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.Seal()
	_, err := g.TopoOrder()
	if err == nil {
		t.Fatalf("expected an error")
	}
	want := "Pipeline has a dependency cycle involving node `a`."
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestGraphTopoOrderRequiresSeal(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")
	if _, err := g.TopoOrder(); err == nil {
		t.Fatalf("expected TopoOrder to refuse an unsealed graph")
	}
}

func TestGraphDependenciesReturnsDirectUpstreamOnly(t *testing.T) {
	g := buildLinearGraph()
	deps := g.Dependencies("z")
	if len(deps) != 2 {
		t.Fatalf("got %d dependencies for z, want 2", len(deps))
	}
}

func TestGraphAddNodeTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected AddNode to panic on a duplicate node id")
		}
	}()
	g := NewGraph()
	g.AddNode("a")
	g.AddNode("a")
}

func TestGraphAddEdgeAfterSealPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected AddEdge to panic on a sealed graph")
		}
	}()
	g := NewGraph()
	g.AddNode("a")
	g.AddNode("b")
	g.Seal()
	g.AddEdge("a", "b")
}
