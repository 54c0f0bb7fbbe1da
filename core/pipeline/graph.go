// Package pipeline implements spec.md §4.5/§6.2/§6.4: dependency extraction
// over a pipeline{} block's node expressions, Tarjan cycle detection, Kahn
// topological evaluation, artifact serialization, build logs, and
// time-travel reads. Graph is the teacher's CanonicalDependencyGraph
// generalized from Terraform resource addresses to pipeline node names: the
// same node/edge/seal shape, same panics-on-sealed-mutation invariant.
package pipeline

import "fmt"

// NodeID identifies one pipeline node by its declared name.
type NodeID string

// Edge is a directed "depends on" edge: To reads From's value when
// evaluating To's expression.
type Edge struct {
	From NodeID
	To   NodeID
}

// Graph is the dependency graph for a single pipeline{} block. It is built
// once via AddNode/AddEdge, then Sealed before topological order or cycle
// detection run, exactly like the teacher's CanonicalDependencyGraph.
type Graph struct {
	order        []NodeID // declaration order, used as the Kahn tie-break
	nodes        map[NodeID]bool
	edges        map[NodeID][]NodeID // From -> [To...], i.e. dependents
	reverseEdges map[NodeID][]NodeID // To -> [From...], i.e. dependencies
	sealed       bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:        make(map[NodeID]bool),
		edges:        make(map[NodeID][]NodeID),
		reverseEdges: make(map[NodeID][]NodeID),
	}
}

// AddNode registers a node in declaration order. Adding the same node twice
// panics: the parser/pipeline builder guarantees each pipeline{} statement
// contributes one distinct name.
func (g *Graph) AddNode(id NodeID) {
	if g.sealed {
		panic("pipeline: cannot add a node to a sealed graph")
	}
	if g.nodes[id] {
		panic("pipeline: node " + string(id) + " added twice")
	}
	g.nodes[id] = true
	g.order = append(g.order, id)
}

// AddEdge records that To's expression references From (From must be
// evaluated before To).
func (g *Graph) AddEdge(from, to NodeID) {
	if g.sealed {
		panic("pipeline: cannot add an edge to a sealed graph")
	}
	if !g.nodes[from] || !g.nodes[to] {
		panic("pipeline: edge references a node not in the graph")
	}
	g.edges[from] = append(g.edges[from], to)
	g.reverseEdges[to] = append(g.reverseEdges[to], from)
}

// Seal finalizes the graph; no further AddNode/AddEdge calls are permitted.
func (g *Graph) Seal() { g.sealed = true }

// Dependencies returns the direct upstream node names of id, in the order
// they were added.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	return append([]NodeID{}, g.reverseEdges[id]...)
}

// DeclarationOrder returns every node name in the order it was declared.
func (g *Graph) DeclarationOrder() []NodeID {
	return append([]NodeID{}, g.order...)
}

// FindCycle runs Tarjan's SCC algorithm and returns the lexically-first node
// name participating in a nontrivial cycle (an SCC of size > 1, or a
// single node with a self-edge), or ok=false if the graph is acyclic.
// "Lexically first" follows declaration order, per spec.md §4.5 point 2.
func (g *Graph) FindCycle() (NodeID, bool) {
	index := make(map[NodeID]int)
	lowlink := make(map[NodeID]int)
	onStack := make(map[NodeID]bool)
	var stack []NodeID
	next := 0
	var sccs [][]NodeID

	var strongconnect func(v NodeID)
	strongconnect = func(v NodeID) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var scc []NodeID
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, id := range g.order {
		if _, seen := index[id]; !seen {
			strongconnect(id)
		}
	}

	var firstCycleNode NodeID
	found := false
	for _, scc := range sccs {
		isCycle := len(scc) > 1
		if len(scc) == 1 {
			v := scc[0]
			for _, w := range g.edges[v] {
				if w == v {
					isCycle = true
					break
				}
			}
		}
		if !isCycle {
			continue
		}
		for _, id := range g.order {
			if !found || declIndex(g.order, id) < declIndex(g.order, firstCycleNode) {
				if containsID(scc, id) {
					firstCycleNode = id
					found = true
					break
				}
			}
		}
	}
	return firstCycleNode, found
}

func declIndex(order []NodeID, id NodeID) int {
	for i, n := range order {
		if n == id {
			return i
		}
	}
	return -1
}

func containsID(ids []NodeID, id NodeID) bool {
	for _, n := range ids {
		if n == id {
			return true
		}
	}
	return false
}

// TopoOrder runs Kahn's algorithm, breaking ties by declaration order
// (spec.md §9's determinism note). The graph must be acyclic and sealed.
func (g *Graph) TopoOrder() ([]NodeID, error) {
	if !g.sealed {
		return nil, fmt.Errorf("pipeline: cannot compute topological order on an unsealed graph")
	}
	if cyc, ok := g.FindCycle(); ok {
		return nil, fmt.Errorf("Pipeline has a dependency cycle involving node `%s`.", cyc)
	}

	indegree := make(map[NodeID]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.reverseEdges[id])
	}

	var ready []NodeID
	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var out []NodeID
	for len(ready) > 0 {
		// pick the lowest-declaration-order ready node (tie-break)
		bestIdx := 0
		for i, id := range ready {
			if declIndex(g.order, id) < declIndex(g.order, ready[bestIdx]) {
				bestIdx = i
			}
			_ = i
		}
		n := ready[bestIdx]
		ready = append(ready[:bestIdx], ready[bestIdx+1:]...)
		out = append(out, n)

		for _, to := range g.edges[n] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(out) != len(g.nodes) {
		return nil, fmt.Errorf("pipeline: topological sort did not cover every node (unexpected residual cycle)")
	}
	return out, nil
}
