package pipeline

import (
	"fmt"

	"tlang/core/ast"
	"tlang/core/value"
)

// ApplyFunc evaluates fn (a Function Value) against args, the same shape as
// value.CallSite.Apply — core/builtins passes its CallSite's Apply straight
// through so this package never needs to import core/eval directly.
type ApplyFunc func(fn value.Value, args []value.Value) (value.Value, error)

// NodeStatus is a pipeline node's terminal evaluation state (spec.md §4.5
// point 4's node state machine).
type NodeStatus int

const (
	StatusSuccess NodeStatus = iota
	StatusFailed
)

// NodeResult is one node's outcome after Execute.
type NodeResult struct {
	Name   string
	Value  value.Value
	Status NodeStatus
	Err    string
}

// Result is a whole pipeline run's outcome, in evaluation (topological)
// order.
type Result struct {
	Order []string
	Nodes map[string]*NodeResult
}

// Compile builds and seals a Graph from a PipelineValue's declared nodes,
// without evaluating anything. It is also used by introspection builtins
// (pipeline_deps) that need dependency edges but not node values.
func Compile(pv *value.PipelineValue) (*Graph, map[string]ast.Expr, error) {
	names := make(map[string]bool, len(pv.Nodes))
	exprs := make(map[string]ast.Expr, len(pv.Nodes))
	declOrder := make([]string, 0, len(pv.Nodes))
	for _, n := range pv.Nodes {
		if names[n.Name] {
			return nil, nil, fmt.Errorf("pipeline: duplicate node name %q", n.Name)
		}
		names[n.Name] = true
		exprs[n.Name] = n.Expr
		declOrder = append(declOrder, n.Name)
	}

	g := NewGraph()
	for _, n := range declOrder {
		g.AddNode(NodeID(n))
	}
	for _, n := range declOrder {
		for _, dep := range extractDependencies(exprs[n], n, names, declOrder) {
			g.AddEdge(NodeID(dep), NodeID(n))
		}
	}
	g.Seal()
	return g, exprs, nil
}

// Execute runs every node of pv in topological order, using apply to invoke
// each node's expression as a zero-argument closure over a shared frame
// extended with prior nodes' values (spec.md §4.5 point 4). A cycle is
// reported as a ValueError in the second return value with a nil Result,
// matching spec.md's example message text exactly; otherwise the per-node
// Result is returned with a zero Value. A pipeline that has already been run once (or had a node
// accessed via `.name`) returns its cached per-node results instead of
// re-evaluating (spec.md §3's idempotent re-run guarantee).
func Execute(pv *value.PipelineValue, apply ApplyFunc) (*Result, value.Value) {
	g, exprs, err := Compile(pv)
	if err != nil {
		return nil, value.Err(value.ErrValue, err.Error())
	}
	order, err := g.TopoOrder()
	if err != nil {
		return nil, value.Err(value.ErrValue, err.Error())
	}

	if cached, ok := pv.Cached(); ok {
		res := &Result{Order: append([]string{}, stringsOf(order)...), Nodes: make(map[string]*NodeResult, len(order))}
		for _, id := range order {
			name := string(id)
			v := cached[name]
			if v.IsError() {
				res.Nodes[name] = &NodeResult{Name: name, Value: v, Status: StatusFailed, Err: v.Error.Message}
			} else {
				res.Nodes[name] = &NodeResult{Name: name, Value: v, Status: StatusSuccess}
			}
		}
		return res, value.Value{}
	}

	res := &Result{Nodes: make(map[string]*NodeResult, len(order))}
	frame := pv.Env.Child()

	enter()
	defer leave()

	for _, id := range order {
		name := string(id)
		res.Order = append(res.Order, name)

		var upstreamFailure *NodeResult
		for _, dep := range g.Dependencies(id) {
			if dr := res.Nodes[string(dep)]; dr != nil && dr.Status == StatusFailed {
				upstreamFailure = dr
				break
			}
		}
		if upstreamFailure != nil {
			msg := fmt.Sprintf("upstream node `%s` failed: %s", upstreamFailure.Name, upstreamFailure.Err)
			res.Nodes[name] = &NodeResult{
				Name:   name,
				Value:  value.Err(value.ErrValue, msg),
				Status: StatusFailed,
				Err:    msg,
			}
			continue
		}

		closure := value.Func(&value.FunctionValue{Name: name, Body: exprs[name], Env: frame})
		v, goErr := apply(closure, nil)
		if goErr != nil {
			res.Nodes[name] = &NodeResult{Name: name, Value: value.Err(value.ErrGeneric, goErr.Error()), Status: StatusFailed, Err: goErr.Error()}
			continue
		}
		if v.IsError() {
			res.Nodes[name] = &NodeResult{Name: name, Value: v, Status: StatusFailed, Err: v.Error.Message}
			continue
		}
		res.Nodes[name] = &NodeResult{Name: name, Value: v, Status: StatusSuccess}
		_ = frame.Define(name, v)
	}

	cache := make(map[string]value.Value, len(res.Nodes))
	for name, nr := range res.Nodes {
		cache[name] = nr.Value
	}
	pv.FillCache(cache)

	return res, value.Value{}
}

func stringsOf(ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
