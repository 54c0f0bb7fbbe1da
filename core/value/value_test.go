package value

import "testing"

func TestErrorStringMatchesSpecFormat(t *testing.T) {
	v := Err(ErrType, `Operation on NA: +`)
	got := v.String()
	want := `Error(TypeError: "Operation on NA: +")`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPipelineStringListsNodesBeforeRun(t *testing.T) {
	pv := &PipelineValue{Name: "p", Nodes: []PipelineNodeDef{{Name: "x"}, {Name: "y"}}}
	got := pv.String()
	want := "Pipeline(2 nodes: [x, y])"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPipelineStringListsFailuresAfterRun(t *testing.T) {
	pv := &PipelineValue{Name: "p", Nodes: []PipelineNodeDef{{Name: "a"}, {Name: "b"}}}
	pv.FillCache(map[string]Value{
		"a": Err(ErrDivByZero, "division by zero"),
		"b": Int(1),
	})
	got := pv.String()
	want := "Pipeline(2 nodes: [a, b])\nErrors:\n  - `a` failed: division by zero."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPipelineCacheFillsOnceAndIsIdempotent(t *testing.T) {
	pv := &PipelineValue{Name: "p", Nodes: []PipelineNodeDef{{Name: "a"}}}
	pv.FillCache(map[string]Value{"a": Int(1)})
	pv.FillCache(map[string]Value{"a": Int(2)})
	cache, ok := pv.Cached()
	if !ok {
		t.Fatalf("expected the pipeline to report a cached result")
	}
	if cache["a"].I != 1 {
		t.Fatalf("got %#v, want the first FillCache call to win", cache["a"])
	}
}
