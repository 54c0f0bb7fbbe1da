package builtins

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"tlang/core/builtin"
	"tlang/core/pipeline"
	"tlang/core/value"
	"tlang/internal/config"
)

func registerPipeline(reg *builtin.Registry) {
	bi(reg, "pipeline_nodes", []string{"p"}, nil, false, "Returns a pipeline's declared node names in declaration order.", func(cs *value.CallSite) (value.Value, error) {
		p, ok := asPipeline(cs.Args[0])
		if !ok {
			return argErr("pipeline_nodes", "expected a pipeline value")
		}
		out := make([]value.Value, len(p.Nodes))
		for i, n := range p.Nodes {
			out[i] = value.Str(n.Name)
		}
		return value.Vector(out), nil
	})

	bi(reg, "pipeline_deps", []string{"p"}, nil, false, "Returns a dict mapping each node name to its direct dependency names.", func(cs *value.CallSite) (value.Value, error) {
		p, ok := asPipeline(cs.Args[0])
		if !ok {
			return argErr("pipeline_deps", "expected a pipeline value")
		}
		g, _, err := pipeline.Compile(p)
		if err != nil {
			return value.Err(value.ErrValue, err.Error()), nil
		}
		keys := make([]string, 0, len(p.Nodes))
		vals := make(map[string]value.Value, len(p.Nodes))
		for _, n := range p.Nodes {
			deps := g.Dependencies(pipeline.NodeID(n.Name))
			depVals := make([]value.Value, len(deps))
			for i, d := range deps {
				depVals[i] = value.Str(string(d))
			}
			keys = append(keys, n.Name)
			vals[n.Name] = value.Vector(depVals)
		}
		return value.Dict(keys, vals), nil
	})

	bi(reg, "pipeline_node", []string{"p", "name"}, nil, false, "Evaluates a pipeline and returns a single node's value by name.", func(cs *value.CallSite) (value.Value, error) {
		p, ok := asPipeline(cs.Args[0])
		if !ok {
			return argErr("pipeline_node", "expected a pipeline value")
		}
		if cs.Args[1].Kind != value.KindString {
			return argErr("pipeline_node", "expected a string node name")
		}
		res, errv := pipeline.Execute(p, cs.Apply)
		if errv.IsError() {
			return errv, nil
		}
		nr, ok := res.Nodes[cs.Args[1].S]
		if !ok {
			return value.Err(value.ErrKey, fmt.Sprintf("pipeline_node: no such node %q", cs.Args[1].S)), nil
		}
		if nr.Status == pipeline.StatusFailed {
			return value.Err(value.ErrValue, nr.Err), nil
		}
		return nr.Value, nil
	})

	bi(reg, "populate_pipeline", []string{"p"}, nil, false, "Evaluates a pipeline and writes its node artifacts, dag.json, and a build log to the local artifact store.", func(cs *value.CallSite) (value.Value, error) {
		return runPipeline(cs, false)
	})

	bi(reg, "build_pipeline", []string{"p"}, nil, false, "Evaluates a pipeline and writes artifacts, preferring nix-build when pipeline.nix is present.", func(cs *value.CallSite) (value.Value, error) {
		return runPipeline(cs, true)
	})

	bi(reg, "read_node", []string{"name"}, []string{"which_log"}, false, "Time-travel read: deserializes a node's artifact from the latest (or matching) build log.", func(cs *value.CallSite) (value.Value, error) {
		if cs.Args[0].Kind != value.KindString {
			return argErr("read_node", "expected a string node name")
		}
		pattern := ""
		if w, ok := cs.Named["which_log"]; ok {
			pattern = w.S
		} else if len(cs.Args) > 1 {
			pattern = cs.Args[1].S
		}
		v, err := pipeline.ReadNode(config.Get().Pipeline.ArtifactRoot, cs.Args[0].S, pattern)
		if err != nil {
			if ce, ok := err.(*pipeline.CodedError); ok {
				return value.Err(ce.Code, ce.Msg), nil
			}
			return value.Err(value.ErrFile, err.Error()), nil
		}
		return v, nil
	})

	bi(reg, "inspect_pipeline", []string{"p"}, nil, false, "Evaluates a pipeline and returns a dict of node name -> status string (\"success\"/\"failed\").", func(cs *value.CallSite) (value.Value, error) {
		p, ok := asPipeline(cs.Args[0])
		if !ok {
			return argErr("inspect_pipeline", "expected a pipeline value")
		}
		res, errv := pipeline.Execute(p, cs.Apply)
		if errv.IsError() {
			return errv, nil
		}
		keys := make([]string, 0, len(res.Order))
		vals := make(map[string]value.Value, len(res.Order))
		for _, name := range res.Order {
			nr := res.Nodes[name]
			status := "success"
			if nr.Status == pipeline.StatusFailed {
				status = "failed"
			}
			keys = append(keys, name)
			vals[name] = value.Str(status)
		}
		return value.Dict(keys, vals), nil
	})

	bi(reg, "list_logs", nil, []string{"which_log"}, false, "Lists build log filenames under the artifact root, optionally filtered by a regex.", func(cs *value.CallSite) (value.Value, error) {
		pattern := ""
		if w, ok := cs.Named["which_log"]; ok {
			pattern = w.S
		} else if len(cs.Args) > 0 {
			pattern = cs.Args[0].S
		}
		var re *regexp.Regexp
		if pattern != "" {
			var err error
			re, err = regexp.Compile(pattern)
			if err != nil {
				return value.Err(value.ErrType, fmt.Sprintf("list_logs: invalid regex %q: %s", pattern, err.Error())), nil
			}
		}
		entries, err := os.ReadDir(config.Get().Pipeline.ArtifactRoot)
		if err != nil {
			return value.Err(value.ErrFile, err.Error()), nil
		}
		var out []value.Value
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), "build_log_") || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			if re == nil || re.MatchString(e.Name()) {
				out = append(out, value.Str(e.Name()))
			}
		}
		return value.Vector(out), nil
	})
}

func asPipeline(v value.Value) (*value.PipelineValue, bool) {
	if v.Kind != value.KindPipeline {
		return nil, false
	}
	return v.Pipeline, true
}

func runPipeline(cs *value.CallSite, preferNix bool) (value.Value, error) {
	p, ok := asPipeline(cs.Args[0])
	if !ok {
		return argErr("populate_pipeline/build_pipeline", "expected a pipeline value")
	}
	g, _, err := pipeline.Compile(p)
	if err != nil {
		return value.Err(value.ErrValue, err.Error()), nil
	}
	res, errv := pipeline.Execute(p, cs.Apply)
	if errv.IsError() {
		return errv, nil
	}
	store := &pipeline.Store{
		ArtifactRoot: config.Get().Pipeline.ArtifactRoot,
		NixBuildPath: config.Get().Pipeline.NixBuildPath,
	}
	var outcome *pipeline.BuildOutcome
	if preferNix {
		outcome, err = store.Build(g, res, time.Now())
	} else {
		outcome, err = store.Populate(g, res, time.Now())
	}
	if err != nil {
		return value.Err(value.ErrFile, err.Error()), nil
	}
	keys := make([]string, 0, len(outcome.Registry))
	vals := make(map[string]value.Value, len(outcome.Registry))
	for _, name := range res.Order {
		path, ok := outcome.Registry[name]
		if !ok {
			continue
		}
		keys = append(keys, name)
		vals[name] = value.Str(path)
	}
	return value.Dict(keys, vals), nil
}
