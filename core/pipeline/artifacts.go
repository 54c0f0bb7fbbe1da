package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"tlang/core/determinism"
	"tlang/core/serialize"
	"tlang/core/value"
)

// CodedError carries the value.ErrorCode a pipeline filesystem operation
// should surface as, letting core/builtins translate a Go error straight
// into the right first-class Error value without re-classifying string
// messages.
type CodedError struct {
	Code value.ErrorCode
	Msg  string
}

func (e *CodedError) Error() string { return e.Msg }

// Store writes a pipeline run's artifacts to disk under artifactRoot,
// following spec.md §6.2's on-disk layout exactly: one artifact.tobj per
// successful node, a dag.json describing every node's dependencies and the
// evaluation order, a timestamped build log, and registry.json. Store does
// not track unsafe mode; the filesystem restriction inside node expressions
// is enforced by the filesystem-touching builtins in core/builtins.
type Store struct {
	ArtifactRoot string
	NixBuildPath string
}

// BuildOutcome is what populate_pipeline/build_pipeline return to T code: the
// registry (node -> artifact path) plus the build log path written.
type BuildOutcome struct {
	Registry     serialize.Registry
	BuildLogPath string
	OutPath      string
	UsedNix      bool
}

// Populate writes artifacts for every successfully evaluated node in res,
// plus dag.json and the build log, using the local artifact layout (no
// external build tool).
func (s *Store) Populate(g *Graph, res *Result, now time.Time) (*BuildOutcome, error) {
	return s.build(g, res, now, false)
}

// Build behaves like Populate but first attempts to shell out to nix-build
// when pipeline.nix exists and the nix-build executable is reachable
// (spec.md §4.5 point 6, §6.4); it falls back to the local layout on any
// failure to locate either.
func (s *Store) Build(g *Graph, res *Result, now time.Time) (*BuildOutcome, error) {
	if _, err := os.Stat("pipeline.nix"); err == nil {
		if path, err := s.resolveNixBuild(); err == nil {
			out, buildErr := s.build(g, res, now, true)
			if buildErr == nil {
				cmd := exec.Command(path, "pipeline.nix")
				output, runErr := cmd.Output()
				if runErr == nil {
					out.OutPath = strings.TrimSpace(string(output))
				}
				return out, nil
			}
		}
	}
	return s.build(g, res, now, false)
}

func (s *Store) resolveNixBuild() (string, error) {
	if s.NixBuildPath != "" {
		return s.NixBuildPath, nil
	}
	return exec.LookPath("nix-build")
}

func (s *Store) build(g *Graph, res *Result, now time.Time, usedNix bool) (*BuildOutcome, error) {
	root := s.ArtifactRoot
	if root == "" {
		root = "_pipeline"
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	registry := make(serialize.Registry)
	logNodes := make([]serialize.BuildLogNode, 0, len(res.Order))
	var hashInput []byte

	for _, name := range res.Order {
		nr := res.Nodes[name]
		logEntry := serialize.BuildLogNode{Node: name, Success: nr.Status == StatusSuccess}
		hashInput = append(hashInput, []byte(name)...)
		hashInput = append(hashInput, 0)
		if nr.Status == StatusSuccess {
			nodeDir := filepath.Join(root, name)
			if err := os.MkdirAll(nodeDir, 0755); err != nil {
				return nil, fmt.Errorf("pipeline: %w", err)
			}
			artifactPath := filepath.Join(nodeDir, "artifact.tobj")
			f, err := os.Create(artifactPath)
			if err != nil {
				return nil, fmt.Errorf("pipeline: %w", err)
			}
			err = serialize.Encode(f, nr.Value)
			closeErr := f.Close()
			if err != nil {
				return nil, fmt.Errorf("pipeline: serializing node %q: %w", name, err)
			}
			if closeErr != nil {
				return nil, fmt.Errorf("pipeline: %w", closeErr)
			}
			abs, err := filepath.Abs(artifactPath)
			if err != nil {
				abs = artifactPath
			}
			registry[name] = abs
			logEntry.Path = abs
			hashInput = append(hashInput, []byte(abs)...)
		} else {
			hashInput = append(hashInput, []byte("FAILED:"+nr.Err)...)
		}
		logNodes = append(logNodes, logEntry)
	}

	dag := serialize.DagJSON{Nodes: make(map[string][]string, len(res.Order)), Order: res.Order}
	for _, name := range res.Order {
		deps := g.Dependencies(NodeID(name))
		depNames := make([]string, len(deps))
		for i, d := range deps {
			depNames[i] = string(d)
		}
		sort.Strings(depNames)
		dag.Nodes[name] = depNames
	}
	dagBytes, err := serialize.MarshalIndent(dag)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(root, "dag.json"), dagBytes, 0644); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	hash := determinism.ComputeHash(hashInput)
	timestamp := now.Format("20060102_150405")
	logName := fmt.Sprintf("build_log_%s_%s.json", timestamp, hash.Short())
	buildLog := serialize.BuildLogJSON{
		Timestamp: now.Format(time.RFC3339),
		Hash:      hash.Hex(),
		Nodes:     logNodes,
	}
	logBytes, err := serialize.MarshalIndent(buildLog)
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(root, logName)
	if err := os.WriteFile(logPath, logBytes, 0644); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	registryBytes, err := serialize.MarshalIndent(registry)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(root, "registry.json"), registryBytes, 0644); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	return &BuildOutcome{Registry: registry, BuildLogPath: logPath, UsedNix: usedNix}, nil
}

// ReadNode implements spec.md §4.5 point 7's time-travel read: find the
// latest build log matching whichLogPattern (or the most recent log if
// whichLogPattern is ""), resolve name's artifact path from the registry
// recorded in that run, and deserialize it.
func ReadNode(artifactRoot, name, whichLogPattern string) (value.Value, error) {
	var re *regexp.Regexp
	if whichLogPattern != "" {
		var err error
		re, err = regexp.Compile(whichLogPattern)
		if err != nil {
			return value.Value{}, &CodedError{Code: value.ErrType, Msg: fmt.Sprintf("read_node: invalid regex %q: %s", whichLogPattern, err.Error())}
		}
	}

	entries, err := os.ReadDir(artifactRoot)
	if err != nil {
		return value.Value{}, &CodedError{Code: value.ErrFile, Msg: fmt.Sprintf("read_node: %s", err.Error())}
	}

	var logs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "build_log_") && strings.HasSuffix(e.Name(), ".json") {
			if re == nil || re.MatchString(e.Name()) {
				logs = append(logs, e.Name())
			}
		}
	}
	if len(logs) == 0 {
		return value.Value{}, &CodedError{Code: value.ErrFile, Msg: "read_node: no matching build log found"}
	}
	sort.Strings(logs)
	latest := logs[len(logs)-1]

	logData, err := os.ReadFile(filepath.Join(artifactRoot, latest))
	if err != nil {
		return value.Value{}, &CodedError{Code: value.ErrFile, Msg: fmt.Sprintf("read_node: %s", err.Error())}
	}
	var buildLog serialize.BuildLogJSON
	if err := json.Unmarshal(logData, &buildLog); err != nil {
		return value.Value{}, &CodedError{Code: value.ErrFile, Msg: fmt.Sprintf("read_node: %s", err.Error())}
	}

	var path string
	found := false
	for _, n := range buildLog.Nodes {
		if n.Node == name {
			path, found = n.Path, n.Success
			break
		}
	}
	if !found {
		return value.Value{}, &CodedError{Code: value.ErrKey, Msg: fmt.Sprintf("read_node: no such node %q in %s", name, latest)}
	}

	f, err := os.Open(path)
	if err != nil {
		return value.Value{}, &CodedError{Code: value.ErrFile, Msg: fmt.Sprintf("read_node: %s", err.Error())}
	}
	defer f.Close()

	v, err := serialize.Decode(f)
	if err != nil {
		return value.Value{}, &CodedError{Code: value.ErrFile, Msg: fmt.Sprintf("read_node: %s", err.Error())}
	}
	return v, nil
}
