// Package builtin provides the argument-binding machinery and handler
// registry that core/builtins populates and core/eval consults. It never
// imports core/eval: a builtin either operates on already-evaluated
// arguments or receives the raw unevaluated expressions in CallSite.Raw for
// NSE (spec.md §4.3), and delegates actual lambda application back through
// CallSite.Apply, a function pointer core/eval wires in at startup — the
// same registry-of-handlers shape as core/scanner/registry.go.
package builtin

import (
	"fmt"
	"sort"
	"sync"

	"tlang/core/value"
)

// Spec describes one builtin's calling convention for arg-binding purposes.
type Spec struct {
	Name     string
	Params   []string // required parameter names, in order
	Optional []string // optional parameter names, in order, after Params
	Variadic bool     // collects any remaining positional args into a trailing Vector
	Doc      string
	Fn       value.BuiltinFunc
	// AbsorbsError marks the spec.md §3 error-absorption exceptions
	// (is_error, error_code, error_message, error_context): core/eval
	// dispatches these an Error argument instead of short-circuiting and
	// returning the Error around the call.
	AbsorbsError bool
}

// Registry holds every builtin known to the interpreter, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*Spec)}
}

// Register adds spec under spec.Name. Re-registering the same name panics:
// this indicates a programming error in core/builtins' init-time setup, not
// a runtime condition.
func (r *Registry) Register(spec *Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; exists {
		panic(fmt.Sprintf("builtin: %q registered twice", spec.Name))
	}
	r.specs[spec.Name] = spec
}

// Lookup returns the Spec for name, if any.
func (r *Registry) Lookup(name string) (*Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Names returns every registered builtin name, sorted, for apropos()/doc
// listing determinism.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.specs))
	for n := range r.specs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// BindArgs applies spec.md §4.2's argument-binding rule — positional args
// fill left to right, then named args fill by name, missing required params
// raise ArityError, extra args raise ArityError unless variadic — to a
// CallSite, and returns the resulting Function closure as a plain
// name->Value map ready to Define into a fresh call frame.
func BindArgs(spec *Spec, cs *value.CallSite) (map[string]value.Value, value.Value, bool) {
	allNames := append(append([]string{}, spec.Params...), spec.Optional...)
	bound := make(map[string]value.Value, len(allNames))
	boundSet := make(map[string]bool, len(allNames))

	positional := cs.Args
	extra := []value.Value{}

	pi := 0
	for _, posVal := range positional {
		if pi >= len(allNames) {
			if spec.Variadic {
				extra = append(extra, posVal)
				continue
			}
			return nil, value.Err(value.ErrArity, fmt.Sprintf("%s: too many arguments", spec.Name)), false
		}
		bound[allNames[pi]] = posVal
		boundSet[allNames[pi]] = true
		pi++
	}

	for name, v := range cs.Named {
		found := false
		for _, n := range allNames {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			if spec.Variadic {
				bound[name] = v
				boundSet[name] = true
				continue
			}
			return nil, value.Err(value.ErrArity, fmt.Sprintf("%s: unknown argument %q", spec.Name, name)), false
		}
		bound[name] = v
		boundSet[name] = true
	}

	for _, req := range spec.Params {
		if !boundSet[req] {
			return nil, value.Err(value.ErrArity, fmt.Sprintf("%s: missing required argument %q", spec.Name, req)), false
		}
	}

	if spec.Variadic && len(extra) > 0 {
		bound["..."] = value.Vector(extra)
	}

	return bound, value.Value{}, true
}
