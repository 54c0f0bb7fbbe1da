// Package tdoc is the authoritative source of truth for builtin
// documentation surfaced to running T programs (`help`, `apropos`, `args`,
// `package_info`). It is grounded on core/catalog/catalog.go's
// "canonical descriptive registry, queried read-only by the rest of the
// system" shape, generalized from cloud-resource tiers to builtin function
// signatures.
package tdoc

import (
	"sort"
	"strings"

	"tlang/core/builtin"
)

// Entry describes one builtin's calling convention and documentation.
type Entry struct {
	Name     string
	Params   []string
	Optional []string
	Variadic bool
	Doc      string
}

// Signature renders the entry's call signature, e.g. "mean(x, na_rm = <default>)".
func (e Entry) Signature() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte('(')
	first := true
	for _, p := range e.Params {
		if !first {
			b.WriteString(", ")
		}
		b.WriteString(p)
		first = false
	}
	for _, p := range e.Optional {
		if !first {
			b.WriteString(", ")
		}
		b.WriteString(p)
		b.WriteString(" = <default>")
		first = false
	}
	if e.Variadic {
		if !first {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteByte(')')
	return b.String()
}

// FromRegistry snapshots every Spec in reg into a sorted slice of Entry,
// the authoritative listing `package_info()`/`apropos()` render from.
func FromRegistry(reg *builtin.Registry) []Entry {
	names := reg.Names()
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		spec, _ := reg.Lookup(n)
		out = append(out, Entry{
			Name:     spec.Name,
			Params:   append([]string{}, spec.Params...),
			Optional: append([]string{}, spec.Optional...),
			Variadic: spec.Variadic,
			Doc:      spec.Doc,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Apropos filters FromRegistry's output to entries whose name contains
// substr (case-insensitive); substr == "" matches everything.
func Apropos(reg *builtin.Registry, substr string) []Entry {
	all := FromRegistry(reg)
	if substr == "" {
		return all
	}
	needle := strings.ToLower(substr)
	var out []Entry
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Help renders a single entry's help text, or ok=false if name is unknown.
func Help(reg *builtin.Registry, name string) (string, bool) {
	spec, ok := reg.Lookup(name)
	if !ok {
		return "", false
	}
	e := Entry{Name: spec.Name, Params: spec.Params, Optional: spec.Optional, Variadic: spec.Variadic, Doc: spec.Doc}
	return e.Signature() + "\n" + e.Doc, true
}

// Args renders just the parameter list for name, used by `args()`.
func Args(reg *builtin.Registry, name string) (string, bool) {
	spec, ok := reg.Lookup(name)
	if !ok {
		return "", false
	}
	e := Entry{Name: spec.Name, Params: spec.Params, Optional: spec.Optional, Variadic: spec.Variadic}
	return e.Signature(), true
}
