package builtins

import (
	"strings"

	"tlang/core/builtin"
	"tlang/core/tdoc"
	"tlang/core/value"
)

// registerDoc wires help()/apropos()/args()/package_info() against reg
// itself, since these are the one family of builtins that need registry
// introspection rather than just their own arguments.
func registerDoc(reg *builtin.Registry) {
	bi(reg, "help", []string{"name"}, nil, false, "Returns the signature and documentation for a builtin by name.", func(cs *value.CallSite) (value.Value, error) {
		if cs.Args[0].Kind != value.KindString {
			return argErr("help", "expected a string builtin name")
		}
		text, ok := tdoc.Help(reg, cs.Args[0].S)
		if !ok {
			return value.Err(value.ErrName, "help: no such builtin "+cs.Args[0].S), nil
		}
		return value.Str(text), nil
	})

	bi(reg, "args", []string{"name"}, nil, false, "Returns a builtin's parameter signature by name.", func(cs *value.CallSite) (value.Value, error) {
		if cs.Args[0].Kind != value.KindString {
			return argErr("args", "expected a string builtin name")
		}
		sig, ok := tdoc.Args(reg, cs.Args[0].S)
		if !ok {
			return value.Err(value.ErrName, "args: no such builtin "+cs.Args[0].S), nil
		}
		return value.Str(sig), nil
	})

	bi(reg, "apropos", nil, []string{"pattern"}, false, "Lists every builtin whose name contains pattern (default: every builtin), one per line.", func(cs *value.CallSite) (value.Value, error) {
		pattern := ""
		if p, ok := cs.Named["pattern"]; ok {
			pattern = p.S
		} else if len(cs.Args) > 0 {
			pattern = cs.Args[0].S
		}
		entries := tdoc.Apropos(reg, pattern)
		out := make([]value.Value, len(entries))
		for i, e := range entries {
			out[i] = value.Str(e.Name)
		}
		return value.Vector(out), nil
	})

	bi(reg, "package_info", nil, nil, false, "Returns a multi-line listing of every builtin's signature and documentation.", func(cs *value.CallSite) (value.Value, error) {
		entries := tdoc.FromRegistry(reg)
		var b strings.Builder
		for i, e := range entries {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(e.Signature())
			if e.Doc != "" {
				b.WriteString(" -- ")
				b.WriteString(e.Doc)
			}
		}
		return value.Str(b.String()), nil
	})
}
