// Package registry builds the interpreter's root environment: every
// core/builtins function bound as a Function value, sealed so user code can
// shadow a builtin in a child frame but never overwrite the root binding
// itself. It is grounded on core/scanner/registry.go's "scan once, expose a
// read-only lookup surface" shape and core/engine/sealed_builder.go's
// seal-after-construction discipline.
package registry

import (
	"tlang/core/builtin"
	"tlang/core/builtins"
	"tlang/core/env"
)

// Root builds a fresh root *env.Env with every builtin bound, then seals it.
// The accompanying *builtin.Registry is retained for introspection
// (help(), apropos(), args(), package_info()), rendered by core/tdoc.
func Root() (*env.Env, *builtin.Registry) {
	reg := builtin.NewRegistry()
	builtins.Register(reg)

	root := env.New()
	for _, name := range reg.Names() {
		spec, _ := reg.Lookup(name)
		if err := root.Define(name, builtins.AsFunctionValue(spec)); err != nil {
			panic("registry: failed to define builtin " + name + ": " + err.Error())
		}
	}
	root.Seal()
	return root, reg
}
