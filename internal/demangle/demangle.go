// Package demangle wraps ianlancetaylor/demangle behind the breakpad
// package's Demangler interface, so dwarfsrc, machosrc, and pesrc all
// demangle C++/Rust names the same way.
package demangle

import gademangle "github.com/ianlancetaylor/demangle"

// Demangler demangles Itanium C++ ABI and Rust v0/legacy mangled names.
type Demangler struct {
	NoParams bool
}

// Demangle implements breakpad.Demangler.
func (d Demangler) Demangle(name string) (string, bool) {
	var opts []gademangle.Option
	if d.NoParams {
		opts = append(opts, gademangle.NoParams)
	}
	out, err := gademangle.ToString(name, opts...)
	if err != nil {
		return "", false
	}
	return out, true
}
