// Package tracker implements the intra-procedural constant propagation
// spec.md §4.3 requires: a flat lattice over operand-stack slots and local
// variable slots, tracked forward through one method's instruction stream.
// Control-flow joins merge conservatively (agree on a constant -> keep it,
// otherwise Top) rather than attempting path-sensitive or alias analysis;
// spec.md's Non-goals explicitly exclude both.
package tracker

// Value is one lattice element: either a known string constant, or Top
// (unknown — the result of a merge disagreement, a non-constant operand,
// or any value this module does not attempt to track).
type Value struct {
	known bool
	str   string
}

// Top is the unknown value.
var Top = Value{}

// Const constructs a known string constant.
func Const(s string) Value { return Value{known: true, str: s} }

// IsConst reports whether v is a known constant, returning its string.
func (v Value) IsConst() (string, bool) { return v.str, v.known }

// Merge combines two values arriving at a control-flow join: equal
// constants stay that constant, anything else becomes Top.
func Merge(a, b Value) Value {
	if a.known && b.known && a.str == b.str {
		return a
	}
	return Top
}
