package tracker

import "cryptoaudit/internal/classfile"

// CallSite is one resolved invocation encountered while tracking a
// method: the instruction itself, plus the tracked value of every
// argument position the call pushed (index 0 is the leftmost source
// argument, receiver excluded).
type CallSite struct {
	Instruction classfile.Instruction
	Args        []Value
}

// state is the tracker's abstract machine state at one program point: the
// operand stack (bottom to top) and the known value of every local
// variable slot that has been written.
type state struct {
	stack  []Value
	locals map[int]Value
}

func emptyState() state {
	return state{locals: make(map[int]Value)}
}

func (s state) clone() state {
	locals := make(map[int]Value, len(s.locals))
	for k, v := range s.locals {
		locals[k] = v
	}
	stack := make([]Value, len(s.stack))
	copy(stack, s.stack)
	return state{stack: stack, locals: locals}
}

func statesEqual(a, b state) bool {
	if len(a.stack) != len(b.stack) || len(a.locals) != len(b.locals) {
		return false
	}
	for i := range a.stack {
		if a.stack[i] != b.stack[i] {
			return false
		}
	}
	for k, v := range a.locals {
		if bv, ok := b.locals[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// mergeStates implements spec.md §4.3's join rule at a point with more than
// one predecessor: a slot or stack position is Const(s) iff every
// predecessor agrees, else Top. Stack depth disagreement between
// predecessors should not happen in verified bytecode; if it does anyway,
// this treats the merged stack as unknown past the shorter predecessor's
// depth rather than misaligning positions.
func mergeStates(a, b state) state {
	out := state{locals: make(map[int]Value)}

	n := len(a.stack)
	if len(b.stack) < n {
		n = len(b.stack)
	}
	out.stack = make([]Value, n)
	for i := 0; i < n; i++ {
		out.stack[i] = Merge(a.stack[i], b.stack[i])
	}

	for k, av := range a.locals {
		if bv, ok := b.locals[k]; ok {
			out.locals[k] = Merge(av, bv)
		}
	}
	return out
}

// runBlock interprets one basic block's instructions starting from entry,
// returning the exit state. When sites is non-nil, every invocation
// instruction encountered is appended to it with its tracked arguments.
func runBlock(instrs []classfile.Instruction, entry state, sites *[]CallSite) state {
	s := entry.clone()

	push := func(v Value) { s.stack = append(s.stack, v) }
	pop := func() Value {
		if len(s.stack) == 0 {
			return Top
		}
		v := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		return v
	}

	for _, instr := range instrs {
		switch instr.Kind {
		case classfile.KindConstString:
			push(Const(instr.StringConst))
		case classfile.KindLocalLoad:
			if v, ok := s.locals[instr.LocalSlot]; ok {
				push(v)
			} else {
				push(Top)
			}
		case classfile.KindLocalStore:
			s.locals[instr.LocalSlot] = pop()
		case classfile.KindInvoke:
			argCount, returnsVoid := classfile.ArgCount(instr.Invoke.Descriptor)
			args := make([]Value, argCount)
			for i := argCount - 1; i >= 0; i-- {
				args[i] = pop()
			}
			if instr.InvokeForm != classfile.InvokeStatic {
				pop() // receiver
			}
			if sites != nil {
				*sites = append(*sites, CallSite{Instruction: instr, Args: args})
			}
			// The call's own return value, if any, is opaque to this
			// tracker; push Top so stack depth stays consistent for any
			// later pop in the same block.
			if !returnsVoid {
				push(Top)
			}
		case classfile.KindBranch, classfile.KindSwitch:
			for i := 0; i < instr.StackPop; i++ {
				pop()
			}
		case classfile.KindGoto:
			// no operands
		default:
			for i := 0; i < instr.StackPop; i++ {
				pop()
			}
			for i := 0; i < instr.StackPush; i++ {
				push(Top)
			}
		}
	}

	return s
}

// Run builds a method's control-flow graph and walks it with a worklist
// fixpoint, merging predecessor states at every join point with Merge
// before interpreting a block, per spec.md §4.3. It returns one CallSite
// per invocation instruction in program order, with each argument resolved
// against the merged state actually reaching that call site, not just
// whichever predecessor happened to be decoded last.
//
// The lattice only moves from Const toward Top, never back, so the
// fixpoint loop below is guaranteed to stabilize; the pass cap is a
// generous bound on how many times a value can still flip before it does.
func Run(m *classfile.Method) []CallSite {
	blocks := buildBlocks(m.Instructions)
	if len(blocks) == 0 {
		return nil
	}
	starts := sortedBlockStarts(blocks)

	entry := map[int]state{starts[0]: emptyState()}

	maxPasses := len(starts) + 4
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for _, start := range starts {
			in, ok := entry[start]
			if !ok {
				continue // not yet reached by any predecessor
			}
			out := runBlock(blocks[start].instrs, in, nil)
			for _, succ := range blocks[start].successors {
				prev, seen := entry[succ]
				next := out
				if seen {
					next = mergeStates(prev, out)
				}
				if !seen || !statesEqual(prev, next) {
					entry[succ] = next
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}

	var sites []CallSite
	for _, start := range starts {
		in, ok := entry[start]
		if !ok {
			continue // block unreachable from the method's entry
		}
		runBlock(blocks[start].instrs, in, &sites)
	}
	return sites
}
