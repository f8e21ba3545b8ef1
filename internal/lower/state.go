package lower

import (
	"github.com/wimpl-project/wimpl/internal/ir"
)

// state is the mutable cursor and counters shared by every recursive
// lower() call for one function body (spec.md §4.2). Only the expression
// stack is NOT here — it is local to each recursion level.
type state struct {
	pc         int
	nextStack  uint32
	nextLabel  uint32
	numParams  uint32
	numLocals  uint32
	labels     labelStack
}

func (s *state) freshStack() ir.Variable {
	v := ir.Stack(s.nextStack)
	s.nextStack++
	return v
}

// localVar maps a WebAssembly local index (which WebAssembly numbers
// contiguously across parameters then declared locals) onto the
// Parameter/Local Variable split of spec.md §3.
func (s *state) localVar(i uint32) ir.Variable {
	if i < s.numParams {
		return ir.Parameter(i)
	}
	return ir.Local(i - s.numParams)
}
