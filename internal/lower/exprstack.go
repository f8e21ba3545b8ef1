package lower

import (
	"github.com/wimpl-project/wimpl/internal/ir"
	"github.com/wimpl-project/wimpl/internal/wasm"
)

// exprSlot is one entry of an exprStack: the pending expression and the
// value type it carries (the type is not recoverable from the expression
// alone once it has been materialized into a VarRef, so it rides along
// separately).
type exprSlot struct {
	Expr *ir.Expression
	Type wasm.ValueType
}

// exprStack is the lowerer's local model of the WebAssembly operand
// stack, scoped to a single nested block/loop/if recursion (spec.md §4.2:
// "a LOCAL — not shared — expression stack per recursion level"). Each
// slot holds an as-yet-unmaterialized expression tree standing in for
// what would, on the real machine, already be a concrete value.
type exprStack struct {
	slots []exprSlot
}

func newExprStack() *exprStack { return &exprStack{} }

func (s *exprStack) push(e *ir.Expression, t wasm.ValueType) {
	s.slots = append(s.slots, exprSlot{Expr: e, Type: t})
}

func (s *exprStack) pop() exprSlot {
	slot := s.slots[len(s.slots)-1]
	s.slots = s.slots[:len(s.slots)-1]
	return slot
}

// popN pops n slots, preserving their original left-to-right order.
func (s *exprStack) popN(n int) []exprSlot {
	if n == 0 {
		return nil
	}
	out := make([]exprSlot, n)
	copy(out, s.slots[len(s.slots)-n:])
	s.slots = s.slots[:len(s.slots)-n]
	return out
}

// peek returns the top slot without removing it. Used by the branch
// instructions br_if and br_table, which carry a value to a successor
// without disturbing the fall-through stack (br pops instead).
func (s *exprStack) peek() exprSlot {
	return s.slots[len(s.slots)-1]
}

func slotsToExpressions(slots []exprSlot) []*ir.Expression {
	if len(slots) == 0 {
		return nil
	}
	out := make([]*ir.Expression, len(slots))
	for i, s := range slots {
		out[i] = s.Expr
	}
	return out
}
