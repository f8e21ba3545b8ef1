// Package ir is the Wimpl data model (spec.md §3): variables, labels,
// expression trees, statements and the bodies/functions/module built from
// them.
//
// Expression follows the teacher's "tagged variant, not virtual dispatch"
// idiom (internal/engine/wazevo/ssa.Instruction in the retrieval pack: one
// struct, an opcode-like Kind discriminant, fields reused per kind) rather
// than one Go interface implementation per node type, so that a single
// exhaustive switch in internal/lower can match on Kind with compile-time
// totality (spec.md §9 design note).
package ir

import "fmt"

// VariableKind discriminates the six disjoint variable families of
// spec.md §3.
type VariableKind byte

const (
	VariableKindParameter VariableKind = iota
	VariableKindLocal
	VariableKindGlobal
	VariableKindStack
	VariableKindBlockResult
	VariableKindReturn
)

// Variable is a tagged identifier from one of the six families. Stack and
// BlockResult variables are effectively single-assignment (spec.md §3
// invariants 1-2); Parameter/Local/Global/Return may be reassigned.
type Variable struct {
	Kind  VariableKind
	Index uint32
}

// Parameter returns the Variable naming function parameter i.
func Parameter(i uint32) Variable { return Variable{Kind: VariableKindParameter, Index: i} }

// Local returns the Variable naming declared local i (0-based after
// parameters).
func Local(i uint32) Variable { return Variable{Kind: VariableKindLocal, Index: i} }

// Global returns the Variable naming module global i.
func Global(i uint32) Variable { return Variable{Kind: VariableKindGlobal, Index: i} }

// Stack returns the Variable naming the fresh temporary Stack(n).
func Stack(n uint32) Variable { return Variable{Kind: VariableKindStack, Index: n} }

// BlockResult returns the Variable carrying the result of the block
// labeled L.
func BlockResult(l Label) Variable { return Variable{Kind: VariableKindBlockResult, Index: uint32(l)} }

// Return is the function's single return slot, Return(0).
var Return = Variable{Kind: VariableKindReturn, Index: 0}

// String renders a Variable the way Wimpl source prints it, e.g. "p0",
// "l1", "g2", "s3", "b4", "r".
func (v Variable) String() string {
	switch v.Kind {
	case VariableKindParameter:
		return fmt.Sprintf("p%d", v.Index)
	case VariableKindLocal:
		return fmt.Sprintf("l%d", v.Index)
	case VariableKindGlobal:
		return fmt.Sprintf("g%d", v.Index)
	case VariableKindStack:
		return fmt.Sprintf("s%d", v.Index)
	case VariableKindBlockResult:
		return fmt.Sprintf("b%d", v.Index)
	case VariableKindReturn:
		return "r"
	default:
		return "?"
	}
}

// Label is a dense, monotonically assigned identifier for a structured
// block, loop, if, or the synthetic function-body block (spec.md §3).
// Label 0 always names the function body.
type Label uint32

// FunctionBodyLabel is the label of the synthetic function-body frame
// (spec.md §3 Label-stack frame, invariant 5).
const FunctionBodyLabel Label = 0

func (l Label) String() string { return fmt.Sprintf("L%d", uint32(l)) }
