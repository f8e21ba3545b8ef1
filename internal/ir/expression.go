package ir

import "github.com/wimpl-project/wimpl/internal/wasm"

// ExprKind discriminates the union of fields held by Expression.
type ExprKind byte

const (
	ExprKindVarRef ExprKind = iota
	ExprKindConst
	ExprKindUnary
	ExprKindBinary
	ExprKindLoad
	ExprKindMemorySize
	ExprKindMemoryGrow
	ExprKindCall
	ExprKindCallIndirect
)

// Expression is a tree of pure values at the IR level: side-effecting
// operations (call, load, memory.grow) are expressions only while their
// result is consumed; once demoted by materialization or drop they become
// statements (spec.md §3).
type Expression struct {
	Kind ExprKind
	Type wasm.ValueType

	// ExprKindVarRef
	Var Variable

	// ExprKindConst
	Const wasm.Value

	// ExprKindUnary
	UnaryOp wasm.Opcode
	Arg     *Expression

	// ExprKindBinary
	BinaryOp    wasm.Opcode
	Left, Right *Expression

	// ExprKindLoad
	LoadOp wasm.Opcode
	Addr   *Expression

	// ExprKindMemoryGrow
	Pages *Expression

	// ExprKindCall / ExprKindCallIndirect
	FuncIndex  wasm.Index // ExprKindCall only
	TableIndex *Expression // ExprKindCallIndirect only: the table-index sub-expression
	Signature  *wasm.FunctionType // ExprKindCallIndirect only
	Args       []*Expression
}

// VarRef builds a reference expression to v.
func VarRef(v Variable, t wasm.ValueType) *Expression {
	return &Expression{Kind: ExprKindVarRef, Type: t, Var: v}
}

// Const builds a constant-value expression.
func Const(v wasm.Value) *Expression {
	return &Expression{Kind: ExprKindConst, Type: v.Type(), Const: v}
}

// Unary builds a unary-operator expression.
func Unary(op wasm.Opcode, resultType wasm.ValueType, arg *Expression) *Expression {
	return &Expression{Kind: ExprKindUnary, Type: resultType, UnaryOp: op, Arg: arg}
}

// Binary builds a binary-operator expression.
func Binary(op wasm.Opcode, resultType wasm.ValueType, left, right *Expression) *Expression {
	return &Expression{Kind: ExprKindBinary, Type: resultType, BinaryOp: op, Left: left, Right: right}
}

// Load builds a typed-load expression.
func Load(op wasm.Opcode, resultType wasm.ValueType, addr *Expression) *Expression {
	return &Expression{Kind: ExprKindLoad, Type: resultType, LoadOp: op, Addr: addr}
}

// MemorySize builds a memory.size expression.
func MemorySize() *Expression {
	return &Expression{Kind: ExprKindMemorySize, Type: wasm.ValueTypeI32}
}

// MemoryGrow builds a memory.grow expression.
func MemoryGrow(pages *Expression) *Expression {
	return &Expression{Kind: ExprKindMemoryGrow, Type: wasm.ValueTypeI32, Pages: pages}
}

// Call builds a direct-call expression. resultType's zero value means the
// call produces no result (the caller is expected to emit it as a
// statement instead, per spec.md §4.4).
func Call(funcIdx wasm.Index, resultType wasm.ValueType, args []*Expression) *Expression {
	return &Expression{Kind: ExprKindCall, Type: resultType, FuncIndex: funcIdx, Args: args}
}

// CallIndirect builds an indirect-call expression.
func CallIndirect(sig *wasm.FunctionType, resultType wasm.ValueType, tableIndex *Expression, args []*Expression) *Expression {
	return &Expression{
		Kind: ExprKindCallIndirect, Type: resultType,
		Signature: sig, TableIndex: tableIndex, Args: args,
	}
}

// IsVarRefOrConst reports whether e is already in one of the two forms
// materialization leaves alone (spec.md §4.3): a reference to a Stack
// variable (already single-assignment, re-reading it is free and safe) or a
// Const. A VarRef to a Parameter/Local/Global/BlockResult variable does NOT
// qualify — those families can be reassigned (or, for BlockResult, are not
// exempted by name in spec.md §4.3), so a later read after an intervening
// write would observe the wrong value unless this reference is itself
// snapshotted into a fresh Stack temp first.
func (e *Expression) IsVarRefOrConst() bool {
	if e.Kind == ExprKindConst {
		return true
	}
	return e.Kind == ExprKindVarRef && e.Var.Kind == VariableKindStack
}

// HasSideEffects reports whether evaluating e, or any sub-expression it
// is built from, can have an observable effect beyond producing a value
// (call, call_indirect, load and memory.grow may all trap or observe
// mutable state). It walks the whole tree: an un-materialized Binary or
// Unary can still have a Load or Call buried in one of its operands, and
// dropping it silently would discard that operation instead of just its
// result. drop uses this to decide whether discarding e silently is safe
// (spec.md §4.4 drop).
func (e *Expression) HasSideEffects() bool {
	switch e.Kind {
	case ExprKindCall, ExprKindCallIndirect, ExprKindLoad, ExprKindMemoryGrow:
		return true
	case ExprKindUnary:
		return e.Arg.HasSideEffects()
	case ExprKindBinary:
		return e.Left.HasSideEffects() || e.Right.HasSideEffects()
	default:
		return false
	}
}
