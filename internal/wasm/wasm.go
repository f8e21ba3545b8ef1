// Package wasm models the decoded-input contract consumed by the lowering
// core: function types, value types, opcodes and an already-decoded module.
//
// The binary decoder that produces values of these types from a `.wasm`
// byte stream is out of scope for this repository; everything here models
// the decoder's *output*, not its implementation.
package wasm

// ValueType is a WebAssembly MVP value type.
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the WebAssembly text format name of vt.
func ValueTypeName(vt ValueType) string {
	switch vt {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return "unknown"
	}
}

// Index is a 0-based index into one of a module's index spaces.
type Index = uint32

// FunctionType is a function signature: the input (param) and output
// (result) value types, in order.
//
// Multi-value results (len(Results) > 1) are rejected by the lowering
// core; see lowererr.Unsupported.
type FunctionType struct {
	Params, Results []ValueType

	// ParamNumInUint64 and ResultNumInUint64 mirror the teacher's encoding:
	// the number of 64-bit slots needed to pass params/results across the
	// Go<->Wasm boundary. The lowering core does not use these; they are
	// carried through so FunctionType round-trips the full input shape.
	ParamNumInUint64, ResultNumInUint64 int
}

// Code is a function's locally-declared locals plus its instruction body.
type Code struct {
	// LocalTypes holds the value type of each declared local, in interned
	// order, starting after the function's parameters.
	LocalTypes []ValueType

	// LocalNames holds the debug name of each declared local in LocalTypes,
	// aligned by index; "" means unnamed. Named locals are not supported
	// (spec.md Non-goals) — the core itself rejects a non-"" entry with an
	// Unsupported diagnostic (spec.md §6), rather than relying on the
	// decoder to have stripped it. Nil or short of len(LocalTypes) is
	// treated as "every remaining local is unnamed".
	LocalNames []string

	// Body is the function's instruction stream. An imported function has
	// a nil Body.
	Body []Instruction
}

// ConstExpr is an unlowered global-initializer or table/memory offset
// expression, copied through the module driver verbatim (spec.md §9 open
// question: lowering these to Wimpl is unspecified).
type ConstExpr struct {
	Opcode Opcode
	Value  Value
}

// Global is a module-level global variable declaration.
type Global struct {
	Type    ValueType
	Mutable bool
	Init    ConstExpr
}

// Table is a module-level table declaration (funcref only, MVP).
type Table struct {
	Min uint32
	Max *uint32
}

// Function is one function of a module: its signature, its code (nil Body
// if imported), and optional export/import names used for FunctionID
// derivation.
type Function struct {
	Type       FunctionType
	Code       Code
	ExportName string // "" if not exported
	ImportName string // "" if not imported; non-"" implies Code.Body == nil
}

// Module is an already-decoded WebAssembly module: the external
// collaborator (binary decoder) has already produced this value.
type Module struct {
	Types     []FunctionType
	Functions []Function
	Globals   []Global
	Tables    []Table
}
