package typecheck

import "github.com/wimpl-project/wimpl/internal/wasm"

// Signature describes the value types an instruction consumes (In) and
// produces (Out), in left-to-right order (spec.md §4.1).
type Signature struct {
	In, Out []wasm.ValueType
}

// Result is what Check returns for a single instruction (spec.md §4.1).
type Result struct {
	// Reachable is false when this instruction follows a stack-polymorphic
	// terminator (unreachable, br, br_table, return) within the current
	// block and before the next end/else.
	Reachable bool
	Signature Signature
}

var (
	sig_v_v       = Signature{}
	sig_i32_v     = Signature{In: []wasm.ValueType{wasm.ValueTypeI32}}
	sig_i32_i32   = Signature{In: []wasm.ValueType{wasm.ValueTypeI32}, Out: []wasm.ValueType{wasm.ValueTypeI32}}
	sig_i64_i32   = Signature{In: []wasm.ValueType{wasm.ValueTypeI64}, Out: []wasm.ValueType{wasm.ValueTypeI32}}
	sig_f32_i32   = Signature{In: []wasm.ValueType{wasm.ValueTypeF32}, Out: []wasm.ValueType{wasm.ValueTypeI32}}
	sig_f64_i32   = Signature{In: []wasm.ValueType{wasm.ValueTypeF64}, Out: []wasm.ValueType{wasm.ValueTypeI32}}
	sig_i32_i64   = Signature{In: []wasm.ValueType{wasm.ValueTypeI32}, Out: []wasm.ValueType{wasm.ValueTypeI64}}
)

// UnaryResultType returns the result type of a unary operator given its
// argument type (most unary ops preserve the operand type; the few
// conversions in this repo's representative opcode set are special-cased).
// Exported so internal/lower can share this arity logic rather than
// re-deriving it and risking drift from the checker.
func UnaryResultType(op wasm.Opcode, argType wasm.ValueType) wasm.ValueType {
	switch op {
	case wasm.OpcodeI32Eqz, wasm.OpcodeI64Eqz:
		return wasm.ValueTypeI32
	case wasm.OpcodeI64ExtendI32S, wasm.OpcodeI64ExtendI32U:
		return wasm.ValueTypeI64
	case wasm.OpcodeI32WrapI64:
		return wasm.ValueTypeI32
	default:
		return argType
	}
}

// UnaryArgType returns the expected argument type of a unary operator.
func UnaryArgType(op wasm.Opcode) wasm.ValueType {
	switch op {
	case wasm.OpcodeI32Eqz, wasm.OpcodeI32Clz, wasm.OpcodeI32Ctz, wasm.OpcodeI32WrapI64:
		if op == wasm.OpcodeI32WrapI64 {
			return wasm.ValueTypeI64
		}
		return wasm.ValueTypeI32
	case wasm.OpcodeI64Eqz, wasm.OpcodeI64ExtendI32S, wasm.OpcodeI64ExtendI32U:
		if op == wasm.OpcodeI64Eqz {
			return wasm.ValueTypeI64
		}
		return wasm.ValueTypeI32
	case wasm.OpcodeF32Neg, wasm.OpcodeF32Sqrt:
		return wasm.ValueTypeF32
	case wasm.OpcodeF64Neg, wasm.OpcodeF64Sqrt:
		return wasm.ValueTypeF64
	default:
		return wasm.ValueTypeI32
	}
}

// BinaryOperandType returns the shared operand type of a binary operator
// (both operands always share one type in the MVP numeric instruction
// set).
func BinaryOperandType(op wasm.Opcode) wasm.ValueType {
	switch op {
	case wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul:
		return wasm.ValueTypeI64
	case wasm.OpcodeF32Add, wasm.OpcodeF32Sub, wasm.OpcodeF32Mul, wasm.OpcodeF32Div, wasm.OpcodeF32Eq, wasm.OpcodeF32Lt:
		return wasm.ValueTypeF32
	case wasm.OpcodeF64Add, wasm.OpcodeF64Sub, wasm.OpcodeF64Mul, wasm.OpcodeF64Div, wasm.OpcodeF64Eq, wasm.OpcodeF64Lt:
		return wasm.ValueTypeF64
	default:
		return wasm.ValueTypeI32
	}
}

// BinaryResultType returns the result type of a binary operator.
func BinaryResultType(op wasm.Opcode, operandType wasm.ValueType) wasm.ValueType {
	switch op {
	case wasm.OpcodeI32Eq, wasm.OpcodeI32Ne, wasm.OpcodeI32LtS, wasm.OpcodeI32LtU,
		wasm.OpcodeI32GtS, wasm.OpcodeI32GtU, wasm.OpcodeI32LeS, wasm.OpcodeI32GeS,
		wasm.OpcodeF32Eq, wasm.OpcodeF64Eq, wasm.OpcodeF32Lt, wasm.OpcodeF64Lt:
		return wasm.ValueTypeI32
	default:
		return operandType
	}
}

// LoadResultType returns the value type produced by a typed load.
func LoadResultType(op wasm.Opcode) wasm.ValueType {
	switch op {
	case wasm.OpcodeI32Load:
		return wasm.ValueTypeI32
	case wasm.OpcodeI64Load:
		return wasm.ValueTypeI64
	case wasm.OpcodeF32Load:
		return wasm.ValueTypeF32
	default:
		return wasm.ValueTypeF64
	}
}

// StoreValueType returns the value type a typed store expects.
func StoreValueType(op wasm.Opcode) wasm.ValueType {
	switch op {
	case wasm.OpcodeI32Store:
		return wasm.ValueTypeI32
	case wasm.OpcodeI64Store:
		return wasm.ValueTypeI64
	case wasm.OpcodeF32Store:
		return wasm.ValueTypeF32
	default:
		return wasm.ValueTypeF64
	}
}
