package wasm

// MemArg is a load/store instruction's memory immediate. Offset is folded
// into the address expression when non-zero (spec.md §4.4). Align is
// advisory only (spec.md §4.4 "Alignment hint is discarded") and is kept
// here purely because the decoder produces it; the lowering core never
// reads it.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// ValueKind discriminates the union held in Value.
type ValueKind byte

const (
	ValueKindI32 ValueKind = iota
	ValueKindI64
	ValueKindF32
	ValueKindF64
)

// Value is a constant numeric value, as produced by a const instruction.
type Value struct {
	Kind ValueKind
	I32  int32
	I64  int64
	F32  float32
	F64  float64
}

// Type returns the WebAssembly value type of v.
func (v Value) Type() ValueType {
	switch v.Kind {
	case ValueKindI32:
		return ValueTypeI32
	case ValueKindI64:
		return ValueTypeI64
	case ValueKindF32:
		return ValueTypeF32
	default:
		return ValueTypeF64
	}
}

// BlockType is the (optional) result type of a block/loop/if. WebAssembly
// MVP block types carry no parameters (that's a later multi-value
// extension, excluded by spec.md's Non-goals) and at most one result.
type BlockType struct {
	Result *ValueType // nil means the empty result type.
}

// Results returns the block's result types as a slice (0 or 1 elements)
// for uniform handling alongside function signatures.
func (bt BlockType) Results() []ValueType {
	if bt.Result == nil {
		return nil
	}
	return []ValueType{*bt.Result}
}

// Instruction is one decoded WebAssembly instruction. Which fields are
// populated depends on Opcode; see spec.md §4.4 for the per-family
// contract. Instruction is produced by the (out-of-scope) binary decoder.
type Instruction struct {
	Opcode Opcode

	// local.get/set/tee
	LocalIndex Index
	// global.get/set
	GlobalIndex Index
	// call
	FuncIndex Index
	// call_indirect: table index (must be 0, spec.md §4.4) and type index.
	TableIndex Index
	TypeIndex  Index
	// load/store
	MemArg MemArg
	// memory.size/memory.grow: memory index (must be 0, spec.md §4.4).
	MemoryIndex Index
	// const
	ConstValue Value
	// block/loop/if
	BlockType BlockType
	// br/br_if: relative depth.
	RelativeDepth Index
	// br_table: relative depths of each case, in order (default is last).
	BrTableTargets []Index
}
