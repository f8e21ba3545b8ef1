package lower

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wimpl-project/wimpl/internal/ir"
	"github.com/wimpl-project/wimpl/internal/lowererr"
	"github.com/wimpl-project/wimpl/internal/wasm"
)

func unsupportedErr(t *testing.T, err error) *lowererr.Error {
	t.Helper()
	require.Error(t, err)
	var lerr *lowererr.Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, lowererr.KindUnsupported, lerr.Kind)
	return lerr
}

// A non-zero memarg.offset is folded into the address as a Binary I32Add
// against a Const, rather than being silently discarded (spec.md §4.4
// load).
func TestLower_LoadFoldsNonZeroOffset(t *testing.T) {
	instrs := []wasm.Instruction{
		i32Const(100),
		{Opcode: wasm.OpcodeI32Load, MemArg: wasm.MemArg{Offset: 4}},
		{Opcode: wasm.OpcodeDrop},
		{Opcode: wasm.OpcodeEnd},
	}
	l := newTestLowerer(t, wasm.Module{}, wasm.FunctionType{}, nil, instrs)
	body, wasElse, err := l.lower(newExprStack())
	require.NoError(t, err)
	require.False(t, wasElse)

	foldedAddr := ir.Binary(wasm.OpcodeI32Add, wasm.ValueTypeI32,
		ir.Const(wasm.Value{Kind: wasm.ValueKindI32, I32: 100}),
		ir.Const(wasm.Value{Kind: wasm.ValueKindI32, I32: 4}),
	)
	want := ir.Body{ir.ExprStmt(ir.Load(wasm.OpcodeI32Load, wasm.ValueTypeI32, foldedAddr))}
	require.Equal(t, want, body)
}

// A zero offset leaves the address expression untouched.
func TestLower_LoadLeavesZeroOffsetAddressAlone(t *testing.T) {
	instrs := []wasm.Instruction{
		i32Const(100),
		{Opcode: wasm.OpcodeI32Load},
		{Opcode: wasm.OpcodeDrop},
		{Opcode: wasm.OpcodeEnd},
	}
	l := newTestLowerer(t, wasm.Module{}, wasm.FunctionType{}, nil, instrs)
	body, wasElse, err := l.lower(newExprStack())
	require.NoError(t, err)
	require.False(t, wasElse)

	want := ir.Body{ir.ExprStmt(ir.Load(wasm.OpcodeI32Load, wasm.ValueTypeI32, ir.Const(wasm.Value{Kind: wasm.ValueKindI32, I32: 100})))}
	require.Equal(t, want, body)
}

// store folds the offset the same way load does, on the address operand
// only.
func TestLower_StoreFoldsNonZeroOffset(t *testing.T) {
	instrs := []wasm.Instruction{
		i32Const(100), // address
		i32Const(42),  // value
		{Opcode: wasm.OpcodeI32Store, MemArg: wasm.MemArg{Offset: 8}},
		{Opcode: wasm.OpcodeEnd},
	}
	l := newTestLowerer(t, wasm.Module{}, wasm.FunctionType{}, nil, instrs)
	body, wasElse, err := l.lower(newExprStack())
	require.NoError(t, err)
	require.False(t, wasElse)

	foldedAddr := ir.Binary(wasm.OpcodeI32Add, wasm.ValueTypeI32,
		ir.Const(wasm.Value{Kind: wasm.ValueKindI32, I32: 100}),
		ir.Const(wasm.Value{Kind: wasm.ValueKindI32, I32: 8}),
	)
	want := ir.Body{ir.Store(wasm.OpcodeI32Store, foldedAddr, ir.Const(wasm.Value{Kind: wasm.ValueKindI32, I32: 42}))}
	require.Equal(t, want, body)
}

// call_indirect asserts its static table-index operand is 0 (spec.md
// §4.4: "assert table_idx is 0") — the dynamic i32 popped off the stack
// is a separate, unrelated value.
func TestLower_CallIndirectNonZeroTableIndexUnsupported(t *testing.T) {
	mod := wasm.Module{
		Tables: []wasm.Table{{}},
		Types:  []wasm.FunctionType{{}},
	}
	instrs := []wasm.Instruction{
		i32Const(0),
		{Opcode: wasm.OpcodeCallIndirect, TableIndex: 1, TypeIndex: 0},
		{Opcode: wasm.OpcodeEnd},
	}
	l := newTestLowerer(t, mod, wasm.FunctionType{}, nil, instrs)
	_, _, err := l.lower(newExprStack())
	unsupportedErr(t, err)
}

// call_indirect in a module with no table is rejected, not silently
// lowered against a nonexistent table.
func TestLower_CallIndirectNoTableUnsupported(t *testing.T) {
	mod := wasm.Module{Types: []wasm.FunctionType{{}}}
	instrs := []wasm.Instruction{
		i32Const(0),
		{Opcode: wasm.OpcodeCallIndirect, TableIndex: 0, TypeIndex: 0},
		{Opcode: wasm.OpcodeEnd},
	}
	l := newTestLowerer(t, mod, wasm.FunctionType{}, nil, instrs)
	_, _, err := l.lower(newExprStack())
	unsupportedErr(t, err)
}

// call_indirect to a multi-result signature is rejected rather than
// silently truncated to its first result.
func TestLower_CallIndirectMultiValueResultsUnsupported(t *testing.T) {
	mod := wasm.Module{
		Tables: []wasm.Table{{}},
		Types:  []wasm.FunctionType{{Results: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}}},
	}
	instrs := []wasm.Instruction{
		i32Const(0),
		{Opcode: wasm.OpcodeCallIndirect, TableIndex: 0, TypeIndex: 0},
		{Opcode: wasm.OpcodeEnd},
	}
	l := newTestLowerer(t, mod, wasm.FunctionType{}, nil, instrs)
	_, _, err := l.lower(newExprStack())
	unsupportedErr(t, err)
}

// A direct call to a multi-result signature is rejected rather than
// silently truncated to its first result (spec.md §4.4 call: "Multi-value
// results are not supported").
func TestLower_CallMultiValueResultsUnsupported(t *testing.T) {
	mod := wasm.Module{Functions: []wasm.Function{
		{Type: wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI64}}},
	}}
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpcodeCall, FuncIndex: 0},
		{Opcode: wasm.OpcodeEnd},
	}
	l := newTestLowerer(t, mod, wasm.FunctionType{}, nil, instrs)
	_, _, err := l.lower(newExprStack())
	unsupportedErr(t, err)
}

// memory.size/memory.grow assert their memory index is 0 (spec.md §4.4:
// "assert idx==0" for both).
func TestLower_MemorySizeNonZeroIndexUnsupported(t *testing.T) {
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpcodeMemorySize, MemoryIndex: 1},
		{Opcode: wasm.OpcodeEnd},
	}
	l := newTestLowerer(t, wasm.Module{}, wasm.FunctionType{}, nil, instrs)
	_, _, err := l.lower(newExprStack())
	unsupportedErr(t, err)
}

func TestLower_MemoryGrowNonZeroIndexUnsupported(t *testing.T) {
	instrs := []wasm.Instruction{
		i32Const(1),
		{Opcode: wasm.OpcodeMemoryGrow, MemoryIndex: 1},
		{Opcode: wasm.OpcodeEnd},
	}
	l := newTestLowerer(t, wasm.Module{}, wasm.FunctionType{}, nil, instrs)
	_, _, err := l.lower(newExprStack())
	unsupportedErr(t, err)
}
