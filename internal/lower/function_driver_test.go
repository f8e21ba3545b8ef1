package lower

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wimpl-project/wimpl/internal/ir"
	"github.com/wimpl-project/wimpl/internal/lowererr"
	"github.com/wimpl-project/wimpl/internal/wasm"
)

// Empty function body (only an implicit end) lowers to an empty Body plus
// any locals initialization (spec.md §8 boundary behavior).
func TestFunction_EmptyBodyNoLocals(t *testing.T) {
	code := wasm.Code{Body: []wasm.Instruction{{Opcode: wasm.OpcodeEnd}}}
	body, err := Function(wasm.Module{}, wasm.FunctionType{}, code, "f0", nil)
	require.NoError(t, err)
	require.Empty(t, body)
}

func TestFunction_ZeroInitializesDeclaredLocals(t *testing.T) {
	code := wasm.Code{
		LocalTypes: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeF64},
		Body:       []wasm.Instruction{{Opcode: wasm.OpcodeEnd}},
	}
	body, err := Function(wasm.Module{}, wasm.FunctionType{}, code, "f0", nil)
	require.NoError(t, err)

	want := ir.Body{
		ir.Assign(ir.Local(0), wasm.ValueTypeI32, ir.Const(wasm.Value{Kind: wasm.ValueKindI32})),
		ir.Assign(ir.Local(1), wasm.ValueTypeF64, ir.Const(wasm.Value{Kind: wasm.ValueKindF64})),
	}
	require.Equal(t, want, body)
}

// A function returning a value whose only statement is a return must
// assign Return(0) before branching to the function-body label.
func TestFunction_ReturnAssignsReturnVar(t *testing.T) {
	fnType := wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := wasm.Code{Body: []wasm.Instruction{
		i32Const(42),
		{Opcode: wasm.OpcodeReturn},
		{Opcode: wasm.OpcodeEnd},
	}}
	body, err := Function(wasm.Module{}, fnType, code, "f0", nil)
	require.NoError(t, err)

	want := ir.Body{
		ir.Assign(ir.Return, wasm.ValueTypeI32, ir.Const(wasm.Value{Kind: wasm.ValueKindI32, I32: 42})),
		ir.BrStmt(ir.FunctionBodyLabel),
	}
	require.Equal(t, want, body)
}

// A function declared with more than one result type is rejected before
// any lowering is attempted (spec.md §4.4/§7: multi-value results are
// Unsupported, not silently truncated).
func TestFunction_MultiValueResultsUnsupported(t *testing.T) {
	fnType := wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI64}}
	code := wasm.Code{Body: []wasm.Instruction{{Opcode: wasm.OpcodeEnd}}}
	_, err := Function(wasm.Module{}, fnType, code, "f0", nil)
	require.Error(t, err)
	var lerr *lowererr.Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, lowererr.KindUnsupported, lerr.Kind)
}

// A declared local with a debug name is rejected at the core's own input
// boundary (spec.md §6: "presence of a name aborts lowering with a 'not
// implemented' diagnostic").
func TestFunction_NamedLocalUnsupported(t *testing.T) {
	code := wasm.Code{
		LocalTypes: []wasm.ValueType{wasm.ValueTypeI32},
		LocalNames: []string{"counter"},
		Body:       []wasm.Instruction{{Opcode: wasm.OpcodeEnd}},
	}
	_, err := Function(wasm.Module{}, wasm.FunctionType{}, code, "f0", nil)
	require.Error(t, err)
	var lerr *lowererr.Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, lowererr.KindUnsupported, lerr.Kind)
}

func TestFunction_HasNoImportedSpecialCase(t *testing.T) {
	// Function itself has no notion of "imported" — that's the Module
	// Driver's job (it never calls Function for one). This test pins that a
	// function named "imported" with a body of just an end lowers like any
	// other end-only body, to an empty Body. A nil Body is not accepted:
	// with no end to close the function frame, lowering returns an
	// Invariant error.
	body, err := Function(wasm.Module{}, wasm.FunctionType{}, wasm.Code{Body: []wasm.Instruction{{Opcode: wasm.OpcodeEnd}}}, "imported", nil)
	require.NoError(t, err)
	require.Empty(t, body)
}
