package lower

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wimpl-project/wimpl/internal/ir"
	"github.com/wimpl-project/wimpl/internal/lowererr"
	"github.com/wimpl-project/wimpl/internal/typecheck"
	"github.com/wimpl-project/wimpl/internal/wasm"
)

// Function lowers one non-imported function's code into a Wimpl body
// (spec.md §2's "Function Driver"): it zero-initializes declared locals,
// opens the synthetic function-body label frame (Label 0, carrying
// Return(0) when the function has a result), and hands off to the
// recursive Instruction Lowerer.
func Function(mod wasm.Module, fnType wasm.FunctionType, code wasm.Code, functionID string, logger *zap.Logger) (ir.Body, error) {
	if len(fnType.Results) > 1 {
		return nil, lowererr.Unsupported(functionID, -1, "multi-value results are not supported")
	}
	for i, name := range code.LocalNames {
		if name != "" {
			return nil, lowererr.Unsupported(functionID, -1, fmt.Sprintf("named local %d (%q) is not supported", i, name))
		}
	}

	checker := typecheck.New(toCheckerModule(mod), fnType, code.LocalTypes)

	l := &Lowerer{
		checker:    checker,
		instrs:     code.Body,
		mod:        mod,
		functionID: functionID,
		logger:     logger,
	}
	l.st.numParams = uint32(len(fnType.Params))
	l.st.numLocals = uint32(len(code.LocalTypes))

	var body ir.Body
	for i, t := range code.LocalTypes {
		body = append(body, ir.Assign(ir.Local(uint32(i)), t, ir.Const(zeroValue(t))))
	}

	var resultType *wasm.ValueType
	if len(fnType.Results) > 0 {
		resultType = &fnType.Results[0]
	}
	l.st.labels.push(labelFrame{Label: ir.FunctionBodyLabel, IsLoop: false, ResultVar: resultVarOrNil(resultType), ResultType: derefOrZero(resultType)})
	l.st.nextLabel = 1

	rest, wasElse, err := l.lower(newExprStack())
	if err != nil {
		return nil, err
	}
	if wasElse {
		return nil, lowererr.Invariant(functionID, l.st.pc, "function body terminated with else")
	}
	if len(l.st.labels.frames) != 0 {
		return nil, lowererr.Invariant(functionID, l.st.pc, "label stack not empty after function body")
	}

	if logger != nil {
		logger.Debug("lowered function", zap.String("function", functionID), zap.Int("statements", len(body)+len(rest)))
	}

	return append(body, rest...), nil
}

func resultVarOrNil(t *wasm.ValueType) *ir.Variable {
	if t == nil {
		return nil
	}
	return &ir.Return
}

func zeroValue(t wasm.ValueType) wasm.Value {
	switch t {
	case wasm.ValueTypeI32:
		return wasm.Value{Kind: wasm.ValueKindI32}
	case wasm.ValueTypeI64:
		return wasm.Value{Kind: wasm.ValueKindI64}
	case wasm.ValueTypeF32:
		return wasm.Value{Kind: wasm.ValueKindF32}
	default:
		return wasm.Value{Kind: wasm.ValueKindF64}
	}
}

func toCheckerModule(mod wasm.Module) typecheck.Module {
	return typecheck.Module{
		Types:     mod.Types,
		Functions: mod.Functions,
		Globals:   mod.Globals,
		HasTable:  len(mod.Tables) > 0,
	}
}
