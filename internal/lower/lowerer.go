// Package lower is the per-function core of the lowering pass: a
// recursive-descent walk over a decoded WebAssembly instruction stream
// that reconstructs expression trees, materializes temporaries at the
// points spec.md §4.3 requires, and reifies structured control flow into
// labeled Wimpl statements (spec.md §4). It is grounded directly on
// wimplify_instrs/wimplify_function_body in the retrieval pack's
// original_source/lib/wasm/src/wimpl/wimplify.rs, restructured into Go's
// tagged-union idiom and the teacher's (internal/engine/wazevo/frontend/
// lower.go) style of one loweringState shared across recursive calls.
package lower

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wimpl-project/wimpl/internal/ir"
	"github.com/wimpl-project/wimpl/internal/lowererr"
	"github.com/wimpl-project/wimpl/internal/typecheck"
	"github.com/wimpl-project/wimpl/internal/wasm"
)

// Lowerer walks one function's instruction stream. It is driven
// recursively: one call per nested block/loop/if, each sharing the
// embedded state (and the type checker) with its caller but building its
// own local expression stack (spec.md §4.2).
type Lowerer struct {
	st         state
	checker    *typecheck.Checker
	instrs     []wasm.Instruction
	mod        wasm.Module
	functionID string
	logger     *zap.Logger
}

func blockResultType(bt wasm.BlockType) *wasm.ValueType { return bt.Result }

func derefOrZero(t *wasm.ValueType) wasm.ValueType {
	if t == nil {
		return 0
	}
	return *t
}

// pushLabelFrame allocates the next label, optionally materializes a
// BlockResult variable for it, pushes a VarRef to that variable onto the
// CALLER's expression stack (it is what code after the block will read),
// and pushes the frame onto the shared label stack.
func (l *Lowerer) pushLabelFrame(isLoop bool, resultType *wasm.ValueType, exprs *exprStack) ir.Label {
	label := ir.Label(l.st.nextLabel)
	l.st.nextLabel++

	var resultVar *ir.Variable
	if resultType != nil {
		v := ir.BlockResult(label)
		resultVar = &v
		exprs.push(ir.VarRef(v, *resultType), *resultType)
	}

	l.st.labels.push(labelFrame{Label: label, IsLoop: isLoop, ResultVar: resultVar, ResultType: derefOrZero(resultType)})
	return label
}

// resolveBranch returns the label a branch of the given relative depth
// targets, and the variable/type it carries a value in — nil/zero for a
// loop, since loops have no carried value even with a result type
// (spec.md §4.2: a branch to a loop always re-enters at its start).
func (l *Lowerer) resolveBranch(depth wasm.Index) (ir.Label, *ir.Variable, wasm.ValueType) {
	f := l.st.labels.at(depth)
	if f.IsLoop {
		return f.Label, nil, 0
	}
	return f.Label, f.ResultVar, f.ResultType
}

// materialize flushes every still-pending expression on exprs into an
// Assign statement against a fresh Stack variable, replacing its stack
// slot with a VarRef to that variable — except for the two peepholes of
// spec.md §4.3 (already a Stack VarRef, or a Const), which are left
// alone. Call this before emitting any statement whose position relative
// to the remaining stack contents is observable.
func (l *Lowerer) materialize(exprs *exprStack, body *ir.Body) {
	for i := range exprs.slots {
		e := exprs.slots[i].Expr
		if e.IsVarRefOrConst() {
			continue
		}
		t := exprs.slots[i].Type
		v := l.st.freshStack()
		*body = append(*body, ir.Assign(v, t, e))
		exprs.slots[i].Expr = ir.VarRef(v, t)
	}
}

// withMemArgOffset folds a load/store's memarg.offset into its address
// expression (spec.md §4.4 load/store): `addr` alone when the offset is
// zero, otherwise `Binary(I32Add, addr, Const(I32(offset)))`. The
// alignment hint is never consulted — it is purely advisory.
func withMemArgOffset(addr *ir.Expression, memArg wasm.MemArg) *ir.Expression {
	if memArg.Offset == 0 {
		return addr
	}
	offset := ir.Const(wasm.Value{Kind: wasm.ValueKindI32, I32: int32(memArg.Offset)})
	return ir.Binary(wasm.OpcodeI32Add, wasm.ValueTypeI32, addr, offset)
}

func (l *Lowerer) typeErr(err error) error {
	return lowererr.TypeCheck(l.functionID, l.st.pc, err)
}

func (l *Lowerer) invariant(msg string) error {
	return lowererr.Invariant(l.functionID, l.st.pc, msg)
}

func (l *Lowerer) unsupported(msg string) error {
	return lowererr.Unsupported(l.functionID, l.st.pc, msg)
}

// buildBranchBody constructs the statements a br/br_if/br_table case
// executes: if the target carries a value, assign the (by now
// materialized, so repeatable) top-of-stack expression into the target's
// result variable, then branch. The source stack is not popped — it
// remains for whichever control path falls through instead.
func buildBranchBody(exprs *exprStack, target ir.Label, carriedVar *ir.Variable, carriedType wasm.ValueType) ir.Body {
	var b ir.Body
	if carriedVar != nil {
		top := exprs.peek()
		b = append(b, ir.Assign(*carriedVar, carriedType, top.Expr))
	}
	b = append(b, ir.BrStmt(target))
	return b
}

// lower consumes instructions from l.instrs starting at l.st.pc until it
// closes the current nesting level: either a matching "end" (returns
// wasElse=false) or, when lowering the then-arm of an "if", a matching
// "else" (returns wasElse=true, leaving the label frame in place for the
// caller to reuse for the else-arm). exprs is this recursion level's own
// operand-stack model; nested recursive calls each get a fresh one.
func (l *Lowerer) lower(exprs *exprStack) (ir.Body, bool, error) {
	var body ir.Body
	unreachableDepth := 0

	for l.st.pc < len(l.instrs) {
		instr := l.instrs[l.st.pc]
		res, err := l.checker.Check(instr)
		if errors.Is(err, typecheck.ErrCallIndirectNoTable) {
			return nil, false, l.unsupported(err.Error())
		}
		if err != nil {
			return nil, false, l.typeErr(err)
		}
		l.st.pc++

		if !res.Reachable {
			switch instr.Opcode {
			case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
				unreachableDepth++
			case wasm.OpcodeEnd:
				if unreachableDepth > 0 {
					unreachableDepth--
				} else {
					l.st.labels.pop()
					return body, false, nil
				}
			case wasm.OpcodeElse:
				if unreachableDepth == 0 {
					return body, true, nil
				}
			}
			continue
		}

		switch instr.Opcode {
		case wasm.OpcodeUnreachable:
			l.materialize(exprs, &body)
			body = append(body, ir.UnreachableStmt())

		case wasm.OpcodeNop:
			// no stack effect, no statement.

		case wasm.OpcodeBlock:
			l.materialize(exprs, &body)
			resultType := blockResultType(instr.BlockType)
			label := l.pushLabelFrame(false, resultType, exprs)
			nested, wasElse, err := l.lower(newExprStack())
			if err != nil {
				return nil, false, err
			}
			if wasElse {
				return nil, false, l.invariant("block body terminated with else")
			}
			body = append(body, ir.BlockStmt(nested, label))

		case wasm.OpcodeLoop:
			l.materialize(exprs, &body)
			resultType := blockResultType(instr.BlockType)
			label := l.pushLabelFrame(true, resultType, exprs)
			nested, wasElse, err := l.lower(newExprStack())
			if err != nil {
				return nil, false, err
			}
			if wasElse {
				return nil, false, l.invariant("loop body terminated with else")
			}
			body = append(body, ir.LoopStmt(label, nested))

		case wasm.OpcodeIf:
			cond := exprs.pop()
			l.materialize(exprs, &body)
			resultType := blockResultType(instr.BlockType)
			label := l.pushLabelFrame(false, resultType, exprs)

			thenBody, hasElse, err := l.lower(newExprStack())
			if err != nil {
				return nil, false, err
			}
			var elseBody ir.Body
			if hasElse {
				var wasElse2 bool
				elseBody, wasElse2, err = l.lower(newExprStack())
				if err != nil {
					return nil, false, err
				}
				if wasElse2 {
					return nil, false, l.invariant("if else-arm terminated with a second else")
				}
			}
			ifStmt := ir.IfStmt(cond.Expr, thenBody, elseBody, hasElse)
			body = append(body, ir.BlockStmt(ir.Body{ifStmt}, label))

		case wasm.OpcodeElse:
			f := l.st.labels.top()
			if f.ResultVar != nil {
				val := exprs.pop()
				body = append(body, ir.Assign(*f.ResultVar, f.ResultType, val.Expr))
			}
			return body, true, nil

		case wasm.OpcodeEnd:
			f := l.st.labels.pop()
			if f.ResultVar != nil {
				val := exprs.pop()
				body = append(body, ir.Assign(*f.ResultVar, f.ResultType, val.Expr))
			}
			return body, false, nil

		case wasm.OpcodeReturn:
			frame := l.st.labels.frames[0]
			if frame.ResultVar != nil {
				val := exprs.pop()
				l.materialize(exprs, &body)
				body = append(body, ir.Assign(*frame.ResultVar, frame.ResultType, val.Expr))
			} else {
				l.materialize(exprs, &body)
			}
			body = append(body, ir.BrStmt(ir.FunctionBodyLabel))

		case wasm.OpcodeBr:
			target, carriedVar, carriedType := l.resolveBranch(instr.RelativeDepth)
			if carriedVar != nil {
				val := exprs.pop()
				l.materialize(exprs, &body)
				body = append(body, ir.Assign(*carriedVar, carriedType, val.Expr))
			} else {
				l.materialize(exprs, &body)
			}
			body = append(body, ir.BrStmt(target))

		case wasm.OpcodeBrIf:
			cond := exprs.pop()
			target, carriedVar, carriedType := l.resolveBranch(instr.RelativeDepth)
			l.materialize(exprs, &body)
			ifBody := buildBranchBody(exprs, target, carriedVar, carriedType)
			body = append(body, ir.IfStmt(cond.Expr, ifBody, nil, false))

		case wasm.OpcodeBrTable:
			index := exprs.pop()
			l.materialize(exprs, &body)
			cases := make([]ir.Body, len(instr.BrTableTargets)-1)
			for i := 0; i < len(instr.BrTableTargets)-1; i++ {
				target, carriedVar, carriedType := l.resolveBranch(instr.BrTableTargets[i])
				cases[i] = buildBranchBody(exprs, target, carriedVar, carriedType)
			}
			defaultDepth := instr.BrTableTargets[len(instr.BrTableTargets)-1]
			target, carriedVar, carriedType := l.resolveBranch(defaultDepth)
			defaultBody := buildBranchBody(exprs, target, carriedVar, carriedType)
			body = append(body, ir.SwitchStmt(index.Expr, cases, defaultBody))

		case wasm.OpcodeCall:
			fn := l.mod.Functions[instr.FuncIndex]
			if len(fn.Type.Results) > 1 {
				return nil, false, l.unsupported("multi-value results are not supported")
			}
			args := exprs.popN(len(fn.Type.Params))
			callExpr := ir.Call(instr.FuncIndex, resultTypeOf(fn.Type.Results), slotsToExpressions(args))
			if len(fn.Type.Results) == 0 {
				l.materialize(exprs, &body)
				body = append(body, ir.ExprStmt(callExpr))
			} else {
				exprs.push(callExpr, fn.Type.Results[0])
			}

		case wasm.OpcodeCallIndirect:
			if instr.TableIndex != 0 {
				return nil, false, l.unsupported("non-zero table index in call_indirect")
			}
			sig := l.mod.Types[instr.TypeIndex]
			if len(sig.Results) > 1 {
				return nil, false, l.unsupported("multi-value results are not supported")
			}
			tableIdx := exprs.pop()
			args := exprs.popN(len(sig.Params))
			callExpr := ir.CallIndirect(&sig, resultTypeOf(sig.Results), tableIdx.Expr, slotsToExpressions(args))
			if len(sig.Results) == 0 {
				l.materialize(exprs, &body)
				body = append(body, ir.ExprStmt(callExpr))
			} else {
				exprs.push(callExpr, sig.Results[0])
			}

		case wasm.OpcodeDrop:
			dropped := exprs.pop()
			if !dropped.Expr.HasSideEffects() {
				break
			}
			l.materialize(exprs, &body)
			body = append(body, ir.ExprStmt(dropped.Expr))

		case wasm.OpcodeSelect:
			cond := exprs.pop()
			l.materialize(exprs, &body)
			elseVal := exprs.pop()
			ifVal := exprs.pop()
			v := l.st.freshStack()
			t := ifVal.Type
			body = append(body, ir.IfStmt(
				cond.Expr,
				ir.Body{ir.Assign(v, t, ifVal.Expr)},
				ir.Body{ir.Assign(v, t, elseVal.Expr)},
				true,
			))
			exprs.push(ir.VarRef(v, t), t)

		case wasm.OpcodeLocalGet:
			v := l.st.localVar(uint32(instr.LocalIndex))
			exprs.push(ir.VarRef(v, l.checker.LocalType(instr.LocalIndex)), l.checker.LocalType(instr.LocalIndex))

		case wasm.OpcodeLocalSet:
			v := l.st.localVar(uint32(instr.LocalIndex))
			t := l.checker.LocalType(instr.LocalIndex)
			val := exprs.pop()
			l.materialize(exprs, &body)
			body = append(body, ir.Assign(v, t, val.Expr))

		case wasm.OpcodeLocalTee:
			v := l.st.localVar(uint32(instr.LocalIndex))
			t := l.checker.LocalType(instr.LocalIndex)
			val := exprs.pop()
			l.materialize(exprs, &body)
			body = append(body, ir.Assign(v, t, val.Expr))
			exprs.push(ir.VarRef(v, t), t)

		case wasm.OpcodeGlobalGet:
			v := ir.Global(uint32(instr.GlobalIndex))
			t := l.mod.Globals[instr.GlobalIndex].Type
			exprs.push(ir.VarRef(v, t), t)

		case wasm.OpcodeGlobalSet:
			v := ir.Global(uint32(instr.GlobalIndex))
			t := l.mod.Globals[instr.GlobalIndex].Type
			val := exprs.pop()
			l.materialize(exprs, &body)
			body = append(body, ir.Assign(v, t, val.Expr))

		case wasm.OpcodeMemorySize:
			if instr.MemoryIndex != 0 {
				return nil, false, l.unsupported("non-zero memory index in memory.size")
			}
			exprs.push(ir.MemorySize(), wasm.ValueTypeI32)

		case wasm.OpcodeMemoryGrow:
			if instr.MemoryIndex != 0 {
				return nil, false, l.unsupported("non-zero memory index in memory.grow")
			}
			pages := exprs.pop()
			exprs.push(ir.MemoryGrow(pages.Expr), wasm.ValueTypeI32)

		case wasm.OpcodeI32Const, wasm.OpcodeI64Const, wasm.OpcodeF32Const, wasm.OpcodeF64Const:
			exprs.push(ir.Const(instr.ConstValue), instr.ConstValue.Type())

		default:
			switch {
			case instr.Opcode.IsLoad():
				addr := exprs.pop()
				t := typecheck.LoadResultType(instr.Opcode)
				exprs.push(ir.Load(instr.Opcode, t, withMemArgOffset(addr.Expr, instr.MemArg)), t)

			case instr.Opcode.IsStore():
				value := exprs.pop()
				addr := exprs.pop()
				l.materialize(exprs, &body)
				body = append(body, ir.Store(instr.Opcode, withMemArgOffset(addr.Expr, instr.MemArg), value.Expr))

			case instr.Opcode.IsUnary():
				arg := exprs.pop()
				t := typecheck.UnaryResultType(instr.Opcode, arg.Type)
				exprs.push(ir.Unary(instr.Opcode, t, arg.Expr), t)

			case instr.Opcode.IsBinary():
				right := exprs.pop()
				left := exprs.pop()
				t := typecheck.BinaryResultType(instr.Opcode, left.Type)
				exprs.push(ir.Binary(instr.Opcode, t, left.Expr, right.Expr), t)

			default:
				return nil, false, fmt.Errorf("lower: unrecognized opcode %s", instr.Opcode)
			}
		}
	}

	return nil, false, l.invariant("instruction stream ended before a matching end")
}

func resultTypeOf(results []wasm.ValueType) wasm.ValueType {
	if len(results) == 0 {
		return 0
	}
	return results[0]
}
