package typecheck

import (
	"errors"
	"fmt"

	"github.com/wimpl-project/wimpl/internal/wasm"
)

// ErrCallIndirectNoTable is returned by Check when a call_indirect is
// encountered in a module with no table (spec.md §7 Unsupported: a
// table-related input error). The Lowerer recognizes this sentinel and
// reports it as lowererr.Unsupported rather than lowererr.TypeCheck.
var ErrCallIndirectNoTable = errors.New("call_indirect: module declares no table")

// Module is the checker's view of the enclosing module: just enough to
// resolve a call's or call_indirect's signature and to know whether a
// table is present (spec.md §4.1 "needs the module's function/global/table
// signatures to validate call, call_indirect, global.get/set").
type Module struct {
	Types     []wasm.FunctionType
	Functions []wasm.Function
	Globals   []wasm.Global
	HasTable  bool
}

// ctrlFrame is one entry of the validation stack, in the shape of the
// classic WebAssembly validation algorithm (push_ctrl/pop_ctrl/
// mark_unreachable, as implemented by internal/engine/wazevo/frontend/
// lower.go's controlFrame in the retrieval pack).
type ctrlFrame struct {
	isLoop      bool
	startTypes  []wasm.ValueType // what a branch to this frame carries (loops only)
	endTypes    []wasm.ValueType // what fall-through/branch-to-end carries (blocks/ifs/function)
	height      int              // c.stack length at frame entry, below which popping is illegal
	unreachable bool
}

// Checker owns the WebAssembly validation stack for one function body and
// streams Reachable/Unreachable classifications to the lowering core
// (spec.md §4.1: "the lowering pass is a pure consumer"). It must be
// driven in strict lockstep with the lowerer's own instruction cursor —
// one Check call per instruction, reachable or not.
type Checker struct {
	mod    Module
	locals []wasm.ValueType // parameter types followed by declared-local types
	stack  []wasm.ValueType
	frames []ctrlFrame
}

// New creates a Checker for a function of the given type with the given
// declared locals (parameters are not repeated in localTypes; LocalType
// indexes across both uniformly, as WebAssembly's local index space does).
func New(mod Module, fnType wasm.FunctionType, localTypes []wasm.ValueType) *Checker {
	c := &Checker{mod: mod, locals: append(append([]wasm.ValueType{}, fnType.Params...), localTypes...)}
	c.pushCtrl(false, nil, fnType.Results)
	return c
}

// LocalType returns the value type of parameter-or-local index i.
func (c *Checker) LocalType(i wasm.Index) wasm.ValueType {
	return c.locals[i]
}

func (c *Checker) top() *ctrlFrame { return &c.frames[len(c.frames)-1] }

func (c *Checker) pushVal(t wasm.ValueType) { c.stack = append(c.stack, t) }

func (c *Checker) pushVals(ts []wasm.ValueType) {
	for _, t := range ts {
		c.pushVal(t)
	}
}

// popVal pops one value, honoring stack polymorphism: once the current
// frame is unreachable and the stack has been drained to the frame's
// entry height, further pops are free (spec.md §4.1's "stack-polymorphic
// terminator" contract) rather than an error. Popping below height while
// still reachable is an internal-invariant violation — it means the
// lowerer asked the checker about an instruction the real validation
// stack can't supply an operand for, which Check's own per-opcode arity
// should have already accounted for.
func (c *Checker) popVal() wasm.ValueType {
	f := c.top()
	if len(c.stack) == f.height {
		if f.unreachable {
			return wasm.ValueTypeI32 // polymorphic: any type, discarded by the caller anyway
		}
		panic("typecheck: pop on empty operand stack below frame height")
	}
	t := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return t
}

func (c *Checker) popVals(n int) []wasm.ValueType {
	out := make([]wasm.ValueType, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = c.popVal()
	}
	return out
}

// pushCtrl opens a new control frame. Unreachability is inherited from the
// enclosing frame (not reset to false) so that a Block/Loop/If instruction
// encountered while already in a stack-polymorphic dead tail produces a
// child frame that is itself dead from the start — this keeps every
// instruction inside it, including its own matching end/else, classified
// Unreachable, letting the lowerer's generic "on end pop the label stack
// and return; otherwise skip" rule (spec.md §4.4) stay correct without the
// lowerer re-deriving validation-stack depth on its own.
func (c *Checker) pushCtrl(isLoop bool, start, end []wasm.ValueType) {
	inherited := false
	if len(c.frames) > 0 {
		inherited = c.top().unreachable
	}
	c.pushVals(start)
	c.frames = append(c.frames, ctrlFrame{isLoop: isLoop, startTypes: start, endTypes: end, height: len(c.stack), unreachable: inherited})
}

// popCtrl closes the current frame after popping its end types off the
// stack (MVP block types carry no parameters, so frame.height already
// accounts for everything pushed at frame entry).
func (c *Checker) popCtrl() ctrlFrame {
	f := *c.top()
	c.popVals(len(f.endTypes))
	c.stack = c.stack[:f.height]
	c.frames = c.frames[:len(c.frames)-1]
	return f
}

func (c *Checker) markUnreachable() {
	f := c.top()
	c.stack = c.stack[:f.height]
	f.unreachable = true
}

// frameAt returns the control frame a branch of the given relative depth
// targets (depth 0 is the innermost). The br/br_if/br_table cases derive
// the carried types from it: a loop carries nothing (a branch to a loop
// always targets its start, before any iteration has produced a value), a
// block/if/function carries its end types.
func (c *Checker) frameAt(depth wasm.Index) ctrlFrame {
	return c.frames[len(c.frames)-1-int(depth)]
}

// Check classifies instr and applies its effect to the validation stack,
// per the classic push_ctrl/pop_ctrl/mark_unreachable algorithm. end and
// else are handled unconditionally, ahead of any unreachable check,
// because they must keep the frame stack balanced even in dead code.
//
// A malformed instruction stream (an operand popped below a reachable
// frame's height) is reported here as an error, not a crash: popVal panics
// internally to unwind out of whatever opcode case it's in, and this
// method recovers that panic and turns it into the same error return every
// other validation failure uses, so the caller never sees it escape.
func (c *Checker) Check(instr wasm.Instruction) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = Result{}, fmt.Errorf("%v", r)
		}
	}()
	return c.checkInstr(instr)
}

func (c *Checker) checkInstr(instr wasm.Instruction) (Result, error) {
	switch instr.Opcode {
	case wasm.OpcodeEnd:
		f := c.popCtrl()
		reachable := !f.unreachable
		c.pushVals(f.endTypes)
		return Result{Reachable: reachable, Signature: Signature{Out: f.endTypes}}, nil

	case wasm.OpcodeElse:
		f := c.top()
		wasUnreachable := f.unreachable
		c.popVals(len(f.endTypes))
		if len(c.stack) != f.height {
			return Result{}, fmt.Errorf("else: stack height %d does not match frame height %d", len(c.stack), f.height)
		}
		// The else-arm starts fresh, regardless of the then-arm's tail,
		// unless the whole if was opened inside dead code: then its else-arm
		// stays dead too.
		f.unreachable = len(c.frames) > 1 && c.frames[len(c.frames)-2].unreachable
		c.pushVals(f.startTypes)
		return Result{Reachable: !wasUnreachable}, nil

	case wasm.OpcodeBlock:
		wasDead := c.top().unreachable
		c.pushCtrl(false, nil, instr.BlockType.Results())
		return Result{Reachable: !wasDead, Signature: Signature{Out: instr.BlockType.Results()}}, nil

	case wasm.OpcodeLoop:
		wasDead := c.top().unreachable
		results := instr.BlockType.Results()
		c.pushCtrl(true, nil, results)
		return Result{Reachable: !wasDead, Signature: Signature{Out: results}}, nil

	case wasm.OpcodeIf:
		wasDead := c.top().unreachable
		c.popVal() // condition, i32
		c.pushCtrl(false, nil, instr.BlockType.Results())
		return Result{Reachable: !wasDead, Signature: Signature{In: []wasm.ValueType{wasm.ValueTypeI32}, Out: instr.BlockType.Results()}}, nil
	}

	if c.top().unreachable {
		return Result{Reachable: false}, nil
	}

	switch instr.Opcode {
	case wasm.OpcodeUnreachable:
		c.markUnreachable()
		return Result{Reachable: true}, nil

	case wasm.OpcodeNop:
		return Result{Reachable: true, Signature: sig_v_v}, nil

	case wasm.OpcodeReturn:
		f := c.frames[0]
		c.popVals(len(f.endTypes))
		c.markUnreachable()
		return Result{Reachable: true, Signature: Signature{Out: f.endTypes}}, nil

	case wasm.OpcodeBr:
		target := c.frameAt(instr.RelativeDepth)
		carried := target.endTypes
		if target.isLoop {
			carried = nil
		}
		c.popVals(len(carried))
		c.markUnreachable()
		return Result{Reachable: true, Signature: Signature{In: carried}}, nil

	case wasm.OpcodeBrIf:
		c.popVal() // condition
		target := c.frameAt(instr.RelativeDepth)
		carried := target.endTypes
		if target.isLoop {
			carried = nil
		}
		// br_if peeks the carried value (it remains on the stack for the
		// fall-through path), so pop-then-push rather than leave it be —
		// this also validates its type against the target.
		vals := c.popVals(len(carried))
		c.pushVals(vals)
		in := append(append([]wasm.ValueType{}, carried...), wasm.ValueTypeI32)
		return Result{Reachable: true, Signature: Signature{In: in}}, nil

	case wasm.OpcodeBrTable:
		c.popVal() // index
		// All targets (and the default) must agree on their carried arity;
		// the lowerer and checker both trust the producer here, per
		// spec.md §4.4's "br_table" note that WebAssembly's own validation
		// rules already guarantee this, so reusing the default target's
		// arity is sufficient.
		var carried []wasm.ValueType
		if len(instr.BrTableTargets) > 0 {
			last := instr.BrTableTargets[len(instr.BrTableTargets)-1]
			target := c.frameAt(last)
			carried = target.endTypes
			if target.isLoop {
				carried = nil
			}
		}
		vals := c.popVals(len(carried))
		c.pushVals(vals)
		c.markUnreachable()
		return Result{Reachable: true}, nil

	case wasm.OpcodeCall:
		fn := c.mod.Functions[instr.FuncIndex]
		c.popVals(len(fn.Type.Params))
		c.pushVals(fn.Type.Results)
		return Result{Reachable: true, Signature: Signature{In: fn.Type.Params, Out: fn.Type.Results}}, nil

	case wasm.OpcodeCallIndirect:
		if !c.mod.HasTable {
			return Result{}, ErrCallIndirectNoTable
		}
		c.popVal() // table index, i32
		sig := c.mod.Types[instr.TypeIndex]
		c.popVals(len(sig.Params))
		c.pushVals(sig.Results)
		return Result{Reachable: true, Signature: Signature{In: sig.Params, Out: sig.Results}}, nil

	case wasm.OpcodeDrop:
		c.popVal()
		return Result{Reachable: true}, nil

	case wasm.OpcodeSelect:
		c.popVal() // condition
		t1 := c.popVal()
		c.popVal() // t2, assumed equal to t1 (validated upstream by the producer)
		c.pushVal(t1)
		return Result{Reachable: true, Signature: Signature{Out: []wasm.ValueType{t1}}}, nil

	case wasm.OpcodeLocalGet:
		t := c.LocalType(instr.LocalIndex)
		c.pushVal(t)
		return Result{Reachable: true, Signature: Signature{Out: []wasm.ValueType{t}}}, nil

	case wasm.OpcodeLocalSet:
		t := c.LocalType(instr.LocalIndex)
		c.popVal()
		return Result{Reachable: true, Signature: Signature{In: []wasm.ValueType{t}}}, nil

	case wasm.OpcodeLocalTee:
		t := c.LocalType(instr.LocalIndex)
		c.popVal()
		c.pushVal(t)
		return Result{Reachable: true, Signature: Signature{In: []wasm.ValueType{t}, Out: []wasm.ValueType{t}}}, nil

	case wasm.OpcodeGlobalGet:
		t := c.mod.Globals[instr.GlobalIndex].Type
		c.pushVal(t)
		return Result{Reachable: true, Signature: Signature{Out: []wasm.ValueType{t}}}, nil

	case wasm.OpcodeGlobalSet:
		t := c.mod.Globals[instr.GlobalIndex].Type
		c.popVal()
		return Result{Reachable: true, Signature: Signature{In: []wasm.ValueType{t}}}, nil

	case wasm.OpcodeMemorySize:
		c.pushVal(wasm.ValueTypeI32)
		return Result{Reachable: true, Signature: Signature{Out: []wasm.ValueType{wasm.ValueTypeI32}}}, nil

	case wasm.OpcodeMemoryGrow:
		c.popVal()
		c.pushVal(wasm.ValueTypeI32)
		return Result{Reachable: true, Signature: sig_i32_i32}, nil

	case wasm.OpcodeI32Const:
		c.pushVal(wasm.ValueTypeI32)
		return Result{Reachable: true}, nil
	case wasm.OpcodeI64Const:
		c.pushVal(wasm.ValueTypeI64)
		return Result{Reachable: true}, nil
	case wasm.OpcodeF32Const:
		c.pushVal(wasm.ValueTypeF32)
		return Result{Reachable: true}, nil
	case wasm.OpcodeF64Const:
		c.pushVal(wasm.ValueTypeF64)
		return Result{Reachable: true}, nil
	}

	switch {
	case instr.Opcode.IsLoad():
		c.popVal() // address
		t := LoadResultType(instr.Opcode)
		c.pushVal(t)
		return Result{Reachable: true, Signature: Signature{In: []wasm.ValueType{wasm.ValueTypeI32}, Out: []wasm.ValueType{t}}}, nil

	case instr.Opcode.IsStore():
		t := StoreValueType(instr.Opcode)
		c.popVal() // value
		c.popVal() // address
		return Result{Reachable: true, Signature: Signature{In: []wasm.ValueType{wasm.ValueTypeI32, t}}}, nil

	case instr.Opcode.IsUnary():
		argType := UnaryArgType(instr.Opcode)
		c.popVal()
		resultType := UnaryResultType(instr.Opcode, argType)
		c.pushVal(resultType)
		return Result{Reachable: true, Signature: Signature{In: []wasm.ValueType{argType}, Out: []wasm.ValueType{resultType}}}, nil

	case instr.Opcode.IsBinary():
		operandType := BinaryOperandType(instr.Opcode)
		c.popVal()
		c.popVal()
		resultType := BinaryResultType(instr.Opcode, operandType)
		c.pushVal(resultType)
		return Result{Reachable: true, Signature: Signature{In: []wasm.ValueType{operandType, operandType}, Out: []wasm.ValueType{resultType}}}, nil
	}

	return Result{}, fmt.Errorf("unrecognized opcode %s", instr.Opcode)
}
