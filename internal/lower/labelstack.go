package lower

import (
	"github.com/wimpl-project/wimpl/internal/ir"
	"github.com/wimpl-project/wimpl/internal/wasm"
)

// labelFrame is one entry of the lowerer's label stack (spec.md §4.2): the
// label a branch of the matching depth targets, whether it is a loop
// (loops carry no value — a branch to a loop always targets its start,
// before any iteration could have produced one), and the BlockResult
// variable a block/if carries its value in, if it has one.
type labelFrame struct {
	Label      ir.Label
	IsLoop     bool
	ResultVar  *ir.Variable
	ResultType wasm.ValueType
}

// labelStack is shared across every recursive lower() call for a single
// function body (spec.md §4.2: "Recursive descent into nested blocks must
// share the State with its caller" — the label stack is part of that
// shared State, unlike the expression stack).
type labelStack struct {
	frames []labelFrame
}

func (s *labelStack) push(f labelFrame) { s.frames = append(s.frames, f) }

func (s *labelStack) pop() labelFrame {
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

func (s *labelStack) top() labelFrame { return s.frames[len(s.frames)-1] }

// at returns the frame `depth` levels down from the top (depth 0 is the
// innermost enclosing frame), per WebAssembly's relative-depth branch
// encoding.
func (s *labelStack) at(depth wasm.Index) labelFrame {
	return s.frames[len(s.frames)-1-int(depth)]
}
