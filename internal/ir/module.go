package ir

import "github.com/wimpl-project/wimpl/internal/wasm"

// FunctionID is a function's deterministic, unique-within-the-module
// display name: its export name if exported, else a synthesized "f<index>"
// (spec.md §6; resolved from original_source's FunctionId::from_idx, see
// DESIGN.md).
type FunctionID string

// Function is a lowered Wimpl function.
type Function struct {
	ID   FunctionID
	Type wasm.FunctionType

	// Imported is set when the originating Wasm function has no body
	// (spec.md §9 open question: imported functions get a distinguished
	// marker rather than an indistinguishable empty Body).
	Imported bool

	// Body is nil when Imported is true, otherwise the synthesized
	// function body (possibly empty, e.g. a body of just an implicit end).
	Body Body
}

// Module is the lowered Wimpl module: functions plus globals/tables
// copied through unchanged (spec.md §6 outputs).
type Module struct {
	Functions []Function
	Globals   []wasm.Global
	Tables    []wasm.Table
}
