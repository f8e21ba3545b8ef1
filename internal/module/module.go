// Package module is the Module Driver (spec.md §2, §6, §7): the glue that
// iterates a decoded module's functions, derives and uniques each one's
// FunctionID, skips imported functions, invokes the per-function Lowerer
// on everything else, and copies globals/tables through unchanged.
//
// Grounded on wimplify() in the retrieval pack's original_source/lib/wasm/
// src/wimpl/wimplify.rs: a seen-name set for uniqueness, FunctionId
// derived from the export name or a synthesized index-based name, and
// sequential (not parallel) iteration — the original's own "TODO
// parallelize" is deliberately left undone here, since parallel function
// lowering is out of scope (spec.md Non-goals).
package module

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wimpl-project/wimpl/internal/ir"
	"github.com/wimpl-project/wimpl/internal/lower"
	"github.com/wimpl-project/wimpl/internal/lowererr"
	"github.com/wimpl-project/wimpl/internal/wasm"
)

// Options configures Lower.
type Options struct {
	// Logger receives per-function diagnostic messages. Nil disables
	// logging.
	Logger *zap.Logger

	// Parallel is accepted but has no effect: Lower always lowers
	// functions sequentially, whatever this field is set to.
	Parallel bool
}

// Lower drives the whole module through the lowering core: one FunctionID
// per function, NameClash on collision, imported functions passed through
// with Imported=true and no Body, globals/tables copied unchanged.
// Lowering is all-or-nothing (spec.md §7): the first per-function error
// aborts the whole module, no partial Module is returned.
func Lower(mod wasm.Module, opts Options) (*ir.Module, error) {
	if len(mod.Tables) > 1 {
		return nil, lowererr.Unsupported("", -1, "multiple tables are not supported")
	}

	out := &ir.Module{
		Globals: mod.Globals,
		Tables:  mod.Tables,
	}

	seen := make(map[ir.FunctionID]struct{}, len(mod.Functions))

	for i, fn := range mod.Functions {
		id := functionID(fn, i)
		if _, dup := seen[id]; dup {
			return nil, lowererr.NameClash(string(id))
		}
		seen[id] = struct{}{}

		if fn.ImportName != "" {
			out.Functions = append(out.Functions, ir.Function{ID: id, Type: fn.Type, Imported: true})
			continue
		}

		if opts.Logger != nil {
			opts.Logger.Debug("lowering function", zap.String("function", string(id)), zap.Int("index", i))
		}

		body, err := lower.Function(mod, fn.Type, fn.Code, string(id), opts.Logger)
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, ir.Function{ID: id, Type: fn.Type, Body: body})
	}

	return out, nil
}

// functionID derives a function's display name: its export name if
// exported, else a synthesized "f<index>" (spec.md §6; the Go rendering
// of original_source's FunctionId::from_idx).
func functionID(fn wasm.Function, index int) ir.FunctionID {
	if fn.ExportName != "" {
		return ir.FunctionID(fn.ExportName)
	}
	return ir.FunctionID(fmt.Sprintf("f%d", index))
}
