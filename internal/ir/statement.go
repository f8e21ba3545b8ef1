package ir

import "github.com/wimpl-project/wimpl/internal/wasm"

// StmtKind discriminates the union of fields held by Statement.
type StmtKind byte

const (
	StmtKindAssign StmtKind = iota
	StmtKindStore
	StmtKindExpr
	StmtKindBr
	StmtKindIf
	StmtKindSwitch
	StmtKindBlock
	StmtKindLoop
	StmtKindUnreachable
)

// Statement is one Wimpl statement (spec.md §3).
type Statement struct {
	Kind StmtKind

	// StmtKindAssign
	Lhs  Variable
	Type wasm.ValueType
	Rhs  *Expression

	// StmtKindStore
	StoreOp Opcode
	Addr    *Expression
	Value   *Expression

	// StmtKindExpr
	Expr *Expression

	// StmtKindBr
	Target Label

	// StmtKindIf
	Cond     *Expression
	Then     Body
	Else     Body
	HasElse  bool

	// StmtKindSwitch
	Index   *Expression
	Cases   []Body
	Default Body

	// StmtKindBlock
	Body     Body
	EndLabel Label

	// StmtKindLoop
	BeginLabel Label
	LoopBody   Body
}

// Opcode is an alias of wasm.Opcode, the type of Store's op field.
type Opcode = wasm.Opcode

// Assign builds an Assign statement.
func Assign(lhs Variable, t wasm.ValueType, rhs *Expression) Statement {
	return Statement{Kind: StmtKindAssign, Lhs: lhs, Type: t, Rhs: rhs}
}

// Store builds a Store statement.
func Store(op wasm.Opcode, addr, value *Expression) Statement {
	return Statement{Kind: StmtKindStore, StoreOp: op, Addr: addr, Value: value}
}

// ExprStmt builds a side-effect-only Expr statement.
func ExprStmt(e *Expression) Statement {
	return Statement{Kind: StmtKindExpr, Expr: e}
}

// BrStmt builds a Br statement.
func BrStmt(target Label) Statement {
	return Statement{Kind: StmtKindBr, Target: target}
}

// IfStmt builds an If statement.
func IfStmt(cond *Expression, then Body, els Body, hasElse bool) Statement {
	return Statement{Kind: StmtKindIf, Cond: cond, Then: then, Else: els, HasElse: hasElse}
}

// SwitchStmt builds a Switch (br_table) statement.
func SwitchStmt(index *Expression, cases []Body, def Body) Statement {
	return Statement{Kind: StmtKindSwitch, Index: index, Cases: cases, Default: def}
}

// BlockStmt builds a Block statement.
func BlockStmt(body Body, endLabel Label) Statement {
	return Statement{Kind: StmtKindBlock, Body: body, EndLabel: endLabel}
}

// LoopStmt builds a Loop statement.
func LoopStmt(beginLabel Label, body Body) Statement {
	return Statement{Kind: StmtKindLoop, BeginLabel: beginLabel, LoopBody: body}
}

// UnreachableStmt builds an Unreachable statement.
func UnreachableStmt() Statement {
	return Statement{Kind: StmtKindUnreachable}
}

// Body is an ordered sequence of statements.
type Body []Statement
