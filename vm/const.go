package vm

import "github.com/CSUNetSec/bgpcore/patricia"

// ConstKind identifies which field of a Const is populated.
type ConstKind uint8

const (
	// ConstInt is a plain scalar, the only kind Loadk will accept.
	ConstInt ConstKind = iota
	// ConstPrefixSet backs Pfxmtch.
	ConstPrefixSet
	// ConstASPattern backs Asmtch.
	ConstASPattern
	// ConstCommExpr backs Commtch.
	ConstCommExpr
)

// Const is one entry of a program's constant pool. Pfxmtch/Asmtch/Commtch
// reference their constant directly by index; Loadk additionally pushes
// a ConstInt's value onto the operand stack.
type Const struct {
	Kind      ConstKind
	Int       int32
	Prefixes  *patricia.Set
	ASPattern *asPattern
	CommExpr  *commExpr
}
