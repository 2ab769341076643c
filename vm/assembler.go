package vm

import "github.com/CSUNetSec/bgpcore/patricia"

// Assembler builds a Program instruction by instruction, emitting the
// exact byte format Machine consumes, so callers and tests never
// hand-encode opcodes.
type Assembler struct {
	consts    []Const
	functions []Function
	code      []byte
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler { return &Assembler{} }

func operand16(v int) []byte { return []byte{byte(v >> 8), byte(v)} }

func (a *Assembler) emit(op Op, operand ...byte) *Assembler {
	a.code = append(a.code, byte(op))
	a.code = append(a.code, operand...)
	return a
}

// AddIntConst registers a scalar constant for Loadk and returns its
// index.
func (a *Assembler) AddIntConst(v int32) int {
	a.consts = append(a.consts, Const{Kind: ConstInt, Int: v})
	return len(a.consts) - 1
}

// AddPrefixSet registers a prefix set for Pfxmtch and returns its index.
func (a *Assembler) AddPrefixSet(set *patricia.Set) int {
	a.consts = append(a.consts, Const{Kind: ConstPrefixSet, Prefixes: set})
	return len(a.consts) - 1
}

// AddASPattern compiles and registers an AS-path pattern for Asmtch and
// returns its index.
func (a *Assembler) AddASPattern(pattern string) (int, error) {
	p, err := compileASPattern(pattern)
	if err != nil {
		return 0, err
	}
	a.consts = append(a.consts, Const{Kind: ConstASPattern, ASPattern: p})
	return len(a.consts) - 1, nil
}

// AddCommExpr registers a community expression for Commtch and returns
// its index.
func (a *Assembler) AddCommExpr(e *commExpr) int {
	a.consts = append(a.consts, Const{Kind: ConstCommExpr, CommExpr: e})
	return len(a.consts) - 1
}

// AddFunction registers a host routine CALL can dispatch to and returns
// its function index.
func (a *Assembler) AddFunction(name string, arity int, fn func([]int32) (bool, error)) int {
	a.functions = append(a.functions, Function{Name: name, Arity: arity, Fn: fn})
	return len(a.functions) - 1
}

func (a *Assembler) Nop() *Assembler     { return a.emit(OpNop) }
func (a *Assembler) End() *Assembler     { return a.emit(OpEnd) }
func (a *Assembler) Blk() *Assembler     { return a.emit(OpBlk) }
func (a *Assembler) Endblk() *Assembler  { return a.emit(OpEndblk) }
func (a *Assembler) Dup() *Assembler     { return a.emit(OpDup) }
func (a *Assembler) Drop() *Assembler    { return a.emit(OpDrop) }
func (a *Assembler) Not() *Assembler     { return a.emit(OpNot) }
func (a *Assembler) And() *Assembler     { return a.emit(OpAnd) }
func (a *Assembler) Or() *Assembler      { return a.emit(OpOr) }
func (a *Assembler) Allattr() *Assembler { return a.emit(OpAllattr) }

func (a *Assembler) Hasattr(attrCode int) *Assembler { return a.emit(OpHasattr, byte(attrCode)) }
func (a *Assembler) Call(fnIdx int) *Assembler       { return a.emit(OpCall, byte(fnIdx)) }

func (a *Assembler) Loadk(constIdx int) *Assembler { return a.emit(OpLoadk, operand16(constIdx)...) }
func (a *Assembler) Loadu(v uint16) *Assembler      { return a.emit(OpLoadu, operand16(int(v))...) }
func (a *Assembler) Loads(v int16) *Assembler {
	return a.emit(OpLoads, operand16(int(uint16(v)))...)
}

func (a *Assembler) Pfxmtch(constIdx int) *Assembler {
	return a.emit(OpPfxmtch, operand16(constIdx)...)
}
func (a *Assembler) Asmtch(constIdx int) *Assembler {
	return a.emit(OpAsmtch, operand16(constIdx)...)
}
func (a *Assembler) Commtch(constIdx int) *Assembler {
	return a.emit(OpCommtch, operand16(constIdx)...)
}

// Jmp/Cjmp take an absolute code offset. Forward jumps are typically
// unresolved at the point they're emitted; record Here() before emitting
// one, emit the skipped body, then call Patch with the final offset.
func (a *Assembler) Jmp(target int) *Assembler  { return a.emit(OpJmp, operand16(target)...) }
func (a *Assembler) Cjmp(target int) *Assembler { return a.emit(OpCjmp, operand16(target)...) }

// Here returns the offset the next emitted instruction will start at.
func (a *Assembler) Here() int { return len(a.code) }

// Patch rewrites the 2-byte operand of the Jmp/Cjmp instruction starting
// at pos to target.
func (a *Assembler) Patch(pos, target int) {
	a.code[pos+1] = byte(target >> 8)
	a.code[pos+2] = byte(target)
}

// Program finalizes the Assembler into a Program. It does not call
// Validate; pass the result to Machine.Load, which validates it.
func (a *Assembler) Program() *Program {
	return &Program{Consts: a.consts, Functions: a.functions, Code: a.code}
}
