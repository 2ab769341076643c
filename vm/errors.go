package vm

import "errors"

// VM errors, the fourth category of the package's error taxonomy,
// mirroring the original library's Bgpvm error range (BGPEBADVM through
// BGPEVMBADOP).
var (
	ErrBadVM          = errors.New("vm: operation attempted on a machine with failed setup state")
	ErrNoProgram      = errors.New("vm: program is empty")
	ErrBadCommMatch   = errors.New("vm: COMMTCH expression is invalid or too complex")
	ErrASMatchSize    = errors.New("vm: ASMTCH expression too complex to evaluate within budget")
	ErrASGroupLimit   = errors.New("vm: ASMTCH pattern has too many nested grouping levels")
	ErrBadASMatch     = errors.New("vm: ASMTCH pattern has inconsistent matching rules")
	ErrBadJump        = errors.New("vm: jump target lands outside the program")
	ErrIllegalOp      = errors.New("vm: illegal instruction")
	ErrOOM            = errors.New("vm: heap arena exhausted")
	ErrBadEndBlk      = errors.New("vm: ENDBLK with no matching BLK")
	ErrStackUnderflow = errors.New("vm: stack underflow")
	ErrStackOverflow  = errors.New("vm: stack overflow")
	ErrBadFunction    = errors.New("vm: CALL references an out-of-range function index")
	ErrBadConstant    = errors.New("vm: instruction references an out-of-range or wrong-kind constant")
	ErrMsgErr         = errors.New("vm: message decode error while evaluating program")
	ErrBadOperand     = errors.New("vm: bad instruction operand")
)
