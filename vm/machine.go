package vm

import (
	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/errstat"
	"github.com/CSUNetSec/bgpcore/memops"
	"github.com/CSUNetSec/bgpcore/patricia"
)

// State is a Machine's lifecycle stage.
type State uint8

const (
	StateCreated State = iota
	StateProgrammed
	StateReady
	StateRunning
	StateHalted
	StateFailed
)

const (
	defaultStackSize = 256
	defaultHeapSize  = 4096
)

// Machine is a single filter VM instance, executed once per candidate
// message. It is not safe for concurrent use; run one Machine per
// goroutine, or serialize access externally.
type Machine struct {
	prog     *Program
	state    State
	badSetup bool

	stack []int32
	sp    int
	heap  []byte
	seen  [4]uint64 // 256-bit attribute-seen bitmap

	ops     memops.Ops
	metrics *Metrics
	errs    *errstat.Status
}

// NewMachine returns a Machine in the Created state, using ops for its
// per-message heap arena (memops.Std if ops is nil).
func NewMachine(ops memops.Ops) *Machine {
	if ops == nil {
		ops = memops.Std
	}
	return &Machine{ops: ops, state: StateCreated}
}

// SetMetrics attaches optional Prometheus counters, incremented on every
// Run.
func (m *Machine) SetMetrics(metrics *Metrics) { m.metrics = metrics }

// SetErrStatus attaches the carrier that the original BGP decode error
// behind a msg_err halt is raised to, so it remains retrievable after
// Run returns only vm.ErrMsgErr.
func (m *Machine) SetErrStatus(s *errstat.Status) { m.errs = s }

// Load validates prog and transitions the Machine to Programmed. A
// failed Validate sets the sticky bad_setup flag and moves to Failed;
// Ready and Run then fail with ErrBadVM until a valid program is
// loaded.
func (m *Machine) Load(prog *Program) error {
	if err := prog.Validate(); err != nil {
		m.badSetup = true
		m.state = StateFailed
		return err
	}
	m.prog = prog
	m.badSetup = false
	m.state = StateProgrammed
	return nil
}

// Ready transitions a Programmed Machine to Ready, allocating its stack
// and heap arena. Call once per Load, before the first Run.
func (m *Machine) Ready() error {
	if m.badSetup {
		return ErrBadVM
	}
	if m.state != StateProgrammed {
		return ErrBadVM
	}
	m.stack = make([]int32, defaultStackSize)
	m.sp = 0
	m.heap = m.ops.Alloc(defaultHeapSize, nil)
	m.state = StateReady
	return nil
}

func (m *Machine) push(v int32) error {
	if m.sp >= len(m.stack) {
		return ErrStackOverflow
	}
	m.stack[m.sp] = v
	m.sp++
	return nil
}

func (m *Machine) pop() (int32, error) {
	if m.sp == 0 {
		return 0, ErrStackUnderflow
	}
	m.sp--
	return m.stack[m.sp], nil
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func setAttrBit(seen *[4]uint64, code int) {
	if code < 0 || code >= 256 {
		return
	}
	seen[code/64] |= 1 << uint(code%64)
}

// Run resets the Machine's per-message state (operand stack and
// attribute bitmap; the heap arena is left as Ready allocated it, since
// no opcode allocates from it) and evaluates the loaded program against upd. A program is
// accepted iff the stack is non-empty at END and its top value is
// nonzero. Any underlying BGP decode error halts the Machine and is
// reported as ErrMsgErr, with the original error retrievable through the
// errstat.Status set by SetErrStatus, if any.
func (m *Machine) Run(upd *bgp.Update) (bool, error) {
	if m.badSetup {
		return false, ErrBadVM
	}
	if m.state != StateReady && m.state != StateHalted {
		return false, ErrBadVM
	}
	m.sp = 0
	m.seen = [4]uint64{}
	m.state = StateRunning

	accepted, err := m.run(upd)
	m.state = StateHalted
	if err != nil {
		if m.metrics != nil {
			m.metrics.errored.Inc()
		}
		return false, err
	}
	if m.metrics != nil {
		if accepted {
			m.metrics.accepted.Inc()
		} else {
			m.metrics.rejected.Inc()
		}
	}
	return accepted, nil
}

func (m *Machine) msgErr(err error) error {
	if err == nil {
		return nil
	}
	if m.errs != nil {
		m.errs.Raise(err, errstat.Srcloc{File: "vm", Func: "Run"})
	}
	return ErrMsgErr
}

func (m *Machine) constAt(idx int, kind ConstKind) (*Const, error) {
	if idx < 0 || idx >= len(m.prog.Consts) {
		return nil, ErrBadConstant
	}
	c := &m.prog.Consts[idx]
	if c.Kind != kind {
		return nil, ErrBadConstant
	}
	return c, nil
}

func matchAnyPrefix(set *patricia.Set, prefixes []bgp.Prefix) bool {
	for _, p := range prefixes {
		if ok, err := set.Covers(p.Addr, p.Mask); err == nil && ok {
			return true
		}
	}
	return false
}

// pfxMatch implements PFXMTCH: true iff any prefix in the current UPDATE
// matches the constant prefix set, checked in WITHDRAWN, NLRI, MP_REACH,
// MP_UNREACH order, short-circuiting on the first match.
func (m *Machine) pfxMatch(upd *bgp.Update, idx int) (bool, error) {
	c, err := m.constAt(idx, ConstPrefixSet)
	if err != nil {
		return false, err
	}
	withdrawn, err := upd.WithdrawnRoutes()
	if err != nil {
		return false, m.msgErr(err)
	}
	if matchAnyPrefix(c.Prefixes, withdrawn) {
		return true, nil
	}
	nlri, err := upd.NLRI()
	if err != nil {
		return false, m.msgErr(err)
	}
	if matchAnyPrefix(c.Prefixes, nlri) {
		return true, nil
	}
	mpReach, ok, err := upd.MPReach()
	if err != nil {
		return false, m.msgErr(err)
	}
	if ok && matchAnyPrefix(c.Prefixes, mpReach.Prefixes) {
		return true, nil
	}
	mpUnreach, ok, err := upd.MPUnreach()
	if err != nil {
		return false, m.msgErr(err)
	}
	if ok && matchAnyPrefix(c.Prefixes, mpUnreach.Prefixes) {
		return true, nil
	}
	return false, nil
}

// asMatch implements ASMTCH against the UPDATE's merged AS path.
func (m *Machine) asMatch(upd *bgp.Update, idx int) (bool, error) {
	c, err := m.constAt(idx, ConstASPattern)
	if err != nil {
		return false, err
	}
	segs, err := upd.ASPath()
	if err != nil {
		return false, m.msgErr(err)
	}
	ok, err := c.ASPattern.Match(segs)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// commMatch implements COMMTCH against the UPDATE's COMMUNITY attribute.
func (m *Machine) commMatch(upd *bgp.Update, idx int) (bool, error) {
	c, err := m.constAt(idx, ConstCommExpr)
	if err != nil {
		return false, err
	}
	present, _, err := upd.Communities()
	if err != nil {
		return false, m.msgErr(err)
	}
	ok, err := c.CommExpr.Match(present)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (m *Machine) run(upd *bgp.Update) (bool, error) {
	code := m.prog.Code
	pc := 0
	for {
		if pc >= len(code) {
			return false, ErrIllegalOp
		}
		op := Op(code[pc])
		switch op {
		case OpNop, OpBlk, OpEndblk:
			pc++
		case OpEnd:
			top, err := m.pop()
			if err != nil {
				return false, nil // stack empty at END: reject, not an error
			}
			return top != 0, nil
		case OpJmp:
			pc = int(code[pc+1])<<8 | int(code[pc+2])
		case OpCjmp:
			v, err := m.pop()
			if err != nil {
				return false, err
			}
			target := int(code[pc+1])<<8 | int(code[pc+2])
			pc += 3
			if v != 0 {
				pc = target
			}
		case OpLoadk:
			idx := int(code[pc+1])<<8 | int(code[pc+2])
			c, err := m.constAt(idx, ConstInt)
			if err != nil {
				return false, err
			}
			if err := m.push(c.Int); err != nil {
				return false, err
			}
			pc += 3
		case OpLoadu:
			v := int32(uint16(code[pc+1])<<8 | uint16(code[pc+2]))
			if err := m.push(v); err != nil {
				return false, err
			}
			pc += 3
		case OpLoads:
			v := int16(uint16(code[pc+1])<<8 | uint16(code[pc+2]))
			if err := m.push(int32(v)); err != nil {
				return false, err
			}
			pc += 3
		case OpDup:
			v, err := m.pop()
			if err != nil {
				return false, err
			}
			_ = m.push(v)
			if err := m.push(v); err != nil {
				return false, err
			}
			pc++
		case OpDrop:
			if _, err := m.pop(); err != nil {
				return false, err
			}
			pc++
		case OpNot:
			v, err := m.pop()
			if err != nil {
				return false, err
			}
			if err := m.push(boolToInt32(v == 0)); err != nil {
				return false, err
			}
			pc++
		case OpAnd:
			b, err := m.pop()
			if err != nil {
				return false, err
			}
			a, err := m.pop()
			if err != nil {
				return false, err
			}
			if err := m.push(boolToInt32(a != 0 && b != 0)); err != nil {
				return false, err
			}
			pc++
		case OpOr:
			b, err := m.pop()
			if err != nil {
				return false, err
			}
			a, err := m.pop()
			if err != nil {
				return false, err
			}
			if err := m.push(boolToInt32(a != 0 || b != 0)); err != nil {
				return false, err
			}
			pc++
		case OpAllattr:
			if err := m.push(boolToInt32(len(upd.RawTPA()) > 0)); err != nil {
				return false, err
			}
			pc++
		case OpHasattr:
			attrCode := int(code[pc+1])
			has, err := upd.HasAttr(attrCode)
			if err != nil {
				return false, m.msgErr(err)
			}
			setAttrBit(&m.seen, attrCode)
			if err := m.push(boolToInt32(has)); err != nil {
				return false, err
			}
			pc += 2
		case OpPfxmtch:
			idx := int(code[pc+1])<<8 | int(code[pc+2])
			ok, err := m.pfxMatch(upd, idx)
			if err != nil {
				return false, err
			}
			if err := m.push(boolToInt32(ok)); err != nil {
				return false, err
			}
			pc += 3
		case OpAsmtch:
			idx := int(code[pc+1])<<8 | int(code[pc+2])
			ok, err := m.asMatch(upd, idx)
			if err != nil {
				return false, err
			}
			if err := m.push(boolToInt32(ok)); err != nil {
				return false, err
			}
			pc += 3
		case OpCommtch:
			idx := int(code[pc+1])<<8 | int(code[pc+2])
			ok, err := m.commMatch(upd, idx)
			if err != nil {
				return false, err
			}
			if err := m.push(boolToInt32(ok)); err != nil {
				return false, err
			}
			pc += 3
		case OpCall:
			fnIdx := int(code[pc+1])
			if fnIdx < 0 || fnIdx >= len(m.prog.Functions) {
				return false, ErrBadFunction
			}
			fn := m.prog.Functions[fnIdx]
			if m.sp < fn.Arity {
				return false, ErrStackUnderflow
			}
			args := make([]int32, fn.Arity)
			for i := fn.Arity - 1; i >= 0; i-- {
				v, err := m.pop()
				if err != nil {
					return false, err
				}
				args[i] = v
			}
			ok, err := fn.Fn(args)
			if err != nil {
				return false, err
			}
			if err := m.push(boolToInt32(ok)); err != nil {
				return false, err
			}
			pc += 2
		default:
			return false, ErrIllegalOp
		}
	}
}
