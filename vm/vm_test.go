package vm

import (
	"testing"

	"github.com/CSUNetSec/bgpcore/asn"
	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/patricia"
	"github.com/CSUNetSec/bgpcore/wire"
)

func asns(vals ...uint32) []asn.Asn {
	out := make([]asn.Asn, len(vals))
	for i, v := range vals {
		out[i] = asn.From32(v)
	}
	return out
}

func marker() []byte {
	m := make([]byte, bgp.MarkerLen)
	for i := range m {
		m[i] = 0xff
	}
	return m
}

func buildUpdate(t *testing.T) *bgp.Update {
	t.Helper()
	origin := []byte{0x40, bgp.AttrOrigin, 1, 0}
	asPath := []byte{0x40, bgp.AttrASPath, 6, bgp.AsSequence, 1, 0, 1, 0x86, 0xa0}
	nextHop := []byte{0x40, bgp.AttrNextHop, 4, 192, 0, 2, 1}
	community := []byte{0xc0, bgp.AttrCommunity, 4, 0xff, 0xff, 0xff, 0x01}
	tpa := append(append(append(append([]byte{}, origin...), asPath...), nextHop...), community...)
	nlri := []byte{24, 10, 0, 0}

	body := make([]byte, 0)
	body = wire.AppendBE16(body, 0)
	body = wire.AppendBE16(body, uint16(len(tpa)))
	body = append(body, tpa...)
	body = append(body, nlri...)

	length := bgp.HeaderSize + len(body)
	buf := append([]byte{}, marker()...)
	buf = wire.AppendBE16(buf, uint16(length))
	buf = append(buf, bgp.MsgUpdate)
	buf = append(buf, body...)

	msg, err := bgp.FromBuffer(buf, bgp.FlagASN32Bit)
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	upd, err := msg.AsUpdate()
	if err != nil {
		t.Fatalf("AsUpdate: %v", err)
	}
	return upd
}

func runProgram(t *testing.T, prog *Program, upd *bgp.Update) (bool, error) {
	t.Helper()
	m := NewMachine(nil)
	if err := m.Load(prog); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	return m.Run(upd)
}

func TestMachinePfxmtchAccepts(t *testing.T) {
	upd := buildUpdate(t)

	set := patricia.New()
	if err := set.AddCIDR("10.0.0.0/16"); err != nil {
		t.Fatalf("AddCIDR: %v", err)
	}
	a := NewAssembler()
	idx := a.AddPrefixSet(set)
	a.Pfxmtch(idx).End()

	ok, err := runProgram(t, a.Program(), upd)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ok {
		t.Fatalf("expected acceptance, prefix 10.0.0.0/24 is covered by 10.0.0.0/16")
	}
}

func TestMachinePfxmtchRejects(t *testing.T) {
	upd := buildUpdate(t)

	set := patricia.New()
	if err := set.AddCIDR("192.168.0.0/16"); err != nil {
		t.Fatalf("AddCIDR: %v", err)
	}
	a := NewAssembler()
	idx := a.AddPrefixSet(set)
	a.Pfxmtch(idx).End()

	ok, err := runProgram(t, a.Program(), upd)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ok {
		t.Fatalf("expected rejection, no prefix should match 192.168.0.0/16")
	}
}

func TestMachineAsmtchAndCommtch(t *testing.T) {
	upd := buildUpdate(t)

	a := NewAssembler()
	asIdx, err := a.AddASPattern("100000")
	if err != nil {
		t.Fatalf("AddASPattern: %v", err)
	}
	commIdx := a.AddCommExpr(NewCommLit(bgp.Community{ASN: 0xffff, Value: 0xff01}))
	a.Asmtch(asIdx).Commtch(commIdx).And().End()

	ok, err := runProgram(t, a.Program(), upd)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ok {
		t.Fatalf("expected acceptance: AS path has 100000 and community 65535:65281 is present")
	}
}

func TestMachineJumpAndHasattr(t *testing.T) {
	upd := buildUpdate(t)

	a := NewAssembler()
	a.Hasattr(bgp.AttrMultiExitDisc) // pushes 0: not present
	cjmp := a.Here()
	a.Cjmp(0) // patched below, target: the "present" branch
	// "absent" branch: falls through here since the pushed condition was 0
	a.Loadu(0)
	jmp := a.Here()
	a.Jmp(0) // patched below, target: End
	trueTarget := a.Here()
	a.Loadu(1)
	endTarget := a.Here()
	a.End()

	a.Patch(cjmp, trueTarget)
	a.Patch(jmp, endTarget)

	ok, err := runProgram(t, a.Program(), upd)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ok {
		t.Fatalf("MULTI_EXIT_DISC is absent, HASATTR should have driven the false branch")
	}
}

func TestMachineBadSetupSticky(t *testing.T) {
	a := NewAssembler()
	a.Jmp(9999) // out of bounds
	a.End()

	m := NewMachine(nil)
	if err := m.Load(a.Program()); err != ErrBadJump {
		t.Fatalf("expected ErrBadJump, got %v", err)
	}
	if err := m.Ready(); err != ErrBadVM {
		t.Fatalf("expected ErrBadVM after failed Load, got %v", err)
	}
}

func TestCompileASPatternGroupDepthLimit(t *testing.T) {
	pattern := ""
	for i := 0; i < maxASGroupDepth+1; i++ {
		pattern += "("
	}
	pattern += "1"
	for i := 0; i < maxASGroupDepth+1; i++ {
		pattern += ")"
	}
	if _, err := compileASPattern(pattern); err != ErrASGroupLimit {
		t.Fatalf("expected ErrASGroupLimit, got %v", err)
	}
}

func TestASPatternAlternationAndWildcard(t *testing.T) {
	p, err := compileASPattern("65000 . (100000|200000)")
	if err != nil {
		t.Fatalf("compileASPattern: %v", err)
	}
	segs := []bgp.Segment{
		{Type: bgp.AsSequence, ASNs: asns(65000, 70000, 100000)},
	}
	ok, err := p.Match(segs)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !ok {
		t.Fatalf("expected pattern to match via the wildcard + alternation branch")
	}
}
