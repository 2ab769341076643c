package filter

import (
	"testing"

	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/wire"
)

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
	asPath := []byte{
		0x40, bgp.AttrASPath, 6,
		bgp.AsSequence, 2, 0xfd, 0xe8, 0x01, 0x90, // 65000, 400 (AS4 off: 2-byte width)
	}
	nextHop := []byte{0x40, bgp.AttrNextHop, 4, 192, 0, 2, 1}
	tpa := append(append(append([]byte{}, origin...), asPath...), nextHop...)
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

	msg, err := bgp.FromBuffer(buf, 0)
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	upd, err := msg.AsUpdate()
	if err != nil {
		t.Fatalf("AsUpdate: %v", err)
	}
	return upd
}

func TestPrefixFilterAdvertised(t *testing.T) {
	upd := buildUpdate(t)
	f, err := NewPrefixFilterFromSlice([]string{"10.0.0.0/16"}, AdvPrefix)
	if err != nil {
		t.Fatalf("NewPrefixFilterFromSlice: %v", err)
	}
	if !f(upd) {
		t.Fatalf("expected 10.0.0.0/24 to be covered by 10.0.0.0/16")
	}

	f, err = NewPrefixFilterFromSlice([]string{"192.168.0.0/16"}, AdvPrefix)
	if err != nil {
		t.Fatalf("NewPrefixFilterFromSlice: %v", err)
	}
	if f(upd) {
		t.Fatalf("unrelated prefix should not match")
	}
}

func TestPrefixFilterWithdrawnLocationIgnoresAdvertised(t *testing.T) {
	upd := buildUpdate(t)
	f, err := NewPrefixFilterFromSlice([]string{"10.0.0.0/16"}, WdrPrefix)
	if err != nil {
		t.Fatalf("NewPrefixFilterFromSlice: %v", err)
	}
	if f(upd) {
		t.Fatalf("WdrPrefix filter should not see an advertised-only NLRI")
	}
}

func TestASFilterPositions(t *testing.T) {
	upd := buildUpdate(t)

	source, err := NewASFilter("400", AS_SOURCE)
	if err != nil {
		t.Fatalf("NewASFilter: %v", err)
	}
	if !source(upd) {
		t.Fatalf("AS 400 is the last hop (origin), AS_SOURCE should match")
	}

	dest, err := NewASFilter("65000", AS_DESTINATION)
	if err != nil {
		t.Fatalf("NewASFilter: %v", err)
	}
	if !dest(upd) {
		t.Fatalf("AS 65000 is the first hop, AS_DESTINATION should match")
	}

	mid, err := NewASFilter("65000", AS_MIDPATH)
	if err != nil {
		t.Fatalf("NewASFilter: %v", err)
	}
	if mid(upd) {
		t.Fatalf("a 2-hop path has no midpath, AS_MIDPATH should not match")
	}

	anywhere, err := NewASFilter("400", AS_ANYWHERE)
	if err != nil {
		t.Fatalf("NewASFilter: %v", err)
	}
	if !anywhere(upd) {
		t.Fatalf("AS_ANYWHERE should match any hop, including 400")
	}
}

func TestAllRequiresEveryFilter(t *testing.T) {
	upd := buildUpdate(t)
	alwaysTrue := func(*bgp.Update) bool { return true }
	alwaysFalse := func(*bgp.Update) bool { return false }

	if !All([]Filter{alwaysTrue, alwaysTrue}, upd) {
		t.Fatalf("All-true filters should pass")
	}
	if All([]Filter{alwaysTrue, alwaysFalse}, upd) {
		t.Fatalf("one false filter should fail All")
	}
	if !All(nil, upd) {
		t.Fatalf("no filters should pass")
	}
}
