package bgp

import (
	"bytes"
	"net"
	"testing"
)

func marker() []byte {
	m := make([]byte, MarkerLen)
	for i := range m {
		m[i] = 0xff
	}
	return m
}

func TestFromBufferOpen(t *testing.T) {
	body := []byte{
		4,          // version
		0xfd, 0xe8, // my AS 65000
		0, 90, // hold time
		192, 0, 2, 1, // bgp identifier
		0, // opt parm len
	}
	length := HeaderSize + len(body)
	buf := append(marker(), byte(length>>8), byte(length), MsgOpen)
	buf = append(buf, body...)

	msg, err := FromBuffer(buf, 0)
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	if msg.Type() != MsgOpen {
		t.Fatalf("Type() = %d, want MsgOpen", msg.Type())
	}
	open, err := msg.AsOpen()
	if err != nil {
		t.Fatalf("AsOpen: %v", err)
	}
	if open.Version() != 4 {
		t.Errorf("Version() = %d, want 4", open.Version())
	}
	if open.MyAS() != 65000 {
		t.Errorf("MyAS() = %d, want 65000", open.MyAS())
	}
	if !bytes.Equal(open.BGPIdentifier(), []byte{192, 0, 2, 1}) {
		t.Errorf("BGPIdentifier() = %v", open.BGPIdentifier())
	}
}

func buildUpdate(t *testing.T) []byte {
	t.Helper()
	origin := []byte{0x40, AttrOrigin, 1, OriginIGP}
	asPath := []byte{0x40, AttrASPath, 6, AsSequence, 2, 0xfd, 0xe8, 0xfd, 0xe9}
	nextHop := []byte{0x40, AttrNextHop, 4, 192, 0, 2, 1}
	tpa := append(append(append([]byte{}, origin...), asPath...), nextHop...)

	nlri := []byte{24, 10, 0, 0} // 10.0.0.0/24

	body := []byte{0, 0} // withdrawn routes length = 0
	body = append(body, byte(len(tpa)>>8), byte(len(tpa)))
	body = append(body, tpa...)
	body = append(body, nlri...)

	length := HeaderSize + len(body)
	buf := append(marker(), byte(length>>8), byte(length), MsgUpdate)
	buf = append(buf, body...)
	return buf
}

func TestUpdateAttributes(t *testing.T) {
	buf := buildUpdate(t)
	msg, err := FromBuffer(buf, 0)
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	up, err := msg.AsUpdate()
	if err != nil {
		t.Fatalf("AsUpdate: %v", err)
	}

	origin, found, err := up.Origin()
	if err != nil || !found {
		t.Fatalf("Origin() = %v, %v, %v", origin, found, err)
	}
	if origin != OriginIGP {
		t.Errorf("Origin() = %d, want OriginIGP", origin)
	}

	segs, err := up.ASPath()
	if err != nil {
		t.Fatalf("ASPath: %v", err)
	}
	if len(segs) != 1 || len(segs[0].ASNs) != 2 {
		t.Fatalf("ASPath() = %+v", segs)
	}
	if segs[0].ASNs[0].Uint32() != 65000 || segs[0].ASNs[1].Uint32() != 65001 {
		t.Errorf("ASPath() ASNs = %v", segs[0].ASNs)
	}

	nh, found, err := up.NextHop()
	if err != nil || !found {
		t.Fatalf("NextHop() = %v, %v, %v", nh, found, err)
	}
	if !nh.Equal(net.IPv4(192, 0, 2, 1)) {
		t.Errorf("NextHop() = %v", nh)
	}

	prefixes, err := up.NLRI()
	if err != nil {
		t.Fatalf("NLRI: %v", err)
	}
	if len(prefixes) != 1 || prefixes[0].Mask != 24 {
		t.Fatalf("NLRI() = %+v", prefixes)
	}
	if !prefixes[0].Addr.Equal(net.IPv4(10, 0, 0, 0)) {
		t.Errorf("NLRI() prefix = %v", prefixes[0].Addr)
	}

	// Looking up a cold, absent attribute should report not-found without
	// disturbing the hot cache.
	if has, err := up.HasAttr(AttrMultiExitDisc); err != nil || has {
		t.Errorf("HasAttr(MULTI_EXIT_DISC) = %v, %v, want false, nil", has, err)
	}
}

func TestAS4PathMerge(t *testing.T) {
	// AS_PATH has 2 ASNs, both AS_TRANS; AS4_PATH supplies the real values.
	asPath := []byte{0x40, AttrASPath, 6, AsSequence, 2, 0x5b, 0xa0, 0x5b, 0xa0} // 23456, 23456
	as4Path := []byte{0xc0, AttrAS4Path, 10, AsSequence, 2, 0, 1, 0x86, 0xa0, 0, 1, 0x86, 0xa1}
	tpa := append(append([]byte{}, asPath...), as4Path...)

	body := []byte{0, 0}
	body = append(body, byte(len(tpa)>>8), byte(len(tpa)))
	body = append(body, tpa...)

	length := HeaderSize + len(body)
	buf := append(marker(), byte(length>>8), byte(length), MsgUpdate)
	buf = append(buf, body...)

	msg, err := FromBuffer(buf, 0)
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	up, err := msg.AsUpdate()
	if err != nil {
		t.Fatalf("AsUpdate: %v", err)
	}
	segs, err := up.ASPath()
	if err != nil {
		t.Fatalf("ASPath: %v", err)
	}
	if len(segs) != 1 || len(segs[0].ASNs) != 2 {
		t.Fatalf("ASPath() = %+v", segs)
	}
	if segs[0].ASNs[0].Uint32() != 100000 || segs[0].ASNs[1].Uint32() != 100001 {
		t.Errorf("merged ASPath = %v, want [100000 100001]", segs[0].ASNs)
	}
}

func TestFromBufferRejectsBadMarker(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[16] = 0
	buf[17] = HeaderSize
	buf[18] = MsgKeepalive
	if _, err := FromBuffer(buf, 0); err != ErrBadMarker {
		t.Fatalf("FromBuffer() err = %v, want ErrBadMarker", err)
	}
}

func TestFromBufferRejectsTruncated(t *testing.T) {
	buf := append(marker(), 0, 30, MsgKeepalive)
	if _, err := FromBuffer(buf, 0); err != ErrTruncMsg {
		t.Fatalf("FromBuffer() err = %v, want ErrTruncMsg", err)
	}
}
