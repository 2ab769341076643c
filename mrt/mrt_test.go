package mrt

import (
	"net"
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

// buildBGPUpdate constructs a minimal UPDATE: ORIGIN + AS_PATH(one 4-byte
// ASN) + NEXT_HOP, one legacy NLRI prefix, no withdrawn routes.
func buildBGPUpdate(t *testing.T) []byte {
	t.Helper()
	origin := []byte{0x40, bgp.AttrOrigin, 1, 0}
	asPath := []byte{0x40, bgp.AttrASPath, 6, bgp.AsSequence, 1, 0, 1, 0x86, 0xa0}
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
	return buf
}

func buildRecord(typ, subtype uint16, payload []byte) []byte {
	buf := make([]byte, 0, HeaderLen+len(payload))
	buf = wire.AppendBE32(buf, 1234567890)
	buf = wire.AppendBE16(buf, typ)
	buf = wire.AppendBE16(buf, subtype)
	buf = wire.AppendBE32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return buf
}

func TestBGP4MPMessage(t *testing.T) {
	bgpMsg := buildBGPUpdate(t)
	payload := make([]byte, 0)
	payload = wire.AppendBE32(payload, 65001) // peer AS (AS4)
	payload = wire.AppendBE32(payload, 65000) // local AS
	payload = wire.AppendBE16(payload, 0)     // interface index
	payload = wire.AppendBE16(payload, bgp.AfiIPv4)
	payload = append(payload, 192, 0, 2, 2) // peer IP
	payload = append(payload, 192, 0, 2, 3) // local IP
	payload = append(payload, bgpMsg...)

	raw := buildRecord(TypeBGP4MP, BGP4MPMessageAS4, payload)
	rec, err := ParseRecord(raw)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec.Type != TypeBGP4MP || rec.Subtype != BGP4MPMessageAS4 {
		t.Fatalf("unexpected record header: %+v", rec)
	}

	hdr, msg, err := BGP4MPMessage(rec)
	if err != nil {
		t.Fatalf("BGP4MPMessage: %v", err)
	}
	if hdr.PeerAS != 65001 || hdr.LocalAS != 65000 || !hdr.AS4 {
		t.Fatalf("unexpected header: %+v", hdr)
	}
	if !hdr.PeerIP.Equal(net.IPv4(192, 0, 2, 2)) {
		t.Fatalf("unexpected peer IP: %v", hdr.PeerIP)
	}
	upd, err := msg.AsUpdate()
	if err != nil {
		t.Fatalf("AsUpdate: %v", err)
	}
	nlri, err := upd.NLRI()
	if err != nil || len(nlri) != 1 || nlri[0].Mask != 24 {
		t.Fatalf("unexpected NLRI: %+v err=%v", nlri, err)
	}
}

func TestSplitMrt(t *testing.T) {
	rec1 := buildRecord(TypeBGP4MP, BGP4MPMessage, []byte{1, 2, 3})
	rec2 := buildRecord(TypeBGP4MP, BGP4MPMessage, []byte{4, 5})
	data := append(append([]byte{}, rec1...), rec2...)

	adv, tok, err := SplitMrt(data, false)
	if err != nil || adv != len(rec1) {
		t.Fatalf("first split: adv=%d err=%v", adv, err)
	}
	if len(tok) != len(rec1) {
		t.Fatalf("unexpected token length %d", len(tok))
	}

	adv, _, err = SplitMrt(data[:HeaderLen-1], false)
	if err != nil || adv != 0 {
		t.Fatalf("short buffer should request more data, got adv=%d err=%v", adv, err)
	}
}

func buildPeerIndexTable() []byte {
	payload := make([]byte, 0)
	payload = wire.AppendBE32(payload, 0xc0000201) // collector ID
	viewName := []byte("test-view")
	payload = wire.AppendBE16(payload, uint16(len(viewName)))
	payload = append(payload, viewName...)
	payload = wire.AppendBE16(payload, 1) // peer count

	peerType := byte(0x2) // AS4, IPv4
	payload = append(payload, peerType)
	payload = wire.AppendBE32(payload, 0xc0000201) // BGP ID
	payload = append(payload, 192, 0, 2, 1)        // peer IP
	payload = wire.AppendBE32(payload, 65001)      // AS4
	return payload
}

func TestPeerIndexAndRIBUnicast(t *testing.T) {
	peerPayload := buildPeerIndexTable()
	rec, err := ParseRecord(buildRecord(TypeTableDumpV2, SubtypePeerIndexTable, peerPayload))
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	pit, err := ParsePeerIndexTable(rec)
	if err != nil {
		t.Fatalf("ParsePeerIndexTable: %v", err)
	}
	if len(pit.Peers) != 1 || pit.Peers[0].AS != 65001 || pit.ViewName != "test-view" {
		t.Fatalf("unexpected peer index table: %+v", pit)
	}
	if p, ok := pit.Peer(0); !ok || p.AS != 65001 {
		t.Fatalf("Peer(0) = %+v, %v", p, ok)
	}
	if _, ok := pit.Peer(5); ok {
		t.Fatalf("Peer(5) should be out of range")
	}

	rawAttrs := []byte{0x40, bgp.AttrOrigin, 1, 0}
	ribPayload := make([]byte, 0)
	ribPayload = wire.AppendBE32(ribPayload, 1) // sequence number
	ribPayload = append(ribPayload, 24, 10, 0, 0)
	ribPayload = wire.AppendBE16(ribPayload, 1) // entry count
	ribPayload = wire.AppendBE16(ribPayload, 0) // peer index
	ribPayload = wire.AppendBE32(ribPayload, 1700000000)
	ribPayload = wire.AppendBE16(ribPayload, uint16(len(rawAttrs)))
	ribPayload = append(ribPayload, rawAttrs...)

	ribRec, err := ParseRecord(buildRecord(TypeTableDumpV2, SubtypeRIBIPv4Unicast, ribPayload))
	if err != nil {
		t.Fatalf("ParseRecord RIB: %v", err)
	}
	row, err := ParseRIBUnicast(ribRec)
	if err != nil {
		t.Fatalf("ParseRIBUnicast: %v", err)
	}
	if row.AFI != bgp.AfiIPv4 || row.SAFI != bgp.SafiUnicast || row.PrefixLen != 24 {
		t.Fatalf("unexpected RIB row: %+v", row)
	}
	if !row.Prefix.Equal(net.IPv4(10, 0, 0, 0)) {
		t.Fatalf("unexpected prefix: %v", row.Prefix)
	}
	if len(row.Entries) != 1 || row.Entries[0].PeerIndex != 0 {
		t.Fatalf("unexpected entries: %+v", row.Entries)
	}
}

func TestRebuildFromRIBIPv4Unicast(t *testing.T) {
	rawAttrs := []byte{}
	rawAttrs = append(rawAttrs, 0x40, bgp.AttrOrigin, 1, 0)
	rawAttrs = append(rawAttrs, 0x40, bgp.AttrASPath, 6, bgp.AsSequence, 1, 0, 1, 0x86, 0xa0)
	rawAttrs = append(rawAttrs, 0x40, bgp.AttrNextHop, 4, 192, 0, 2, 1)

	row := &RIBRow{
		AFI:       bgp.AfiIPv4,
		SAFI:      bgp.SafiUnicast,
		Prefix:    net.IPv4(10, 0, 0, 0).To4(),
		PrefixLen: 24,
	}
	entry := &RIBEntry{RawAttrs: rawAttrs}

	msg, err := RebuildFromRIB(row, entry, 0)
	if err != nil {
		t.Fatalf("RebuildFromRIB: %v", err)
	}
	upd, err := msg.AsUpdate()
	if err != nil {
		t.Fatalf("AsUpdate: %v", err)
	}
	nlri, err := upd.NLRI()
	if err != nil || len(nlri) != 1 || nlri[0].Mask != 24 || !nlri[0].Addr.Equal(net.IPv4(10, 0, 0, 0)) {
		t.Fatalf("unexpected NLRI: %+v err=%v", nlri, err)
	}
	asPath, err := upd.ASPath()
	if err != nil || len(asPath) != 1 || len(asPath[0].ASNs) != 1 || asPath[0].ASNs[0].Uint32() != 100000 {
		t.Fatalf("unexpected AS path: %+v err=%v", asPath, err)
	}
}

func TestRebuildFromRIBMPReach(t *testing.T) {
	rawAttrs := []byte{}
	rawAttrs = append(rawAttrs, 0x40, bgp.AttrOrigin, 1, 0)

	row := &RIBRow{
		AFI:       bgp.AfiIPv6,
		SAFI:      bgp.SafiUnicast,
		Prefix:    net.ParseIP("2001:db8::").To16(),
		PrefixLen: 32,
	}
	entry := &RIBEntry{RawAttrs: rawAttrs}

	if _, err := RebuildFromRIB(row, entry, StrictRFC6396); err != ErrRIBNoMPReach {
		t.Fatalf("expected ErrRIBNoMPReach in strict mode, got %v", err)
	}

	msg, err := RebuildFromRIB(row, entry, 0)
	if err != nil {
		t.Fatalf("RebuildFromRIB lax: %v", err)
	}
	upd, err := msg.AsUpdate()
	if err != nil {
		t.Fatalf("AsUpdate: %v", err)
	}
	mpReach, ok, err := upd.MPReach()
	if err != nil || !ok {
		t.Fatalf("expected synthesized MP_REACH_NLRI, ok=%v err=%v", ok, err)
	}
	if len(mpReach.Prefixes) != 1 || mpReach.Prefixes[0].Mask != 32 {
		t.Fatalf("unexpected MP_REACH prefixes: %+v", mpReach.Prefixes)
	}
}

func TestRebuildFromRIBMPReachOmittedHeader(t *testing.T) {
	nextHop := net.ParseIP("2001:db8::1").To16()
	rawAttrs := []byte{}
	rawAttrs = append(rawAttrs, 0x40, bgp.AttrOrigin, 1, 0)
	omitted := append([]byte{16}, nextHop...)
	rawAttrs = append(rawAttrs, 0x40, bgp.AttrMPReachNLRI, byte(len(omitted)))
	rawAttrs = append(rawAttrs, omitted...)

	row := &RIBRow{
		AFI:       bgp.AfiIPv6,
		SAFI:      bgp.SafiUnicast,
		Prefix:    net.ParseIP("2001:db8::").To16(),
		PrefixLen: 32,
	}
	entry := &RIBEntry{RawAttrs: rawAttrs}

	msg, err := RebuildFromRIB(row, entry, StrictRFC6396)
	if err != nil {
		t.Fatalf("RebuildFromRIB strict: %v", err)
	}
	upd, err := msg.AsUpdate()
	if err != nil {
		t.Fatalf("AsUpdate: %v", err)
	}
	mpReach, ok, err := upd.MPReach()
	if err != nil || !ok {
		t.Fatalf("expected reconstructed MP_REACH_NLRI, ok=%v err=%v", ok, err)
	}
	if !mpReach.NextHop.Equal(nextHop) {
		t.Fatalf("unexpected next hop: %v", mpReach.NextHop)
	}
	if len(mpReach.Prefixes) != 1 || mpReach.Prefixes[0].Mask != 32 || !mpReach.Prefixes[0].Addr.Equal(row.Prefix) {
		t.Fatalf("unexpected MP_REACH prefixes: %+v", mpReach.Prefixes)
	}
}

func TestRebuildFromRIBMPReachEmbeddedHeaderStrict(t *testing.T) {
	nextHop := net.ParseIP("2001:db8::1").To16()
	rawAttrs := []byte{}
	rawAttrs = append(rawAttrs, 0x40, bgp.AttrOrigin, 1, 0)
	embedded := []byte{}
	embedded = wire.AppendBE16(embedded, bgp.AfiIPv6)
	embedded = append(embedded, bgp.SafiUnicast, 16)
	embedded = append(embedded, nextHop...)
	embedded = append(embedded, 0) // SNPA count
	embedded = append(embedded, encodeLegacyPrefix(net.ParseIP("2001:db8::").To16(), 32)...)
	rawAttrs = append(rawAttrs, 0x40, bgp.AttrMPReachNLRI, byte(len(embedded)))
	rawAttrs = append(rawAttrs, embedded...)

	row := &RIBRow{
		AFI:       bgp.AfiIPv6,
		SAFI:      bgp.SafiUnicast,
		Prefix:    net.ParseIP("2001:db8::").To16(),
		PrefixLen: 32,
	}
	entry := &RIBEntry{RawAttrs: rawAttrs}

	if _, err := RebuildFromRIB(row, entry, StrictRFC6396); err != ErrBadRIBV2MPReach {
		t.Fatalf("expected ErrBadRIBV2MPReach for embedded-header MP_REACH in strict mode, got %v", err)
	}

	msg, err := RebuildFromRIB(row, entry, 0)
	if err != nil {
		t.Fatalf("RebuildFromRIB lax: %v", err)
	}
	upd, err := msg.AsUpdate()
	if err != nil {
		t.Fatalf("AsUpdate: %v", err)
	}
	mpReach, ok, err := upd.MPReach()
	if err != nil || !ok {
		t.Fatalf("expected passed-through MP_REACH_NLRI, ok=%v err=%v", ok, err)
	}
	if len(mpReach.Prefixes) != 1 || !mpReach.Prefixes[0].Addr.Equal(row.Prefix) {
		t.Fatalf("unexpected MP_REACH prefixes: %+v", mpReach.Prefixes)
	}
}
