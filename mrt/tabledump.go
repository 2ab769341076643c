package mrt

import (
	"net"

	"github.com/CSUNetSec/bgpcore/wire"
)

// TableDumpEntry is a decoded TABLE_DUMP (v1) row, RFC 6396 §4.2. Unlike
// TABLE_DUMP_V2, each row is self-contained: the peer is inlined rather
// than referenced through a PEER_INDEX_TABLE.
type TableDumpEntry struct {
	ViewNumber     uint16
	SequenceNumber uint16
	Prefix         net.IP
	PrefixLen      uint8
	Status         uint8
	OriginatedTime uint32
	PeerIP         net.IP
	PeerAS         uint32
	RawAttrs       []byte
}

// ParseTableDumpV1 decodes a TABLE_DUMP record. subtype selects the
// address family (TableDumpAFIIPv4/TableDumpAFIIPv6).
func ParseTableDumpV1(rec *Record) (*TableDumpEntry, error) {
	buf := rec.Payload
	v6 := rec.Subtype == TableDumpAFIIPv6
	addrLen := 4
	if v6 {
		addrLen = 16
	}
	if len(buf) < 4+addrLen+2 {
		return nil, ErrTruncMRT
	}
	e := &TableDumpEntry{
		ViewNumber:     wire.BE16(buf[0:2]),
		SequenceNumber: wire.BE16(buf[2:4]),
	}
	buf = buf[4:]
	e.Prefix = net.IP(append([]byte(nil), buf[:addrLen]...))
	buf = buf[addrLen:]
	e.PrefixLen = buf[0]
	e.Status = buf[1]
	buf = buf[2:]
	if len(buf) < 4 {
		return nil, ErrTruncMRT
	}
	e.OriginatedTime = wire.BE32(buf[0:4])
	buf = buf[4:]
	if len(buf) < addrLen+2+2 {
		return nil, ErrTruncMRT
	}
	e.PeerIP = net.IP(append([]byte(nil), buf[:addrLen]...))
	buf = buf[addrLen:]
	e.PeerAS = uint32(wire.BE16(buf[0:2]))
	buf = buf[2:]
	attrLen := int(wire.BE16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < attrLen {
		return nil, ErrTruncMRT
	}
	e.RawAttrs = buf[:attrLen]
	return e, nil
}
