package mrt

import (
	"net"

	"github.com/CSUNetSec/bgpcore/wire"
)

// PeerIndexTable is a decoded PEER_INDEX_TABLE record (RFC 6396 §4.3.1),
// the peer directory every RIB_* record in the same dump indexes into by
// position.
type PeerIndexTable struct {
	CollectorID uint32
	ViewName    string
	Peers       []PeerEntry
}

// PeerEntry is one row of a PeerIndexTable.
type PeerEntry struct {
	BGPID uint32
	IP    net.IP
	AS    uint32
	AS4   bool
}

// ParsePeerIndexTable decodes a PEER_INDEX_TABLE record.
func ParsePeerIndexTable(rec *Record) (*PeerIndexTable, error) {
	buf := rec.Payload
	if len(buf) < 6 {
		return nil, ErrTruncMRT
	}
	t := &PeerIndexTable{CollectorID: wire.BE32(buf[0:4])}
	vlen := int(wire.BE16(buf[4:6]))
	buf = buf[6:]
	if len(buf) < vlen+2 {
		return nil, ErrTruncMRT
	}
	t.ViewName = string(buf[:vlen])
	buf = buf[vlen:]
	peerCount := int(wire.BE16(buf[0:2]))
	buf = buf[2:]

	t.Peers = make([]PeerEntry, peerCount)
	for i := 0; i < peerCount; i++ {
		if len(buf) < 1 {
			return nil, ErrBadPeerIdxCount
		}
		peerType := buf[0]
		buf = buf[1:]
		as4 := peerType&0x2 != 0
		ipv6 := peerType&0x1 != 0

		if len(buf) < 4 {
			return nil, ErrTruncPeerV2
		}
		bgpID := wire.BE32(buf[0:4])
		buf = buf[4:]

		addrLen := 4
		if ipv6 {
			addrLen = 16
		}
		if len(buf) < addrLen {
			return nil, ErrTruncPeerV2
		}
		ip := net.IP(append([]byte(nil), buf[:addrLen]...))
		buf = buf[addrLen:]

		var as uint32
		if as4 {
			if len(buf) < 4 {
				return nil, ErrTruncPeerV2
			}
			as = wire.BE32(buf[0:4])
			buf = buf[4:]
		} else {
			if len(buf) < 2 {
				return nil, ErrTruncPeerV2
			}
			as = uint32(wire.BE16(buf[0:2]))
			buf = buf[2:]
		}
		t.Peers[i] = PeerEntry{BGPID: bgpID, IP: ip, AS: as, AS4: as4}
	}
	return t, nil
}

// Peer looks up a peer by the index RIBEntry.PeerIndex references.
func (t *PeerIndexTable) Peer(idx uint16) (PeerEntry, bool) {
	if int(idx) >= len(t.Peers) {
		return PeerEntry{}, false
	}
	return t.Peers[idx], true
}

// RIBEntry is one route observed for a given prefix from a given peer,
// RFC 6396 §4.3.4. Attributes in a TABLE_DUMP_V2 RIB entry always carry
// 4-octet ASNs, regardless of what the originating session negotiated.
type RIBEntry struct {
	PeerIndex      uint16
	OriginatedTime uint32
	RawAttrs       []byte
}

// RIBRow is a decoded RIB_IPV4_UNICAST/RIB_IPV6_UNICAST/RIB_GENERIC
// record: a single prefix plus every peer's route to it.
type RIBRow struct {
	SequenceNumber uint32
	AFI            uint16
	SAFI           uint8
	Prefix         net.IP
	PrefixLen      uint8
	Entries        []RIBEntry
}

func readRIBPrefix(buf []byte, v6 bool) (net.IP, uint8, []byte, error) {
	if len(buf) < 1 {
		return nil, 0, nil, ErrTruncRIBV2
	}
	bits := buf[0]
	buf = buf[1:]
	addrLen := 4
	if v6 {
		addrLen = 16
	}
	if int(bits) > addrLen*8 {
		return nil, 0, nil, ErrTruncRIBV2
	}
	bytelen := int(bits+7) / 8
	if len(buf) < bytelen {
		return nil, 0, nil, ErrTruncRIBV2
	}
	raw := make([]byte, addrLen)
	copy(raw, buf[:bytelen])
	buf = buf[bytelen:]
	return net.IP(raw), bits, buf, nil
}

func parseRIBEntries(buf []byte) ([]RIBEntry, error) {
	if len(buf) < 2 {
		return nil, ErrBadRIBV2Count
	}
	count := int(wire.BE16(buf[0:2]))
	buf = buf[2:]
	entries := make([]RIBEntry, count)
	for i := 0; i < count; i++ {
		if len(buf) < 8 {
			return nil, ErrTruncRIBV2
		}
		e := RIBEntry{
			PeerIndex:      wire.BE16(buf[0:2]),
			OriginatedTime: wire.BE32(buf[2:6]),
		}
		attrLen := int(wire.BE16(buf[6:8]))
		buf = buf[8:]
		if len(buf) < attrLen {
			return nil, ErrTruncRIBV2
		}
		e.RawAttrs = buf[:attrLen]
		buf = buf[attrLen:]
		entries[i] = e
	}
	return entries, nil
}

// ParseRIBUnicast decodes a RIB_IPV4_UNICAST or RIB_IPV6_UNICAST record.
func ParseRIBUnicast(rec *Record) (*RIBRow, error) {
	v6 := rec.Subtype == SubtypeRIBIPv6Unicast
	buf := rec.Payload
	if len(buf) < 4 {
		return nil, ErrTruncRIBV2
	}
	seq := wire.BE32(buf[0:4])
	buf = buf[4:]
	prefix, plen, rest, err := readRIBPrefix(buf, v6)
	if err != nil {
		return nil, err
	}
	entries, err := parseRIBEntries(rest)
	if err != nil {
		return nil, err
	}
	afi := uint16(1)
	if v6 {
		afi = 2
	}
	return &RIBRow{SequenceNumber: seq, AFI: afi, SAFI: 1, Prefix: prefix, PrefixLen: plen, Entries: entries}, nil
}

// ParseRIBGeneric decodes a RIB_GENERIC record (RFC 6396 §4.3.3), used
// for AFI/SAFI combinations other than IPv4/IPv6 unicast; the record
// carries its AFI/SAFI explicitly instead of it being implied by the
// MRT subtype.
func ParseRIBGeneric(rec *Record) (*RIBRow, error) {
	buf := rec.Payload
	if len(buf) < 7 {
		return nil, ErrTruncRIBV2
	}
	seq := wire.BE32(buf[0:4])
	afi := wire.BE16(buf[4:6])
	safi := buf[6]
	buf = buf[7:]
	prefix, plen, rest, err := readRIBPrefix(buf, afi == 2)
	if err != nil {
		return nil, err
	}
	entries, err := parseRIBEntries(rest)
	if err != nil {
		return nil, err
	}
	return &RIBRow{SequenceNumber: seq, AFI: afi, SAFI: safi, Prefix: prefix, PrefixLen: plen, Entries: entries}, nil
}
