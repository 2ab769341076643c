package mrt

import (
	"net"

	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/errstat"
	"github.com/CSUNetSec/bgpcore/wire"
)

// rawAttr is a byte-for-byte span of one path attribute (header and
// value together), used when rebuilding a TPA buffer that must pass
// most attributes through unchanged while rewriting or dropping one.
type rawAttr struct {
	code int
	span []byte // header + value, exactly as it appeared in the source
	value []byte
}

func walkRawAttrs(buf []byte) ([]rawAttr, error) {
	var out []rawAttr
	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, bgp.ErrTruncAttr
		}
		flags := buf[0]
		code := int(buf[1])
		var hdrlen, vlen int
		if flags&0x10 != 0 {
			if len(buf) < 4 {
				return nil, bgp.ErrTruncAttr
			}
			vlen = int(wire.BE16(buf[2:4]))
			hdrlen = 4
		} else {
			if len(buf) < 3 {
				return nil, bgp.ErrTruncAttr
			}
			vlen = int(buf[2])
			hdrlen = 3
		}
		if len(buf) < hdrlen+vlen {
			return nil, bgp.ErrTruncAttr
		}
		out = append(out, rawAttr{code: code, span: buf[:hdrlen+vlen], value: buf[hdrlen : hdrlen+vlen]})
		buf = buf[hdrlen+vlen:]
	}
	return out, nil
}

// buildAttr encodes a single attribute (optional+transitive, no
// extended length needed for the small synthetic attributes this
// package writes) from a type code and value.
func buildAttr(code int, value []byte) []byte {
	out := make([]byte, 0, 3+len(value))
	out = append(out, 0xc0, byte(code), byte(len(value)))
	return append(out, value...)
}

func encodeLegacyPrefix(prefix net.IP, bits uint8) []byte {
	bytelen := int(bits+7) / 8
	out := make([]byte, 1+bytelen)
	out[0] = bits
	copy(out[1:], prefix[:bytelen])
	return out
}

// synthesizeMPReach builds an MP_REACH_NLRI value for row's prefix, used
// in lax reconstruction when the RIB entry's own attributes don't carry
// one. nextHop is the raw NEXT_HOP attribute value to reuse, or nil to
// fall back to an all-zero next hop of the right width.
func synthesizeMPReach(row *RIBRow, nextHop []byte) []byte {
	v6 := row.AFI == bgp.AfiIPv6
	nhLen := 4
	if v6 {
		nhLen = 16
	}
	nh := make([]byte, nhLen)
	if len(nextHop) == nhLen {
		copy(nh, nextHop)
	}
	out := make([]byte, 0, 4+nhLen+1)
	out = wire.AppendBE16(out, row.AFI)
	out = append(out, row.SAFI, byte(nhLen))
	out = append(out, nh...)
	out = append(out, 0) // SNPA count
	out = append(out, encodeLegacyPrefix(row.Prefix, row.PrefixLen)...)
	return out
}

// RebuildFromRIB synthesizes the BGP UPDATE message a RIB entry
// describes: a single advertised prefix carrying the entry's path
// attributes, either as legacy NLRI (IPv4 unicast) or via a
// MP_REACH_NLRI (every other AFI/SAFI).
func RebuildFromRIB(row *RIBRow, entry *RIBEntry, flags RebuildFlags) (*bgp.Message, error) {
	attrs, err := walkRawAttrs(entry.RawAttrs)
	if err != nil {
		return nil, err
	}

	var tpa []byte
	var nextHopVal []byte
	var mpReach *rawAttr
	for i, a := range attrs {
		switch a.code {
		case bgp.AttrNextHop:
			nextHopVal = a.value
		case bgp.AttrMPReachNLRI:
			mpReach = &attrs[i]
			continue
		case bgp.AttrMPUnreachNLRI:
			if flags.has(StripUnreach) {
				continue
			}
			if flags.has(ClearUnreach) {
				if len(a.value) < 3 {
					return nil, bgp.ErrTruncAttr
				}
				cleared := buildAttr(bgp.AttrMPUnreachNLRI, a.value[:3])
				tpa = append(tpa, cleared...)
				continue
			}
		}
		tpa = append(tpa, a.span...)
	}

	ipv4Unicast := row.AFI == bgp.AfiIPv4 && row.SAFI == bgp.SafiUnicast
	var nlri []byte
	if ipv4Unicast {
		nlri = encodeLegacyPrefix(row.Prefix, row.PrefixLen)
		if mpReach != nil {
			tpa = append(tpa, mpReach.span...)
		}
	} else if mpReach == nil {
		if flags.has(StrictRFC6396) {
			return nil, ErrRIBNoMPReach
		}
		tpa = append(tpa, buildAttr(bgp.AttrMPReachNLRI, synthesizeMPReach(row, nextHopVal))...)
	} else {
		// RFC 6396 §4.3.4: inside a RIB entry, MP_REACH_NLRI's value
		// omits AFI/SAFI/SNPA/NLRI, carrying only next-hop length and
		// next hop; they're implicit in the surrounding row. A value of
		// any other shape (an embedded AFI/SAFI header) is not the
		// RFC 6396 form.
		nhLen := 4
		if row.AFI == bgp.AfiIPv6 {
			nhLen = 16
		}
		omitted := len(mpReach.value) == 1+nhLen && int(mpReach.value[0]) == nhLen
		switch {
		case omitted:
			tpa = append(tpa, buildAttr(bgp.AttrMPReachNLRI, synthesizeMPReach(row, mpReach.value[1:]))...)
		case flags.has(StrictRFC6396):
			return nil, ErrBadRIBV2MPReach
		default:
			tpa = append(tpa, mpReach.span...)
		}
	}

	body := make([]byte, 0, 4+len(tpa)+len(nlri))
	body = wire.AppendBE16(body, 0) // no legacy withdrawn routes
	body = wire.AppendBE16(body, uint16(len(tpa)))
	body = append(body, tpa...)
	body = append(body, nlri...)

	length := bgp.HeaderSize + len(body)
	buf := make([]byte, bgp.MarkerLen, length)
	for i := range buf {
		buf[i] = 0xff
	}
	buf = wire.AppendBE16(buf, uint16(length))
	buf = append(buf, bgp.MsgUpdate)
	buf = append(buf, body...)

	return bgp.FromBuffer(buf, bgp.FlagASN32Bit|bgp.FlagSkipUnknownSAFI)
}

// RebuildFromRIBStatus is RebuildFromRIB, additionally raising any
// reconstruction error (ErrRIBNoMPReach, ErrBadRIBV2MPReach, ...)
// through status and installing status on the returned message.
func RebuildFromRIBStatus(row *RIBRow, entry *RIBEntry, flags RebuildFlags, status *errstat.Status) (*bgp.Message, error) {
	msg, err := RebuildFromRIB(row, entry, flags)
	if status != nil {
		status.Raise(err, errstat.Srcloc{File: "mrt", Func: "RebuildFromRIB"})
	}
	if err != nil {
		return nil, err
	}
	msg.SetErrStatus(status)
	return msg, nil
}
