package mrt

import (
	"net"

	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/errstat"
	"github.com/CSUNetSec/bgpcore/wire"
)

// BGP4MPHeader is the peer/session information that precedes the
// embedded BGP message in a BGP4MP_MESSAGE[_AS4][_LOCAL] record.
type BGP4MPHeader struct {
	PeerAS         uint32
	LocalAS        uint32
	InterfaceIndex uint16
	AddressFamily  uint16
	PeerIP         net.IP
	LocalIP        net.IP
	AS4            bool
}

// ParseBGP4MP decodes a BGP4MP/BGP4MP_ET record's peer header and
// returns it alongside the embedded BGP message's raw bytes.
func ParseBGP4MP(rec *Record) (*BGP4MPHeader, []byte, error) {
	buf := rec.Payload
	as4 := rec.Subtype == BGP4MPMessageAS4 || rec.Subtype == BGP4MPMessageAS4Local
	h := &BGP4MPHeader{AS4: as4}

	if as4 {
		if len(buf) < 8 {
			return nil, nil, ErrTruncMRT
		}
		h.PeerAS = wire.BE32(buf[0:4])
		h.LocalAS = wire.BE32(buf[4:8])
		buf = buf[8:]
	} else {
		if len(buf) < 4 {
			return nil, nil, ErrTruncMRT
		}
		h.PeerAS = uint32(wire.BE16(buf[0:2]))
		h.LocalAS = uint32(wire.BE16(buf[2:4]))
		buf = buf[4:]
	}

	if len(buf) < 4 {
		return nil, nil, ErrTruncMRT
	}
	h.InterfaceIndex = wire.BE16(buf[0:2])
	h.AddressFamily = wire.BE16(buf[2:4])
	buf = buf[4:]

	switch h.AddressFamily {
	case bgp.AfiIPv4:
		if len(buf) < 8 {
			return nil, nil, ErrTruncMRT
		}
		h.PeerIP = net.IP(append([]byte(nil), buf[0:4]...))
		h.LocalIP = net.IP(append([]byte(nil), buf[4:8]...))
		buf = buf[8:]
	case bgp.AfiIPv6:
		if len(buf) < 32 {
			return nil, nil, ErrTruncMRT
		}
		h.PeerIP = net.IP(append([]byte(nil), buf[0:16]...))
		h.LocalIP = net.IP(append([]byte(nil), buf[16:32]...))
		buf = buf[32:]
	default:
		return nil, nil, ErrUnsupportedAFI
	}
	return h, buf, nil
}

// BGP4MPMessage decodes a BGP4MP record into its peer header and
// embedded BGP message.
func BGP4MPMessage(rec *Record) (*BGP4MPHeader, *bgp.Message, error) {
	return BGP4MPMessageStatus(rec, nil)
}

// BGP4MPMessageStatus is BGP4MPMessage, additionally raising any
// ParseBGP4MP error through status and installing status on the
// embedded BGP message so every Update/Open/... view built from it
// reports through the same carrier (see bgp.FromBufferStatus).
func BGP4MPMessageStatus(rec *Record, status *errstat.Status) (*BGP4MPHeader, *bgp.Message, error) {
	h, rest, err := ParseBGP4MP(rec)
	if status != nil {
		status.Raise(err, errstat.Srcloc{File: "mrt", Func: "BGP4MPMessage"})
	}
	if err != nil {
		return nil, nil, err
	}
	var flags bgp.Flags
	if h.AS4 {
		flags |= bgp.FlagASN32Bit
	}
	msg, err := bgp.FromBufferStatus(rest, flags, status)
	if err != nil {
		return nil, nil, err
	}
	return h, msg, nil
}
