package bgp

import (
	"fmt"
	"net"

	"github.com/CSUNetSec/bgpcore/wire"
)

// Community is a plain (RFC 1997) community value.
type Community struct {
	ASN   uint16
	Value uint16
}

// CommIter is a cursor over the COMMUNITY attribute's 4-byte values,
// decoding one Community per Next call rather than allocating a whole
// []Community up front.
type CommIter struct {
	buf []byte
	err error
}

// Next decodes the next community value.
func (it *CommIter) Next() (Community, bool, error) {
	if it.err != nil {
		return Community{}, false, it.err
	}
	if len(it.buf) == 0 {
		return Community{}, false, nil
	}
	if len(it.buf) < 4 {
		it.err = ErrTruncAttr
		return Community{}, false, it.err
	}
	c := Community{ASN: wire.BE16(it.buf[0:2]), Value: wire.BE16(it.buf[2:4])}
	it.buf = it.buf[4:]
	return c, true, nil
}

// CommIter returns a cursor over the COMMUNITY attribute's values, if
// present. No semantic interpretation (well-known community names,
// etc.) is performed here.
func (u *Update) CommIter() (CommIter, bool, error) {
	val, found, err := u.RawAttr(AttrCommunity)
	if err != nil || !found {
		return CommIter{}, found, err
	}
	if len(val)%4 != 0 {
		return CommIter{}, true, u.raise(ErrTruncAttr, "CommIter")
	}
	return CommIter{buf: val}, true, nil
}

// Communities decodes the COMMUNITY attribute, if present, draining its
// cursor into a slice. Use CommIter to avoid the allocation.
func (u *Update) Communities() ([]Community, bool, error) {
	it, found, err := u.CommIter()
	if err != nil || !found {
		return nil, found, err
	}
	var out []Community
	for {
		c, ok, err := it.Next()
		if err != nil {
			return nil, true, err
		}
		if !ok {
			break
		}
		out = append(out, c)
	}
	return out, true, nil
}

// ExtCommunities decodes the EXTENDED_COMMUNITY attribute, if present,
// into its constituent 8-byte raw values. Use DecodeExtCommunity to
// interpret a value's type/subtype, which is an opt-in step this layer
// does not take on its own.
func (u *Update) ExtCommunities() ([][8]byte, bool, error) {
	val, found, err := u.RawAttr(AttrExtendedCommunity)
	if err != nil || !found {
		return nil, found, err
	}
	if len(val)%8 != 0 {
		return nil, true, u.raise(ErrTruncAttr, "ExtCommunities")
	}
	out := make([][8]byte, len(val)/8)
	for i := range out {
		copy(out[i][:], val[i*8:i*8+8])
	}
	return out, true, nil
}

// LargeCommunity is an RFC 8092 large community value.
type LargeCommunity struct {
	GlobalAdmin uint32
	LocalData1  uint32
	LocalData2  uint32
}

// LargeCommunities decodes the LARGE_COMMUNITY attribute, if present.
func (u *Update) LargeCommunities() ([]LargeCommunity, bool, error) {
	val, found, err := u.RawAttr(AttrLargeCommunity)
	if err != nil || !found {
		return nil, found, err
	}
	if len(val)%12 != 0 {
		return nil, true, u.raise(ErrTruncAttr, "LargeCommunities")
	}
	out := make([]LargeCommunity, len(val)/12)
	for i := range out {
		b := val[i*12 : i*12+12]
		out[i] = LargeCommunity{
			GlobalAdmin: wire.BE32(b[0:4]),
			LocalData1:  wire.BE32(b[4:8]),
			LocalData2:  wire.BE32(b[8:12]),
		}
	}
	return out, true, nil
}

// Extended community type/subtype bytes this package knows how to
// render semantically. Anything else falls back to hex.
const (
	extTypeTwoOctetAS = 0x00
	extTypeIPv4       = 0x01
	extTypeFourOctet  = 0x02
	extSubtypeRouteTarget  = 0x02
	extSubtypeSiteOfOrigin = 0x03
)

// DecodeExtCommunity renders a raw 8-byte extended community value as
// "route-target:..."/"site-of-origin:..." text for the subtypes this
// package recognizes (2-octet-AS, IPv4-address and 4-octet-AS
// transitive community types, per RFC 4360), falling back to a hex dump
// for anything else. It is a display-only helper; no iterator or filter
// in this package calls it automatically, preserving ExtCommunities'
// "no semantic interpretation" contract.
func DecodeExtCommunity(raw [8]byte) string {
	typ := raw[0]
	subtype := raw[1]
	body := raw[2:8]

	label := func(kind string) string {
		switch subtype {
		case extSubtypeRouteTarget:
			return "route-target:" + kind
		case extSubtypeSiteOfOrigin:
			return "site-of-origin:" + kind
		default:
			return fmt.Sprintf("ext-community:type=%#x,subtype=%#x:%s", typ, subtype, kind)
		}
	}

	switch typ &^ 0x40 { // ignore the transitive/non-transitive high bit
	case extTypeTwoOctetAS:
		asn := wire.BE16(body[0:2])
		localAdmin := wire.BE32(body[2:6])
		return label(fmt.Sprintf("%d:%d", asn, localAdmin))
	case extTypeIPv4:
		ip := net.IP(append([]byte(nil), body[0:4]...))
		localAdmin := wire.BE16(body[4:6])
		return label(fmt.Sprintf("%s:%d", ip, localAdmin))
	case extTypeFourOctet:
		asn := wire.BE32(body[0:4])
		localAdmin := wire.BE16(body[4:6])
		return label(fmt.Sprintf("%d:%d", asn, localAdmin))
	default:
		return fmt.Sprintf("%x", raw)
	}
}
