package bgp

import (
	"github.com/CSUNetSec/bgpcore/internal/chkint"
	"github.com/CSUNetSec/bgpcore/wire"
)

// AttrIter walks the raw path attributes of an UPDATE message's Total
// Path Attribute segment in order, decoding only the 2-3 byte attribute
// header on each step. It never copies attribute values; Value is a
// sub-slice of the original message buffer.
type AttrIter struct {
	buf []byte
}

// NewAttrIter returns an iterator over tpa, the raw Total Path Attribute
// bytes of an UPDATE message (see Update.RawTPA).
func NewAttrIter(tpa []byte) AttrIter { return AttrIter{buf: tpa} }

// attrHeader decodes one attribute header from the start of buf,
// returning its flags, type code, value length, header length in bytes,
// and an error if buf is too short for the header it claims to have.
func attrHeader(buf []byte) (flags uint8, code int, vlen int, hdrlen int, err error) {
	if len(buf) < 2 {
		return 0, 0, 0, 0, ErrTruncAttr
	}
	flags = buf[0]
	code = int(buf[1])
	if flags&0x10 != 0 { // extended-length bit
		if len(buf) < 4 {
			return 0, 0, 0, 0, ErrTruncAttr
		}
		return flags, code, int(wire.BE16(buf[2:4])), 4, nil
	}
	if len(buf) < 3 {
		return 0, 0, 0, 0, ErrTruncAttr
	}
	return flags, code, int(buf[2]), 3, nil
}

// Next decodes the next attribute. ok is false once the iterator is
// exhausted; a non-nil error means the TPA is malformed and the iterator
// should not be advanced further.
func (it *AttrIter) Next() (code int, flags uint8, value []byte, ok bool, err error) {
	if len(it.buf) == 0 {
		return 0, 0, nil, false, nil
	}
	flags, code, vlen, hdrlen, err := attrHeader(it.buf)
	if err != nil {
		return 0, 0, nil, false, err
	}
	end, ok := chkint.AddInt(hdrlen, vlen)
	if !ok || len(it.buf) < end {
		return 0, 0, nil, false, ErrTruncAttr
	}
	value = it.buf[hdrlen:end]
	it.buf = it.buf[end:]
	return code, flags, value, true, nil
}

// Attribute flag bits, mirroring RFC 4271 §4.3.
const (
	attrFlagOptional   = 1 << 7
	attrFlagTransitive = 1 << 6
	attrFlagPartial    = 1 << 5
	attrFlagExtended   = 1 << 4
)

// RawAttr looks up the raw value bytes of the path attribute identified
// by code, consulting and populating the fast offset cache for the
// attrTabLen hot attribute kinds along the way. Any attribute kind encountered
// during a scan (not just the one being searched for) has its offset
// recorded, so repeated lookups for different hot attributes amortize a
// single walk of the TPA.
func (u *Update) RawAttr(code int) (value []byte, found bool, err error) {
	slot := hotSlot(code)
	if slot >= 0 {
		switch u.table[slot] {
		case attrNotFound:
			return nil, false, nil
		case attrUnknown:
			// fall through to scan
		default:
			val, found, err := u.valueAtOffset(int(u.table[slot]))
			if err != nil {
				return nil, false, u.raise(err, "RawAttr")
			}
			return val, found, nil
		}
	}

	var seenMPReach, seenMPUnreach bool
	it := NewAttrIter(u.tpaBuf)
	for {
		before := len(it.buf)
		start := len(u.tpaBuf) - before
		c, _, val, ok, err := it.Next()
		if err != nil {
			return nil, false, u.raise(err, "RawAttr")
		}
		if !ok {
			break
		}
		switch c {
		case AttrMPReachNLRI:
			if seenMPReach {
				return nil, false, u.raise(ErrDupNLRIAttr, "RawAttr")
			}
			seenMPReach = true
		case AttrMPUnreachNLRI:
			if seenMPUnreach {
				return nil, false, u.raise(ErrDupNLRIAttr, "RawAttr")
			}
			seenMPUnreach = true
		}
		if s := hotSlot(c); s >= 0 && u.table[s] == attrUnknown {
			u.table[s] = int16(start)
		}
		if c == code {
			return val, true, nil
		}
	}
	if slot >= 0 {
		u.table[slot] = attrNotFound
	}
	return nil, false, nil
}

// valueAtOffset re-decodes the attribute header located at a cached
// offset into the TPA buffer and returns its value bytes.
func (u *Update) valueAtOffset(off int) ([]byte, bool, error) {
	if off < 0 || off >= len(u.tpaBuf) {
		return nil, false, ErrTruncAttr
	}
	_, _, vlen, hdrlen, err := attrHeader(u.tpaBuf[off:])
	if err != nil {
		return nil, false, err
	}
	start, ok := chkint.AddInt(off, hdrlen)
	if !ok {
		return nil, false, ErrTruncAttr
	}
	end, ok := chkint.AddInt(start, vlen)
	if !ok || end > len(u.tpaBuf) {
		return nil, false, ErrTruncAttr
	}
	return u.tpaBuf[start:end], true, nil
}

func hotSlot(code int) int {
	if code < 0 || code > 255 {
		return -1
	}
	return int(attrTabIdx[code])
}

// HasAttr reports whether the TPA carries the given attribute code,
// without returning its value.
func (u *Update) HasAttr(code int) (bool, error) {
	_, found, err := u.RawAttr(code)
	return found, err
}
