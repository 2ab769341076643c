package bgp

import (
	"net"

	"github.com/CSUNetSec/bgpcore/wire"
)

// Prefix is a single NLRI/withdrawn-route entry: a masked address plus,
// when ADD-PATH is in effect, the path identifier it was advertised
// with.
type Prefix struct {
	Addr     net.IP
	Mask     uint8
	PathID   uint32
	HasPathID bool
}

// Update is a typed, lazily-decoded view over an UPDATE message body.
// Path attributes are resolved on demand through RawAttr/AttrIter; the
// withdrawn-routes and NLRI spans are located once, at construction
// time, since doing so only requires reading two length fields, not
// parsing attribute contents.
type Update struct {
	msg          *Message
	withdrawnBuf []byte
	tpaBuf       []byte
	nlriBuf      []byte
	table        [attrTabLen]int16
}

// AsUpdate interprets the message as an UPDATE message, locating (but
// not decoding) its withdrawn-routes, path-attribute and NLRI spans.
func (m *Message) AsUpdate() (*Update, error) {
	if m.Type() != MsgUpdate {
		return nil, m.raise(ErrBadType, "AsUpdate")
	}
	b := m.body()
	if len(b) < 2 {
		return nil, m.raise(ErrTruncMsg, "AsUpdate")
	}
	wlen := int(wire.BE16(b[:2]))
	b = b[2:]
	if len(b) < wlen {
		return nil, m.raise(ErrTruncMsg, "AsUpdate")
	}
	withdrawn := b[:wlen]
	b = b[wlen:]

	if len(b) < 2 {
		return nil, m.raise(ErrTruncMsg, "AsUpdate")
	}
	tpalen := int(wire.BE16(b[:2]))
	b = b[2:]
	if len(b) < tpalen {
		return nil, m.raise(ErrTruncMsg, "AsUpdate")
	}
	tpa := b[:tpalen]
	nlri := b[tpalen:]

	u := &Update{msg: m, withdrawnBuf: withdrawn, tpaBuf: tpa, nlriBuf: nlri}
	for i := range u.table {
		u.table[i] = attrUnknown
	}
	return u, nil
}

// RawTPA returns the raw, undecoded Total Path Attribute bytes.
func (u *Update) RawTPA() []byte { return u.tpaBuf }

// raise reports err through the owning Message's installed Status, if
// any, and returns err unchanged so callers can wrap a return statement
// with it.
func (u *Update) raise(err error, fn string) error {
	return u.msg.raise(err, fn)
}

// PrefixIter is a cursor over the RFC 4271 "length, prefix" triples
// packed into an NLRI, withdrawn-routes or MP_REACH/MP_UNREACH span: a
// 1-byte bit length followed by ceil(bits/8) address bytes, optionally
// preceded by a 4-byte ADD-PATH path identifier. It decodes one prefix
// per Next call rather than allocating a whole []Prefix up front.
type PrefixIter struct {
	buf     []byte
	v6      bool
	addPath bool
	err     error
}

func newPrefixIter(buf []byte, v6, addPath bool) PrefixIter {
	return PrefixIter{buf: buf, v6: v6, addPath: addPath}
}

// Next decodes the next prefix. ok is false once the iterator is
// exhausted; a non-nil error means the span is malformed and the
// iterator should not be advanced further.
func (it *PrefixIter) Next() (p Prefix, ok bool, err error) {
	if it.err != nil {
		return Prefix{}, false, it.err
	}
	if len(it.buf) == 0 {
		return Prefix{}, false, nil
	}
	addrLen := 4
	if it.v6 {
		addrLen = 16
	}
	buf := it.buf
	var pathID uint32
	if it.addPath {
		if len(buf) < 4 {
			it.err = ErrNoAddPath
			return Prefix{}, false, it.err
		}
		pathID = wire.BE32(buf[:4])
		buf = buf[4:]
	}
	if len(buf) < 1 {
		it.err = ErrTruncPfx
		return Prefix{}, false, it.err
	}
	bits := uint8(buf[0])
	buf = buf[1:]
	if int(bits) > addrLen*8 {
		it.err = ErrBadPfxWidth
		return Prefix{}, false, it.err
	}
	bytelen := int(bits+7) / 8
	if len(buf) < bytelen {
		it.err = ErrTruncPfx
		return Prefix{}, false, it.err
	}
	raw := make([]byte, addrLen)
	copy(raw, buf[:bytelen])
	if bits%8 != 0 {
		mask := byte(uint16(0xff00) >> (bits % 8))
		raw[bytelen-1] &= mask
	}
	it.buf = buf[bytelen:]
	return Prefix{Addr: net.IP(raw), Mask: bits, PathID: pathID, HasPathID: it.addPath}, true, nil
}

// readPrefixes drains a PrefixIter over buf into a slice, for callers
// that want the whole span decoded at once.
func readPrefixes(buf []byte, v6 bool, addPath bool) ([]Prefix, error) {
	it := newPrefixIter(buf, v6, addPath)
	var out []Prefix
	for {
		p, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

// WithdrawnIter returns a cursor over the UPDATE's withdrawn-routes
// span. Per RFC 4271 this span is always IPv4; withdrawals for other
// address families travel in MP_UNREACH_NLRI instead (see MPIter).
func (u *Update) WithdrawnIter() PrefixIter {
	return newPrefixIter(u.withdrawnBuf, false, u.msg.flags.has(FlagAddPath))
}

// WithdrawnRoutes decodes the UPDATE's withdrawn-routes span.
func (u *Update) WithdrawnRoutes() ([]Prefix, error) {
	out, err := readPrefixes(u.withdrawnBuf, false, u.msg.flags.has(FlagAddPath))
	if err != nil {
		return nil, u.raise(err, "WithdrawnRoutes")
	}
	return out, nil
}

// NLRIIter returns a cursor over the UPDATE's trailing NLRI span. Per
// RFC 4271 this span is always IPv4; reachability for other address
// families travels in MP_REACH_NLRI instead (see MPIter).
func (u *Update) NLRIIter() PrefixIter {
	return newPrefixIter(u.nlriBuf, false, u.msg.flags.has(FlagAddPath))
}

// NLRI decodes the UPDATE's trailing NLRI span.
func (u *Update) NLRI() ([]Prefix, error) {
	out, err := readPrefixes(u.nlriBuf, false, u.msg.flags.has(FlagAddPath))
	if err != nil {
		return nil, u.raise(err, "NLRI")
	}
	return out, nil
}
