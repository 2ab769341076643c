package bgp

import (
	"net"

	"github.com/CSUNetSec/bgpcore/wire"
)

// MPReach is the decoded MP_REACH_NLRI attribute (RFC 4760 §3): an
// address family, a next hop (possibly a link-local IPv6 pair) and the
// reachable NLRI.
type MPReach struct {
	AFI      uint16
	SAFI     uint8
	NextHop  net.IP
	LinkLocal net.IP // set only for the 32-byte IPv6 next-hop form, RFC 2545
	Prefixes []Prefix
}

// MPUnreach is the decoded MP_UNREACH_NLRI attribute (RFC 4760 §4).
type MPUnreach struct {
	AFI      uint16
	SAFI     uint8
	Prefixes []Prefix
}

func isKnownSAFI(safi uint8) bool {
	return safi == SafiUnicast || safi == SafiMulticast
}

// MPIter is a cursor over one MP_REACH_NLRI or MP_UNREACH_NLRI
// attribute: the address family and (for MP_REACH) next-hop fields,
// decoded once up front, paired with a PrefixIter over the reachable or
// withdrawn prefixes so the NLRI span itself is walked lazily rather
// than materialized into a []Prefix.
type MPIter struct {
	AFI       uint16
	SAFI      uint8
	NextHop   net.IP // set only by MPReachIter
	LinkLocal net.IP // set only for the 32-byte IPv6 next-hop form, RFC 2545
	prefixes  PrefixIter
}

// Next decodes the next prefix in the attribute's NLRI span.
func (it *MPIter) Next() (Prefix, bool, error) { return it.prefixes.Next() }

// MPReachIter decodes the MP_REACH_NLRI attribute's AFI/SAFI/next-hop
// header, if present, and returns a cursor over its reachable prefixes.
func (u *Update) MPReachIter() (MPIter, bool, error) {
	val, found, err := u.RawAttr(AttrMPReachNLRI)
	if err != nil || !found {
		return MPIter{}, found, err
	}
	if len(val) < 4 {
		return MPIter{}, true, u.raise(ErrTruncAttr, "MPReachIter")
	}
	afi := wire.BE16(val[0:2])
	safi := val[2]
	nhl := int(val[3])
	val = val[4:]
	if !isKnownSAFI(safi) && !u.msg.flags.has(FlagSkipUnknownSAFI) {
		return MPIter{}, true, u.raise(ErrSAFIUnsupported, "MPReachIter")
	}
	if nhl <= 0 || nhl > len(val) {
		return MPIter{}, true, u.raise(ErrTruncAttr, "MPReachIter")
	}
	it := MPIter{AFI: afi, SAFI: safi}
	switch {
	case afi == AfiIPv6 && nhl == 16:
		it.NextHop = net.IP(append([]byte(nil), val[:16]...))
	case afi == AfiIPv6 && nhl == 32:
		it.NextHop = net.IP(append([]byte(nil), val[:16]...))
		it.LinkLocal = net.IP(append([]byte(nil), val[16:32]...))
	case afi == AfiIPv4 && nhl == 4:
		it.NextHop = net.IP(append([]byte(nil), val[:4]...))
	default:
		return MPIter{}, true, u.raise(ErrTruncAttr, "MPReachIter")
	}
	val = val[nhl:]
	if len(val) < 1 {
		return MPIter{}, true, u.raise(ErrTruncAttr, "MPReachIter")
	}
	snpaNum := int(val[0])
	val = val[1:]
	for i := 0; i < snpaNum; i++ {
		if len(val) < 1 {
			return MPIter{}, true, u.raise(ErrTruncAttr, "MPReachIter")
		}
		snpaLen := int(val[0])
		val = val[1:]
		if len(val) < snpaLen {
			return MPIter{}, true, u.raise(ErrTruncAttr, "MPReachIter")
		}
		val = val[snpaLen:] // SNPAs are deprecated; skipped, never surfaced
	}
	it.prefixes = newPrefixIter(val, afi == AfiIPv6, u.msg.flags.has(FlagAddPath))
	return it, true, nil
}

// MPUnreachIter decodes the MP_UNREACH_NLRI attribute's AFI/SAFI
// header, if present, and returns a cursor over its withdrawn prefixes.
func (u *Update) MPUnreachIter() (MPIter, bool, error) {
	val, found, err := u.RawAttr(AttrMPUnreachNLRI)
	if err != nil || !found {
		return MPIter{}, found, err
	}
	if len(val) < 3 {
		return MPIter{}, true, u.raise(ErrTruncAttr, "MPUnreachIter")
	}
	afi := wire.BE16(val[0:2])
	safi := val[2]
	if !isKnownSAFI(safi) && !u.msg.flags.has(FlagSkipUnknownSAFI) {
		return MPIter{}, true, u.raise(ErrSAFIUnsupported, "MPUnreachIter")
	}
	return MPIter{AFI: afi, SAFI: safi, prefixes: newPrefixIter(val[3:], afi == AfiIPv6, u.msg.flags.has(FlagAddPath))}, true, nil
}

// MPReach decodes the MP_REACH_NLRI attribute, if present, draining its
// prefix cursor into a slice. Use MPReachIter to avoid the allocation.
func (u *Update) MPReach() (*MPReach, bool, error) {
	it, found, err := u.MPReachIter()
	if err != nil || !found {
		return nil, found, err
	}
	mp := &MPReach{AFI: it.AFI, SAFI: it.SAFI, NextHop: it.NextHop, LinkLocal: it.LinkLocal}
	for {
		p, ok, err := it.Next()
		if err != nil {
			return nil, true, u.raise(err, "MPReach")
		}
		if !ok {
			break
		}
		mp.Prefixes = append(mp.Prefixes, p)
	}
	return mp, true, nil
}

// MPUnreach decodes the MP_UNREACH_NLRI attribute, if present, draining
// its prefix cursor into a slice. Use MPUnreachIter to avoid the
// allocation.
func (u *Update) MPUnreach() (*MPUnreach, bool, error) {
	it, found, err := u.MPUnreachIter()
	if err != nil || !found {
		return nil, found, err
	}
	mu := &MPUnreach{AFI: it.AFI, SAFI: it.SAFI}
	for {
		p, ok, err := it.Next()
		if err != nil {
			return nil, true, u.raise(err, "MPUnreach")
		}
		if !ok {
			break
		}
		mu.Prefixes = append(mu.Prefixes, p)
	}
	return mu, true, nil
}

// NextHopIter is a cursor over the UPDATE's effective next hop(s): the
// MP_REACH_NLRI next hop (global, then link-local when RFC 2545's
// 32-byte form is in use) if present, otherwise the plain NEXT_HOP
// attribute's single value.
type NextHopIter struct {
	hops []net.IP
	pos  int
}

// Next returns the next next-hop address, or ok=false once exhausted.
func (it *NextHopIter) Next() (net.IP, bool) {
	if it.pos >= len(it.hops) {
		return nil, false
	}
	ip := it.hops[it.pos]
	it.pos++
	return ip, true
}

// NextHopIter builds the UPDATE's next-hop cursor. MP_REACH_NLRI takes
// precedence over a plain NEXT_HOP, since a multiprotocol session may
// carry both an unused legacy NEXT_HOP and the real one in MP_REACH.
func (u *Update) NextHopIter() (NextHopIter, error) {
	mp, found, err := u.MPReachIter()
	if err != nil {
		return NextHopIter{}, err
	}
	if found {
		hops := []net.IP{mp.NextHop}
		if mp.LinkLocal != nil {
			hops = append(hops, mp.LinkLocal)
		}
		return NextHopIter{hops: hops}, nil
	}
	val, found, err := u.RawAttr(AttrNextHop)
	if err != nil || !found {
		return NextHopIter{}, err
	}
	switch len(val) {
	case 4, 16:
		return NextHopIter{hops: []net.IP{net.IP(append([]byte(nil), val...))}}, nil
	default:
		return NextHopIter{}, u.raise(ErrTruncAttr, "NextHopIter")
	}
}

// NextHop returns the UPDATE's effective next hop (see NextHopIter).
func (u *Update) NextHop() (net.IP, bool, error) {
	it, err := u.NextHopIter()
	if err != nil {
		return nil, false, err
	}
	ip, ok := it.Next()
	return ip, ok, nil
}

// AllPrefixes returns every advertised prefix the UPDATE carries, from
// both the legacy NLRI span and MP_REACH_NLRI.
func (u *Update) AllPrefixes() ([]Prefix, error) {
	out, err := u.NLRI()
	if err != nil {
		return nil, err
	}
	mp, found, err := u.MPReach()
	if err != nil {
		return nil, err
	}
	if found {
		out = append(out, mp.Prefixes...)
	}
	return out, nil
}

// AllWithdrawn returns every withdrawn prefix the UPDATE carries, from
// both the legacy withdrawn-routes span and MP_UNREACH_NLRI.
func (u *Update) AllWithdrawn() ([]Prefix, error) {
	out, err := u.WithdrawnRoutes()
	if err != nil {
		return nil, err
	}
	mu, found, err := u.MPUnreach()
	if err != nil {
		return nil, err
	}
	if found {
		out = append(out, mu.Prefixes...)
	}
	return out, nil
}
