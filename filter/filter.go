// Package filter provides convenience, non-VM filters over decoded BGP
// UPDATE messages: prefix containment and AS-path position predicates,
// the two filter shapes the original mrtFilter.go covered directly
// without going through a compiled program.
package filter

import (
	"strconv"
	"strings"

	"github.com/CSUNetSec/bgpcore/asn"
	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/patricia"
	"github.com/pkg/errors"
)

// Filter reports whether upd should be kept. A Filter that fails to
// decode the attribute it inspects returns false rather than erroring;
// callers needing the underlying error should use bgp.Update directly.
type Filter func(upd *bgp.Update) bool

// PrefixLoc selects which of an UPDATE's prefix sets PrefixFilter
// inspects.
type PrefixLoc uint8

const (
	AdvPrefix PrefixLoc = iota
	WdrPrefix
	AnyPrefix
)

// PrefixFilter matches UPDATEs carrying a prefix covered by a configured
// prefix set, at the configured location (advertised, withdrawn, or
// either).
type PrefixFilter struct {
	set *patricia.Set
	loc PrefixLoc
}

// NewPrefixFilterFromString parses a sep-separated list of CIDR strings
// ("10.0.0.0/8,192.168.0.0/16") into a PrefixFilter.
func NewPrefixFilterFromString(raw string, sep string, loc PrefixLoc) (Filter, error) {
	return NewPrefixFilterFromSlice(strings.Split(raw, sep), loc)
}

// NewPrefixFilterFromSlice builds a PrefixFilter from a slice of CIDR
// strings.
func NewPrefixFilterFromSlice(cidrs []string, loc PrefixLoc) (Filter, error) {
	set := patricia.New()
	for _, c := range cidrs {
		if err := set.AddCIDR(strings.TrimSpace(c)); err != nil {
			return nil, errors.Wrapf(err, "filter: bad prefix %q", c)
		}
	}
	pf := PrefixFilter{set: set, loc: loc}
	return pf.match, nil
}

func (pf PrefixFilter) match(upd *bgp.Update) bool {
	if pf.loc == AdvPrefix || pf.loc == AnyPrefix {
		if nlri, err := upd.NLRI(); err == nil && coversAny(pf.set, nlri) {
			return true
		}
		if mp, ok, err := upd.MPReach(); err == nil && ok && coversAny(pf.set, mp.Prefixes) {
			return true
		}
	}
	if pf.loc == WdrPrefix || pf.loc == AnyPrefix {
		if wdn, err := upd.WithdrawnRoutes(); err == nil && coversAny(pf.set, wdn) {
			return true
		}
		if mp, ok, err := upd.MPUnreach(); err == nil && ok && coversAny(pf.set, mp.Prefixes) {
			return true
		}
	}
	return false
}

func coversAny(set *patricia.Set, prefixes []bgp.Prefix) bool {
	for _, p := range prefixes {
		if ok, err := set.Covers(p.Addr, p.Mask); err == nil && ok {
			return true
		}
	}
	return false
}

// ASPosition selects where in the merged AS path ASFilter requires a
// match.
type ASPosition uint8

const (
	// AS_SOURCE matches the path's last hop: the origin AS.
	AS_SOURCE ASPosition = iota
	// AS_DESTINATION matches the path's first hop: the nearest neighbor.
	AS_DESTINATION
	// AS_MIDPATH matches any hop other than the first or last.
	AS_MIDPATH
	// AS_ANYWHERE matches any hop in the path.
	AS_ANYWHERE
)

// ASFilter matches UPDATEs whose merged AS path contains one of a
// configured ASN list at the configured position.
type ASFilter struct {
	list []asn.Asn
}

// NewASFilter parses a comma-separated ASN list ("1,2,3") and returns a
// Filter matching at pos.
func NewASFilter(list string, pos ASPosition) (Filter, error) {
	parsed, err := parseASList(list)
	if err != nil {
		return nil, err
	}
	return NewASFilterFromSlice(parsed, pos)
}

// NewASFilterFromSlice builds an ASFilter from an already-parsed ASN
// list.
func NewASFilterFromSlice(list []asn.Asn, pos ASPosition) (Filter, error) {
	asf := ASFilter{list: list}
	switch pos {
	case AS_SOURCE:
		return asf.filterBySource, nil
	case AS_DESTINATION:
		return asf.filterByDest, nil
	case AS_MIDPATH:
		return asf.filterByMidPath, nil
	case AS_ANYWHERE:
		return asf.filterByAnywhere, nil
	}
	return nil, errors.New("filter: unsupported AS position")
}

func flatten(segs []bgp.Segment) []asn.Asn {
	var out []asn.Asn
	for _, s := range segs {
		out = append(out, s.ASNs...)
	}
	return out
}

func (asf ASFilter) filterBySource(upd *bgp.Update) bool {
	path := flatten(mustASPath(upd))
	if len(path) < 1 {
		return false
	}
	return asf.matchesOne(path[len(path)-1])
}

func (asf ASFilter) filterByDest(upd *bgp.Update) bool {
	path := flatten(mustASPath(upd))
	if len(path) < 1 {
		return false
	}
	return asf.matchesOne(path[0])
}

func (asf ASFilter) filterByMidPath(upd *bgp.Update) bool {
	path := flatten(mustASPath(upd))
	if len(path) < 3 {
		return false
	}
	for _, a := range path[1 : len(path)-1] {
		if asf.matchesOne(a) {
			return true
		}
	}
	return false
}

func (asf ASFilter) filterByAnywhere(upd *bgp.Update) bool {
	for _, a := range flatten(mustASPath(upd)) {
		if asf.matchesOne(a) {
			return true
		}
	}
	return false
}

func (asf ASFilter) matchesOne(a asn.Asn) bool {
	for _, want := range asf.list {
		if want.Uint32() == a.Uint32() {
			return true
		}
	}
	return false
}

func mustASPath(upd *bgp.Update) []bgp.Segment {
	segs, err := upd.ASPath()
	if err != nil {
		return nil
	}
	return segs
}

func parseASList(str string) ([]asn.Asn, error) {
	parts := strings.Split(str, ",")
	out := make([]asn.Asn, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "filter: bad ASN %q", p)
		}
		out[i] = asn.From32(uint32(v))
	}
	return out, nil
}

// All reports whether upd passes every filter in filters; a nil entry is
// skipped. An empty filters slice passes everything.
func All(filters []Filter, upd *bgp.Update) bool {
	for _, f := range filters {
		if f != nil && !f(upd) {
			return false
		}
	}
	return true
}
