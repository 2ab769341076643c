package bgp

import (
	"github.com/CSUNetSec/bgpcore/asn"
	"github.com/CSUNetSec/bgpcore/wire"
)

// Segment is one AS_PATH segment: an ordered AS_SEQUENCE or an unordered
// AS_SET of ASNs.
type Segment struct {
	Type uint8 // AsSet or AsSequence
	ASNs []asn.Asn
}

// parseASSegments decodes a raw AS_PATH/AS4_PATH attribute value into
// segments, where each ASN is width bytes wide (2 for legacy AS_PATH, 4
// for AS4_PATH and for AS_PATH once 4-octet ASNs are negotiated).
func parseASSegments(buf []byte, width int, wide bool) ([]Segment, error) {
	var segs []Segment
	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, ErrTruncAttr
		}
		typ := buf[0]
		if typ != AsSet && typ != AsSequence {
			return nil, ErrSegmentTypeBad
		}
		n := int(buf[1])
		buf = buf[2:]
		need := n * width
		if len(buf) < need {
			return nil, ErrTruncAttr
		}
		seg := Segment{Type: typ, ASNs: make([]asn.Asn, n)}
		for i := 0; i < n; i++ {
			if wide {
				seg.ASNs[i] = asn.From32(wire.BE32(buf[:4]))
			} else {
				seg.ASNs[i] = asn.From16(wire.BE16(buf[:2]))
			}
			buf = buf[width:]
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func flattenCount(segs []Segment) int {
	n := 0
	for _, s := range segs {
		n += len(s.ASNs)
	}
	return n
}

// ASPathIter is a cursor over an UPDATE's AS path segments, after the
// AS4_PATH merge has already been applied. The merge requires
// comparing both paths' total ASN counts before any
// segment can be emitted, so unlike AttrIter/PrefixIter this cursor
// walks a merged segment slice computed up front rather than streaming
// straight off the wire.
type ASPathIter struct {
	segs []Segment
	pos  int
}

// Next returns the next AS path segment.
func (it *ASPathIter) Next() (Segment, bool) {
	if it.pos >= len(it.segs) {
		return Segment{}, false
	}
	s := it.segs[it.pos]
	it.pos++
	return s, true
}

// ASPathIter returns a cursor over the UPDATE's AS path, merging
// AS4_PATH into AS_PATH per RFC 4893 §4.2.3 when the session negotiated
// 2-octet ASNs: the left-most (shortfall) ASNs keep whatever AS_PATH
// carried (preserving AS_SET membership and placement), and the
// right-most ASNs are replaced one-for-one, in order, by AS4_PATH's
// ASNs. If AS4_PATH has more ASNs than AS_PATH, it cannot be aligned and
// is discarded entirely, per the RFC.
func (u *Update) ASPathIter() (ASPathIter, error) {
	segs, err := u.asPathMerged()
	if err != nil {
		return ASPathIter{}, err
	}
	return ASPathIter{segs: segs}, nil
}

// ASPath decodes the UPDATE's AS path into a slice: the same merged
// segments ASPathIter walks.
func (u *Update) ASPath() ([]Segment, error) {
	return u.asPathMerged()
}

func (u *Update) asPathMerged() ([]Segment, error) {
	asPathVal, found, err := u.RawAttr(AttrASPath)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	wide := u.msg.flags.has(FlagASN32Bit)
	width := 2
	if wide {
		width = 4
	}
	asPath, err := parseASSegments(asPathVal, width, wide)
	if err != nil {
		return nil, u.raise(err, "ASPath")
	}
	if wide {
		return asPath, nil
	}

	as4Val, found, err := u.RawAttr(AttrAS4Path)
	if err != nil {
		return nil, err
	}
	if !found {
		return asPath, nil
	}
	as4Path, err := parseASSegments(as4Val, 4, true)
	if err != nil {
		return nil, u.raise(err, "ASPath")
	}

	n2, n4 := flattenCount(asPath), flattenCount(as4Path)
	if n4 > n2 {
		return asPath, nil
	}
	cutoff := n2 - n4
	as4Flat := make([]asn.Asn, 0, n4)
	for _, s := range as4Path {
		as4Flat = append(as4Flat, s.ASNs...)
	}

	merged := make([]Segment, len(asPath))
	idx := 0
	for i, s := range asPath {
		out := make([]asn.Asn, len(s.ASNs))
		for j, v := range s.ASNs {
			if idx < cutoff {
				out[j] = v
			} else {
				out[j] = as4Flat[idx-cutoff]
			}
			idx++
		}
		merged[i] = Segment{Type: s.Type, ASNs: out}
	}
	return merged, nil
}
