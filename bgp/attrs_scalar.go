package bgp

import (
	"net"

	"github.com/CSUNetSec/bgpcore/wire"
)

// Origin returns the ORIGIN attribute (OriginIGP/EGP/Incomplete).
func (u *Update) Origin() (uint8, bool, error) {
	val, found, err := u.RawAttr(AttrOrigin)
	if err != nil || !found {
		return 0, found, err
	}
	if len(val) != 1 {
		return 0, true, ErrTruncAttr
	}
	return val[0], true, nil
}

// MultiExitDisc returns the MULTI_EXIT_DISC attribute.
func (u *Update) MultiExitDisc() (uint32, bool, error) {
	val, found, err := u.RawAttr(AttrMultiExitDisc)
	if err != nil || !found {
		return 0, found, err
	}
	if len(val) != 4 {
		return 0, true, ErrTruncAttr
	}
	return wire.BE32(val), true, nil
}

// LocalPref returns the LOCAL_PREF attribute.
func (u *Update) LocalPref() (uint32, bool, error) {
	val, found, err := u.RawAttr(AttrLocalPref)
	if err != nil || !found {
		return 0, found, err
	}
	if len(val) != 4 {
		return 0, true, ErrTruncAttr
	}
	return wire.BE32(val), true, nil
}

// AtomicAggregate reports whether the ATOMIC_AGGREGATE attribute is
// present (it carries no value).
func (u *Update) AtomicAggregate() (bool, error) {
	_, found, err := u.RawAttr(AttrAtomicAggregate)
	return found, err
}

// Aggregator is the decoded AGGREGATOR/AS4_AGGREGATOR pair: the ASN and
// IP of the router that performed route aggregation.
type Aggregator struct {
	ASN uint32
	IP  net.IP
}

// Aggregator decodes the AGGREGATOR attribute, preferring the 4-octet
// ASN carried in AS4_AGGREGATOR when both are present (the same
// precedence rule AS4_PATH has over AS_PATH, RFC 6793 §4.2.3).
func (u *Update) Aggregator() (*Aggregator, bool, error) {
	val, found, err := u.RawAttr(AttrAggregator)
	if err != nil || !found {
		return nil, found, err
	}
	var a Aggregator
	switch len(val) {
	case 6: // 2-byte AS + 4-byte IPv4
		a.ASN = uint32(wire.BE16(val[0:2]))
		a.IP = net.IP(append([]byte(nil), val[2:6]...))
	case 8: // 4-byte AS + 4-byte IPv4
		a.ASN = wire.BE32(val[0:4])
		a.IP = net.IP(append([]byte(nil), val[4:8]...))
	default:
		return nil, true, ErrBadAggr
	}
	if !u.msg.flags.has(FlagASN32Bit) {
		if as4, found, err := u.RawAttr(AttrAS4Aggregator); err != nil {
			return nil, true, err
		} else if found {
			if len(as4) != 8 {
				return nil, true, ErrBadAggr4
			}
			a.ASN = wire.BE32(as4[0:4])
			a.IP = net.IP(append([]byte(nil), as4[4:8]...))
		}
	}
	return &a, true, nil
}
