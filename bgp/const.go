package bgp

// Message header framing, per RFC 4271 §4.1.
const (
	MarkerLen  = 16
	HeaderSize = 19 // marker + 2-byte length + 1-byte type
	MaxMsgSize = 0x1000
	MaxExMsg   = 0xffff // RFC 8654 extended message ceiling
)

// Message types.
const (
	MsgOpen = iota + 1
	MsgUpdate
	MsgNotification
	MsgKeepalive
	MsgRouteRefresh
)

// AFI values used by MP_REACH/MP_UNREACH and RIB entries.
const (
	AfiIPv4 = 1
	AfiIPv6 = 2
)

// SAFI values this package understands.
const (
	SafiUnicast   = 1
	SafiMulticast = 2
)

// Path attribute type codes, RFC 4271 §5 plus the multiprotocol and
// 4-octet-ASN extensions this package also decodes.
const (
	AttrOrigin             = 1
	AttrASPath             = 2
	AttrNextHop            = 3
	AttrMultiExitDisc      = 4
	AttrLocalPref          = 5
	AttrAtomicAggregate    = 6
	AttrAggregator         = 7
	AttrCommunity          = 8
	AttrOriginatorID       = 9
	AttrClusterList        = 10
	AttrMPReachNLRI        = 14
	AttrMPUnreachNLRI      = 15
	AttrExtendedCommunity  = 16
	AttrAS4Path            = 17
	AttrAS4Aggregator      = 18
	AttrPMSITunnel         = 22
	AttrTunnelEncap        = 23
	AttrTrafficEngineering = 24
	AttrAIGP               = 26
	AttrPEDistLabels       = 27
	AttrBGPLS              = 29
	AttrLargeCommunity     = 32
	AttrBGPsecPath         = 33
	AttrAttrSet            = 128
)

// attrTabLen is the width of the fast attribute-offset cache: the number
// of "hot" attribute kinds indexed directly by array slot rather than
// found by a linear TPA walk on every access. Chosen to match the
// well-known/common attributes any update is likely to carry, the way
// the original library's Bgpattrtab does.
const attrTabLen = 14

// attrTabIdx maps an attribute type code to its slot in the fast table,
// or -1 if the attribute isn't tracked there (it is still reachable via
// AttrIter, just not cached).
var attrTabIdx = buildAttrTabIdx()

func buildAttrTabIdx() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	hot := []int{
		AttrOrigin, AttrASPath, AttrNextHop, AttrMultiExitDisc,
		AttrLocalPref, AttrAtomicAggregate, AttrAggregator, AttrCommunity,
		AttrMPReachNLRI, AttrMPUnreachNLRI, AttrExtendedCommunity, AttrAS4Path,
		AttrAS4Aggregator, AttrLargeCommunity,
	}
	for i, code := range hot {
		t[code] = int8(i)
	}
	return t
}

// attrUnknown and attrNotFound are the offset-cache sentinels: a table
// slot holds attrUnknown until the attribute is looked for the first
// time, then either the attribute's offset within the TPA buffer or
// attrNotFound if the TPA genuinely carries no such attribute.
const (
	attrUnknown  int16 = -1
	attrNotFound int16 = -2
)

// AS path segment types, RFC 4271 §4.3.
const (
	AsSet      = 1
	AsSequence = 2
)

// Origin attribute values.
const (
	OriginIGP = iota
	OriginEGP
	OriginIncomplete
)

// Flags control Message decode behavior. They correspond to the
// per-message flag bits the original library packs alongside a decoded
// message (BGPF_* in the original header).
type Flags uint16

const (
	// FlagASN32Bit indicates the session negotiated 4-octet ASNs, so
	// AS_PATH segments carry 4-byte ASNs instead of 2-byte ones.
	FlagASN32Bit Flags = 1 << iota
	// FlagAddPath indicates the ADD-PATH capability (RFC 7911) is in
	// effect: NLRI and withdrawn route entries are prefixed by a 4-byte
	// path identifier.
	FlagAddPath
	// FlagExMsg indicates the extended message size capability (RFC
	// 8654) is in effect, raising the message size ceiling to
	// MaxExMsg instead of MaxMsgSize.
	FlagExMsg
	// FlagSkipUnknownSAFI relaxes MP_REACH/MP_UNREACH decoding to accept
	// (rather than reject) a SAFI this package does not specifically
	// decode; the attribute is then decoded with the generic layout.
	FlagSkipUnknownSAFI
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }
