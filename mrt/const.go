// Package mrt decodes MRT archive records (RFC 6396) and reconstructs
// BGP UPDATE messages from RIB dump entries.
package mrt

// HeaderLen is the fixed MRT record header size: 4-byte timestamp,
// 2-byte type, 2-byte subtype, 4-byte length.
const HeaderLen = 12

// Record types this package decodes.
const (
	TypeTableDump   = 12
	TypeTableDumpV2 = 13
	TypeBGP4MP      = 16
	TypeBGP4MPET    = 17
)

// TABLE_DUMP (v1) subtypes, RFC 6396 §4.2.
const (
	TableDumpAFIIPv4 = 1
	TableDumpAFIIPv6 = 2
)

// TABLE_DUMP_V2 subtypes, RFC 6396 §4.3.
const (
	SubtypePeerIndexTable     = 1
	SubtypeRIBIPv4Unicast     = 2
	SubtypeRIBIPv4Multicast   = 3
	SubtypeRIBIPv6Unicast     = 4
	SubtypeRIBIPv6Multicast   = 5
	SubtypeRIBGeneric         = 6
)

// BGP4MP subtypes, RFC 6396 §4.4. Note RFC 6396 assigns MESSAGE_LOCAL=6
// and MESSAGE_AS4_LOCAL=7; both are distinct, unlike some older
// implementations that conflate the two.
const (
	BGP4MPStateChange    = 0
	BGP4MPMessage        = 1
	BGP4MPMessageAS4     = 4
	BGP4MPStateChangeAS4 = 5
	BGP4MPMessageLocal   = 6
	BGP4MPMessageAS4Local = 7
)

// Flags controlling RebuildFromRIB's reconstruction behavior.
type RebuildFlags uint8

const (
	// StrictRFC6396 requires a non-IPv4-unicast RIB entry to carry an
	// MP_REACH_NLRI in the RFC 6396 omitted-header form (next-hop length
	// and next hop only); an absent attribute fails ErrRIBNoMPReach and
	// any other shape fails ErrBadRIBV2MPReach. Lax mode synthesizes
	// MP_REACH from the RIB row's prefix when the attribute is absent and
	// passes any other shape through unchanged.
	StrictRFC6396 RebuildFlags = 1 << iota
	// StripUnreach drops any MP_UNREACH_NLRI attribute from the
	// synthesized UPDATE (RIB dumps describe reachable routes, so one
	// should not normally be present, but some exporters include an
	// empty one).
	StripUnreach
	// ClearUnreach is like StripUnreach but only clears the attribute's
	// prefix list rather than removing the attribute entirely.
	ClearUnreach
)

func (f RebuildFlags) has(bit RebuildFlags) bool { return f&bit != 0 }
